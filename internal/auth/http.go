package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMissingBearer is returned when the Authorization header carries no bearer token.
var ErrMissingBearer = errors.New("missing bearer token")

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingBearer
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}

// Middleware authenticates every request and stores the Principal in the
// request context. Failures are handed to fail, which writes the response.
func Middleware(a *Authenticator, fail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				fail(w, r, err)
				return
			}
			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Reason returns the caller-facing message for an authentication failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingBearer):
		return "missing or malformed Authorization header"
	case errors.Is(err, ErrExpiredToken):
		return "token expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session expired or revoked"
	case errors.Is(err, ErrInvalidToken):
		return "invalid token"
	default:
		return "authentication failed"
	}
}
