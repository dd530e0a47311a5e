// Package auth issues and verifies the bearer tokens that bind a caller to a
// live session.
//
// Tokens are HS256 JWTs carrying the session id and user id. They are not
// stored anywhere: validity is re-derived from the signature and expiry, and
// the Authenticator additionally requires the referenced session to still be
// present in the registry.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the validity window of an issued token.
const DefaultTokenTTL = 24 * time.Hour

// Token errors. ErrMalformedToken and ErrBadSignature both match ErrInvalidToken.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrBadSignature   = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	ErrExpiredToken   = errors.New("token expired")
	ErrSessionRevoked = errors.New("session expired or revoked")
)

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// Issuer signs and verifies session tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an Issuer. A non-positive ttl falls back to DefaultTokenTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...IssuerOption) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	i := &Issuer{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	return i
}

// TTL reports the validity window of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the session and returns it with its expiry.
func (i *Issuer) Issue(sessionID, userID string) (string, time.Time, error) {
	if sessionID == "" || userID == "" {
		return "", time.Time{}, errors.New("auth: session id and user id are required")
	}
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		UserID:    userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// It does not consult the session registry.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := i.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformedToken
		}
	}
	if !token.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
