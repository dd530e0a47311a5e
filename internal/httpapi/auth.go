package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
)

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	UserID   string `json:"userId"`
	JiraURL  string `json:"jiraUrl"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

// TokenResponse is returned after a successful credential probe.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64  `json:"expiresIn"`
	Message   string `json:"message"`
}

func (req *TokenRequest) normalize() *apierr.Error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.JiraURL = strings.TrimRight(strings.TrimSpace(req.JiraURL), "/")
	req.Email = strings.TrimSpace(req.Email)
	req.APIToken = strings.TrimSpace(req.APIToken)

	for _, f := range []struct{ name, value string }{
		{"userId", req.UserID},
		{"jiraUrl", req.JiraURL},
		{"email", req.Email},
		{"apiToken", req.APIToken},
	} {
		if f.value == "" {
			return apierr.Validation(f.name, f.name+" is required")
		}
	}
	if err := validBaseURL(req.JiraURL); err != nil {
		return apierr.Validation("jiraUrl", err.Error())
	}
	return nil
}

func validBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("jiraUrl must be an absolute http(s) URL")
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return errors.New("jiraUrl must not carry credentials, query or fragment")
	}
	return nil
}

// IssueToken validates the credentials against Jira, creates a session and
// returns a bearer token bound to it.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if e := decodeBody(w, r, &req); e != nil {
		a.writeError(w, e)
		return
	}
	if e := req.normalize(); e != nil {
		a.writeError(w, e)
		return
	}

	ctx := r.Context()
	creds := jira.Credentials{BaseURL: req.JiraURL, Email: req.Email, APIToken: req.APIToken}
	if err := a.validator.Validate(ctx, creds); err != nil {
		a.logger.Info("credential probe rejected",
			"user_id", req.UserID,
			"jira_url", req.JiraURL,
			"error", apierr.Redact(err.Error(), req.APIToken, apierr.BasicAuthSecret(req.Email, req.APIToken)),
		)
		var ae *apierr.Error
		if !errors.As(err, &ae) {
			ae = apierr.Auth("invalid credentials or unreachable", err)
		}
		a.writeError(w, ae)
		return
	}

	id, err := a.store.Create(ctx, req.UserID, req.JiraURL, req.Email, req.APIToken)
	if err != nil {
		a.mapError(w, r, apierr.Internal("could not create session", err))
		return
	}

	issuer := a.authn.Issuer()
	token, _, err := issuer.Issue(id, req.UserID)
	if err != nil {
		if _, derr := a.store.Delete(ctx, id); derr != nil {
			a.logger.Error("removing session after token failure", "session_id", id, "error", derr)
		}
		a.mapError(w, r, apierr.Internal("could not issue token", err))
		return
	}

	a.logger.Info("session created", "session_id", id, "user_id", req.UserID, "jira_url", req.JiraURL)
	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		SessionID: id,
		ExpiresIn: int64(issuer.TTL().Seconds()),
		Message:   "Authentication successful",
	})
}

// Logout deletes the caller's own session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if _, err := a.store.Delete(r.Context(), p.Session.ID); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.logger.Info("session logged out", "session", p.Session)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Logged out",
		"sessionId": p.Session.ID,
	})
}

// decodeBody reads a single JSON object into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) *apierr.Error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Validation("body", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.Validation("body", "request body too large")
		}
		return apierr.Validation("body", "request body must be a JSON object")
	}
	return nil
}
