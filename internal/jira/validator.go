package jira

import (
	"context"
	"net/http"
	"time"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
)

// Validator probes credentials before a session is created.
type Validator struct {
	hc *http.Client
}

// NewValidator returns a Validator whose probe is never retried.
func NewValidator(timeout time.Duration) *Validator {
	return &Validator{hc: NewHTTPClient(timeout, 0)}
}

// Validate makes exactly one list-projects call with the credentials. Any
// failure, remote or local, yields an auth error with a fixed reason.
func (v *Validator) Validate(ctx context.Context, creds Credentials) error {
	if _, err := New(v.hc, creds).ListProjects(ctx); err != nil {
		return apierr.Auth("invalid credentials or unreachable", err)
	}
	return nil
}
