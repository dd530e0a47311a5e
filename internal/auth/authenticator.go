package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
)

// Authenticator resolves a bearer token to a live session.
type Authenticator struct {
	issuer *Issuer
	store  session.Store
}

func NewAuthenticator(issuer *Issuer, store session.Store) *Authenticator {
	return &Authenticator{issuer: issuer, store: store}
}

// Issuer exposes the token issuer.
func (a *Authenticator) Issuer() *Issuer { return a.issuer }

// Authenticate verifies the token, then touches and returns the session it
// names. A token whose session has been swept or deleted, or whose user id no
// longer matches, fails with ErrSessionRevoked.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := a.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	sess, err := a.store.TouchAndGet(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, ErrSessionRevoked
	}
	return &Principal{Session: sess, Claims: claims}, nil
}
