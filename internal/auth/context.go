package auth

import (
	"context"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	Session session.Session
	Claims  *Claims
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the Principal stored in ctx, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
