// Package httpapi is the multi-tenant HTTP/SSE transport.
//
// Callers exchange Jira credentials for a bearer token at /auth/token and
// then reach the tool dispatcher through /mcp/message or the /api/jira
// forwarders. Every Jira-calling route resolves credentials from the
// session bound to the token, never from the request.
package httpapi

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/config"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/tools"
)

const (
	// DefaultHeartbeat is the SSE keepalive interval.
	DefaultHeartbeat = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// CredentialValidator probes Jira credentials before a session is created.
type CredentialValidator interface {
	Validate(ctx context.Context, creds jira.Credentials) error
}

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	store      session.Store
	authn      *auth.Authenticator
	validator  CredentialValidator
	dispatcher *tools.Dispatcher

	headers   config.HeaderConfig
	heartbeat time.Duration
	secrets   []string
	logger    *slog.Logger
	now       func() time.Time

	streams atomic.Int64
}

// Option configures the API instance.
type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHeaders overrides the identity header names.
func WithHeaders(h config.HeaderConfig) Option {
	return func(a *API) {
		if h.UserID != "" {
			a.headers.UserID = h.UserID
		}
		if h.JiraURL != "" {
			a.headers.JiraURL = h.JiraURL
		}
		if h.APIToken != "" {
			a.headers.APIToken = h.APIToken
		}
	}
}

func WithHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// WithSecrets adds process-wide values (the signing secret) that must never
// appear in a response body.
func WithSecrets(secrets ...string) Option {
	return func(a *API) { a.secrets = append(a.secrets, secrets...) }
}

// New creates a new API instance.
func New(store session.Store, authn *auth.Authenticator, validator CredentialValidator, d *tools.Dispatcher, opts ...Option) *API {
	a := &API{
		store:      store,
		authn:      authn,
		validator:  validator,
		dispatcher: d,
		headers:    config.Default().Headers,
		heartbeat:  DefaultHeartbeat,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ActiveStreams reports the number of open SSE connections.
func (a *API) ActiveStreams() int64 { return a.streams.Load() }

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", a.Health)
	r.Get("/tools", a.ListTools)
	r.Get("/mcp/sse", a.Stream)
	r.Post("/auth/token", a.IssueToken)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.authn, a.authFailed))

		r.Post("/auth/logout", a.Logout)
		r.Post("/mcp/message", a.Message)
		r.Get("/sessions", a.ListSessions)
		r.Delete("/sessions/{id}", a.DeleteSession)

		r.Route("/api/jira", func(r chi.Router) {
			r.Get("/myself", a.Myself)
			r.Get("/projects", a.Projects)
			r.Get("/projects/{key}", a.Project)
			r.Get("/search", a.Search)
			r.Post("/issues", a.CreateIssue)
			r.Get("/issues/{key}", a.Issue)
			r.Put("/issues/{key}", a.UpdateIssue)
			r.Get("/issues/{key}/transitions", a.Transitions)
			r.Post("/issues/{key}/transitions", a.Transition)
			r.Get("/issues/{key}/comments", a.Comments)
			r.Post("/issues/{key}/comments", a.AddComment)
		})
	})

	return r
}
