// Package tools maps tool invocations onto Jira REST calls made with the
// calling session's credentials.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
)

type handler func(ctx context.Context, c *jira.Client, sess session.Session, args json.RawMessage) (json.RawMessage, error)

// Dispatcher validates tool calls and executes them against Jira.
type Dispatcher struct {
	catalog  *registry.Catalog
	hc       *http.Client
	logger   *slog.Logger
	secrets  []string
	handlers map[string]handler

	schemas    argSchemas
	schemasErr error
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSecrets adds process-wide values (such as the token signing secret)
// that must never appear in an error returned to a caller.
func WithSecrets(secrets ...string) Option {
	return func(d *Dispatcher) { d.secrets = append(d.secrets, secrets...) }
}

// NewDispatcher builds a dispatcher over catalog. hc is shared by all sessions.
func NewDispatcher(catalog *registry.Catalog, hc *http.Client, opts ...Option) *Dispatcher {
	if catalog == nil {
		catalog = registry.New()
	}
	if hc == nil {
		hc = jira.NewHTTPClient(jira.DefaultTimeout, 0)
	}
	d := &Dispatcher{
		catalog: catalog,
		hc:      hc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.schemas, d.schemasErr = compileArgSchemas(catalog)
	d.handlers = map[string]handler{
		registry.SearchIssues:        searchIssues,
		registry.GetIssue:            getIssue,
		registry.CreateIssue:         createIssue,
		registry.UpdateIssue:         updateIssue,
		registry.GetIssueTransitions: getIssueTransitions,
		registry.TransitionIssue:     transitionIssue,
		registry.GetProjects:         getProjects,
		registry.GetProject:          getProject,
		registry.GetMyIssues:         getMyIssues,
		registry.GetRecentIssues:     getRecentIssues,
		registry.AddComment:          addComment,
	}
	return d
}

func (d *Dispatcher) Catalog() *registry.Catalog { return d.catalog }

// Dispatch runs tool name for sess. Unknown tools, missing required
// arguments and schema violations are rejected before any outbound call.
// Remote failures come back as a single tool execution error carrying the
// upstream status.
func (d *Dispatcher) Dispatch(ctx context.Context, sess session.Session, name string, args json.RawMessage) (json.RawMessage, error) {
	tool, ok := d.catalog.Lookup(name)
	h, hok := d.handlers[name]
	if !ok || !hok {
		return nil, apierr.UnknownTool(name)
	}

	args, decoded, err := decodeArgs(args)
	if err != nil {
		return nil, withTool(apierr.Validation("arguments", err.Error()), name)
	}
	for _, field := range tool.Required {
		if missing(decoded[field]) {
			return nil, apierr.MissingArgument(name, field)
		}
	}
	if d.schemasErr != nil {
		return nil, apierr.Internal("tool schemas unavailable", d.schemasErr)
	}
	if err := d.schemas.check(name, decoded); err != nil {
		var sv *schemaViolation
		if errors.As(err, &sv) {
			return nil, withTool(apierr.Validation(sv.field, sv.message), name)
		}
		return nil, apierr.Internal("validating arguments", err)
	}

	return d.Call(ctx, sess, name, func(ctx context.Context, c *jira.Client) (json.RawMessage, error) {
		return h(ctx, c, sess, args)
	})
}

// Call runs fn with a Jira client bound to sess. Failures other than
// *apierr.Error become a redacted tool execution error for op.
func (d *Dispatcher) Call(ctx context.Context, sess session.Session, op string, fn func(context.Context, *jira.Client) (json.RawMessage, error)) (json.RawMessage, error) {
	client := jira.New(d.hc, jira.Credentials{
		BaseURL:  sess.JiraBaseURL,
		Email:    sess.Email,
		APIToken: sess.APIToken,
	})

	start := time.Now()
	out, err := fn(ctx, client)
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, withTool(ae, op)
		}
		status := jira.StatusOf(err)
		msg := apierr.Redact(err.Error(), d.secretsFor(sess)...)
		d.logger.Warn("jira call failed",
			"op", op,
			"session", sess,
			"remote_status", status,
			"duration", time.Since(start),
			"error", msg,
		)
		return nil, apierr.ToolExecution(op, msg, status, err)
	}

	d.logger.Debug("jira call completed", "op", op, "session", sess, "duration", time.Since(start))
	return out, nil
}

func (d *Dispatcher) secretsFor(sess session.Session) []string {
	return append([]string{sess.APIToken, apierr.BasicAuthSecret(sess.Email, sess.APIToken)}, d.secrets...)
}

// decodeArgs normalizes absent/null arguments to {} and decodes them for
// validation, keeping numbers as json.Number.
func decodeArgs(raw json.RawMessage) (json.RawMessage, map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, nil, errors.New("arguments must be valid JSON")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil, errors.New("arguments must be a JSON object")
	}
	return json.RawMessage(trimmed), m, nil
}

// missing treats absent, null and blank string values alike.
func missing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func withTool(e *apierr.Error, tool string) *apierr.Error {
	if e.Tool == "" {
		e.Tool = tool
	}
	return e
}
