package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
)

// The /api/jira forwarders reuse the tool argument shapes. Each one routes
// through the dispatcher, so validation and error mapping match tools/call.

func (a *API) Myself(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	out, err := a.dispatcher.Call(r.Context(), p.Session, "myself", func(ctx context.Context, c *jira.Client) (json.RawMessage, error) {
		return c.Myself(ctx)
	})
	a.writeResult(w, r, http.StatusOK, out, err)
}

func (a *API) Projects(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.StatusOK, registry.GetProjects, nil)
}

func (a *API) Project(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.StatusOK, registry.GetProject, map[string]any{"projectKey": chi.URLParam(r, "key")})
}

func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := map[string]any{"jql": q.Get("jql")}
	if v := q.Get("maxResults"); v != "" {
		args["maxResults"] = v
	}
	a.forward(w, r, http.StatusOK, registry.SearchIssues, args)
}

func (a *API) Issue(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.StatusOK, registry.GetIssue, map[string]any{"issueKey": chi.URLParam(r, "key")})
}

func (a *API) CreateIssue(w http.ResponseWriter, r *http.Request) {
	a.forwardBody(w, r, http.StatusCreated, registry.CreateIssue, nil)
}

func (a *API) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	a.forwardBody(w, r, http.StatusOK, registry.UpdateIssue, map[string]any{"issueKey": chi.URLParam(r, "key")})
}

func (a *API) Transitions(w http.ResponseWriter, r *http.Request) {
	a.forward(w, r, http.StatusOK, registry.GetIssueTransitions, map[string]any{"issueKey": chi.URLParam(r, "key")})
}

func (a *API) Transition(w http.ResponseWriter, r *http.Request) {
	a.forwardBody(w, r, http.StatusOK, registry.TransitionIssue, map[string]any{"issueKey": chi.URLParam(r, "key")})
}

// Comments has no tool counterpart; it is a direct call through the
// dispatcher's client funnel.
func (a *API) Comments(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	key := chi.URLParam(r, "key")
	out, err := a.dispatcher.Call(r.Context(), p.Session, "get_comments", func(ctx context.Context, c *jira.Client) (json.RawMessage, error) {
		return c.GetComments(ctx, key)
	})
	a.writeResult(w, r, http.StatusOK, out, err)
}

func (a *API) AddComment(w http.ResponseWriter, r *http.Request) {
	a.forwardBody(w, r, http.StatusCreated, registry.AddComment, map[string]any{"issueKey": chi.URLParam(r, "key")})
}

func (a *API) forward(w http.ResponseWriter, r *http.Request, status int, tool string, args map[string]any) {
	raw, err := json.Marshal(args)
	if err != nil {
		a.mapError(w, r, apierr.Internal("encoding arguments", err))
		return
	}
	if args == nil {
		raw = nil
	}
	p := auth.FromContext(r.Context())
	out, err := a.dispatcher.Dispatch(r.Context(), p.Session, tool, raw)
	a.writeResult(w, r, status, out, err)
}

// forwardBody merges path parameters over the JSON object in the request
// body and dispatches the result.
func (a *API) forwardBody(w http.ResponseWriter, r *http.Request, status int, tool string, path map[string]any) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.writeError(w, apierr.Validation("body", "request body too large"))
		return
	}
	args := map[string]any{}
	if len(bytes.TrimSpace(b)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil || args == nil {
			a.writeError(w, apierr.Validation("body", "request body must be a JSON object"))
			return
		}
	}
	for k, v := range path {
		args[k] = v
	}
	a.forward(w, r, status, tool, args)
}

func (a *API) writeResult(w http.ResponseWriter, r *http.Request, status int, out json.RawMessage, err error) {
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(out)
}
