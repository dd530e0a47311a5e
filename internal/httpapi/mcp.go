package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/pkg/mcp"
)

// MessageRequest is the body of POST /mcp/message.
type MessageRequest struct {
	Method string         `json:"method"`
	Params *MessageParams `json:"params,omitempty"`
}

type MessageParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MessageResponse wraps a successful result.
type MessageResponse struct {
	Result any `json:"result"`
}

// Message serves tools/list and tools/call for the session bound to the
// bearer token. Identity headers, when present, must agree with it.
func (a *API) Message(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if e := a.checkIdentityHeaders(r, p.Session); e != nil {
		a.writeError(w, e)
		return
	}

	var req MessageRequest
	if e := decodeBody(w, r, &req); e != nil {
		a.writeError(w, e)
		return
	}

	switch req.Method {
	case mcp.MethodToolsList:
		writeJSON(w, http.StatusOK, MessageResponse{
			Result: mcp.ListToolsResult{Tools: a.dispatcher.Catalog().MCPTools()},
		})
	case mcp.MethodToolsCall:
		if req.Params == nil || strings.TrimSpace(req.Params.Name) == "" {
			a.writeError(w, apierr.Validation("params.name", "tool name is required"))
			return
		}
		out, err := a.dispatcher.Dispatch(r.Context(), p.Session, req.Params.Name, req.Params.Arguments)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Result: out})
	case "":
		a.writeError(w, apierr.Validation("method", "method is required"))
	default:
		a.writeError(w, apierr.Validation("method", "unsupported method: "+req.Method))
	}
}

// checkIdentityHeaders rejects a request whose identity headers name a
// different tenant than the token's session.
func (a *API) checkIdentityHeaders(r *http.Request, sess session.Session) *apierr.Error {
	if v := strings.TrimSpace(r.Header.Get(a.headers.UserID)); v != "" && v != sess.UserID {
		return apierr.Auth("identity headers do not match token", nil)
	}
	if v := strings.TrimRight(strings.TrimSpace(r.Header.Get(a.headers.JiraURL)), "/"); v != "" && v != sess.JiraBaseURL {
		return apierr.Auth("identity headers do not match token", nil)
	}
	if v := strings.TrimSpace(r.Header.Get(a.headers.APIToken)); v != "" && v != sess.APIToken {
		return apierr.Auth("identity headers do not match token", nil)
	}
	return nil
}
