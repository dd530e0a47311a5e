package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, e *apierr.Error) {
	body := e.ToBody()
	body.Error = apierr.Redact(body.Error, a.secrets...)
	if e.Kind == apierr.KindAuth {
		w.Header().Set("WWW-Authenticate", `Bearer realm="jira-mcp-gateway"`)
	}
	writeJSON(w, e.HTTPStatus(), body)
}

// mapError writes err through the shared taxonomy. Unclassified errors are
// logged and reported as a generic internal error.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	e := apierr.As(err)
	if e.Kind == apierr.KindInternal {
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", apierr.Redact(err.Error(), a.secrets...),
		)
	}
	a.writeError(w, e)
}

func (a *API) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Debug("authentication failed", "path", r.URL.Path, "reason", auth.Reason(err))
	a.writeError(w, apierr.Auth(auth.Reason(err), err))
}
