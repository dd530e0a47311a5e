package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
)

// ListSessions returns credential-free views of live sessions, optionally
// filtered by ?userId=.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	all, err := a.store.List(r.Context())
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	userID := r.URL.Query().Get("userId")
	out := make([]session.Info, 0, len(all))
	for _, s := range all {
		if userID == "" || s.UserID == userID {
			out = append(out, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"count":    len(out),
	})
}

func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.store.Delete(r.Context(), id)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if !removed {
		a.writeError(w, apierr.NotFound("session not found"))
		return
	}
	a.logger.Info("session deleted", "session_id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Session deleted",
		"sessionId": id,
	})
}

// Health reports liveness and the number of live sessions.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      a.now().UTC().Format(time.RFC3339),
		"activeSessions": a.store.Len(),
		"activeStreams":  a.streams.Load(),
		"mode":           "multitenant",
	})
}
