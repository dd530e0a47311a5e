package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
)

// Stream opens a server-sent event stream for a caller identified by the
// identity headers. It emits "connected" at once and "heartbeat" on every
// tick until the client goes away. No Jira call is made here.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(a.headers.UserID))
	jiraURL := strings.TrimRight(strings.TrimSpace(r.Header.Get(a.headers.JiraURL)), "/")
	for _, h := range []struct{ name, value string }{
		{a.headers.UserID, userID},
		{a.headers.JiraURL, jiraURL},
		{a.headers.APIToken, strings.TrimSpace(r.Header.Get(a.headers.APIToken))},
	} {
		if h.value == "" {
			a.writeError(w, apierr.Validation(h.name, "missing required header: "+h.name))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, apierr.Internal("streaming not supported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	n := a.streams.Add(1)
	defer a.streams.Add(-1)
	a.logger.Info("sse stream opened", "user_id", userID, "jira_url", jiraURL, "active_streams", n)

	a.writeSSEEvent(w, "connected", map[string]any{
		"userId":            userID,
		"jiraUrl":           jiraURL,
		"timestamp":         a.now().UTC().Format(time.RFC3339),
		"heartbeatInterval": int64(a.heartbeat / time.Millisecond),
	})
	flusher.Flush()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sse stream closed", "user_id", userID)
			return
		case <-ticker.C:
			if err := a.writeSSEEvent(w, "heartbeat", map[string]string{
				"timestamp": a.now().UTC().Format(time.RFC3339),
			}); err != nil {
				a.logger.Debug("sse write failed", "user_id", userID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (a *API) writeSSEEvent(w http.ResponseWriter, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}
