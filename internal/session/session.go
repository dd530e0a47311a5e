// Package session holds per-caller Jira credentials in process memory.
//
// A Session binds an opaque identifier to the caller's user id, Jira base
// URL, email and API token. Sessions are created after a successful
// credential probe, touched on every authenticated use and evicted either
// explicitly or by the Sweeper once they have been idle longer than the
// configured timeout. Nothing here is ever written to durable storage.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrNotFound is returned when no live session has the given id.
	ErrNotFound = errors.New("session not found")
	// ErrIDExhausted means a unique id could not be generated.
	ErrIDExhausted = errors.New("session id generation exhausted")
)

// Session is a point-in-time snapshot of a live session, including its
// credentials. Callers must not retain it beyond one request.
type Session struct {
	ID          string
	UserID      string
	JiraBaseURL string
	Email       string
	APIToken    string
	CreatedAt   time.Time
	LastAccess  time.Time
}

// LogValue keeps credentials out of structured logs.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", s.ID),
		slog.String("user_id", s.UserID),
		slog.String("jira_url", s.JiraBaseURL),
	)
}

// Info is the credential-free view used for enumeration.
type Info struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	JiraBaseURL string    `json:"jiraUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	LastAccess  time.Time `json:"lastAccess"`
}

// Store is the session registry capability. The in-process MemoryStore is
// one implementation; a shared backing store can satisfy the same contract.
type Store interface {
	// Create inserts a new session with LastAccess set to now and returns its id.
	Create(ctx context.Context, userID, jiraBaseURL, email, apiToken string) (string, error)
	// Get returns a snapshot without touching it.
	Get(ctx context.Context, id string) (Session, error)
	// Touch sets LastAccess to now.
	Touch(ctx context.Context, id string) error
	// TouchAndGet atomically sets LastAccess to now and returns a snapshot.
	TouchAndGet(ctx context.Context, id string) (Session, error)
	// Delete removes the session; it reports whether one was present.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns credential-free views of every live session.
	List(ctx context.Context) ([]Info, error)
	// Sweep removes sessions idle for longer than timeout at now and returns their ids.
	Sweep(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error)
	// Len reports the number of live sessions.
	Len() int
}
