package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

const maxIDAttempts = 8

type entry struct {
	userID      string
	jiraBaseURL string
	email       string
	// token is sealed in a memguard enclave so the API token is not kept
	// as plaintext on the Go heap between requests.
	token      *memguard.Enclave
	createdAt  time.Time
	lastAccess time.Time
}

// MemoryStore is a thread-safe in-process Store. Sessions are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry

	now   func() time.Time
	newID func(time.Time) (string, error)
}

var _ Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDFunc overrides session id generation.
func WithIDFunc(fn func(time.Time) (string, error)) Option {
	return func(s *MemoryStore) { s.newID = fn }
}

// NewMemoryStore creates an empty in-memory session registry.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data:  make(map[string]*entry),
		now:   time.Now,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID builds "sess_<unix millis>_<random hex>".
func NewID(now time.Time) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	suffix := strings.ReplaceAll(u.String(), "-", "")[:16]
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), suffix), nil
}

func (s *MemoryStore) Create(_ context.Context, userID, jiraBaseURL, email, apiToken string) (string, error) {
	now := s.now()
	e := &entry{
		userID:      userID,
		jiraBaseURL: strings.TrimRight(jiraBaseURL, "/"),
		email:       email,
		createdAt:   now,
		lastAccess:  now,
	}
	if apiToken != "" {
		e.token = memguard.NewEnclave([]byte(apiToken))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID(now)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrIDExhausted, err)
		}
		if _, taken := s.data[id]; taken {
			continue
		}
		s.data[id] = e
		return id, nil
	}
	return "", ErrIDExhausted
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	e, ok := s.data[id]
	var snap entry
	if ok {
		snap = *e
	}
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return snapshot(id, &snap)
}

func (s *MemoryStore) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok {
		return ErrNotFound
	}
	e.lastAccess = s.now()
	return nil
}

func (s *MemoryStore) TouchAndGet(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	e, ok := s.data[id]
	var snap entry
	if ok {
		e.lastAccess = s.now()
		snap = *e
	}
	s.mu.Unlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return snapshot(id, &snap)
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return false, nil
	}
	delete(s.data, id)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	out := make([]Info, 0, len(s.data))
	for id, e := range s.data {
		out = append(out, Info{
			SessionID:   id,
			UserID:      e.userID,
			JiraBaseURL: e.jiraBaseURL,
			CreatedAt:   e.createdAt,
			LastAccess:  e.lastAccess,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, e := range s.data {
		if now.Sub(e.lastAccess) > timeout {
			delete(s.data, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func snapshot(id string, e *entry) (Session, error) {
	sess := Session{
		ID:          id,
		UserID:      e.userID,
		JiraBaseURL: e.jiraBaseURL,
		Email:       e.email,
		CreatedAt:   e.createdAt,
		LastAccess:  e.lastAccess,
	}
	if e.token != nil {
		buf, err := e.token.Open()
		if err != nil {
			return Session{}, fmt.Errorf("opening session credentials: %w", err)
		}
		sess.APIToken = string(buf.Bytes())
		buf.Destroy()
	}
	return sess, nil
}
