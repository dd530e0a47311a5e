package session

import (
	"context"
	"log/slog"
	"time"
)

// Defaults for the idle sweep.
const (
	DefaultTimeout       = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper returns a sweeper; non-positive durations fall back to the defaults.
func NewSweeper(store Store, interval, timeout time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, timeout: timeout, logger: logger, now: time.Now}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil so
// it can sit in an errgroup next to the HTTP server.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single eviction pass and returns how many sessions were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx, s.now(), s.timeout)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return 0
	}
	if len(removed) > 0 {
		s.logger.Info("evicted idle sessions", "count", len(removed), "remaining", s.store.Len())
		for _, id := range removed {
			s.logger.Debug("session expired", "session_id", id)
		}
	}
	return len(removed)
}
