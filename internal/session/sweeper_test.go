package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/logging"
)

func TestSweepOnceEvictsIdle(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore(WithClock(clock.Now))

	idle, err := store.Create(ctx, "u1", "https://a.atlassian.net", "a@a.io", "t")
	require.NoError(t, err)
	clock.Advance(50 * time.Minute)
	active, err := store.Create(ctx, "u2", "https://a.atlassian.net", "b@a.io", "t")
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)

	sw := NewSweeper(store, time.Minute, time.Hour, logging.Discard())
	sw.now = clock.Now

	assert.Equal(t, 1, sw.SweepOnce(ctx))
	_, err = store.Get(ctx, idle)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, active)
	assert.NoError(t, err)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	sw := NewSweeper(store, 5*time.Millisecond, time.Nanosecond, logging.Discard())

	_, err := store.Create(context.Background(), "u1", "https://a.atlassian.net", "a@a.io", "t")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewSweeperDefaults(t *testing.T) {
	sw := NewSweeper(NewMemoryStore(), 0, -1, nil)
	assert.Equal(t, DefaultSweepInterval, sw.interval)
	assert.Equal(t, DefaultTimeout, sw.timeout)
	assert.NotNil(t, sw.logger)
}
