package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu        sync.Mutex
	demoted   int64
	err       error
	calls     int
	lastThres time.Duration
}

func (s *stubStore) DemoteStale(_ context.Context, threshold time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastThres = threshold
	if s.err != nil {
		return 0, s.err
	}
	return s.demoted, nil
}

func (s *stubStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSweepReturnsDemotedCount(t *testing.T) {
	store := &stubStore{demoted: 3}
	m := New(store, DefaultConfig(), slog.Default())

	demoted, err := m.Sweep(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, int64(3), demoted)
	assert.Equal(t, 5*time.Second, store.lastThres)
}

func TestSweepPropagatesStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	m := New(store, DefaultConfig(), slog.Default())

	_, err := m.Sweep(context.Background(), time.Minute)
	assert.Error(t, err)
}

func TestBackgroundLoopSweepsOnInterval(t *testing.T) {
	store := &stubStore{}
	cfg := Config{
		Interval:         10 * time.Millisecond,
		StaleThreshold:   time.Minute,
		InstantThreshold: 5 * time.Second,
	}
	m := New(store, cfg, slog.Default())

	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return store.callCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStopHaltsBackgroundLoop(t *testing.T) {
	store := &stubStore{}
	cfg := Config{
		Interval:         5 * time.Millisecond,
		StaleThreshold:   time.Minute,
		InstantThreshold: 5 * time.Second,
	}
	m := New(store, cfg, slog.Default())

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return store.callCount() >= 1
	}, time.Second, time.Millisecond)

	m.Stop()
	time.Sleep(20 * time.Millisecond)
	settled := store.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, store.callCount())
}

func TestInstantThresholdComesFromConfig(t *testing.T) {
	m := New(&stubStore{}, DefaultConfig(), slog.Default())
	assert.Equal(t, 5*time.Second, m.InstantThreshold())
}
