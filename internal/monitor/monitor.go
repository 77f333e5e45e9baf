// Package monitor demotes agents whose heartbeats have gone stale.
package monitor

import (
	"context"
	"log/slog"
	"time"
)

// AgentStore is the storage surface the monitor needs: one conditional bulk
// update that moves stale Online agents to Offline.
type AgentStore interface {
	DemoteStale(ctx context.Context, threshold time.Duration) (int64, error)
}

type Config struct {
	// Interval between background sweeps.
	Interval time.Duration

	// StaleThreshold is how long an Online agent may go without a heartbeat
	// before the background sweep demotes it.
	StaleThreshold time.Duration

	// InstantThreshold is the short threshold used by the on-demand
	// check-status trigger.
	InstantThreshold time.Duration
}

// DefaultConfig matches the heartbeat cadence: agents report every minute,
// the sweep runs every three.
func DefaultConfig() Config {
	return Config{
		Interval:         3 * time.Minute,
		StaleThreshold:   3 * time.Minute,
		InstantThreshold: 5 * time.Second,
	}
}

// Monitor owns the background sweep. It is started once at boot and stopped
// at shutdown; on-demand sweeps may run concurrently with the timer since
// the demotion is a single idempotent statement.
type Monitor struct {
	store  AgentStore
	config Config
	logger *slog.Logger
	stopCh chan struct{}
}

func New(store AgentStore, config Config, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:  store,
		config: config,
		logger: logger.With("component", "liveness_monitor"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the background sweep loop in a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop signals the background loop to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

// InstantThreshold returns the threshold for on-demand checks.
func (m *Monitor) InstantThreshold() time.Duration {
	return m.config.InstantThreshold
}

func (m *Monitor) run(ctx context.Context) {
	m.logger.Info("liveness monitor started",
		"interval", m.config.Interval,
		"stale_threshold", m.config.StaleThreshold,
	)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("liveness monitor stopping (context cancelled)")
			return
		case <-m.stopCh:
			m.logger.Info("liveness monitor stopping (stop signal)")
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx, m.config.StaleThreshold); err != nil {
				m.logger.Error("background sweep failed", "error", err)
			}
		}
	}
}

// Sweep demotes every Online agent whose last heartbeat is older than
// threshold and returns the number of agents demoted. Idempotent: a second
// sweep with no intervening heartbeats demotes zero.
func (m *Monitor) Sweep(ctx context.Context, threshold time.Duration) (int64, error) {
	demoted, err := m.store.DemoteStale(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if demoted > 0 {
		m.logger.Info("stale agents demoted", "count", demoted, "threshold", threshold)
	}
	return demoted, nil
}
