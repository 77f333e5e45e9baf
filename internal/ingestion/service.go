package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	"golang.org/x/time/rate"
)

var (
	ErrEmptyBatch   = errors.New("event batch is empty")
	ErrInvalidEvent = errors.New("event batch contains an invalid record")
	ErrRateLimited  = errors.New("ingestion rate limit exceeded")
)

// BatchStore persists a validated batch atomically together with the
// piggy-backed liveness refresh.
type BatchStore interface {
	IngestBatch(ctx context.Context, apiKeyHash string, events []agents.Event, receivedAt time.Time) (string, error)
}

type Config struct {
	// EventsPerSecond is the sustained per-agent ingestion rate.
	EventsPerSecond float64
	// Burst is the per-agent token bucket size.
	Burst int
}

// Service is the log ingestion pipeline: validate the batch, rate-check the
// credential, then authenticate, refresh liveness, and persist in a single
// transaction.
type Service struct {
	store    BatchStore
	limiters *limiterRegistry
}

func NewService(store BatchStore, config Config) *Service {
	return &Service{
		store:    store,
		limiters: newLimiterRegistry(rate.Limit(config.EventsPerSecond), config.Burst),
	}
}

// Ingest accepts an ordered batch of events for the agent owning apiKey.
// A structurally invalid batch is rejected before any write, so a bad batch
// never refreshes liveness. Returns the resolved agent ID and the number of
// accepted events.
func (s *Service) Ingest(ctx context.Context, apiKey string, events []agents.Event) (string, int, error) {
	if len(events) == 0 {
		return "", 0, ErrEmptyBatch
	}
	for i, e := range events {
		if e.Hostname == "" {
			return "", 0, fmt.Errorf("%w: record %d has no hostname", ErrInvalidEvent, i)
		}
		if len(e.Data) == 0 || !json.Valid(e.Data) {
			return "", 0, fmt.Errorf("%w: record %d has no valid payload", ErrInvalidEvent, i)
		}
	}

	keyHash := agents.HashKey(apiKey)

	if !s.limiters.get(keyHash).AllowN(time.Now(), len(events)) {
		return "", 0, ErrRateLimited
	}

	agentID, err := s.store.IngestBatch(ctx, keyHash, events, time.Now().UTC())
	if err != nil {
		return "", 0, err
	}

	slog.Debug("Event batch accepted", "agent_id", agentID, "events", len(events))
	return agentID, len(events), nil
}
