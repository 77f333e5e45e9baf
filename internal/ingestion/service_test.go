package ingestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBatchStore struct {
	agentID string
	err     error

	calls      int
	gotKeyHash string
	gotEvents  []agents.Event
}

func (s *stubBatchStore) IngestBatch(_ context.Context, apiKeyHash string, events []agents.Event, _ time.Time) (string, error) {
	s.calls++
	s.gotKeyHash = apiKeyHash
	s.gotEvents = events
	if s.err != nil {
		return "", s.err
	}
	return s.agentID, nil
}

func batchOf(n int) []agents.Event {
	events := make([]agents.Event, n)
	for i := range events {
		events[i] = agents.Event{
			Hostname: "web-01",
			Data:     json.RawMessage(`{"message":"hello"}`),
		}
	}
	return events
}

func TestIngestAcceptsValidBatch(t *testing.T) {
	store := &stubBatchStore{agentID: "agent-1"}
	svc := NewService(store, Config{EventsPerSecond: 100, Burst: 100})

	agentID, accepted, err := svc.Ingest(context.Background(), "cat_perm_abc", batchOf(5))
	require.NoError(t, err)

	assert.Equal(t, "agent-1", agentID)
	assert.Equal(t, 5, accepted)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, agents.HashKey("cat_perm_abc"), store.gotKeyHash)
	assert.Len(t, store.gotEvents, 5)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	store := &stubBatchStore{agentID: "agent-1"}
	svc := NewService(store, Config{EventsPerSecond: 100, Burst: 100})

	_, _, err := svc.Ingest(context.Background(), "cat_perm_abc", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, 0, store.calls)
}

func TestIngestRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	store := &stubBatchStore{agentID: "agent-1"}
	svc := NewService(store, Config{EventsPerSecond: 100, Burst: 100})

	events := batchOf(5)
	events[2].Hostname = ""

	_, _, err := svc.Ingest(context.Background(), "cat_perm_abc", events)
	assert.ErrorIs(t, err, ErrInvalidEvent)
	// Nothing reaches the store, so liveness is not refreshed either.
	assert.Equal(t, 0, store.calls)
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	store := &stubBatchStore{agentID: "agent-1"}
	svc := NewService(store, Config{EventsPerSecond: 100, Burst: 100})

	events := batchOf(2)
	events[1].Data = json.RawMessage(`{"unterminated`)

	_, _, err := svc.Ingest(context.Background(), "cat_perm_abc", events)
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Equal(t, 0, store.calls)
}

func TestIngestPropagatesUnauthorized(t *testing.T) {
	store := &stubBatchStore{err: agents.ErrUnauthorized}
	svc := NewService(store, Config{EventsPerSecond: 100, Burst: 100})

	_, _, err := svc.Ingest(context.Background(), "cat_perm_unknown", batchOf(1))
	assert.ErrorIs(t, err, agents.ErrUnauthorized)
}

func TestIngestRateLimitsPerAgent(t *testing.T) {
	store := &stubBatchStore{agentID: "agent-1"}
	// No refill: a bucket of 2 tokens and nothing more.
	svc := NewService(store, Config{EventsPerSecond: 0, Burst: 2})

	_, _, err := svc.Ingest(context.Background(), "cat_perm_abc", batchOf(2))
	require.NoError(t, err)

	_, _, err = svc.Ingest(context.Background(), "cat_perm_abc", batchOf(1))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, store.calls)

	// A different credential has its own bucket.
	_, _, err = svc.Ingest(context.Background(), "cat_perm_other", batchOf(1))
	assert.NoError(t, err)
}
