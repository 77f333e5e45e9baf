package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventCount(t *testing.T, pool *pgxpool.Pool, agentID string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		"SELECT count(*) FROM raw_events WHERE agent_id = $1::uuid", agentID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestIngestion(t *testing.T, router *gin.Engine, pool *pgxpool.Pool) {
	agentID, apiKey := provisionAgent(t, router, "ingest-agent", "ingest-device")

	t.Run("rejected batch writes nothing and keeps liveness stale", func(t *testing.T) {
		markStale(t, pool, agentID)

		batch := []dto.LogEvent{
			{Hostname: "host-a", Data: json.RawMessage(`{"event":"login"}`)},
			{Data: json.RawMessage(`{"event":"orphan"}`)},
		}
		rr := doJSONWithKey(router, "POST", "/ingestion/logs", batch, apiKey)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		assert.Equal(t, 0, eventCount(t, pool, agentID))

		var lastSeenAge float64
		require.NoError(t, pool.QueryRow(context.Background(),
			"SELECT extract(epoch from now() - last_seen_at) FROM agents WHERE id = $1::uuid",
			agentID).Scan(&lastSeenAge))
		assert.Greater(t, lastSeenAge, float64(3000), "a rejected batch must not refresh liveness")
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		rr := doJSONWithKey(router, "POST", "/ingestion/logs", []dto.LogEvent{}, apiKey)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown credential is rejected", func(t *testing.T) {
		batch := []dto.LogEvent{{Hostname: "host-a", Data: json.RawMessage(`{}`)}}
		rr := doJSONWithKey(router, "POST", "/ingestion/logs", batch, "cat_perm_bogus")
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, 0, eventCount(t, pool, agentID))
	})

	t.Run("valid batch persists and refreshes liveness", func(t *testing.T) {
		batch := []dto.LogEvent{
			{Hostname: "host-a", Data: json.RawMessage(`{"event":"login","user":"alice"}`)},
			{Hostname: "host-a", Data: json.RawMessage(`{"event":"proc_start","pid":4711}`)},
			{Hostname: "host-b", Data: json.RawMessage(`{"event":"logout","user":"bob"}`)},
		}
		rr := doJSONWithKey(router, "POST", "/ingestion/logs", batch, apiKey)
		require.Equal(t, http.StatusAccepted, rr.Code)

		var resp dto.IngestResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "accepted", resp.Status)
		assert.Equal(t, 3, resp.Accepted)

		assert.Equal(t, 3, eventCount(t, pool, agentID))
		assert.Equal(t, "Online", agentStatus(t, pool, agentID))
	})

	t.Run("recent events are served newest first", func(t *testing.T) {
		rr := doJSON(router, "GET", "/agents/"+agentID+"/events", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var events []dto.AgentEventResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
		require.Len(t, events, 3)

		// Same received_at inside a batch, so insertion order breaks the tie.
		assert.GreaterOrEqual(t, events[0].ID, events[1].ID)
		assert.GreaterOrEqual(t, events[1].ID, events[2].ID)
	})
}
