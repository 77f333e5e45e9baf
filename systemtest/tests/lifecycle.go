package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agentStatus(t *testing.T, pool *pgxpool.Pool, agentID string) string {
	t.Helper()
	var status string
	err := pool.QueryRow(context.Background(),
		"SELECT status FROM agents WHERE id = $1::uuid", agentID).Scan(&status)
	require.NoError(t, err)
	return status
}

func markStale(t *testing.T, pool *pgxpool.Pool, agentID string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		"UPDATE agents SET last_seen_at = now() - interval '1 hour' WHERE id = $1::uuid", agentID)
	require.NoError(t, err)
}

func TestAgentLifecycle(t *testing.T, router *gin.Engine, pool *pgxpool.Pool) {
	rr := doJSON(router, "POST", "/agents/token", dto.GenerateTokenRequest{Name: "lifecycle-agent"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var tokenResp dto.GenerateTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokenResp))

	t.Run("pending agent is never connected", func(t *testing.T) {
		rr := doJSON(router, "GET", "/agents/"+tokenResp.AgentID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.AgentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Never Connected", resp.Status)
		assert.Nil(t, resp.LastSeenAt)
	})

	regBody := dto.RegisterAgentRequest{
		RegistrationToken: tokenResp.RegistrationToken,
		DeviceIdentifier:  "lifecycle-device",
	}
	rr = doJSON(router, "POST", "/agents/register", regBody)
	require.Equal(t, http.StatusOK, rr.Code)

	var regResp dto.RegisterAgentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &regResp))
	require.Equal(t, tokenResp.AgentID, regResp.AgentID)
	apiKey := regResp.APIKey

	t.Run("registration consumes the token", func(t *testing.T) {
		rr := doJSON(router, "POST", "/agents/register", dto.RegisterAgentRequest{
			RegistrationToken: tokenResp.RegistrationToken,
			DeviceIdentifier:  "another-device",
		})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("registered agent is online", func(t *testing.T) {
		rr := doJSON(router, "GET", "/agents/"+tokenResp.AgentID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.AgentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Online", resp.Status)
		assert.Equal(t, "lifecycle-device", resp.DeviceIdentifier)
		assert.NotNil(t, resp.LastSeenAt)
	})

	t.Run("sweep demotes stale agent", func(t *testing.T) {
		markStale(t, pool, tokenResp.AgentID)

		rr := doJSON(router, "POST", "/agents/check-status", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.CheckStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		assert.Equal(t, "Offline", agentStatus(t, pool, tokenResp.AgentID))
	})

	t.Run("heartbeat brings agent back online", func(t *testing.T) {
		rr := doJSONWithKey(router, "POST", "/agents/heartbeat", dto.HeartbeatRequest{
			IPAddress: "10.0.0.7",
			OSName:    "Ubuntu 24.04",
			Version:   "1.4.2",
		}, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, "GET", "/agents/"+tokenResp.AgentID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.AgentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Online", resp.Status)
		assert.Equal(t, "10.0.0.7", resp.IPAddress)
		assert.Equal(t, "Ubuntu 24.04", resp.OSName)
		assert.Equal(t, "1.4.2", resp.Version)

		// A sweep right after the heartbeat must not demote the fresh agent.
		rr = doJSON(router, "POST", "/agents/check-status", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Online", agentStatus(t, pool, tokenResp.AgentID))
	})

	t.Run("heartbeat with unknown key is rejected", func(t *testing.T) {
		rr := doJSONWithKey(router, "POST", "/agents/heartbeat", dto.HeartbeatRequest{}, "cat_perm_bogus")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("config fetch with agent key", func(t *testing.T) {
		rr := doJSONWithKey(router, "GET", "/agents/config", nil, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{}`, rr.Body.String())
	})

	t.Run("config update is visible to the agent", func(t *testing.T) {
		rr := doJSON(router, "PUT", "/agents/"+tokenResp.AgentID+"/config",
			json.RawMessage(`{"scan_interval": 30}`))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSONWithKey(router, "GET", "/agents/config", nil, apiKey)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"scan_interval": 30}`, rr.Body.String())
	})

	t.Run("delete agent", func(t *testing.T) {
		rr := doJSON(router, "DELETE", "/agents/"+tokenResp.AgentID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, "GET", "/agents/"+tokenResp.AgentID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		// Credential dies with the row.
		rr = doJSONWithKey(router, "POST", "/agents/heartbeat", dto.HeartbeatRequest{}, apiKey)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestConcurrentRegistration(t *testing.T, router *gin.Engine) {
	rr := doJSON(router, "POST", "/agents/token", dto.GenerateTokenRequest{Name: "contended-agent"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var tokenResp dto.GenerateTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokenResp))

	const attempts = 8
	codes := make([]int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := doJSON(router, "POST", "/agents/register", dto.RegisterAgentRequest{
				RegistrationToken: tokenResp.RegistrationToken,
				DeviceIdentifier:  "contended-device-" + string(rune('a'+i)),
			})
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			succeeded++
		case http.StatusForbidden:
			rejected++
		default:
			t.Fatalf("unexpected status code %d", code)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one registration must win")
	assert.Equal(t, attempts-1, rejected)
}

func TestDeviceConflict(t *testing.T, router *gin.Engine) {
	provisionAgent(t, router, "first-owner", "shared-device")

	rr := doJSON(router, "POST", "/agents/token", dto.GenerateTokenRequest{Name: "second-owner"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var tokenResp dto.GenerateTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokenResp))

	rr = doJSON(router, "POST", "/agents/register", dto.RegisterAgentRequest{
		RegistrationToken: tokenResp.RegistrationToken,
		DeviceIdentifier:  "shared-device",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// The conflicting attempt rolled back, so the token is still claimable.
	rr = doJSON(router, "POST", "/agents/register", dto.RegisterAgentRequest{
		RegistrationToken: tokenResp.RegistrationToken,
		DeviceIdentifier:  "fresh-device",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSweepIdempotence(t *testing.T, router *gin.Engine, pool *pgxpool.Pool) {
	agentID, _ := provisionAgent(t, router, "sweep-agent", "sweep-device")
	markStale(t, pool, agentID)

	rr := doJSON(router, "POST", "/agents/check-status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Offline", agentStatus(t, pool, agentID))

	var before time.Time
	require.NoError(t, pool.QueryRow(context.Background(),
		"SELECT updated_at FROM agents WHERE id = $1::uuid", agentID).Scan(&before))

	// A second sweep must not touch the already demoted row.
	rr = doJSON(router, "POST", "/agents/check-status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Offline", agentStatus(t, pool, agentID))

	var after time.Time
	require.NoError(t, pool.QueryRow(context.Background(),
		"SELECT updated_at FROM agents WHERE id = $1::uuid", agentID).Scan(&after))
	assert.True(t, after.Equal(before))
}
