package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/AlexRider935/catalyst-server/internal/api/http/middleware"
	"github.com/AlexRider935/catalyst-server/internal/ingestion"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngestor struct {
	err error

	gotKey    string
	gotEvents []agents.Event
}

func (s *stubIngestor) Ingest(_ context.Context, apiKey string, events []agents.Event) (string, int, error) {
	s.gotKey = apiKey
	s.gotEvents = events
	if s.err != nil {
		return "", 0, s.err
	}
	return "a-1", len(events), nil
}

func setupIngestionRouter(ingestor LogIngestor) *gin.Engine {
	r := gin.New()
	h := NewIngestionHandler(ingestor)
	r.POST("/ingestion/logs", middleware.BearerCredential(), h.IngestLogs)
	return r
}

func postBatch(r *gin.Engine, body []byte, auth string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/ingestion/logs", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestLogs(t *testing.T) {
	svc := &stubIngestor{}
	r := setupIngestionRouter(svc)

	body, _ := json.Marshal([]dto.LogEvent{
		{Hostname: "web-01", Data: json.RawMessage(`{"message":"started"}`)},
		{Hostname: "web-01", Data: json.RawMessage(`{"message":"stopped"}`)},
	})
	w := postBatch(r, body, "Bearer cat_perm_fixture")

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, "cat_perm_fixture", svc.gotKey)
	assert.Len(t, svc.gotEvents, 2)
}

func TestIngestLogsMissingAuthorization(t *testing.T) {
	r := setupIngestionRouter(&stubIngestor{})

	body, _ := json.Marshal([]dto.LogEvent{{Hostname: "web-01", Data: json.RawMessage(`{}`)}})
	w := postBatch(r, body, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestLogsUnknownCredential(t *testing.T) {
	r := setupIngestionRouter(&stubIngestor{err: agents.ErrUnauthorized})

	body, _ := json.Marshal([]dto.LogEvent{{Hostname: "web-01", Data: json.RawMessage(`{}`)}})
	w := postBatch(r, body, "Bearer cat_perm_bogus")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIngestLogsEmptyBatch(t *testing.T) {
	r := setupIngestionRouter(&stubIngestor{err: ingestion.ErrEmptyBatch})

	w := postBatch(r, []byte(`[]`), "Bearer cat_perm_fixture")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestLogsMalformedBody(t *testing.T) {
	r := setupIngestionRouter(&stubIngestor{})

	w := postBatch(r, []byte(`{"not":"an array"}`), "Bearer cat_perm_fixture")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestLogsRateLimited(t *testing.T) {
	r := setupIngestionRouter(&stubIngestor{err: ingestion.ErrRateLimited})

	body, _ := json.Marshal([]dto.LogEvent{{Hostname: "web-01", Data: json.RawMessage(`{}`)}})
	w := postBatch(r, body, "Bearer cat_perm_fixture")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
