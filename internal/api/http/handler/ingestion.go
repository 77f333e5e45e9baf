package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/AlexRider935/catalyst-server/internal/api/http/middleware"
	"github.com/AlexRider935/catalyst-server/internal/ingestion"
	"github.com/gin-gonic/gin"
)

// LogIngestor accepts a validated event batch for the agent owning apiKey.
type LogIngestor interface {
	Ingest(ctx context.Context, apiKey string, events []agents.Event) (string, int, error)
}

type IngestionHandler struct {
	ingestor LogIngestor
}

func NewIngestionHandler(ingestor LogIngestor) *IngestionHandler {
	return &IngestionHandler{ingestor: ingestor}
}

// IngestLogs accepts a batch of log events from an agent. The batch commits
// atomically together with the agent's liveness refresh; 202 means accepted
// for processing, not yet visible to downstream consumers.
// POST /ingestion/logs
func (h *IngestionHandler) IngestLogs(c *gin.Context) {
	credential := c.GetString(middleware.CredentialKey)

	var batch []dto.LogEvent
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log batch format"})
		return
	}

	events := make([]agents.Event, len(batch))
	for i, e := range batch {
		events[i] = agents.Event{Hostname: e.Hostname, Data: e.Data}
	}

	_, accepted, err := h.ingestor.Ingest(c.Request.Context(), credential, events)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrEmptyBatch), errors.Is(err, ingestion.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ingestion.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "ingestion rate limit exceeded"})
		case errors.Is(err, agents.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or unrecognized agent credential"})
		default:
			slog.Error("Failed to ingest log batch", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest logs"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{Status: "accepted", Accepted: accepted})
}
