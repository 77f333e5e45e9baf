package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

// Sweeper demotes stale Online agents and reports how many were changed.
type Sweeper interface {
	Sweep(ctx context.Context, threshold time.Duration) (int64, error)
}

type MonitorHandler struct {
	sweeper          Sweeper
	instantThreshold time.Duration
}

func NewMonitorHandler(sweeper Sweeper, instantThreshold time.Duration) *MonitorHandler {
	return &MonitorHandler{
		sweeper:          sweeper,
		instantThreshold: instantThreshold,
	}
}

// CheckStatus runs an on-demand sweep with the short instant threshold.
// Safe to call while the background sweep is running; the demotion is a
// single idempotent statement.
// POST /agents/check-status
func (h *MonitorHandler) CheckStatus(c *gin.Context) {
	demoted, err := h.sweeper.Sweep(c.Request.Context(), h.instantThreshold)
	if err != nil {
		slog.Error("On-demand status check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status check failed"})
		return
	}

	c.JSON(http.StatusOK, dto.CheckStatusResponse{
		Success: true,
		Message: fmt.Sprintf("Status check complete. %d agent(s) were updated to Offline.", demoted),
	})
}
