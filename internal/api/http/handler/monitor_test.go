package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	demoted int64
	err     error

	gotThreshold time.Duration
}

func (s *stubSweeper) Sweep(_ context.Context, threshold time.Duration) (int64, error) {
	s.gotThreshold = threshold
	return s.demoted, s.err
}

func setupMonitorRouter(sweeper Sweeper) *gin.Engine {
	r := gin.New()
	h := NewMonitorHandler(sweeper, 5*time.Second)
	r.POST("/agents/check-status", h.CheckStatus)
	return r
}

func TestCheckStatus(t *testing.T) {
	sweeper := &stubSweeper{demoted: 2}
	r := setupMonitorRouter(sweeper)

	req, _ := http.NewRequest("POST", "/agents/check-status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5*time.Second, sweeper.gotThreshold)

	var resp dto.CheckStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "2 agent(s)")
}

func TestCheckStatusSweepFailure(t *testing.T) {
	r := setupMonitorRouter(&stubSweeper{err: errors.New("connection refused")})

	req, _ := http.NewRequest("POST", "/agents/check-status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
