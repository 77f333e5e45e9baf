package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	"github.com/AlexRider935/catalyst-server/internal/api/http/dto"
	"github.com/AlexRider935/catalyst-server/internal/api/http/middleware"
	"github.com/gin-gonic/gin"
)

const recentEventsLimit = 20

// AgentService is the slice of the agent lifecycle the HTTP layer needs.
type AgentService interface {
	IssueToken(ctx context.Context, name string) (*agents.Agent, error)
	Register(ctx context.Context, token, deviceID string) (agentID, apiKey string, err error)
	Heartbeat(ctx context.Context, apiKey string, vitals agents.Vitals) error
	GetAgent(ctx context.Context, agentID string) (*agents.Agent, error)
	ListAgents(ctx context.Context) ([]agents.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	GetConfig(ctx context.Context, apiKey string) (json.RawMessage, error)
	UpdateConfig(ctx context.Context, agentID string, config json.RawMessage) error
	RecentEvents(ctx context.Context, agentID string, limit int) ([]agents.StoredEvent, error)
}

type AgentsHandler struct {
	agentService AgentService
}

func NewAgentsHandler(agentService AgentService) *AgentsHandler {
	return &AgentsHandler{agentService: agentService}
}

// GenerateToken pre-registers an agent and returns its one-time token
// POST /agents/token
func (h *AgentsHandler) GenerateToken(c *gin.Context) {
	var req dto.GenerateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent name is required"})
		return
	}

	agent, err := h.agentService.IssueToken(c.Request.Context(), req.Name)
	if err != nil {
		slog.Error("Failed to issue registration token", "error", err, "name", req.Name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue registration token"})
		return
	}

	c.JSON(http.StatusCreated, dto.GenerateTokenResponse{
		AgentID:           agent.ID,
		Name:              agent.Name,
		RegistrationToken: agent.RegistrationToken,
	})
}

// Register exchanges a one-time token plus device identifier for the
// permanent API key
// POST /agents/register
func (h *AgentsHandler) Register(c *gin.Context) {
	var req dto.RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and device identifier are required"})
		return
	}

	agentID, apiKey, err := h.agentService.Register(c.Request.Context(), req.RegistrationToken, req.DeviceIdentifier)
	if err != nil {
		switch {
		case errors.Is(err, agents.ErrInvalidToken):
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or already used registration token"})
		case errors.Is(err, agents.ErrDeviceAlreadyRegistered):
			c.JSON(http.StatusConflict, gin.H{"error": "this device has already been registered to another agent"})
		default:
			slog.Error("Failed to register agent", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register agent"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.RegisterAgentResponse{APIKey: apiKey, AgentID: agentID})
}

// Heartbeat refreshes liveness and vitals for the authenticated agent
// POST /agents/heartbeat
func (h *AgentsHandler) Heartbeat(c *gin.Context) {
	credential := c.GetString(middleware.CredentialKey)

	var req dto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed or empty JSON body"})
		return
	}

	vitals := agents.Vitals{
		IPAddress: req.IPAddress,
		OSName:    req.OSName,
		Version:   req.Version,
	}
	if err := h.agentService.Heartbeat(c.Request.Context(), credential, vitals); err != nil {
		if errors.Is(err, agents.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or unrecognized agent credential"})
			return
		}
		slog.Error("Failed to process heartbeat", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process heartbeat"})
		return
	}

	c.JSON(http.StatusOK, dto.HeartbeatResponse{Status: "ok"})
}

// List returns all agents, newest first
// GET /agents
func (h *AgentsHandler) List(c *gin.Context) {
	agentList, err := h.agentService.ListAgents(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list agents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}

	responses := make([]dto.AgentResponse, len(agentList))
	for i, a := range agentList {
		responses[i] = agentResponse(&a)
	}

	c.JSON(http.StatusOK, dto.ListAgentsResponse{Agents: responses, Count: len(responses)})
}

// Get returns one agent
// GET /agents/:id
func (h *AgentsHandler) Get(c *gin.Context) {
	agent, err := h.agentService.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondAgentLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, agentResponse(agent))
}

// Delete removes an agent and its events
// DELETE /agents/:id
func (h *AgentsHandler) Delete(c *gin.Context) {
	if err := h.agentService.DeleteAgent(c.Request.Context(), c.Param("id")); err != nil {
		respondAgentLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "agent deleted"})
}

// GetConfig returns the configuration document for the authenticated agent
// GET /agents/config
func (h *AgentsHandler) GetConfig(c *gin.Context) {
	credential := c.GetString(middleware.CredentialKey)

	config, err := h.agentService.GetConfig(c.Request.Context(), credential)
	if err != nil {
		if errors.Is(err, agents.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or unrecognized agent credential"})
			return
		}
		slog.Error("Failed to get agent config", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get agent config"})
		return
	}

	c.Data(http.StatusOK, "application/json", config)
}

// UpdateConfig replaces the agent's configuration document
// PUT /agents/:id/config
func (h *AgentsHandler) UpdateConfig(c *gin.Context) {
	var config json.RawMessage
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed configuration document"})
		return
	}

	if err := h.agentService.UpdateConfig(c.Request.Context(), c.Param("id"), config); err != nil {
		respondAgentLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "agent config updated"})
}

// Events returns the newest raw events for an agent
// GET /agents/:id/events
func (h *AgentsHandler) Events(c *gin.Context) {
	events, err := h.agentService.RecentEvents(c.Request.Context(), c.Param("id"), recentEventsLimit)
	if err != nil {
		respondAgentLookupError(c, err)
		return
	}

	responses := make([]dto.AgentEventResponse, len(events))
	for i, e := range events {
		responses[i] = dto.AgentEventResponse{
			ID:         e.ID,
			Hostname:   e.Hostname,
			Data:       e.Data,
			ReceivedAt: e.ReceivedAt,
		}
	}

	c.JSON(http.StatusOK, responses)
}

func respondAgentLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, agents.ErrInvalidAgentID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent ID"})
	case errors.Is(err, agents.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
	default:
		slog.Error("Agent operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func agentResponse(a *agents.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:               a.ID,
		Name:             a.Name,
		DeviceIdentifier: a.DeviceIdentifier,
		Status:           a.Status,
		LastSeenAt:       a.LastSeenAt,
		IPAddress:        a.IPAddress,
		OSName:           a.OSName,
		Version:          a.Version,
		Config:           a.Config,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}
