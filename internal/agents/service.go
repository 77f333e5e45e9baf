package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Service implements the agent lifecycle operations: issuing one-time
// registration tokens, exchanging a token for a permanent credential, and
// heartbeat liveness refreshes.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// IssueToken creates a pending agent and its one-time registration token.
// The token is returned to the caller once and stored until consumed.
func (s *Service) IssueToken(ctx context.Context, name string) (*Agent, error) {
	token, err := GenerateRegistrationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate registration token: %w", err)
	}

	agent, err := s.store.CreateAgent(ctx, name, token)
	if err != nil {
		return nil, err
	}

	slog.Info("Registration token issued", "agent_id", agent.ID, "name", agent.Name)
	return agent, nil
}

// Register exchanges a valid token plus device identifier for a permanent
// API key, exactly once. The plaintext key is returned here and never again;
// only its hash is stored. Losing the key means issuing a fresh token.
func (s *Service) Register(ctx context.Context, token, deviceID string) (agentID, apiKey string, err error) {
	apiKey, err = GenerateAPIKey()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}

	agentID, err = s.store.ClaimAgent(ctx, token, deviceID, HashKey(apiKey))
	if err != nil {
		return "", "", err
	}

	slog.Info("Agent registered", "agent_id", agentID, "device_identifier", deviceID)
	return agentID, apiKey, nil
}

// Heartbeat authenticates the credential and refreshes liveness and vitals.
func (s *Service) Heartbeat(ctx context.Context, apiKey string, vitals Vitals) error {
	agentID, err := s.store.RefreshByKeyHash(ctx, HashKey(apiKey), vitals)
	if err != nil {
		return err
	}

	slog.Debug("Heartbeat received", "agent_id", agentID, "ip_address", vitals.IPAddress)
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	return s.store.GetAgent(ctx, agentID)
}

// ListAgents returns all agents, newest first.
func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	return s.store.ListAgents(ctx)
}

// DeleteAgent removes an agent and its events.
func (s *Service) DeleteAgent(ctx context.Context, agentID string) error {
	if err := s.store.DeleteAgent(ctx, agentID); err != nil {
		return err
	}
	slog.Info("Agent deleted", "agent_id", agentID)
	return nil
}

// GetConfig returns the configuration document for the agent presenting the
// credential.
func (s *Service) GetConfig(ctx context.Context, apiKey string) (json.RawMessage, error) {
	return s.store.GetConfigByKeyHash(ctx, HashKey(apiKey))
}

// UpdateConfig replaces an agent's configuration document.
func (s *Service) UpdateConfig(ctx context.Context, agentID string, config json.RawMessage) error {
	if err := s.store.UpdateConfig(ctx, agentID, config); err != nil {
		return err
	}
	slog.Info("Agent config updated", "agent_id", agentID)
	return nil
}

// RecentEvents returns the newest raw events for an agent.
func (s *Service) RecentEvents(ctx context.Context, agentID string, limit int) ([]StoredEvent, error) {
	return s.store.RecentEvents(ctx, agentID, limit)
}
