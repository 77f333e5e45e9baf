package dto

import (
	"encoding/json"
	"time"
)

type GenerateTokenRequest struct {
	Name string `json:"name" binding:"required"`
}

type GenerateTokenResponse struct {
	AgentID           string `json:"agent_id"`
	Name              string `json:"name"`
	RegistrationToken string `json:"registration_token"`
}

type RegisterAgentRequest struct {
	RegistrationToken string `json:"registration_token" binding:"required"`
	DeviceIdentifier  string `json:"device_identifier" binding:"required"`
}

type RegisterAgentResponse struct {
	APIKey  string `json:"api_key"`
	AgentID string `json:"agent_id"`
}

type HeartbeatRequest struct {
	IPAddress string `json:"ip_address"`
	OSName    string `json:"os_name"`
	Version   string `json:"version"`
}

type HeartbeatResponse struct {
	Status string `json:"status"`
}

type AgentResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	DeviceIdentifier string          `json:"device_identifier,omitempty"`
	Status           string          `json:"status"`
	LastSeenAt       *time.Time      `json:"last_seen_at,omitempty"`
	IPAddress        string          `json:"ip_address,omitempty"`
	OSName           string          `json:"os_name,omitempty"`
	Version          string          `json:"version,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type ListAgentsResponse struct {
	Agents []AgentResponse `json:"agents"`
	Count  int             `json:"count"`
}

type AgentEventResponse struct {
	ID         int64           `json:"id"`
	Hostname   string          `json:"hostname"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"received_at"`
}
