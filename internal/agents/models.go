package agents

import (
	"encoding/json"
	"time"
)

// Agent lifecycle statuses. The liveness monitor is the only writer of
// StatusOffline; heartbeat and ingestion are the only writers of StatusOnline.
const (
	StatusNeverConnected = "Never Connected"
	StatusOnline         = "Online"
	StatusOffline        = "Offline"
)

type Agent struct {
	ID                string
	Name              string
	RegistrationToken string
	DeviceIdentifier  string
	Status            string
	LastSeenAt        *time.Time
	IPAddress         string
	OSName            string
	Version           string
	Config            json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Vitals is the self-reported state carried on every heartbeat. Fields left
// empty by the agent are stored as NULL, last write wins.
type Vitals struct {
	IPAddress string
	OSName    string
	Version   string
}

// Event is a single raw telemetry record inside an ingestion batch.
type Event struct {
	Hostname string
	Data     json.RawMessage
}

// StoredEvent is an Event as persisted, tagged with the owning agent and the
// server-assigned receipt time.
type StoredEvent struct {
	ID         int64
	AgentID    string
	Hostname   string
	Data       json.RawMessage
	ReceivedAt time.Time
}
