package dto

import "encoding/json"

// LogEvent is one record of an ingestion batch. The body of the ingestion
// endpoint is a bare non-empty array of these.
type LogEvent struct {
	Hostname string          `json:"hostname"`
	Data     json.RawMessage `json:"data"`
}

type IngestResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}
