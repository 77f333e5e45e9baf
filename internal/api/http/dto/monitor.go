package dto

type CheckStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
