package api

import (
	"time"

	"map_shortcuts/pkg/pipeline"
)

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StepJSON identifies the step in progress.
type StepJSON struct {
	Phase      pipeline.Phase `json:"phase"`
	Resolution int            `json:"resolution"`
}

// StatusResponse is the JSON response for GET /api/v1/status.
type StatusResponse struct {
	RunID     string                `json:"run_id"`
	State     string                `json:"state"`
	StartedAt time.Time             `json:"started_at"`
	ElapsedS  float64               `json:"elapsed_seconds"`
	Current   *StepJSON             `json:"current,omitempty"`
	Steps     []pipeline.StepRecord `json:"steps"`
	FinalRows int                   `json:"final_rows,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
