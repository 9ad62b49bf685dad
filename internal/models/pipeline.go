package models

import "time"

// PipelineStatus tracks the lifecycle of a pipeline run
type PipelineStatus string

const (
	PipelineStatusRunning   PipelineStatus = "running"
	PipelineStatusSucceeded PipelineStatus = "succeeded"
	PipelineStatusFailed    PipelineStatus = "failed"
)

// StageResult records the outcome of one pipeline stage
type StageResult struct {
	Name       string `json:"name"`
	Succeeded  bool   `json:"succeeded"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// PipelineRun is one end-to-end execution of the ordered pipeline stages
type PipelineRun struct {
	ID         string         `json:"id" db:"id"`
	Status     PipelineStatus `json:"status" db:"status"`
	Stages     []StageResult  `json:"stages"`
	Error      string         `json:"error,omitempty" db:"error"`
	StartedAt  time.Time      `json:"started_at" db:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
}
