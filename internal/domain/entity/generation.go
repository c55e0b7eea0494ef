package entity

import "time"

// GenerationRun is one invocation of the generator over a set of definitions
type GenerationRun struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	Machines     int        `json:"machines"`
	Written      int        `json:"written"`
	Skipped      int        `json:"skipped"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// GeneratedArtifact records the definition hash an output file was produced from
type GeneratedArtifact struct {
	Machine        string    `json:"machine"`
	OutputPath     string    `json:"output_path"`
	DefinitionHash string    `json:"definition_hash"`
	RunID          string    `json:"run_id"`
	SizeBytes      int64     `json:"size_bytes"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Generation run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
