package pipeline

import "time"

// HealthReport is an eventually consistent snapshot of one pipeline.
// Counters are per run; Restarts is filled in by the supervisor.
type HealthReport struct {
	PipelineID    string        `json:"pipeline_id"`
	RunID         string        `json:"run_id"`
	State         string        `json:"state"`
	Sequence      uint64        `json:"sequence"`
	EventsEmitted uint64        `json:"events_emitted"`
	EventsFailed  uint64        `json:"events_failed"`
	EventsSkipped uint64        `json:"events_skipped"`
	Lag           time.Duration `json:"lag"`
	Restarts      int           `json:"restarts"`
	LastError     string        `json:"last_error,omitempty"`
}
