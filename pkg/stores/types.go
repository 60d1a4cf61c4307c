package stores

import "time"

// RunStatus represents the status of a reconciliation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ActionStatus represents the outcome of one install or uninstall
type ActionStatus string

const (
	ActionStatusSucceeded ActionStatus = "succeeded"
	ActionStatusFailed    ActionStatus = "failed"
)

// Run represents a reconciliation run
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Install     []string   `json:"install"`
	Uninstall   []string   `json:"uninstall"`
	DryRun      bool       `json:"dry_run"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// ActionRecord represents one executed action of a run
type ActionRecord struct {
	ID          int64        `json:"id"`
	RunID       string       `json:"run_id"`
	Seq         int          `json:"seq"`
	Unit        string       `json:"unit"`
	Direction   string       `json:"direction"`
	Reason      string       `json:"reason"`
	Status      ActionStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Error       *string      `json:"error,omitempty"`
}
