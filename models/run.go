package models

import "time"

// RunStatus tracks the lifecycle of a reconciliation batch.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ReconcileRun is one batch pass over pending raw listings.
type ReconcileRun struct {
	ID          int64      `json:"id" db:"id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	Status      RunStatus  `json:"status" db:"status"`
	Processed   int        `json:"processed" db:"processed"`
	AutoMatched int        `json:"auto_matched" db:"auto_matched"`
	Escalated   int        `json:"escalated" db:"escalated"`
	Created     int        `json:"created" db:"created"`
	Requeued    int        `json:"requeued" db:"requeued"`
	Errors      int        `json:"errors" db:"errors"`
}

const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ReconcileLog is a structured row written during a batch, kept alongside
// the plain-text daemon log for after-the-fact debugging.
type ReconcileLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     string    `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	Vendor    string    `json:"vendor" db:"vendor"`
}
