package history

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when no record exists for a run id.
var ErrRunNotFound = errors.New("run not found")

// Run states reported in Record.Status.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StepTrace is the persisted outcome of one step.
type StepTrace struct {
	StepID     string `json:"stepId"`
	StepName   string `json:"stepName"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"durationMs"`
}

// Record is the persisted summary of one workflow run. The run context is
// not stored since it may hold arbitrary step output.
type Record struct {
	RunID      string      `json:"runId"`
	WorkflowID string      `json:"workflowId"`
	Status     string      `json:"status"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	StartTime  time.Time   `json:"startTime"`
	EndTime    time.Time   `json:"endTime"`
	DurationMs int64       `json:"durationMs"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Steps      []StepTrace `json:"steps"`
}

// Store persists run records.
type Store interface {
	// Save stores rec, replacing any record with the same run id.
	Save(ctx context.Context, rec Record) error

	// Get returns the record for runID or ErrRunNotFound.
	Get(ctx context.Context, runID string) (Record, error)

	// ListByWorkflow returns up to limit records for a workflow, newest first.
	// A limit <= 0 returns every retained record.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]Record, error)

	Close() error
}
