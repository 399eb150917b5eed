package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/history"
	"opsflow/pkg/logging"

	"github.com/google/uuid"
)

// WorkflowManager binds stored definitions to the executor and records every
// finished run in the history store.
type WorkflowManager struct {
	storage  *WorkflowStorage
	executor *Executor
	history  history.Store

	mu      sync.RWMutex
	stopped bool
}

// NewWorkflowManager creates a manager. A nil store keeps history in memory.
func NewWorkflowManager(storage *WorkflowStorage, executor *Executor, store history.Store) *WorkflowManager {
	if store == nil {
		store = history.NewMemoryStore(0)
	}
	return &WorkflowManager{
		storage:  storage,
		executor: executor,
		history:  store,
	}
}

// Get returns the workflow definition with the given id.
func (wm *WorkflowManager) Get(id string) (Workflow, error) {
	return wm.storage.Get(id)
}

// List returns every stored workflow sorted by id.
func (wm *WorkflowManager) List() []Workflow {
	return wm.storage.List()
}

// Reload re-reads the workflow directory.
func (wm *WorkflowManager) Reload() error {
	return wm.storage.Load()
}

// Run executes a stored workflow synchronously. The only error is an
// unknown workflow id; run failures are reported in the result.
func (wm *WorkflowManager) Run(ctx context.Context, id string, vars map[string]interface{}) (WorkflowResult, error) {
	wf, err := wm.lookup(id)
	if err != nil {
		return WorkflowResult{}, err
	}

	result := wm.executor.Execute(ctx, wf, vars)
	wm.record(ctx, result)
	return result, nil
}

// AsyncRun is a submitted workflow run. The run id is known, and recorded
// as running, before the workflow starts. Result yields exactly one result
// and is then closed.
type AsyncRun struct {
	RunID  string
	Result <-chan WorkflowResult
}

// RunAsync submits a stored workflow to the executor's worker pool. The
// result is recorded before it is delivered on the run's Result channel.
func (wm *WorkflowManager) RunAsync(ctx context.Context, id string, vars map[string]interface{}) (AsyncRun, error) {
	wf, err := wm.lookup(id)
	if err != nil {
		return AsyncRun{}, err
	}

	runID := uuid.NewString()
	recordCtx := context.WithoutCancel(ctx)
	if err := wm.history.Save(recordCtx, history.Record{
		RunID:      runID,
		WorkflowID: wf.ID,
		Status:     history.StatusRunning,
		StartTime:  time.Now(),
		Steps:      []history.StepTrace{},
	}); err != nil {
		logging.Warn("WorkflowManager", "Failed to record pending run %s of workflow %s: %v", runID, wf.ID, err)
	}

	pending := wm.executor.submit(ctx, wf, vars, runID)
	out := make(chan WorkflowResult, 1)
	go func() {
		defer close(out)
		result, ok := <-pending
		if !ok {
			return
		}
		wm.record(recordCtx, result)
		out <- result
	}()
	return AsyncRun{RunID: runID, Result: out}, nil
}

// GetRun returns the recorded run with the given id.
func (wm *WorkflowManager) GetRun(ctx context.Context, runID string) (history.Record, error) {
	return wm.history.Get(ctx, runID)
}

// LastRun returns the most recent recorded run of a workflow.
func (wm *WorkflowManager) LastRun(ctx context.Context, workflowID string) (history.Record, error) {
	records, err := wm.history.ListByWorkflow(ctx, workflowID, 1)
	if err != nil {
		return history.Record{}, err
	}
	if len(records) == 0 {
		return history.Record{}, history.ErrRunNotFound
	}
	return records[0], nil
}

// Runs returns up to limit recorded runs of a workflow, newest first.
func (wm *WorkflowManager) Runs(ctx context.Context, workflowID string, limit int) ([]history.Record, error) {
	return wm.history.ListByWorkflow(ctx, workflowID, limit)
}

// IntegrationHealth proxies the executor's live health report.
func (wm *WorkflowManager) IntegrationHealth(ctx context.Context) map[string]capability.HealthStatus {
	return wm.executor.IntegrationHealth(ctx)
}

// Stop drains the executor and closes the history store.
func (wm *WorkflowManager) Stop() error {
	wm.mu.Lock()
	if wm.stopped {
		wm.mu.Unlock()
		return nil
	}
	wm.stopped = true
	wm.mu.Unlock()

	wm.executor.Close()
	if err := wm.history.Close(); err != nil {
		return fmt.Errorf("failed to close history store: %w", err)
	}
	return nil
}

func (wm *WorkflowManager) lookup(id string) (Workflow, error) {
	wm.mu.RLock()
	stopped := wm.stopped
	wm.mu.RUnlock()
	if stopped {
		return Workflow{}, ErrExecutorClosed
	}
	return wm.storage.Get(id)
}

func (wm *WorkflowManager) record(ctx context.Context, result WorkflowResult) {
	if err := wm.history.Save(ctx, NewRecord(result)); err != nil {
		logging.Error("WorkflowManager", err, "Failed to record run %s of workflow %s", result.RunID, result.WorkflowID)
	}
}

// NewRecord converts a run result into its persisted history form.
func NewRecord(result WorkflowResult) history.Record {
	summary := result.Summary()
	rec := history.Record{
		RunID:      result.RunID,
		WorkflowID: result.WorkflowID,
		Status:     history.StatusFailed,
		Success:    result.Success,
		Error:      result.Error,
		StartTime:  result.StartTime,
		EndTime:    result.EndTime,
		DurationMs: result.DurationMs(),
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Steps:      make([]history.StepTrace, 0, len(result.StepResults)),
	}
	if result.Success {
		rec.Status = history.StatusSucceeded
	}
	for _, sr := range result.StepResults {
		rec.Steps = append(rec.Steps, history.StepTrace{
			StepID:     sr.StepID,
			StepName:   sr.StepName,
			Success:    sr.Success,
			Skipped:    sr.Skipped,
			Message:    sr.Message,
			Attempts:   sr.Attempts,
			DurationMs: sr.DurationMs,
		})
	}
	return rec
}

// IsNotFound reports whether err means an unknown workflow or run.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, history.ErrRunNotFound)
}
