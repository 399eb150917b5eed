package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opsflow/internal/capability"
	"opsflow/pkg/logging"

	"github.com/google/uuid"
)

// DefaultWorkerPoolSize is the number of concurrent asynchronous runs.
const DefaultWorkerPoolSize = 5

// Option configures an Executor.
type Option func(*executorOptions)

type executorOptions struct {
	workers     int
	queueSize   int
	backoffBase time.Duration
	classifier  RetryClassifier
}

// WithWorkerPoolSize sets the number of workers serving ExecuteAsync.
func WithWorkerPoolSize(n int) Option {
	return func(o *executorOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many accepted runs may wait for a free worker.
// Defaults to the worker count.
func WithQueueSize(n int) Option {
	return func(o *executorOptions) {
		if n >= 0 {
			o.queueSize = n
		}
	}
}

// WithBackoffBase overrides the retry backoff unit.
func WithBackoffBase(d time.Duration) Option {
	return func(o *executorOptions) {
		if d > 0 {
			o.backoffBase = d
		}
	}
}

// WithRetryClassifier installs a hook deciding which failures are retried.
func WithRetryClassifier(c RetryClassifier) Option {
	return func(o *executorOptions) {
		o.classifier = c
	}
}

type job struct {
	ctx      context.Context
	workflow Workflow
	vars     map[string]interface{}
	runID    string
	result   chan WorkflowResult
}

// Executor runs workflows, either on the caller's goroutine or on a fixed
// pool of workers. Each run owns its own Store.
type Executor struct {
	registry *capability.Registry
	runner   *StepRunner

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewExecutor creates an executor over registry and starts its workers.
func NewExecutor(registry *capability.Registry, opts ...Option) *Executor {
	options := executorOptions{
		workers:     DefaultWorkerPoolSize,
		queueSize:   -1,
		backoffBase: DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.queueSize < 0 {
		options.queueSize = options.workers
	}

	e := &Executor{
		registry: registry,
		runner:   NewStepRunner(NewDispatcher(registry), options.backoffBase, options.classifier),
		jobs:     make(chan job, options.queueSize),
	}

	for i := 0; i < options.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	logging.Debug("Executor", "Started %d workers (queue size %d)", options.workers, options.queueSize)

	return e
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()
	for j := range e.jobs {
		logging.Debug("Executor", "Worker %d picked up run %s of workflow %s", id, j.runID, j.workflow.ID)
		j.result <- e.execute(j.ctx, j.workflow, j.vars, j.runID)
		close(j.result)
	}
}

// Execute runs the workflow on the calling goroutine. Failures are reported
// through WorkflowResult.Success, never as an error.
func (e *Executor) Execute(ctx context.Context, wf Workflow, vars map[string]interface{}) WorkflowResult {
	return e.execute(ctx, wf, vars, uuid.NewString())
}

// ExecuteAsync submits the workflow to the worker pool. It blocks only while
// the queue is full. The returned channel yields exactly one result and is
// then closed. When the executor is closed, or ctx ends before the run is
// accepted, the result is an immediate failure.
func (e *Executor) ExecuteAsync(ctx context.Context, wf Workflow, vars map[string]interface{}) <-chan WorkflowResult {
	return e.submit(ctx, wf, vars, uuid.NewString())
}

func (e *Executor) submit(ctx context.Context, wf Workflow, vars map[string]interface{}, runID string) <-chan WorkflowResult {
	results := make(chan WorkflowResult, 1)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		results <- rejectedResult(runID, wf.ID, vars, ErrExecutorClosed)
		close(results)
		return results
	}

	select {
	case e.jobs <- job{ctx: ctx, workflow: wf, vars: vars, runID: runID, result: results}:
		logging.Debug("Executor", "Queued run %s of workflow %s", runID, wf.ID)
	case <-ctx.Done():
		logging.Warn("Executor", "Run of workflow %s not accepted: %v", wf.ID, ctx.Err())
		results <- rejectedResult(runID, wf.ID, vars, ctx.Err())
		close(results)
	}
	return results
}

// Close stops accepting submissions and waits for queued and running
// workflows to finish. It is safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
	logging.Debug("Executor", "Worker pool drained")
}

// IntegrationHealth reports the live health of every registered integration.
func (e *Executor) IntegrationHealth(ctx context.Context) map[string]capability.HealthStatus {
	return e.registry.Health(ctx)
}

func (e *Executor) execute(ctx context.Context, wf Workflow, vars map[string]interface{}, runID string) WorkflowResult {
	store := NewStore(vars)
	result := WorkflowResult{
		RunID:       runID,
		WorkflowID:  wf.ID,
		Success:     true,
		StepResults: make([]StepResult, 0, len(wf.Steps)),
		StartTime:   time.Now(),
	}

	logging.Info("Executor", "Starting workflow %s (run %s, %d steps)", wf.ID, runID, len(wf.Steps))

	for _, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			logging.Warn("Executor", "Workflow %s halted before step %s: %v", wf.ID, step.ID, err)
			result.Success = false
			result.Error = fmt.Sprintf("cancelled before step %s: %v", step.ID, err)
			break
		}

		if !EvaluateCondition(step.Condition, store) {
			logging.Info("Executor", "Skipping step %s: condition %q not met", step.ID, step.Condition)
			stepResult := StepResult{
				StepID:   step.ID,
				StepName: step.DisplayName(),
				Success:  true,
				Message:  SkippedMessage,
				Data:     map[string]interface{}{},
				Skipped:  true,
			}
			result.StepResults = append(result.StepResults, stepResult)
			recordStep(store, stepResult)
			continue
		}

		params := ResolveParameters(step.Parameters, store.Snapshot())
		stepResult := e.runner.Run(ctx, step, params)
		result.StepResults = append(result.StepResults, stepResult)
		recordStep(store, stepResult)

		if stepResult.Success {
			logging.Debug("Executor", "Step %s succeeded: %s", step.ID, stepResult.Message)
			continue
		}
		if step.ContinueOnFailure {
			logging.Warn("Executor", "Step %s failed, continuing: %s", step.ID, stepResult.Message)
			continue
		}

		logging.Error("Executor", nil, "Step %s failed, halting workflow %s: %s", step.ID, wf.ID, stepResult.Message)
		result.Success = false
		result.Error = fmt.Sprintf("step %s failed: %s", step.ID, stepResult.Message)
		break
	}

	result.EndTime = time.Now()
	result.Context = store.Snapshot()

	logging.Info("Executor", "Workflow %s finished (run %s, success: %t, %s, %dms)",
		wf.ID, runID, result.Success, result.Summary(), result.DurationMs())
	return result
}

func recordStep(store *Store, stepResult StepResult) {
	data := stepResult.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	store.Put(StepResultKey(stepResult.StepID), stepResult)
	store.Put(StepOutputKey(stepResult.StepID), data)
	store.Put(ContextKeyLastStepSuccess, stepResult.Success)
}

func rejectedResult(runID, workflowID string, vars map[string]interface{}, err error) WorkflowResult {
	now := time.Now()
	return WorkflowResult{
		RunID:       runID,
		WorkflowID:  workflowID,
		Success:     false,
		Error:       err.Error(),
		StepResults: []StepResult{},
		StartTime:   now,
		EndTime:     now,
		Context:     NewStore(vars).Snapshot(),
	}
}
