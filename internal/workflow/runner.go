package workflow

import (
	"context"
	"strings"
	"time"

	"opsflow/internal/capability"
	"opsflow/pkg/logging"
)

// DefaultBackoffBase is multiplied by the attempt number to get the wait
// before the next attempt.
const DefaultBackoffBase = time.Second

// RetryClassifier decides whether a failed result is worth another attempt.
type RetryClassifier func(result capability.IntegrationResult) bool

// RetryAll retries every failure.
func RetryAll(capability.IntegrationResult) bool { return true }

// SkipRetryOn retries every failure except those whose message contains one
// of the given substrings. Empty substrings are ignored.
func SkipRetryOn(substrings ...string) RetryClassifier {
	var patterns []string
	for _, s := range substrings {
		if s != "" {
			patterns = append(patterns, s)
		}
	}
	if len(patterns) == 0 {
		return RetryAll
	}
	return func(result capability.IntegrationResult) bool {
		for _, pattern := range patterns {
			if strings.Contains(result.Message, pattern) {
				return false
			}
		}
		return true
	}
}

// StepRunner runs one step with bounded retries and linear backoff.
type StepRunner struct {
	dispatcher  *Dispatcher
	backoffBase time.Duration
	classifier  RetryClassifier
}

// NewStepRunner creates a runner. A zero backoffBase selects the default and
// a nil classifier retries everything.
func NewStepRunner(dispatcher *Dispatcher, backoffBase time.Duration, classifier RetryClassifier) *StepRunner {
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	if classifier == nil {
		classifier = RetryAll
	}
	return &StepRunner{
		dispatcher:  dispatcher,
		backoffBase: backoffBase,
		classifier:  classifier,
	}
}

// Run makes up to step.MaxRetries+1 attempts with the already resolved
// params and returns the result of the last attempt. After failed attempt n
// it waits n*backoffBase; cancelling ctx during the wait stops retrying.
func (r *StepRunner) Run(ctx context.Context, step WorkflowStep, params map[string]interface{}) StepResult {
	start := time.Now()
	maxAttempts := step.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result StepResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res := r.dispatcher.Dispatch(ctx, step.IntegrationID, step.Action, params)
		result = StepResult{
			StepID:   step.ID,
			StepName: step.DisplayName(),
			Success:  res.Success,
			Message:  res.Message,
			Data:     res.Data,
			Attempts: attempt,
		}
		if res.Success {
			break
		}

		if attempt == maxAttempts {
			logging.Warn("StepRunner", "Step %s failed after %d attempt(s): %s", step.ID, attempt, res.Message)
			break
		}
		if !r.classifier(res) {
			logging.Info("StepRunner", "Step %s failed with a non-retryable result: %s", step.ID, res.Message)
			break
		}

		delay := r.backoffBase * time.Duration(attempt)
		logging.Info("StepRunner", "Step %s attempt %d/%d failed: %s, retrying in %s",
			step.ID, attempt, maxAttempts, res.Message, delay)
		if !sleepContext(ctx, delay) {
			logging.Warn("StepRunner", "Step %s retry wait cancelled: %v", step.ID, ctx.Err())
			break
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// sleepContext waits for d and reports whether it completed before ctx ended.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
