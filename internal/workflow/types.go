package workflow

import (
	"fmt"
	"time"
)

// Context keys written by the executor after every step.
const (
	// ContextKeyLastStepSuccess holds the success flag of the most recent step,
	// skipped steps included.
	ContextKeyLastStepSuccess = "lastStepSuccess"

	// SkippedMessage is the message carried by a step whose condition was false.
	SkippedMessage = "Step skipped due to condition"
)

// StepResultKey returns the context key holding the StepResult of a step.
func StepResultKey(stepID string) string {
	return "step_" + stepID + "_result"
}

// StepOutputKey returns the context key holding the output data of a step.
func StepOutputKey(stepID string) string {
	return stepID + "_output"
}

// Workflow is an ordered list of steps. Treat it as immutable once built: the
// builder and the storage hand out deep copies.
type Workflow struct {
	ID          string                 `yaml:"id" json:"id"`
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []WorkflowStep         `yaml:"steps" json:"steps"`
	Config      map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// WorkflowStep invokes one action on one integration.
type WorkflowStep struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name,omitempty" json:"name,omitempty"`
	IntegrationID string `yaml:"integrationId" json:"integrationId"`
	Action        string `yaml:"action" json:"action"`

	// Parameters are literals or strings containing ${contextKey} placeholders.
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	ContinueOnFailure bool   `yaml:"continueOnFailure,omitempty" json:"continueOnFailure,omitempty"`
	MaxRetries        int    `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	Condition         string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// DisplayName returns the step name, falling back to its id.
func (s WorkflowStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// StepResult is the outcome of one step after retries.
type StepResult struct {
	StepID     string                 `yaml:"stepId" json:"stepId"`
	StepName   string                 `yaml:"stepName" json:"stepName"`
	Success    bool                   `yaml:"success" json:"success"`
	Message    string                 `yaml:"message" json:"message"`
	Data       map[string]interface{} `yaml:"data" json:"data"`
	Attempts   int                    `yaml:"attempts" json:"attempts"`
	Skipped    bool                   `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	DurationMs int64                  `yaml:"durationMs" json:"durationMs"`
}

// WorkflowResult is the outcome of a whole run.
type WorkflowResult struct {
	RunID       string                 `yaml:"runId" json:"runId"`
	WorkflowID  string                 `yaml:"workflowId" json:"workflowId"`
	Success     bool                   `yaml:"success" json:"success"`
	Error       string                 `yaml:"error,omitempty" json:"error,omitempty"`
	StepResults []StepResult           `yaml:"stepResults" json:"stepResults"`
	StartTime   time.Time              `yaml:"startTime" json:"startTime"`
	EndTime     time.Time              `yaml:"endTime" json:"endTime"`
	Context     map[string]interface{} `yaml:"context" json:"context"`
}

// DurationMs is the wall-clock time of the run in milliseconds.
func (r WorkflowResult) DurationMs() int64 {
	if r.EndTime.Before(r.StartTime) {
		return 0
	}
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// ResultSummary counts step outcomes. Skipped steps are counted only as skipped.
type ResultSummary struct {
	Total     int `yaml:"total" json:"total"`
	Succeeded int `yaml:"succeeded" json:"succeeded"`
	Failed    int `yaml:"failed" json:"failed"`
	Skipped   int `yaml:"skipped" json:"skipped"`
}

func (s ResultSummary) String() string {
	return fmt.Sprintf("%d steps: %d succeeded, %d failed, %d skipped", s.Total, s.Succeeded, s.Failed, s.Skipped)
}

// Summary derives pass/fail counts from the step results.
func (r WorkflowResult) Summary() ResultSummary {
	summary := ResultSummary{Total: len(r.StepResults)}
	for _, sr := range r.StepResults {
		switch {
		case sr.Skipped:
			summary.Skipped++
		case sr.Success:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}
	return summary
}

// Copy returns a deep copy of the workflow definition. Parameter values are
// copied one level deep; nested maps and lists are shared.
func (w Workflow) Copy() Workflow {
	out := w
	out.Config = copyMap(w.Config)
	if w.Steps != nil {
		out.Steps = make([]WorkflowStep, len(w.Steps))
		for i, step := range w.Steps {
			step.Parameters = copyMap(step.Parameters)
			out.Steps[i] = step
		}
	}
	return out
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
