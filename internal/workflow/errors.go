package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorkflowNotFound is returned when a workflow id is not in storage.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidWorkflow is matched by every ValidationErrors value.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrExecutorClosed is reported for async submissions after Close.
	ErrExecutorClosed = errors.New("executor closed")
)

// ValidationError describes one problem in a workflow definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a definition.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidWorkflow, strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is(err, ErrInvalidWorkflow) match.
func (v ValidationErrors) Unwrap() error {
	return ErrInvalidWorkflow
}

func (v *ValidationErrors) add(field, format string, args ...interface{}) {
	*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}
