package capability

import (
	"context"
	"errors"
)

// ErrIntegrationNotFound is returned by lookups for ids that were never registered.
var ErrIntegrationNotFound = errors.New("integration not found")

// HealthStatus is the live health record an integration reports.
type HealthStatus struct {
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Message   string `json:"message" yaml:"message"`
	LatencyMs int64  `json:"latencyMs" yaml:"latencyMs"`
}

// IntegrationResult is the normalized outcome of one action invocation.
type IntegrationResult struct {
	IntegrationID   string                 `json:"integrationId" yaml:"integrationId"`
	Action          string                 `json:"action" yaml:"action"`
	Success         bool                   `json:"success" yaml:"success"`
	Message         string                 `json:"message" yaml:"message"`
	Data            map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	ExecutionTimeMs int64                  `json:"executionTimeMs" yaml:"executionTimeMs"`
}

// Success builds a successful result envelope. The dispatcher stamps the
// integration id, action name and timing.
func Success(message string, data map[string]interface{}) IntegrationResult {
	if data == nil {
		data = map[string]interface{}{}
	}
	return IntegrationResult{Success: true, Message: message, Data: data}
}

// Failure builds a failed result envelope.
func Failure(message string) IntegrationResult {
	return IntegrationResult{Success: false, Message: message, Data: map[string]interface{}{}}
}

// ActionHandler is one named operation exposed by an integration. Returning an
// error is equivalent to returning Failure(err.Error()).
type ActionHandler func(ctx context.Context, params Params) (IntegrationResult, error)

// Integration is the capability contract every external collaborator implements.
type Integration interface {
	// ID returns the registry key, e.g. "github" or "kubernetes".
	ID() string

	// IsConfigured reports whether the integration has what it needs to run
	// actions. Unconfigured integrations fail every dispatch without invocation.
	IsConfigured() bool

	// HealthCheck checks the backing service.
	HealthCheck(ctx context.Context) HealthStatus

	// Actions returns the static table of invocable actions keyed by name.
	Actions() map[string]ActionHandler
}
