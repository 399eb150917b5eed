package workflow

import (
	"context"
	"fmt"
	"time"

	"opsflow/internal/capability"
	"opsflow/pkg/logging"
)

// Dispatcher routes (integrationId, action) pairs to the registered action
// handlers and normalizes every outcome into an IntegrationResult.
type Dispatcher struct {
	registry *capability.Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *capability.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes action on the integration. It never returns an error:
// lookup failures, handler errors and panics all become failed results.
func (d *Dispatcher) Dispatch(ctx context.Context, integrationID, action string, params map[string]interface{}) (result capability.IntegrationResult) {
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			logging.Error("Dispatcher", nil, "Action %s.%s panicked: %v", integrationID, action, recovered)
			result = capability.Failure(fmt.Sprintf("Action panicked: %v", recovered))
		}
		result.IntegrationID = integrationID
		result.Action = action
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		if result.Data == nil {
			result.Data = map[string]interface{}{}
		}
	}()

	integration, err := d.registry.Lookup(integrationID)
	if err != nil {
		return capability.Failure("Integration not found: " + integrationID)
	}
	if !integration.IsConfigured() {
		return capability.Failure("Integration not configured: " + integrationID)
	}

	handler, ok := integration.Actions()[action]
	if !ok || handler == nil {
		return capability.Failure("Action not found: " + action)
	}

	logging.Debug("Dispatcher", "Invoking %s.%s", integrationID, action)
	res, err := handler(ctx, capability.Params(params))
	if err != nil {
		return capability.Failure(err.Error())
	}
	return res
}
