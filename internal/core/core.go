// Package core implements the built-in "core" integration: actions that need
// no external system, for composing and testing workflows.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opsflow/internal/capability"
	"opsflow/pkg/logging"
)

// IntegrationID is the registry key of the built-in integration.
const IntegrationID = "core"

// maxSleep caps the sleep action.
const maxSleep = 10 * time.Minute

// New returns the built-in integration. It is always configured.
func New() *capability.StaticIntegration {
	integration := capability.NewStaticIntegration(IntegrationID, map[string]capability.ActionHandler{
		"ping":  ping,
		"log":   logMessage,
		"echo":  echo,
		"sleep": sleep,
		"fail":  fail,
	})
	integration.HealthFunc = func(context.Context) capability.HealthStatus {
		return capability.HealthStatus{Healthy: true, Message: "built-in"}
	}
	return integration
}

func ping(context.Context, capability.Params) (capability.IntegrationResult, error) {
	return capability.Success("pong", map[string]interface{}{
		"ok":         true,
		"serverTime": time.Now().UTC().Format(time.RFC3339Nano),
	}), nil
}

// logMessage writes the message parameter to the opsflow log.
func logMessage(_ context.Context, p capability.Params) (capability.IntegrationResult, error) {
	message, err := p.RequiredString("message")
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	switch p.StringOr("level", "info") {
	case "debug":
		logging.Debug("Workflow", "%s", message)
	case "warn":
		logging.Warn("Workflow", "%s", message)
	case "error":
		logging.Error("Workflow", nil, "%s", message)
	default:
		logging.Info("Workflow", "%s", message)
	}
	return capability.Success(message, map[string]interface{}{"message": message}), nil
}

// echo returns its parameters as output data, which makes it a way to name
// intermediate values for later steps.
func echo(_ context.Context, p capability.Params) (capability.IntegrationResult, error) {
	data := make(map[string]interface{}, len(p))
	for k, v := range p {
		data[k] = v
	}
	return capability.Success(fmt.Sprintf("Echoed %d parameters", len(data)), data), nil
}

// sleep waits for "duration" (a Go duration string or milliseconds).
func sleep(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	d, err := durationParam(p, "duration")
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return capability.Success(fmt.Sprintf("Slept %s", d), map[string]interface{}{"sleptMs": d.Milliseconds()}), nil
	case <-ctx.Done():
		return capability.IntegrationResult{}, fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}

// fail always fails with the message parameter.
func fail(_ context.Context, p capability.Params) (capability.IntegrationResult, error) {
	return capability.Failure(p.StringOr("message", "failed on request")), nil
}

func durationParam(p capability.Params, key string) (time.Duration, error) {
	var d time.Duration
	if ms, ok := p.Int64(key); ok {
		if ms < 0 || ms > maxSleep.Milliseconds() {
			return 0, fmt.Errorf("%s must be between 0 and %s", key, maxSleep)
		}
		d = time.Duration(ms) * time.Millisecond
	} else if s, ok := p.String(key); ok {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
		}
		d = parsed
	} else {
		return 0, errors.New("missing required parameter: " + key)
	}
	if d < 0 || d > maxSleep {
		return 0, fmt.Errorf("%s must be between 0 and %s", key, maxSleep)
	}
	return d, nil
}
