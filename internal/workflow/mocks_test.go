package workflow

import (
	"context"
	"sync"
	"time"

	"opsflow/internal/capability"

	"github.com/stretchr/testify/mock"
)

// mockIntegration is a testify mock of capability.Integration.
type mockIntegration struct {
	mock.Mock
}

func (m *mockIntegration) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockIntegration) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockIntegration) HealthCheck(ctx context.Context) capability.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(capability.HealthStatus)
}

func (m *mockIntegration) Actions() map[string]capability.ActionHandler {
	args := m.Called()
	return args.Get(0).(map[string]capability.ActionHandler)
}

// recorder is an action handler that replays scripted outcomes and keeps
// the parameters of every call.
type recorder struct {
	mu       sync.Mutex
	outcomes []capability.IntegrationResult
	calls    []capability.Params
}

// succeedAfter fails n times and then succeeds.
func succeedAfter(n int) *recorder {
	r := &recorder{}
	for i := 0; i < n; i++ {
		r.outcomes = append(r.outcomes, capability.Failure("transient failure"))
	}
	r.outcomes = append(r.outcomes, capability.Success("ok", map[string]interface{}{"attempt": n + 1}))
	return r
}

func alwaysFail(message string) *recorder {
	return &recorder{outcomes: []capability.IntegrationResult{capability.Failure(message)}}
}

func alwaysSucceed(data map[string]interface{}) *recorder {
	return &recorder{outcomes: []capability.IntegrationResult{capability.Success("ok", data)}}
}

func (r *recorder) handle(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
	idx := len(r.calls) - 1
	if idx >= len(r.outcomes) {
		idx = len(r.outcomes) - 1
	}
	return r.outcomes[idx], nil
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) lastCall() capability.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

// newTestExecutor builds an executor with a millisecond backoff over a
// registry holding a single "test" integration.
func newTestExecutor(actions map[string]capability.ActionHandler, opts ...Option) (*Executor, *capability.Registry) {
	registry := capability.NewRegistry()
	registry.Register(capability.NewStaticIntegration("test", actions))
	opts = append([]Option{WithBackoffBase(time.Millisecond)}, opts...)
	return NewExecutor(registry, opts...), registry
}
