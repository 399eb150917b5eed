package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opsflow/internal/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExecute_AllStepsSucceed(t *testing.T) {
	first := alwaysSucceed(map[string]interface{}{"id": 1})
	second := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"first":  first.handle,
		"second": second.handle,
	})
	defer executor.Close()

	wf := NewBuilder("wf", "All good").
		Step(NewStep("a", "test", "first")).
		Step(NewStep("b", "test", "second").Name("Second step")).
		Build()

	result := executor.Execute(context.Background(), wf, map[string]interface{}{"seed": "x"})

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "wf", result.WorkflowID)
	require.Len(t, result.StepResults, 2)
	assert.Equal(t, "a", result.StepResults[0].StepID)
	assert.Equal(t, "a", result.StepResults[0].StepName, "name falls back to id")
	assert.Equal(t, "Second step", result.StepResults[1].StepName)
	assert.Equal(t, 1, result.StepResults[0].Attempts)
	assert.False(t, result.EndTime.Before(result.StartTime))

	assert.Equal(t, "x", result.Context["seed"])
	assert.Equal(t, true, result.Context[ContextKeyLastStepSuccess])
	assert.Equal(t, map[string]interface{}{"id": 1}, result.Context["a_output"])
	assert.Equal(t, map[string]interface{}{}, result.Context["b_output"])
	stored, ok := result.Context["step_a_result"].(StepResult)
	require.True(t, ok)
	assert.True(t, stored.Success)

	assert.Equal(t, ResultSummary{Total: 2, Succeeded: 2}, result.Summary())
}

func TestExecute_HaltsOnFailure(t *testing.T) {
	third := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"ok":   alwaysSucceed(nil).handle,
		"fail": alwaysFail("boom").handle,
		"last": third.handle,
	})
	defer executor.Close()

	wf := NewBuilder("wf", "Halts").
		Step(NewStep("one", "test", "ok")).
		Step(NewStep("two", "test", "fail")).
		Step(NewStep("three", "test", "last")).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StepResults, 2)
	assert.False(t, result.StepResults[1].Success)
	assert.Equal(t, "boom", result.StepResults[1].Message)
	assert.Equal(t, 0, third.callCount())
	assert.Contains(t, result.Error, "step two failed: boom")
	assert.Equal(t, false, result.Context[ContextKeyLastStepSuccess])
	assert.Equal(t, ResultSummary{Total: 2, Succeeded: 1, Failed: 1}, result.Summary())
}

func TestExecute_ContinueOnFailure(t *testing.T) {
	third := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"ok":   alwaysSucceed(nil).handle,
		"fail": alwaysFail("boom").handle,
		"last": third.handle,
	})
	defer executor.Close()

	wf := NewBuilder("wf", "Continues").
		Step(NewStep("one", "test", "ok")).
		Step(NewStep("two", "test", "fail").ContinueOnFailure()).
		Step(NewStep("three", "test", "last")).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.True(t, result.Success, "a tolerated failure does not fail the run")
	require.Len(t, result.StepResults, 3)
	assert.False(t, result.StepResults[1].Success)
	assert.True(t, result.StepResults[2].Success)
	assert.Equal(t, 1, third.callCount())
	assert.Equal(t, ResultSummary{Total: 3, Succeeded: 2, Failed: 1}, result.Summary())
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	flaky := succeedAfter(2)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"flaky": flaky.handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Retry").
		Step(NewStep("s", "test", "flaky").MaxRetries(3)).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.True(t, result.Success)
	require.Len(t, result.StepResults, 1)
	assert.Equal(t, 3, result.StepResults[0].Attempts)
	assert.Equal(t, 3, flaky.callCount())
	assert.Equal(t, 3, result.StepResults[0].Data["attempt"])
}

func TestExecute_RetryExhaustion(t *testing.T) {
	failing := alwaysFail("still broken")
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"fail": failing.handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Exhaust").
		Step(NewStep("s", "test", "fail").MaxRetries(1)).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StepResults, 1)
	assert.Equal(t, 2, result.StepResults[0].Attempts)
	assert.Equal(t, 2, failing.callCount())
	assert.Equal(t, "still broken", result.StepResults[0].Message)
}

func TestExecute_BackoffGrowsWithAttempt(t *testing.T) {
	failing := alwaysFail("nope")
	executor, _ := newTestExecutor(
		map[string]capability.ActionHandler{"fail": failing.handle},
		WithBackoffBase(20*time.Millisecond),
	)
	defer executor.Close()

	wf := NewBuilder("wf", "Backoff").
		Step(NewStep("s", "test", "fail").MaxRetries(2)).
		Build()

	start := time.Now()
	result := executor.Execute(context.Background(), wf, nil)

	// 20ms after the first attempt plus 40ms after the second.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, 3, result.StepResults[0].Attempts)
}

func TestExecute_RetryClassifier(t *testing.T) {
	failing := alwaysFail("permanent: bad request")
	executor, _ := newTestExecutor(
		map[string]capability.ActionHandler{"fail": failing.handle},
		WithRetryClassifier(func(r capability.IntegrationResult) bool { return false }),
	)
	defer executor.Close()

	wf := NewBuilder("wf", "Classified").
		Step(NewStep("s", "test", "fail").MaxRetries(5)).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.StepResults[0].Attempts)
	assert.Equal(t, 1, failing.callCount())
}

func TestSkipRetryOn(t *testing.T) {
	classifier := SkipRetryOn("Bad credentials", "")

	assert.False(t, classifier(capability.Failure("GitHub API error 401: Bad credentials")))
	assert.True(t, classifier(capability.Failure("connection reset")))
	assert.True(t, SkipRetryOn()(capability.Failure("anything")))
	assert.True(t, SkipRetryOn("")(capability.Failure("anything")))
}

func TestExecute_ConditionSkip(t *testing.T) {
	guarded := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"fail":    alwaysFail("boom").handle,
		"guarded": guarded.handle,
		"after":   alwaysSucceed(nil).handle,
	})
	defer executor.Close()

	wf := NewBuilder("wf", "Skip").
		Step(NewStep("one", "test", "fail").ContinueOnFailure()).
		Step(NewStep("two", "test", "guarded").Condition("${lastStepSuccess}")).
		Step(NewStep("three", "test", "after").Condition("${lastStepSuccess}")).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	require.Len(t, result.StepResults, 3)
	skipped := result.StepResults[1]
	assert.True(t, skipped.Success)
	assert.True(t, skipped.Skipped)
	assert.Equal(t, SkippedMessage, skipped.Message)
	assert.Empty(t, skipped.Data)
	assert.Equal(t, 0, guarded.callCount())

	// A skip counts as success for the next condition.
	assert.False(t, result.StepResults[2].Skipped)
	assert.True(t, result.StepResults[2].Success)
	assert.Equal(t, ResultSummary{Total: 3, Succeeded: 1, Failed: 1, Skipped: 1}, result.Summary())
	assert.Equal(t, map[string]interface{}{}, result.Context["two_output"])
}

func TestExecute_ConditionOnVariable(t *testing.T) {
	deploy := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"deploy": deploy.handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Flag").
		Step(NewStep("deploy", "test", "deploy").Condition("${enabled}")).
		Build()

	result := executor.Execute(context.Background(), wf, map[string]interface{}{"enabled": "false"})
	assert.True(t, result.StepResults[0].Skipped)

	result = executor.Execute(context.Background(), wf, map[string]interface{}{"enabled": "yes"})
	assert.False(t, result.StepResults[0].Skipped)
	assert.Equal(t, 1, deploy.callCount())
}

func TestExecute_TemplateSubstitution(t *testing.T) {
	producer := alwaysSucceed(map[string]interface{}{"url": "https://example/1"})
	consumer := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"produce": producer.handle,
		"consume": consumer.handle,
	})
	defer executor.Close()

	nested := map[string]interface{}{"name": "${env}"}
	wf := NewBuilder("wf", "Templates").
		Step(NewStep("make", "test", "produce").
			Param("title", "deploy ${service} to ${env}").
			Param("count", "${replicas}").
			Param("nested", nested).
			Param("number", 42).
			Param("missing", "value: ${nope}")).
		Step(NewStep("use", "test", "consume").
			Param("link", "${make_output}").
			Param("ok", "${lastStepSuccess}")).
		Build()

	vars := map[string]interface{}{"service": "api", "env": "prod", "replicas": 3}
	result := executor.Execute(context.Background(), wf, vars)
	require.True(t, result.Success)

	got := producer.lastCall()
	assert.Equal(t, "deploy api to prod", got["title"])
	assert.Equal(t, "3", got["count"])
	assert.Equal(t, map[string]interface{}{"name": "${env}"}, got["nested"], "nested values are not substituted")
	assert.Equal(t, 42, got["number"])
	assert.Equal(t, "value: ${nope}", got["missing"])

	used := consumer.lastCall()
	assert.JSONEq(t, `{"url":"https://example/1"}`, used["link"].(string))
	assert.Equal(t, "true", used["ok"])
}

func TestExecute_UnconfiguredIntegrationConsumesAttempts(t *testing.T) {
	called := false
	integration := capability.NewStaticIntegration("offline", map[string]capability.ActionHandler{
		"do": func(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
			called = true
			return capability.Success("ok", nil), nil
		},
	})
	integration.Configured = false

	registry := capability.NewRegistry()
	registry.Register(integration)
	executor := NewExecutor(registry, WithBackoffBase(time.Millisecond))
	defer executor.Close()

	wf := NewBuilder("wf", "Offline").
		Step(NewStep("s", "offline", "do").MaxRetries(2)).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.StepResults[0].Attempts)
	assert.Equal(t, "Integration not configured: offline", result.StepResults[0].Message)
	assert.False(t, called)
}

func TestExecute_DefinitionErrorsFailAtDispatch(t *testing.T) {
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"ok": alwaysSucceed(nil).handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Broken").
		Step(NewStep("unknown-integration", "nowhere", "ok").ContinueOnFailure()).
		Step(NewStep("unknown-action", "test", "missing").ContinueOnFailure()).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	require.Len(t, result.StepResults, 2)
	assert.Equal(t, "Integration not found: nowhere", result.StepResults[0].Message)
	assert.Equal(t, "Action not found: missing", result.StepResults[1].Message)
}

func TestExecute_EmptyWorkflow(t *testing.T) {
	executor, _ := newTestExecutor(nil)
	defer executor.Close()

	result := executor.Execute(context.Background(), Workflow{ID: "empty"}, map[string]interface{}{"k": "v"})

	assert.True(t, result.Success)
	assert.Empty(t, result.StepResults)
	assert.Equal(t, map[string]interface{}{"k": "v"}, result.Context)
}

func TestExecute_CancelDuringBackoff(t *testing.T) {
	failing := alwaysFail("down")
	executor, _ := newTestExecutor(
		map[string]capability.ActionHandler{"fail": failing.handle},
		WithBackoffBase(time.Hour),
	)
	defer executor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	wf := NewBuilder("wf", "Cancelled").
		Step(NewStep("s", "test", "fail").MaxRetries(3)).
		Build()

	done := make(chan WorkflowResult, 1)
	go func() { done <- executor.Execute(ctx, wf, nil) }()

	select {
	case result := <-done:
		assert.False(t, result.Success)
		require.Len(t, result.StepResults, 1)
		assert.Equal(t, 1, result.StepResults[0].Attempts)
		assert.Equal(t, "down", result.StepResults[0].Message)
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not interrupt the backoff wait")
	}
}

func TestExecute_CancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := alwaysSucceed(nil)
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"cancel": func(context.Context, capability.Params) (capability.IntegrationResult, error) {
			cancel()
			return capability.Success("ok", nil), nil
		},
		"second": second.handle,
	})
	defer executor.Close()

	wf := NewBuilder("wf", "Halted").
		Step(NewStep("one", "test", "cancel")).
		Step(NewStep("two", "test", "second")).
		Build()

	result := executor.Execute(ctx, wf, nil)

	assert.False(t, result.Success)
	require.Len(t, result.StepResults, 1, "no synthetic result is appended")
	assert.Equal(t, 0, second.callCount())
	assert.Contains(t, result.Error, "cancelled before step two")
}

func TestExecute_HandlerErrorAndPanic(t *testing.T) {
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{
		"err": func(context.Context, capability.Params) (capability.IntegrationResult, error) {
			return capability.IntegrationResult{}, errors.New("api returned 500")
		},
		"panic": func(context.Context, capability.Params) (capability.IntegrationResult, error) {
			panic("nil map")
		},
	})
	defer executor.Close()

	wf := NewBuilder("wf", "Errors").
		Step(NewStep("e", "test", "err").ContinueOnFailure()).
		Step(NewStep("p", "test", "panic").ContinueOnFailure()).
		Build()

	result := executor.Execute(context.Background(), wf, nil)

	require.Len(t, result.StepResults, 2)
	assert.False(t, result.StepResults[0].Success)
	assert.Equal(t, "api returned 500", result.StepResults[0].Message)
	assert.False(t, result.StepResults[1].Success)
	assert.Contains(t, result.StepResults[1].Message, "nil map")
}

func TestExecute_DoesNotMutateInputs(t *testing.T) {
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"ok": alwaysSucceed(nil).handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Pure").
		Step(NewStep("s", "test", "ok").Param("v", "${x}")).
		Build()
	vars := map[string]interface{}{"x": "1"}

	executor.Execute(context.Background(), wf, vars)

	assert.Equal(t, map[string]interface{}{"x": "1"}, vars)
	assert.Equal(t, "${x}", wf.Steps[0].Parameters["v"])
}

func TestExecuteAsync(t *testing.T) {
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"ok": alwaysSucceed(nil).handle})
	defer executor.Close()

	wf := NewBuilder("wf", "Async").Step(NewStep("s", "test", "ok")).Build()

	var channels []<-chan WorkflowResult
	for i := 0; i < 10; i++ {
		channels = append(channels, executor.ExecuteAsync(context.Background(), wf, map[string]interface{}{"i": i}))
	}

	seen := make(map[string]bool)
	for i, ch := range channels {
		select {
		case result := <-ch:
			assert.True(t, result.Success)
			assert.Equal(t, i, result.Context["i"])
			assert.False(t, seen[result.RunID], "run ids are unique")
			seen[result.RunID] = true
		case <-time.After(5 * time.Second):
			t.Fatal("async run did not complete")
		}
		_, open := <-ch
		assert.False(t, open, "channel is closed after the result")
	}
}

func TestExecuteAsync_BoundedConcurrency(t *testing.T) {
	var (
		running int32
		peak    int32
	)
	slow := func(context.Context, capability.Params) (capability.IntegrationResult, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return capability.Success("ok", nil), nil
	}
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"slow": slow}, WithWorkerPoolSize(2))

	wf := NewBuilder("wf", "Pool").Step(NewStep("s", "test", "slow")).Build()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		ch := executor.ExecuteAsync(context.Background(), wf, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ch
		}()
	}
	wg.Wait()
	executor.Close()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, int32(0), atomic.LoadInt32(&running))
}

func TestExecuteAsync_AfterClose(t *testing.T) {
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"ok": alwaysSucceed(nil).handle})
	executor.Close()
	executor.Close()

	wf := NewBuilder("wf", "Closed").Step(NewStep("s", "test", "ok")).Build()
	result := <-executor.ExecuteAsync(context.Background(), wf, nil)

	assert.False(t, result.Success)
	assert.Equal(t, ErrExecutorClosed.Error(), result.Error)
	assert.Empty(t, result.StepResults)
}

func TestExecuteAsync_CancelledBeforeAcceptance(t *testing.T) {
	release := make(chan struct{})
	blocking := func(context.Context, capability.Params) (capability.IntegrationResult, error) {
		<-release
		return capability.Success("ok", nil), nil
	}
	executor, _ := newTestExecutor(
		map[string]capability.ActionHandler{"block": blocking},
		WithWorkerPoolSize(1),
		WithQueueSize(0),
	)
	defer executor.Close()

	wf := NewBuilder("wf", "Busy").Step(NewStep("s", "test", "block")).Build()
	first := executor.ExecuteAsync(context.Background(), wf, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rejected := <-executor.ExecuteAsync(ctx, wf, nil)

	assert.False(t, rejected.Success)
	assert.Equal(t, context.DeadlineExceeded.Error(), rejected.Error)

	close(release)
	assert.True(t, (<-first).Success)
}

func TestExecute_ConcurrentRunsAreIsolated(t *testing.T) {
	echo := func(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
		return capability.Success("ok", map[string]interface{}{"value": p["value"]}), nil
	}
	executor, _ := newTestExecutor(map[string]capability.ActionHandler{"echo": echo})
	defer executor.Close()

	wf := NewBuilder("wf", "Isolation").
		Step(NewStep("s", "test", "echo").Param("value", "${input}")).
		Build()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := string(rune('a' + i))
			result := executor.Execute(context.Background(), wf, map[string]interface{}{"input": input})
			assert.Equal(t, input, result.StepResults[0].Data["value"])
		}(i)
	}
	wg.Wait()
}

func TestIntegrationHealth(t *testing.T) {
	m := new(mockIntegration)
	m.On("ID").Return("mocked")
	m.On("IsConfigured").Return(true)
	m.On("Actions").Return(map[string]capability.ActionHandler{})
	m.On("HealthCheck", mock.Anything).Return(capability.HealthStatus{Healthy: true, Message: "fine", LatencyMs: 3})

	registry := capability.NewRegistry()
	registry.Register(m)
	executor := NewExecutor(registry)
	defer executor.Close()

	statuses := executor.IntegrationHealth(context.Background())

	require.Contains(t, statuses, "mocked")
	assert.True(t, statuses["mocked"].Healthy)
	assert.Equal(t, "fine", statuses["mocked"].Message)
	m.AssertCalled(t, "HealthCheck", mock.Anything)
}
