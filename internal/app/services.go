package app

import (
	"context"
	"fmt"
	"strings"

	"opsflow/internal/capability"
	"opsflow/internal/config"
	"opsflow/internal/core"
	"opsflow/internal/github"
	"opsflow/internal/history"
	"opsflow/internal/kube"
	"opsflow/internal/workflow"
	"opsflow/pkg/logging"
)

// Services holds all the initialized engine components
type Services struct {
	Registry *capability.Registry
	Executor *workflow.Executor
	Storage  *workflow.WorkflowStorage
	History  history.Store
	Manager  *workflow.WorkflowManager
}

// InitializeServices creates the registry, executor, workflow storage and
// history store and binds them in a workflow manager.
func InitializeServices(ctx context.Context, cfg *config.OpsflowConfig) (*Services, error) {
	registry := NewRegistry(cfg.Integrations)

	opts := []workflow.Option{
		workflow.WithWorkerPoolSize(cfg.Engine.WorkerPoolSize),
		workflow.WithBackoffBase(cfg.Engine.BackoffBase),
		workflow.WithRetryClassifier(workflow.SkipRetryOn(cfg.Engine.NoRetryOn...)),
	}
	if cfg.Engine.QueueSize > 0 {
		opts = append(opts, workflow.WithQueueSize(cfg.Engine.QueueSize))
	}
	executor := workflow.NewExecutor(registry, opts...)

	storage, err := workflow.NewWorkflowStorage(cfg.WorkflowsDir)
	if err != nil {
		executor.Close()
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}
	for _, loadErr := range storage.LoadErrors() {
		logging.Warn("Bootstrap", "Skipped workflow definition: %v", loadErr)
	}

	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		executor.Close()
		return nil, err
	}

	return &Services{
		Registry: registry,
		Executor: executor,
		Storage:  storage,
		History:  store,
		Manager:  workflow.NewWorkflowManager(storage, executor, store),
	}, nil
}

// NewRegistry registers the built-in integrations. An integration that
// cannot be set up is registered unconfigured so steps targeting it fail
// with a clear message instead of aborting startup.
func NewRegistry(cfg config.IntegrationsConfig) *capability.Registry {
	registry := capability.NewRegistry()
	registry.Register(core.New())
	registry.Register(github.New(cfg.GitHub))

	kubeIntegration, err := kube.NewFromConfig(cfg.Kubernetes)
	if err != nil {
		logging.Warn("Bootstrap", "Kubernetes integration unavailable: %v", err)
		kubeIntegration = kube.New(nil, cfg.Kubernetes.Namespace)
	}
	registry.Register(kubeIntegration)

	logging.Debug("Bootstrap", "Integrations: %s", strings.Join(registry.IDs(), ", "))
	return registry
}

// Close stops the manager, which drains the executor and closes history.
func (s *Services) Close() error {
	return s.Manager.Stop()
}
