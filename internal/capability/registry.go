package capability

import (
	"context"
	"sort"
	"sync"
	"time"

	"opsflow/pkg/logging"
)

// Registry maps integration ids to integrations. It is built once at startup
// and shared read-mostly by every workflow run.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

// NewRegistry creates a new, empty integration registry
func NewRegistry() *Registry {
	return &Registry{
		integrations: make(map[string]Integration),
	}
}

// Register adds an integration keyed by its own ID, replacing any previous
// entry with the same id.
func (r *Registry) Register(integration Integration) {
	r.mu.Lock()
	id := integration.ID()
	_, replaced := r.integrations[id]
	r.integrations[id] = integration
	r.mu.Unlock()

	if replaced {
		logging.Warn("Registry", "Replaced integration %s", id)
	} else {
		logging.Info("Registry", "Registered integration %s (configured: %t, actions: %d)",
			id, integration.IsConfigured(), len(integration.Actions()))
	}
}

// Get retrieves an integration by ID
func (r *Registry) Get(id string) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integration, exists := r.integrations[id]
	return integration, exists
}

// Lookup retrieves an integration or returns ErrIntegrationNotFound.
func (r *Registry) Lookup(id string) (Integration, error) {
	integration, ok := r.Get(id)
	if !ok {
		return nil, ErrIntegrationNotFound
	}
	return integration, nil
}

// List returns all registered integrations sorted by id
func (r *Registry) List() []Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Integration, 0, len(r.integrations))
	for _, integration := range r.integrations {
		result = append(result, integration)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// IDs returns the sorted ids of all registered integrations
func (r *Registry) IDs() []string {
	integrations := r.List()
	ids := make([]string, len(integrations))
	for i, integration := range integrations {
		ids[i] = integration.ID()
	}
	return ids
}

// Health queries every integration live, in parallel. Nothing is cached.
// When an integration leaves LatencyMs unset the measured call time is used.
func (r *Registry) Health(ctx context.Context) map[string]HealthStatus {
	integrations := r.List()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthStatus, len(integrations))
	)

	for _, integration := range integrations {
		wg.Add(1)
		go func(integration Integration) {
			defer wg.Done()
			status := checkHealth(ctx, integration)
			mu.Lock()
			results[integration.ID()] = status
			mu.Unlock()
		}(integration)
	}
	wg.Wait()

	return results
}

func checkHealth(ctx context.Context, integration Integration) (status HealthStatus) {
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			logging.Error("Registry", nil, "Health check for %s panicked: %v", integration.ID(), recovered)
			status = HealthStatus{Healthy: false, Message: "health check panicked"}
		}
		if status.LatencyMs == 0 {
			status.LatencyMs = time.Since(start).Milliseconds()
		}
	}()

	if !integration.IsConfigured() {
		return HealthStatus{Healthy: false, Message: "not configured"}
	}
	return integration.HealthCheck(ctx)
}
