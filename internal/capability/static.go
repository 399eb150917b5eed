package capability

import "context"

// StaticIntegration is an Integration assembled from plain values. It backs
// the built-in integrations and is convenient in tests.
type StaticIntegration struct {
	IntegrationID string
	Configured    bool
	ActionTable   map[string]ActionHandler
	HealthFunc    func(ctx context.Context) HealthStatus
}

// NewStaticIntegration returns a configured integration exposing actions.
func NewStaticIntegration(id string, actions map[string]ActionHandler) *StaticIntegration {
	return &StaticIntegration{
		IntegrationID: id,
		Configured:    true,
		ActionTable:   actions,
	}
}

func (s *StaticIntegration) ID() string { return s.IntegrationID }

func (s *StaticIntegration) IsConfigured() bool { return s.Configured }

func (s *StaticIntegration) Actions() map[string]ActionHandler { return s.ActionTable }

func (s *StaticIntegration) HealthCheck(ctx context.Context) HealthStatus {
	if s.HealthFunc != nil {
		return s.HealthFunc(ctx)
	}
	return HealthStatus{Healthy: s.Configured, Message: "ok"}
}
