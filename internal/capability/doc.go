// Package capability defines the contract between the workflow engine and the
// external systems it drives.
//
// # Overview
//
// An Integration wraps one external collaborator (GitHub, a Kubernetes
// cluster, ...) and exposes a static table of named actions. The engine never
// discovers actions by reflection: each integration returns its table from
// Actions(), keyed by the action name used in workflow steps.
//
// # Registry
//
// The Registry maps integration ids to integrations. It is populated once at
// startup and then read concurrently by every workflow run:
//
//	registry := capability.NewRegistry()
//	registry.Register(github.New(cfg.Integrations.GitHub))
//	registry.Register(kubernetes.New(clientset, "default"))
//
//	statuses := registry.Health(ctx)
//
// Health is computed live on every call. Unconfigured integrations report
// unhealthy without being checked.
//
// # Actions
//
// An ActionHandler receives the resolved step parameters as Params, which
// offers coercing accessors:
//
//	func createIssue(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
//	    title, err := p.RequiredString("title")
//	    if err != nil {
//	        return capability.IntegrationResult{}, err
//	    }
//	    ...
//	    return capability.Success("Issue created", map[string]interface{}{"number": n}), nil
//	}
//
// Returning an error is reported to the workflow as a failed step carrying the
// error message.
package capability
