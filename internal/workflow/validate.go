package workflow

import "fmt"

// Validate reports definition errors: missing ids, empty step lists, steps
// without an integration or action, duplicate step ids and negative retry
// counts. The executor does not call it; a run of an invalid definition
// surfaces the problems as step failures instead.
func (w Workflow) Validate() error {
	var errs ValidationErrors

	if w.ID == "" {
		errs.add("id", "workflow id is required")
	}
	if len(w.Steps) == 0 {
		errs.add("steps", "workflow must have at least one step")
	}

	seen := make(map[string]int, len(w.Steps))
	for i, step := range w.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.ID == "" {
			errs.add(field+".id", "step id is required")
		} else if first, dup := seen[step.ID]; dup {
			errs.add(field+".id", "duplicate step id %q (first used by steps[%d])", step.ID, first)
		} else {
			seen[step.ID] = i
		}
		if step.IntegrationID == "" {
			errs.add(field+".integrationId", "integration id is required")
		}
		if step.Action == "" {
			errs.add(field+".action", "action is required")
		}
		if step.MaxRetries < 0 {
			errs.add(field+".maxRetries", "must be >= 0, got %d", step.MaxRetries)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
