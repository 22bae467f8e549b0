package ci

import (
	"fmt"

	"github.com/cuenv/cuenv/pkg/parser"
)

// ValidationError aggregates every structural problem found in an IR.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("ci: invalid IR: %s", e.Errors[0])
	}
	return fmt.Sprintf("ci: invalid IR: %d problems, first: %s", len(e.Errors), e.Errors[0])
}

// Validate checks an IR for structural well-formedness: unique task ids,
// well-formed dependencies, and cache-policy/deployment coherence
// (spec.md §4.9 Validation). Errors are aggregated rather than returned on
// first failure.
func Validate(ir *IR) []string {
	var errs []string

	ids := map[string]struct{}{}
	for _, t := range ir.Tasks {
		if _, dup := ids[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate task id %q", t.ID))
			continue
		}
		ids[t.ID] = struct{}{}
	}

	for _, cron := range ir.Pipeline.Trigger.Scheduled {
		if !parser.IsCronExpression(cron) {
			errs = append(errs, fmt.Sprintf("pipeline %q has a malformed scheduled trigger %q", ir.Pipeline.Name, cron))
		}
	}

	for _, t := range ir.Tasks {
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				errs = append(errs, fmt.Sprintf("task %q depends on unknown id %q", t.ID, dep))
			}
		}
		if t.Deployment && t.CachePolicy != CacheDisabled {
			errs = append(errs, fmt.Sprintf("task %q is a deployment task but has cache_policy %q, want disabled", t.ID, t.CachePolicy))
		}
		if len(t.Command) == 0 {
			errs = append(errs, fmt.Sprintf("task %q has an empty command", t.ID))
		}
	}

	return errs
}
