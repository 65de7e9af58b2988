package expressions

import "github.com/rendis/flowlens/pkg/schema"

// BuildScope flattens an analysis result into the evaluation environment
// shared by all engines. Five top-level variables:
//   - workflow: map of name, kind, source, description, strict
//   - stats:    map of the construct counts and max depth
//   - steps:    one summary map per step/saga-step node, in order
//   - deps:     declared dependencies
//   - warnings: diagnostics
func BuildScope(result *schema.AnalysisResult) map[string]any {
	if result == nil || result.Root == nil {
		return map[string]any{}
	}
	root := result.Root
	s := result.Metadata.Stats

	scope := map[string]any{
		"workflow": map[string]any{
			"name":        root.Name,
			"kind":        string(root.Kind),
			"source":      result.Metadata.Source,
			"description": root.Description,
			"strict":      root.Strict,
			"error_tags":  toAnyList(root.ErrorTags),
		},
		"stats": map[string]any{
			"total_steps":        s.TotalSteps,
			"parallel_count":     s.ParallelCount,
			"race_count":         s.RaceCount,
			"conditional_count":  s.ConditionalCount,
			"switch_count":       s.SwitchCount,
			"loop_count":         s.LoopCount,
			"stream_count":       s.StreamCount,
			"saga_step_count":    s.SagaStepCount,
			"workflow_ref_count": s.WorkflowRefCount,
			"max_depth":          s.MaxDepth,
		},
	}

	deps := make([]any, 0, len(root.Dependencies))
	for _, d := range root.Dependencies {
		deps = append(deps, map[string]any{
			"name":       d.Name,
			"type":       d.TypeText,
			"error_tags": toAnyList(d.ErrorTags),
		})
	}
	scope["deps"] = deps

	var steps []any
	collectSteps(root.Children, &steps)
	scope["steps"] = steps

	warnings := make([]any, 0, len(result.Metadata.Warnings))
	for _, w := range result.Metadata.Warnings {
		warnings = append(warnings, map[string]any{"code": w.Code, "message": w.Message})
	}
	scope["warnings"] = warnings

	return scope
}

// collectSteps gathers step and saga-step summaries in document order.
func collectSteps(nodes []*schema.FlowNode, out *[]any) {
	for _, n := range nodes {
		if n.Step != nil {
			entry := map[string]any{
				"id":     n.Step.ID,
				"callee": n.Step.Callee,
				"kind":   string(n.Kind),
			}
			if n.Step.DependencySource != "" {
				entry["dependency"] = n.Step.DependencySource
			}
			if n.Step.Retry != nil {
				entry["retry_attempts"] = n.Step.Retry.Attempts
			}
			if n.Step.Timeout != nil {
				entry["timeout_ms"] = n.Step.Timeout.Ms
			}
			*out = append(*out, entry)
		}
		if n.Saga != nil {
			*out = append(*out, map[string]any{
				"id":          n.Saga.ID,
				"callee":      n.Saga.Callee,
				"kind":        string(n.Kind),
				"compensated": n.Saga.Compensated,
				"try":         n.Saga.Try,
			})
		}
		collectSteps(n.Children, out)
		if n.Conditional != nil {
			collectSteps(n.Conditional.Consequent, out)
			collectSteps(n.Conditional.Alternate, out)
		}
		if n.Switch != nil {
			for _, c := range n.Switch.Cases {
				collectSteps(c.Body, out)
			}
		}
	}
}

func toAnyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
