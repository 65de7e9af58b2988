package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/pkg/schema"
)

func scopeFixture() *schema.AnalysisResult {
	return &schema.AnalysisResult{
		Root: &schema.WorkflowNode{
			Name:        "checkout",
			Kind:        schema.EntryWorkflow,
			Description: "charges an order",
			Strict:      true,
			ErrorTags:   []string{"declined"},
			Dependencies: []schema.Dependency{
				{Name: "billing", TypeText: "Billing", ErrorTags: []string{"declined"}},
			},
			Children: []*schema.FlowNode{
				{
					Kind: schema.FlowStep,
					Step: &schema.StepDetail{
						ID:               "charge",
						Callee:           "billing.charge",
						DependencySource: "billing",
						Retry:            &schema.RetryPolicy{Attempts: 3},
					},
				},
				{
					Kind: schema.FlowParallel,
					Children: []*schema.FlowNode{
						{Kind: schema.FlowStep, Step: &schema.StepDetail{ID: "a"}},
						{Kind: schema.FlowStep, Step: &schema.StepDetail{ID: "b"}},
					},
				},
				{
					Kind: schema.FlowConditional,
					Conditional: &schema.ConditionalDetail{
						Condition:  "order.express",
						Consequent: []*schema.FlowNode{{Kind: schema.FlowStep, Step: &schema.StepDetail{ID: "rush"}}},
					},
				},
				{
					Kind: schema.FlowSagaStep,
					Saga: &schema.SagaDetail{ID: "reserve", Callee: "inventory.hold", Compensated: true},
				},
			},
		},
		Metadata: schema.Metadata{
			Source: "checkout.ts",
			Stats:  schema.Stats{TotalSteps: 4, ParallelCount: 1, ConditionalCount: 1, SagaStepCount: 1, MaxDepth: 2},
			Warnings: []schema.Diagnostic{
				{Code: schema.DiagMissingStepID, Message: "step call without an identifier"},
			},
		},
	}
}

func TestBuildScope(t *testing.T) {
	scope := BuildScope(scopeFixture())

	workflow := scope["workflow"].(map[string]any)
	assert.Equal(t, "checkout", workflow["name"])
	assert.Equal(t, "workflow", workflow["kind"])
	assert.Equal(t, "checkout.ts", workflow["source"])
	assert.Equal(t, true, workflow["strict"])
	assert.Equal(t, []any{"declined"}, workflow["error_tags"])

	stats := scope["stats"].(map[string]any)
	assert.Equal(t, 4, stats["total_steps"])
	assert.Equal(t, 2, stats["max_depth"])

	deps := scope["deps"].([]any)
	require.Len(t, deps, 1)
	assert.Equal(t, "billing", deps[0].(map[string]any)["name"])
	assert.Equal(t, "Billing", deps[0].(map[string]any)["type"])

	warnings := scope["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, schema.DiagMissingStepID, warnings[0].(map[string]any)["code"])
}

func TestBuildScopeCollectsNestedSteps(t *testing.T) {
	scope := BuildScope(scopeFixture())

	steps := scope["steps"].([]any)
	require.Len(t, steps, 5)

	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.(map[string]any)["id"].(string))
	}
	assert.Equal(t, []string{"charge", "a", "b", "rush", "reserve"}, ids)

	charge := steps[0].(map[string]any)
	assert.Equal(t, "billing", charge["dependency"])
	assert.Equal(t, 3, charge["retry_attempts"])

	reserve := steps[4].(map[string]any)
	assert.Equal(t, "sagaStep", reserve["kind"])
	assert.Equal(t, true, reserve["compensated"])
}

func TestBuildScopeNil(t *testing.T) {
	assert.Empty(t, BuildScope(nil))
	assert.Empty(t, BuildScope(&schema.AnalysisResult{}))
}
