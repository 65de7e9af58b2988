package expressions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/pkg/schema"
)

func errCode(t *testing.T, err error) string {
	t.Helper()
	var ferr *schema.FlowlensError
	require.True(t, errors.As(err, &ferr))
	return ferr.Code
}

func TestNewEngine(t *testing.T) {
	for _, name := range []string{"cel", "expr", "jq"} {
		engine, err := NewEngine(name)
		require.NoError(t, err)
		assert.Equal(t, name, engine.Name())
	}

	_, err := NewEngine("lua")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))
}

func TestCELEngineEvaluate(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)
	scope := BuildScope(scopeFixture())

	out, err := engine.Evaluate(context.Background(), "stats.total_steps > 2 && size(warnings) == 1", scope)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = engine.Evaluate(context.Background(), `workflow.name`, scope)
	require.NoError(t, err)
	assert.Equal(t, "checkout", out)
}

func TestCELEngineMissingScopeKeys(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	out, err := engine.Evaluate(context.Background(), "size(steps) == 0", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCELEngineCompileError(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), "stats.total_steps >", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))

	_, err = engine.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))
}

func TestExprEngineEvaluate(t *testing.T) {
	engine := NewExprEngine()
	scope := BuildScope(scopeFixture())

	out, err := engine.Evaluate(context.Background(), "len(steps)", scope)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = engine.Evaluate(context.Background(), `map(deps, .name)`, scope)
	require.NoError(t, err)
	assert.Equal(t, []any{"billing"}, out)
}

func TestExprEngineErrors(t *testing.T) {
	engine := NewExprEngine()

	_, err := engine.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))

	_, err = engine.Evaluate(context.Background(), "1 +", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))
}

func TestGoJQEngineEvaluate(t *testing.T) {
	engine := NewGoJQEngine()
	scope := BuildScope(scopeFixture())

	out, err := engine.Evaluate(context.Background(), ".steps | map(.id)", scope)
	require.NoError(t, err)
	assert.Equal(t, []any{"charge", "a", "b", "rush", "reserve"}, out)

	// Numbers normalize to float64 on the way into jq.
	out, err = engine.Evaluate(context.Background(), ".stats.total_steps", scope)
	require.NoError(t, err)
	assert.Equal(t, float64(4), out)
}

func TestGoJQEngineMultipleOutputs(t *testing.T) {
	engine := NewGoJQEngine()
	scope := BuildScope(scopeFixture())

	out, err := engine.Evaluate(context.Background(), ".deps[].name, .workflow.name", scope)
	require.NoError(t, err)
	assert.Equal(t, []any{"billing", "checkout"}, out)

	out, err = engine.Evaluate(context.Background(), "empty", scope)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQEngineErrors(t *testing.T) {
	engine := NewGoJQEngine()

	_, err := engine.Evaluate(context.Background(), ".steps |", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, errCode(t, err))

	_, err = engine.Evaluate(context.Background(), `error("boom")`, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExpression, errCode(t, err))
}

func TestGoJQEngineBlocksEnvironment(t *testing.T) {
	engine := NewGoJQEngine()

	out, err := engine.Evaluate(context.Background(), "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}
