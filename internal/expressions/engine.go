package expressions

import (
	"context"

	"github.com/rendis/flowlens/pkg/schema"
)

// Engine evaluates query expressions against analyzed workflow results.
// Three implementations: CEL (filter predicates), GoJQ (reshaping), Expr
// (aggregation logic).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// NewEngine returns the engine registered under name: "cel", "expr" or "jq".
func NewEngine(name string) (Engine, error) {
	switch name {
	case "cel":
		return NewCELEngine()
	case "expr":
		return NewExprEngine(), nil
	case "jq":
		return NewGoJQEngine(), nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", name)
}
