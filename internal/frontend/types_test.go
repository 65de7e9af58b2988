package frontend

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultErrorTags(t *testing.T) {
	cases := []struct {
		name     string
		typeText string
		want     []string
	}{
		{"single quoted union", "Result<Receipt, 'declined' | 'expired'>", []string{"declined", "expired"}},
		{"double quoted member", `Result<Receipt, "declined">`, []string{"declined"}},
		{"embedded in function type", "(order: Order) => Promise<Result<Receipt, 'declined'>>", []string{"declined"}},
		{"nested generic first argument", "Result<Map<string, number>, 'oops'>", []string{"oops"}},
		{"non-literal member disqualifies", "Result<Receipt, DeclineError>", nil},
		{"mixed union disqualifies", "Result<Receipt, 'declined' | DeclineError>", nil},
		{"longer identifier is not Result", "MyResult<Receipt, 'x'>", nil},
		{"wrong arity", "Result<Receipt>", nil},
		{"unbalanced angle", "Result<Receipt, 'x'", nil},
		{"no result at all", "Billing", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResultErrorTags(tc.typeText))
		})
	}
}

func TestDeclaredTypeText(t *testing.T) {
	src := parseSource(t, "const billing: Billing = makeBilling();\nconst plain = 1;")

	var billing, plain *sitter.Node
	Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() == KindVariableDeclarator {
			switch src.Text(n.ChildByFieldName("name")) {
			case "billing":
				billing = n
			case "plain":
				plain = n
			}
		}
		return true
	})
	require.NotNil(t, billing)
	require.NotNil(t, plain)

	assert.Equal(t, "Billing", src.DeclaredTypeText(billing))
	assert.Equal(t, TypeUnknown, src.DeclaredTypeText(plain))
	assert.Equal(t, TypeUnknown, src.DeclaredTypeText(nil))
}

func TestDeclaredTypeTextParameter(t *testing.T) {
	src := parseSource(t, "function f(order: Order) {}")
	fn := firstOfKind(src, KindFunctionDecl)
	require.NotNil(t, fn)

	params := FunctionParameters(fn)
	require.Len(t, params, 1)
	assert.Equal(t, "Order", src.DeclaredTypeText(params[0]))
}

func TestReturnTypeText(t *testing.T) {
	src := parseSource(t, "const f = (): Promise<void> => {};\nconst g = () => {};")

	arrows := make([]*sitter.Node, 0, 2)
	Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() == KindArrowFunction {
			arrows = append(arrows, n)
		}
		return true
	})
	require.Len(t, arrows, 2)

	assert.Equal(t, "Promise<void>", src.ReturnTypeText(arrows[0]))
	assert.Equal(t, TypeUnknown, src.ReturnTypeText(arrows[1]))
}

func TestInferTypeTextLiterals(t *testing.T) {
	src := parseSource(t, `const vals = ["s", 1, true, null, {}, [], () => {}];`)
	arr := firstOfKind(src, KindArray)
	require.NotNil(t, arr)

	elems := NamedChildren(arr)
	require.Len(t, elems, 7)
	assert.Equal(t, "string", src.InferTypeText(elems[0]))
	assert.Equal(t, "number", src.InferTypeText(elems[1]))
	assert.Equal(t, "boolean", src.InferTypeText(elems[2]))
	assert.Equal(t, "null", src.InferTypeText(elems[3]))
	assert.Equal(t, "object", src.InferTypeText(elems[4]))
	assert.Equal(t, "array", src.InferTypeText(elems[5]))
	assert.Equal(t, "function", src.InferTypeText(elems[6]))
}

func TestInferTypeTextAsExpression(t *testing.T) {
	src := parseSource(t, "const gw = make() as PaymentGateway;")
	as := firstOfKind(src, KindAsExpression)
	require.NotNil(t, as)
	assert.Equal(t, "PaymentGateway", src.InferTypeText(as))
}

func TestInferTypeTextIdentifierLookup(t *testing.T) {
	src := parseSource(t, `
		const billing: Billing<Result<Receipt, 'declined'>> = makeBilling();
		const count = 5;
		const use = [billing, count, unknownRef];
	`)
	arr := firstOfKind(src, KindArray)
	require.NotNil(t, arr)

	elems := NamedChildren(arr)
	require.Len(t, elems, 3)
	assert.Equal(t, "Billing<Result<Receipt, 'declined'>>", src.InferTypeText(elems[0]))
	assert.Equal(t, "number", src.InferTypeText(elems[1]))
	assert.Equal(t, TypeUnknown, src.InferTypeText(elems[2]))
}
