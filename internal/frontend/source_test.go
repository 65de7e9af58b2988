package frontend

import (
	"context"
	"errors"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/pkg/schema"
)

func parseSource(t *testing.T, content string) *Source {
	t.Helper()
	src, err := Parse(context.Background(), []byte(content), "test.ts", LangTypeScript)
	require.NoError(t, err)
	t.Cleanup(src.Close)
	return src
}

// firstOfKind finds the first node of the given kind in pre-order.
func firstOfKind(src *Source, kind string) *sitter.Node {
	var found *sitter.Node
	Walk(src.Root(), func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, LangJavaScript, LanguageForPath("a.js"))
	assert.Equal(t, LangJavaScript, LanguageForPath("a.mjs"))
	assert.Equal(t, LangJavaScript, LanguageForPath("a.cjs"))
	assert.Equal(t, LangJavaScript, LanguageForPath("a.jsx"))
	assert.Equal(t, LangTypeScript, LanguageForPath("a.ts"))
	assert.Equal(t, LangTypeScript, LanguageForPath("a.tsx"))
	assert.Equal(t, LangTypeScript, LanguageForPath(""))
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse(context.Background(), []byte{0xff, 0xfe, 0x00}, "bad.ts", LangTypeScript)
	require.Error(t, err)
	var ferr *schema.FlowlensError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, schema.ErrCodeParse, ferr.Code)
}

func TestUnwrap(t *testing.T) {
	src := parseSource(t, "const a = ((x));")
	paren := firstOfKind(src, KindParenthesized)
	require.NotNil(t, paren)

	inner := Unwrap(paren)
	require.NotNil(t, inner)
	assert.Equal(t, KindIdentifier, inner.Type())
	assert.Equal(t, "x", src.Text(inner))
}

func TestUnwrapAwait(t *testing.T) {
	src := parseSource(t, "async function f() { return await (g()); }")
	await := firstOfKind(src, KindAwait)
	require.NotNil(t, await)
	assert.Equal(t, KindCall, Unwrap(await).Type())
}

func TestSyntheticName(t *testing.T) {
	src := parseSource(t, "const a = 1;\nconst b = 2;\n")
	decl := firstOfKind(src, KindVariableDeclarator)
	assert.Equal(t, "run@test.ts:1", src.SyntheticName("run", decl))

	src.Path = ""
	assert.Equal(t, "run@<source>:1", src.SyntheticName("run", decl))
}

func TestSpan(t *testing.T) {
	src := parseSource(t, "const a = 1;\nconst b = 2;\n")
	var second *sitter.Node
	Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() == KindVariableDeclarator && src.Text(n.ChildByFieldName("name")) == "b" {
			second = n
		}
		return true
	})
	require.NotNil(t, second)

	span := src.Span(second)
	assert.Equal(t, 2, span.StartLine)
	assert.Equal(t, 6, span.StartCol)
	assert.Equal(t, 2, span.EndLine)
	assert.Nil(t, src.Span(nil))
}

func TestStringValue(t *testing.T) {
	src := parseSource(t, `const a = "hello"; const b = ""; const c = 42;`)

	strs := make([]*sitter.Node, 0, 2)
	Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() == KindString {
			strs = append(strs, n)
		}
		return true
	})
	require.Len(t, strs, 2)

	v, ok := src.StringValue(strs[0])
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = src.StringValue(strs[1])
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = src.StringValue(firstOfKind(src, KindNumber))
	assert.False(t, ok)
}

func TestFunctionParameters(t *testing.T) {
	src := parseSource(t, "const f = async (step, { billing, mailer }) => {};")
	fn := firstOfKind(src, KindArrowFunction)
	require.NotNil(t, fn)

	params := FunctionParameters(fn)
	require.Len(t, params, 2)
	assert.Equal(t, KindIdentifier, params[0].Type())
	assert.Equal(t, "step", src.Text(params[0]))
	assert.Equal(t, KindObjectPattern, params[1].Type())
}

func TestFunctionParametersBareArrow(t *testing.T) {
	src := parseSource(t, "const f = step => step;")
	fn := firstOfKind(src, KindArrowFunction)
	require.NotNil(t, fn)

	params := FunctionParameters(fn)
	require.Len(t, params, 1)
	assert.Equal(t, "step", src.Text(params[0]))
}
