package frontend

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/rendis/flowlens/pkg/schema"
)

// Language selects the tree-sitter grammar used for parsing.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
)

// LanguageForPath picks a grammar from a file extension.
// TypeScript is the default: its grammar parses plain JavaScript too.
func LanguageForPath(path string) Language {
	switch {
	case strings.HasSuffix(path, ".js"),
		strings.HasSuffix(path, ".mjs"),
		strings.HasSuffix(path, ".cjs"),
		strings.HasSuffix(path, ".jsx"):
		return LangJavaScript
	default:
		return LangTypeScript
	}
}

// Source is a parsed, read-only source file. It owns the tree-sitter tree;
// Close releases it. A Source is safe for concurrent reads after parsing.
type Source struct {
	Path    string
	Content []byte
	Lang    Language

	tree *sitter.Tree
	root *sitter.Node
}

// Parse parses content with the grammar for lang.
func Parse(ctx context.Context, content []byte, path string, lang Language) (*Source, error) {
	if !utf8.Valid(content) {
		return nil, schema.NewError(schema.ErrCodeParse, "source is not valid UTF-8")
	}

	parser := sitter.NewParser()
	switch lang {
	case LangJavaScript:
		parser.SetLanguage(javascript.GetLanguage())
	default:
		parser.SetLanguage(typescript.GetLanguage())
		lang = LangTypeScript
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "tree-sitter parse failed: %s", err.Error()).WithCause(err)
	}

	return &Source{
		Path:    path,
		Content: content,
		Lang:    lang,
		tree:    tree,
		root:    tree.RootNode(),
	}, nil
}

// Close releases the underlying tree.
func (s *Source) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

// Root returns the root node of the parse tree.
func (s *Source) Root() *sitter.Node { return s.root }

// Text returns the source text covered by n, or "" for nil.
func (s *Source) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(s.Content[n.StartByte():n.EndByte()])
}

// Line returns the 1-based start line of n.
func (s *Source) Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// Span returns the source span of n in 1-based lines, 0-based columns.
func (s *Source) Span(n *sitter.Node) *schema.Span {
	if n == nil {
		return nil
	}
	return &schema.Span{
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column),
	}
}

// Children returns all children of n in order, including unnamed tokens.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

// NamedChildren returns the named children of n in order.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// Walk visits every node under root in pre-order. Returning false from fn
// prunes the subtree.
func Walk(root *sitter.Node, fn func(n *sitter.Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		Walk(root.Child(i), fn)
	}
}

// SameNode reports whether a and b denote the same syntax node. Nodes are
// compared by kind and byte range, which is stable within one tree.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Contains reports whether inner lies within outer's byte range.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// Unwrap strips parenthesized and await expressions, returning the innermost
// expression node.
func Unwrap(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case KindParenthesized:
			inner := firstNamedChild(n)
			if inner == nil {
				return n
			}
			n = inner
		case KindAwait:
			inner := firstNamedChild(n)
			if inner == nil {
				return n
			}
			n = inner
		default:
			return n
		}
	}
	return nil
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// SyntheticName builds the "<kind>@<file>:<line>" name used for unnamed
// single-shot runners.
func (s *Source) SyntheticName(kind string, n *sitter.Node) string {
	path := s.Path
	if path == "" {
		path = "<source>"
	}
	return fmt.Sprintf("%s@%s:%d", kind, path, s.Line(n))
}
