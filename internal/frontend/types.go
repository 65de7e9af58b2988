package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// TypeUnknown is the degraded result of every failed type query. Type
// information is best-effort: a miss never aborts an analysis run.
const TypeUnknown = "unknown"

// annotationText returns the text of a type_annotation with the leading
// colon stripped.
func (s *Source) annotationText(annotation *sitter.Node) string {
	text := strings.TrimSpace(s.Text(annotation))
	text = strings.TrimPrefix(text, ":")
	return strings.TrimSpace(text)
}

// DeclaredTypeText returns the annotated type of a declarator or parameter
// node, or TypeUnknown when no annotation exists.
func (s *Source) DeclaredTypeText(n *sitter.Node) string {
	if n == nil {
		return TypeUnknown
	}
	if t := n.ChildByFieldName("type"); t != nil {
		return s.annotationText(t)
	}
	// A parameter pattern may carry its annotation on the wrapping
	// required_parameter / optional_parameter node.
	if p := n.Parent(); p != nil &&
		(p.Type() == KindRequiredParameter || p.Type() == KindOptionalParameter) {
		if t := p.ChildByFieldName("type"); t != nil {
			return s.annotationText(t)
		}
	}
	return TypeUnknown
}

// ReturnTypeText returns the annotated return type of a function-like node,
// or TypeUnknown.
func (s *Source) ReturnTypeText(fn *sitter.Node) string {
	if fn == nil {
		return TypeUnknown
	}
	if t := fn.ChildByFieldName("return_type"); t != nil {
		return s.annotationText(t)
	}
	return TypeUnknown
}

// InferTypeText derives a best-effort static type for an expression:
// literal shapes directly, `as` assertions by their asserted type, and
// identifiers through a same-file declaration lookup. Everything else
// degrades to TypeUnknown.
func (s *Source) InferTypeText(n *sitter.Node) string {
	if n == nil {
		return TypeUnknown
	}
	switch n.Type() {
	case KindString, KindTemplateString:
		return "string"
	case KindNumber:
		return "number"
	case "true", "false":
		return "boolean"
	case "null":
		return "null"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindAsExpression:
		// `expr as T`: the asserted type is the last named child.
		if n.NamedChildCount() >= 2 {
			return strings.TrimSpace(s.Text(n.NamedChild(int(n.NamedChildCount()) - 1)))
		}
	case KindArrowFunction, "function", "function_expression":
		return "function"
	case KindIdentifier:
		if decl := s.findDeclarator(s.Text(n)); decl != nil {
			if t := decl.ChildByFieldName("type"); t != nil {
				return s.annotationText(t)
			}
			if v := decl.ChildByFieldName("value"); v != nil && v.Type() != KindIdentifier {
				return s.InferTypeText(v)
			}
		}
	}
	return TypeUnknown
}

// findDeclarator locates the first variable_declarator in the file whose name
// is exactly name. Same-file constant lookup only; no cross-file resolution.
func (s *Source) findDeclarator(name string) *sitter.Node {
	var found *sitter.Node
	Walk(s.root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == KindVariableDeclarator {
			if nm := n.ChildByFieldName("name"); nm != nil && nm.Type() == KindIdentifier && s.Text(nm) == name {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// ResultErrorTags extracts the string-literal union members of the second
// type argument of a Result<T, E>-shaped type text. The Result may be
// embedded in a larger type (e.g. a function type returning it). Returns nil
// when no such shape with a string-literal-union E exists.
func ResultErrorTags(typeText string) []string {
	idx := indexResult(typeText)
	if idx < 0 {
		return nil
	}
	open := idx + len("Result")
	inner, ok := balancedAngle(typeText[open:])
	if !ok {
		return nil
	}
	args := splitTypeArgs(inner)
	if len(args) != 2 {
		return nil
	}

	var tags []string
	for _, member := range strings.Split(args[1], "|") {
		member = strings.TrimSpace(member)
		if len(member) >= 2 &&
			(member[0] == '\'' || member[0] == '"') &&
			member[len(member)-1] == member[0] {
			tags = append(tags, member[1:len(member)-1])
		} else {
			// Any non-literal member disqualifies the union.
			return nil
		}
	}
	return tags
}

// indexResult finds a `Result<` occurrence that is not a suffix of a longer
// identifier.
func indexResult(s string) int {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], "Result<")
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isIdentRune(rune(s[i-1])) {
			return i
		}
		from = i + 1
	}
	return -1
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// balancedAngle returns the content of a leading <...> group in s.
func balancedAngle(s string) (string, bool) {
	if !strings.HasPrefix(s, "<") {
		return "", false
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

// splitTypeArgs splits generic type arguments on top-level commas.
func splitTypeArgs(s string) []string {
	var args []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}
