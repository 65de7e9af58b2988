package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LeadingComment returns the documentation-shaped comment immediately
// preceding n, with only whitespace between comment end and node start.
// Returns "" when no such comment exists.
func (s *Source) LeadingComment(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	prev := n.PrevSibling()
	if prev != nil && prev.Type() == KindComment {
		if text := s.Text(prev); isDocShaped(text) && s.onlyWhitespaceBetween(prev, n) {
			return text
		}
	}
	// An exported declaration carries its comment on the export statement.
	if parent := n.Parent(); parent != nil && parent.Type() == KindExportStatement {
		return s.LeadingComment(parent)
	}
	return ""
}

// isDocShaped reports whether text looks like a documentation comment.
func isDocShaped(text string) bool {
	return strings.HasPrefix(text, "/**")
}

func (s *Source) onlyWhitespaceBetween(a, b *sitter.Node) bool {
	between := s.Content[a.EndByte():b.StartByte()]
	return len(strings.TrimSpace(string(between))) == 0
}

// IsTypeOnlyImport reports whether an import statement is statement-level
// type-only (`import type { X } from "m"`).
func IsTypeOnlyImport(n *sitter.Node) bool {
	if n == nil || n.Type() != KindImportStatement {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == KindImportClause {
			break
		}
		if child.Type() == "type" {
			return true
		}
	}
	return false
}

// IsTypeOnlySpecifier reports whether a single import specifier is type-only
// (`import { type X } from "m"`).
func IsTypeOnlySpecifier(n *sitter.Node) bool {
	if n == nil || n.Type() != KindImportSpecifier {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "type" {
			return true
		}
	}
	return false
}
