package frontend

import sitter "github.com/smacker/go-tree-sitter"

// Node kind vocabulary. The walker and resolvers dispatch on these names;
// where the javascript and typescript grammars disagree the predicates below
// accept both spellings.
const (
	KindProgram             = "program"
	KindExpressionStatement = "expression_statement"
	KindCall                = "call_expression"
	KindNew                 = "new_expression"
	KindMember              = "member_expression"
	KindArguments           = "arguments"
	KindIdentifier          = "identifier"
	KindPropertyIdentifier  = "property_identifier"
	KindString              = "string"
	KindStringFragment      = "string_fragment"
	KindTemplateString      = "template_string"
	KindNumber              = "number"
	KindObject              = "object"
	KindPair                = "pair"
	KindArray               = "array"
	KindArrowFunction       = "arrow_function"
	KindFunctionDecl        = "function_declaration"
	KindGeneratorDecl       = "generator_function_declaration"
	KindStatementBlock      = "statement_block"
	KindVariableDeclaration = "variable_declaration" // var
	KindLexicalDeclaration  = "lexical_declaration"  // let / const
	KindVariableDeclarator  = "variable_declarator"
	KindFormalParameters    = "formal_parameters"
	KindObjectPattern       = "object_pattern"
	KindArrayPattern        = "array_pattern"
	KindPairPattern         = "pair_pattern"
	KindShorthandProperty   = "shorthand_property_identifier"
	KindShorthandPattern    = "shorthand_property_identifier_pattern"
	KindRestPattern         = "rest_pattern"
	KindAssignmentPattern   = "assignment_pattern"
	KindSpreadElement       = "spread_element"
	KindAwait               = "await_expression"
	KindParenthesized       = "parenthesized_expression"
	KindTernary             = "ternary_expression"
	KindAssignment          = "assignment_expression"
	KindIf                  = "if_statement"
	KindElseClause          = "else_clause"
	KindSwitch              = "switch_statement"
	KindSwitchBody          = "switch_body"
	KindSwitchCase          = "switch_case"
	KindSwitchDefault       = "switch_default"
	KindFor                 = "for_statement"
	KindForIn               = "for_in_statement" // covers for-in and for-of
	KindWhile               = "while_statement"
	KindDoWhile             = "do_statement"
	KindTry                 = "try_statement"
	KindCatchClause         = "catch_clause"
	KindFinallyClause       = "finally_clause"
	KindReturn              = "return_statement"
	KindImportStatement     = "import_statement"
	KindImportClause        = "import_clause"
	KindNamespaceImport     = "namespace_import"
	KindNamedImports        = "named_imports"
	KindImportSpecifier     = "import_specifier"
	KindExportStatement     = "export_statement"
	KindComment             = "comment"

	// TypeScript-only kinds.
	KindTypeAnnotation    = "type_annotation"
	KindAsExpression      = "as_expression"
	KindRequiredParameter = "required_parameter"
	KindOptionalParameter = "optional_parameter"
)

// IsFunctionLike reports whether n is any function literal or declaration.
func IsFunctionLike(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case KindArrowFunction, KindFunctionDecl, KindGeneratorDecl,
		"function", "function_expression",
		"generator_function", "method_definition":
		return true
	}
	return false
}

// IsFunctionLiteral reports whether n is a function usable as an inline
// callback argument (arrow or anonymous function expression).
func IsFunctionLiteral(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case KindArrowFunction, "function", "function_expression", "generator_function":
		return true
	}
	return false
}

// IsStringLiteral reports whether n is a plain string literal (not a template).
func IsStringLiteral(n *sitter.Node) bool {
	return n != nil && n.Type() == KindString
}

// IsObjectLiteral reports whether n is an object literal expression.
func IsObjectLiteral(n *sitter.Node) bool {
	return n != nil && n.Type() == KindObject
}

// IsArrayLiteral reports whether n is an array literal expression.
func IsArrayLiteral(n *sitter.Node) bool {
	return n != nil && n.Type() == KindArray
}

// IsIdentifier reports whether n is a plain identifier.
func IsIdentifier(n *sitter.Node) bool {
	return n != nil && n.Type() == KindIdentifier
}

// IsDeclarationStatement reports whether n declares variables (var/let/const).
func IsDeclarationStatement(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	return n.Type() == KindVariableDeclaration || n.Type() == KindLexicalDeclaration
}

// IsLoopStatement reports whether n is one of the loop statement kinds.
func IsLoopStatement(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case KindFor, KindForIn, KindWhile, KindDoWhile:
		return true
	}
	return false
}

// StringValue returns the unquoted content of a string literal, or "" and
// false when n is not a plain string.
func (s *Source) StringValue(n *sitter.Node) (string, bool) {
	if !IsStringLiteral(n) {
		return "", false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == KindStringFragment {
			return s.Text(child), true
		}
	}
	// Empty string literal has no fragment child.
	text := s.Text(n)
	if len(text) >= 2 {
		return text[1 : len(text)-1], true
	}
	return "", true
}

// EnclosingFunction returns the nearest function-like ancestor of n, or the
// program root when n sits at top level.
func EnclosingFunction(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if IsFunctionLike(p) || p.Type() == KindProgram {
			return p
		}
	}
	return nil
}

// FunctionBody returns the body node of a function-like node: the statement
// block, or the expression body of an arrow function.
func FunctionBody(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return body
	}
	// Fallback for grammars without a body field: last statement_block child.
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if n.Child(i).Type() == KindStatementBlock {
			return n.Child(i)
		}
	}
	return nil
}

// FunctionParameters returns the ordered parameter pattern nodes of a
// function-like node. A bare single-identifier arrow parameter is returned
// as that identifier.
func FunctionParameters(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	if p := n.ChildByFieldName("parameter"); p != nil {
		return []*sitter.Node{p}
	}
	params := n.ChildByFieldName("parameters")
	if params == nil {
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.Child(i).Type() == KindFormalParameters {
				params = n.Child(i)
				break
			}
		}
	}
	if params == nil {
		return nil
	}
	var out []*sitter.Node
	for _, c := range NamedChildren(params) {
		// TypeScript wraps each parameter; unwrap to the pattern.
		if c.Type() == KindRequiredParameter || c.Type() == KindOptionalParameter {
			if pat := c.ChildByFieldName("pattern"); pat != nil {
				out = append(out, pat)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
