package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
)

// invocation is one resolved call of a workflow binding. callback is nil when
// the call carries no extractable function literal.
type invocation struct {
	call     *sitter.Node
	callback *sitter.Node
}

// invocationResolver matches builder entry points to the call sites that
// invoke the produced workflow.
type invocationResolver struct {
	src    *frontend.Source
	scopes *scopeIndex
}

// find returns the invocation sites of a builder entry point in document
// order. Zero results is a valid outcome, not an error.
func (ir *invocationResolver) find(ep *entryPoint) []invocation {
	if ep.binding != "" {
		decl := ir.bindingOf(ep.bindingIdent)
		if found := ir.directSearch(ep.binding, decl, ep.call); len(found) > 0 {
			return found
		}
		// A bound builder with no direct invocation stays empty; the
		// fallbacks exist for unbound and indirect forms only.
		if decl != nil {
			return nil
		}
	}
	if found := ir.traceFactory(ep); len(found) > 0 {
		return found
	}
	if ep.hasDeps && len(ep.depNames) > 0 {
		return ir.signatureSearch(ep.depNames)
	}
	return nil
}

// bindingOf finds the scope binding declared by ident.
func (ir *invocationResolver) bindingOf(ident *sitter.Node) *binding {
	if ident == nil {
		return nil
	}
	for _, b := range ir.scopes.bindings[ir.src.Text(ident)] {
		if frontend.SameNode(b.ident, ident) {
			return b
		}
	}
	return nil
}

// directSearch finds calls whose unwrapped callee (parentheses and leading
// await stripped, in any combination) is an identifier equal to name and
// resolves to exactly decl. With a nil decl, any unshadowed reference matches.
func (ir *invocationResolver) directSearch(name string, decl *binding, skip *sitter.Node) []invocation {
	var found []invocation
	frontend.Walk(ir.src.Root(), func(n *sitter.Node) bool {
		if n.Type() != frontend.KindCall || frontend.SameNode(n, skip) {
			return true
		}
		callee := frontend.Unwrap(n.ChildByFieldName("function"))
		if callee == nil || callee.Type() != frontend.KindIdentifier || ir.src.Text(callee) != name {
			return true
		}
		governing := ir.scopes.declarationFor(name, callee)
		if decl != nil {
			if governing == nil || !frontend.SameNode(governing.ident, decl.ident) {
				return true
			}
		} else if governing != nil {
			// No concrete declaration exists; any local binding of the
			// name shadows the candidate.
			return true
		}
		found = append(found, invocation{call: n, callback: firstFunctionArgument(n)})
		return true
	})
	return found
}

// traceFactory implements fallback A: when the builder call has no direct
// binding because it is returned from a function, find the nearest enclosing
// named function that returns it, locate that function's call sites by
// declaration identity, and treat their result variables as bindings.
func (ir *invocationResolver) traceFactory(ep *entryPoint) []invocation {
	factory, factoryIdent := enclosingReturningFunction(ir.src, ep.call)
	if factory == nil {
		return nil
	}
	factoryDecl := ir.bindingOf(factoryIdent)

	var found []invocation
	name := ir.src.Text(factoryIdent)
	for _, call := range ir.callsTo(name, factoryDecl) {
		resultName, resultIdent := bindingFor(ir.src, call)
		if resultName == "" || resultIdent == nil {
			continue
		}
		resultDecl := ir.bindingOf(resultIdent)
		found = append(found, ir.directSearch(resultName, resultDecl, ep.call)...)
	}
	return found
}

// callsTo lists call expressions whose callee resolves to decl.
func (ir *invocationResolver) callsTo(name string, decl *binding) []*sitter.Node {
	var calls []*sitter.Node
	frontend.Walk(ir.src.Root(), func(n *sitter.Node) bool {
		if n.Type() != frontend.KindCall {
			return true
		}
		callee := frontend.Unwrap(n.ChildByFieldName("function"))
		if callee == nil || callee.Type() != frontend.KindIdentifier || ir.src.Text(callee) != name {
			return true
		}
		if decl != nil {
			governing := ir.scopes.declarationFor(name, callee)
			if governing == nil || !frontend.SameNode(governing.ident, decl.ident) {
				return true
			}
		}
		calls = append(calls, n)
		return true
	})
	return calls
}

// signatureSearch implements fallback B: dependency-signature matching. It
// accepts only callees that resolve to a parameter, never a local function
// or variable, and whose callback's second parameter destructures a superset
// of the dependency names.
func (ir *invocationResolver) signatureSearch(depNames []string) []invocation {
	var found []invocation
	frontend.Walk(ir.src.Root(), func(n *sitter.Node) bool {
		if n.Type() != frontend.KindCall {
			return true
		}
		callee := frontend.Unwrap(n.ChildByFieldName("function"))
		if callee == nil || callee.Type() != frontend.KindIdentifier {
			return true
		}
		governing := ir.scopes.declarationFor(ir.src.Text(callee), callee)
		if governing == nil || governing.kind != bindParam {
			return true
		}
		callback := firstFunctionArgument(n)
		if callback == nil {
			return true
		}
		params := frontend.FunctionParameters(callback)
		if len(params) < 2 || params[1].Type() != frontend.KindObjectPattern {
			return true
		}
		destructured := make(map[string]bool)
		for _, ident := range patternIdentifiers(params[1]) {
			destructured[ir.src.Text(ident)] = true
		}
		for _, dep := range depNames {
			if !destructured[dep] {
				return true
			}
		}
		found = append(found, invocation{call: n, callback: callback})
		return true
	})
	return found
}

// firstFunctionArgument returns the first argument when it is a function
// literal, nil otherwise.
func firstFunctionArgument(call *sitter.Node) *sitter.Node {
	args := callArguments(call)
	if len(args) == 0 || !frontend.IsFunctionLiteral(args[0]) {
		return nil
	}
	return args[0]
}

// enclosingReturningFunction finds the nearest enclosing named function from
// which the given expression is returned: either through a return statement
// or as the expression body of a named arrow function.
func enclosingReturningFunction(src *frontend.Source, expr *sitter.Node) (*sitter.Node, *sitter.Node) {
	returned := false
	for p := expr.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case frontend.KindReturn:
			returned = true
		case frontend.KindFunctionDecl, frontend.KindGeneratorDecl:
			if !returned {
				return nil, nil
			}
			if name := p.ChildByFieldName("name"); name != nil {
				return p, name
			}
			return nil, nil
		case frontend.KindArrowFunction, "function", "function_expression":
			body := frontend.FunctionBody(p)
			expressionBody := body != nil && body.Type() != frontend.KindStatementBlock
			if !returned && !expressionBody {
				return nil, nil
			}
			// A function expression is named through its declarator.
			if decl := p.Parent(); decl != nil && decl.Type() == frontend.KindVariableDeclarator {
				if name := decl.ChildByFieldName("name"); name != nil && name.Type() == frontend.KindIdentifier {
					return p, name
				}
			}
			return nil, nil
		}
	}
	return nil, nil
}
