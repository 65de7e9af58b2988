package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
	"github.com/rendis/flowlens/pkg/schema"
)

// builderOptions is the extracted trailing options object of an entry point.
type builderOptions struct {
	description    string
	notes          string
	strict         bool
	declaredErrors []string
}

// entryPoint is one discovered workflow entry point, before invocation
// resolution and body walking.
type entryPoint struct {
	kind   schema.EntryPointKind
	export string
	call   *sitter.Node

	binding      string       // resolved binding name, "" when anonymous
	bindingIdent *sitter.Node // declarator identifier, nil without a concrete declaration
	workflowName string       // first-argument name literal of builder forms

	deps     []schema.Dependency
	depNames []string
	hasDeps  bool

	options  *builderOptions
	callback *sitter.Node // inline callback of single-shot forms
}

// discoverEntryPoints finds every recognized builder/runner call in document
// order. filter narrows discovery to one family; "" keeps all four.
func discoverEntryPoints(src *frontend.Source, scopes *scopeIndex, imports *importResolver, lib Library, filter schema.EntryPointKind) []*entryPoint {
	var found []*entryPoint
	frontend.Walk(src.Root(), func(n *sitter.Node) bool {
		if n.Type() != frontend.KindCall {
			return true
		}
		callee := frontend.Unwrap(n.ChildByFieldName("function"))
		export, ok := imports.resolveExport(callee)
		if !ok {
			return true
		}
		kind, ok := lib.Builders[export]
		if !ok {
			return true
		}
		if filter != "" && kind != filter {
			return true
		}
		if ep := extractEntryPoint(src, n, kind, export); ep != nil {
			found = append(found, ep)
		}
		return true
	})
	return found
}

func extractEntryPoint(src *frontend.Source, call *sitter.Node, kind schema.EntryPointKind, export string) *entryPoint {
	ep := &entryPoint{kind: kind, export: export, call: call}
	ep.binding, ep.bindingIdent = bindingFor(src, call)

	args := callArguments(call)
	if isBuilderKind(kind) {
		extractBuilderArgs(src, ep, args)
		// A saga builder without a dependency declaration is invalid and
		// contributes nothing, rather than degrading.
		if kind == schema.EntrySaga && !ep.hasDeps {
			return nil
		}
	} else {
		extractRunnerArgs(src, ep, args)
	}
	return ep
}

// callArguments returns the named argument nodes of a call.
func callArguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for _, c := range frontend.NamedChildren(args) {
		if c.Type() == frontend.KindComment {
			continue
		}
		out = append(out, c)
	}
	return out
}

// extractBuilderArgs handles defineWorkflow/defineSaga(name, deps, options?).
func extractBuilderArgs(src *frontend.Source, ep *entryPoint, args []*sitter.Node) {
	var objects []*sitter.Node
	for _, arg := range args {
		if name, ok := src.StringValue(arg); ok && ep.workflowName == "" {
			ep.workflowName = name
			continue
		}
		if frontend.IsObjectLiteral(arg) {
			objects = append(objects, arg)
		}
	}
	if len(objects) > 0 {
		ep.hasDeps = true
		ep.deps, ep.depNames = parseDependencies(src, objects[0])
	}
	if len(objects) > 1 {
		ep.options = parseOptions(src, objects[1])
	}
}

// extractRunnerArgs handles runWorkflow/runSaga(deps?, callback, options?).
func extractRunnerArgs(src *frontend.Source, ep *entryPoint, args []*sitter.Node) {
	for _, arg := range args {
		switch {
		case frontend.IsFunctionLiteral(arg) && ep.callback == nil:
			ep.callback = arg
		case frontend.IsObjectLiteral(arg) && ep.callback == nil && !ep.hasDeps:
			ep.hasDeps = true
			ep.deps, ep.depNames = parseDependencies(src, arg)
		case frontend.IsObjectLiteral(arg) && ep.callback != nil && ep.options == nil:
			ep.options = parseOptions(src, arg)
		}
	}
}

// bindingFor resolves the binding name of a builder call from its enclosing
// simple declaration or property assignment. Unbound calls report "".
func bindingFor(src *frontend.Source, call *sitter.Node) (string, *sitter.Node) {
	p := call.Parent()
	for p != nil {
		switch p.Type() {
		case frontend.KindParenthesized, frontend.KindAwait:
			p = p.Parent()
			continue
		case frontend.KindVariableDeclarator:
			name := p.ChildByFieldName("name")
			if name != nil && name.Type() == frontend.KindIdentifier {
				return src.Text(name), name
			}
			return "", nil
		case frontend.KindAssignment:
			left := p.ChildByFieldName("left")
			if left == nil {
				return "", nil
			}
			switch left.Type() {
			case frontend.KindIdentifier:
				return src.Text(left), left
			case frontend.KindMember:
				if prop := left.ChildByFieldName("property"); prop != nil {
					return src.Text(prop), nil
				}
			}
			return "", nil
		case frontend.KindPair:
			if key := p.ChildByFieldName("key"); key != nil {
				return src.Text(key), nil
			}
			return "", nil
		}
		return "", nil
	}
	return "", nil
}

// parseDependencies extracts one Dependency per property of the
// dependency-declaration object literal, with best-effort static type text
// and Result<T, E> error-tag inference.
func parseDependencies(src *frontend.Source, obj *sitter.Node) ([]schema.Dependency, []string) {
	var deps []schema.Dependency
	var names []string
	for _, prop := range frontend.NamedChildren(obj) {
		var name string
		var value *sitter.Node
		switch prop.Type() {
		case frontend.KindPair:
			key := prop.ChildByFieldName("key")
			if key == nil {
				continue
			}
			if unquoted, ok := src.StringValue(key); ok {
				name = unquoted
			} else {
				name = src.Text(key)
			}
			value = prop.ChildByFieldName("value")
		case frontend.KindShorthandProperty:
			name = src.Text(prop)
			value = prop
		default:
			continue
		}

		typeText := src.InferTypeText(value)
		deps = append(deps, schema.Dependency{
			Name:      name,
			TypeText:  typeText,
			ErrorTags: frontend.ResultErrorTags(typeText),
		})
		names = append(names, name)
	}
	return deps, names
}

// parseOptions extracts the trailing options object of an entry point.
func parseOptions(src *frontend.Source, obj *sitter.Node) *builderOptions {
	opts := &builderOptions{}
	for _, prop := range frontend.NamedChildren(obj) {
		if prop.Type() != frontend.KindPair {
			continue
		}
		key := prop.ChildByFieldName("key")
		value := prop.ChildByFieldName("value")
		if key == nil || value == nil {
			continue
		}
		switch src.Text(key) {
		case "description":
			if s, ok := src.StringValue(value); ok {
				opts.description = s
			}
		case "notes", "doc":
			if s, ok := src.StringValue(value); ok {
				opts.notes = s
			} else if value.Type() == frontend.KindTemplateString {
				text := src.Text(value)
				if len(text) >= 2 {
					opts.notes = text[1 : len(text)-1]
				}
			}
		case "strict":
			opts.strict = value.Type() == "true"
		case "errors":
			if frontend.IsArrayLiteral(value) {
				for _, el := range frontend.NamedChildren(value) {
					if s, ok := src.StringValue(el); ok {
						opts.declaredErrors = append(opts.declaredErrors, s)
					}
				}
			}
		}
	}
	return opts
}
