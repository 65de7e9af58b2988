package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
)

// bindingKind classifies how a name was introduced.
type bindingKind int

const (
	bindVar bindingKind = iota
	bindLexical
	bindFunction
	bindParam
	bindCatch
)

// binding is one local declaration of a name.
//
// Visibility: a hoisted binding (var, function declaration, parameter, catch
// binding) covers its whole scope node regardless of position; a lexical
// binding covers only sites textually after visibleFrom within its scope.
type binding struct {
	name        string
	kind        bindingKind
	ident       *sitter.Node // the declaring identifier
	declarator  *sitter.Node // enclosing declarator/function/parameter node
	scope       *sitter.Node
	start       uint32 // declaration start, for external-position filtering
	visibleFrom uint32
	hoisted     bool
}

// scopeIndex holds every binding of a source file, grouped by name.
type scopeIndex struct {
	src      *frontend.Source
	bindings map[string][]*binding
}

func newScopeIndex(src *frontend.Source) *scopeIndex {
	sc := &scopeIndex{src: src, bindings: make(map[string][]*binding)}
	sc.collect(src.Root())
	return sc
}

func (sc *scopeIndex) add(b *binding) {
	sc.bindings[b.name] = append(sc.bindings[b.name], b)
}

func (sc *scopeIndex) collect(root *sitter.Node) {
	frontend.Walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case frontend.KindVariableDeclarator:
			parent := n.Parent()
			if parent == nil || !frontend.IsDeclarationStatement(parent) {
				return true
			}
			hoisted := parent.Type() == frontend.KindVariableDeclaration
			kind := bindLexical
			if hoisted {
				kind = bindVar
			}
			scope := sc.scopeFor(n, hoisted)
			for _, ident := range patternIdentifiers(n.ChildByFieldName("name")) {
				sc.add(&binding{
					name:        sc.src.Text(ident),
					kind:        kind,
					ident:       ident,
					declarator:  n,
					scope:       scope,
					start:       parent.StartByte(),
					visibleFrom: n.EndByte(),
					hoisted:     hoisted,
				})
			}

		case frontend.KindForIn:
			// for (const x of xs): the loop binding is not a declarator.
			if !hasDeclarationKeyword(n) {
				return true
			}
			left := n.ChildByFieldName("left")
			hoisted := hasVarKeyword(n)
			scope := n
			if hoisted {
				scope = sc.scopeFor(n, true)
			}
			kind := bindLexical
			if hoisted {
				kind = bindVar
			}
			for _, ident := range patternIdentifiers(left) {
				sc.add(&binding{
					name:        sc.src.Text(ident),
					kind:        kind,
					ident:       ident,
					declarator:  n,
					scope:       scope,
					start:       n.StartByte(),
					visibleFrom: left.EndByte(),
					hoisted:     hoisted,
				})
			}

		case frontend.KindFunctionDecl, frontend.KindGeneratorDecl:
			if name := n.ChildByFieldName("name"); name != nil {
				sc.add(&binding{
					name:        sc.src.Text(name),
					kind:        bindFunction,
					ident:       name,
					declarator:  n,
					scope:       sc.scopeFor(n, true),
					start:       n.StartByte(),
					visibleFrom: n.StartByte(),
					hoisted:     true,
				})
			}

		case frontend.KindCatchClause:
			if param := n.ChildByFieldName("parameter"); param != nil {
				for _, ident := range patternIdentifiers(param) {
					sc.add(&binding{
						name:        sc.src.Text(ident),
						kind:        bindCatch,
						ident:       ident,
						declarator:  n,
						scope:       n,
						start:       n.StartByte(),
						visibleFrom: n.StartByte(),
						hoisted:     true,
					})
				}
			}
		}

		if frontend.IsFunctionLike(n) {
			for _, pattern := range frontend.FunctionParameters(n) {
				for _, ident := range patternIdentifiers(pattern) {
					sc.add(&binding{
						name:        sc.src.Text(ident),
						kind:        bindParam,
						ident:       ident,
						declarator:  n,
						scope:       n,
						start:       n.StartByte(),
						visibleFrom: n.StartByte(),
						hoisted:     true,
					})
				}
			}
		}
		return true
	})
}

// scopeFor returns the visibility scope node of a declaration: the nearest
// enclosing function (or program) for hoisted bindings, the nearest block-like
// ancestor for lexical ones.
func (sc *scopeIndex) scopeFor(n *sitter.Node, hoisted bool) *sitter.Node {
	if hoisted {
		for p := n.Parent(); p != nil; p = p.Parent() {
			if frontend.IsFunctionLike(p) || p.Type() == frontend.KindProgram {
				return p
			}
		}
		return sc.src.Root()
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case frontend.KindStatementBlock, frontend.KindProgram,
			frontend.KindFor, frontend.KindForIn, frontend.KindSwitchBody:
			return p
		}
	}
	return sc.src.Root()
}

// visibleAt reports whether b is in force at site.
func (b *binding) visibleAt(site *sitter.Node) bool {
	if !frontend.Contains(b.scope, site) {
		return false
	}
	return b.hoisted || site.StartByte() >= b.visibleFrom
}

// declarationFor resolves name at site to its governing binding: the visible
// binding with the innermost scope, latest declaration winning ties.
// Returns nil when no local binding governs the site.
func (sc *scopeIndex) declarationFor(name string, site *sitter.Node) *binding {
	var best *binding
	for _, b := range sc.bindings[name] {
		if !b.visibleAt(site) {
			continue
		}
		if best == nil || narrowerScope(b, best) {
			best = b
		}
	}
	return best
}

func narrowerScope(a, b *binding) bool {
	aw := a.scope.EndByte() - a.scope.StartByte()
	bw := b.scope.EndByte() - b.scope.StartByte()
	if aw != bw {
		return aw < bw
	}
	return a.visibleFrom > b.visibleFrom
}

// shadowedAt reports whether name is shadowed at site by any local binding
// declared at or after extPos (the external definition's position).
func (sc *scopeIndex) shadowedAt(name string, site *sitter.Node, extPos uint32) bool {
	for _, b := range sc.bindings[name] {
		if b.start < extPos {
			continue
		}
		if b.visibleAt(site) {
			return true
		}
	}
	return false
}

// patternIdentifiers collects the declared identifier nodes of a binding
// pattern: plain identifiers, nested destructuring with renames and defaults,
// and rest elements.
func patternIdentifiers(pattern *sitter.Node) []*sitter.Node {
	if pattern == nil {
		return nil
	}
	switch pattern.Type() {
	case frontend.KindIdentifier, frontend.KindShorthandPattern, frontend.KindShorthandProperty:
		return []*sitter.Node{pattern}
	case frontend.KindObjectPattern, frontend.KindArrayPattern:
		var out []*sitter.Node
		for _, c := range frontend.NamedChildren(pattern) {
			out = append(out, patternIdentifiers(c)...)
		}
		return out
	case frontend.KindPairPattern:
		// { key: local }: only the value side declares a name.
		return patternIdentifiers(pattern.ChildByFieldName("value"))
	case frontend.KindAssignmentPattern, "object_assignment_pattern":
		return patternIdentifiers(pattern.ChildByFieldName("left"))
	case frontend.KindRestPattern:
		if pattern.NamedChildCount() > 0 {
			return patternIdentifiers(pattern.NamedChild(0))
		}
	case frontend.KindRequiredParameter, frontend.KindOptionalParameter:
		return patternIdentifiers(pattern.ChildByFieldName("pattern"))
	}
	return nil
}

// hasDeclarationKeyword reports whether a for-in/of header declares its
// binding (var/let/const present).
func hasDeclarationKeyword(forIn *sitter.Node) bool {
	for i := 0; i < int(forIn.ChildCount()); i++ {
		switch forIn.Child(i).Type() {
		case "var", "let", "const":
			return true
		}
	}
	return false
}

func hasVarKeyword(forIn *sitter.Node) bool {
	for i := 0; i < int(forIn.ChildCount()); i++ {
		if forIn.Child(i).Type() == "var" {
			return true
		}
	}
	return false
}
