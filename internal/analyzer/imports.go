package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
)

// plainForm is a locally valid unqualified reference to a recognized export:
// a named import (possibly renamed) or a destructured require.
type plainForm struct {
	export string
	pos    uint32 // external definition position for shadow filtering
}

// qualifierForm is a namespace or default import alias through which every
// recognized export is reachable as alias.export.
type qualifierForm struct {
	alias string
	pos   uint32
}

// importResolver answers, per call site, which recognized export a callee
// legitimately denotes, accounting for renames, namespace/default qualifiers,
// type-only imports and local shadowing.
type importResolver struct {
	src    *frontend.Source
	scopes *scopeIndex
	lib    Library
	assume bool

	exports    map[string]bool
	plain      map[string][]plainForm
	qualifiers []qualifierForm
}

func newImportResolver(src *frontend.Source, scopes *scopeIndex, lib Library, assume bool) *importResolver {
	r := &importResolver{
		src:     src,
		scopes:  scopes,
		lib:     lib,
		assume:  assume,
		exports: lib.exportNames(),
		plain:   make(map[string][]plainForm),
	}
	r.collect()
	return r
}

func (r *importResolver) collect() {
	frontend.Walk(r.src.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case frontend.KindImportStatement:
			r.collectImport(n)
			return false
		case frontend.KindVariableDeclarator:
			r.collectRequire(n)
		}
		return true
	})
}

func (r *importResolver) collectImport(stmt *sitter.Node) {
	if frontend.IsTypeOnlyImport(stmt) {
		return
	}
	source := ""
	var clause *sitter.Node
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		switch child.Type() {
		case frontend.KindString:
			source, _ = r.src.StringValue(child)
		case frontend.KindImportClause:
			clause = child
		}
	}
	if !r.lib.hasModule(source) || clause == nil {
		return
	}
	pos := stmt.StartByte()

	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case frontend.KindIdentifier:
			// Default import: exports reachable as alias.name.
			r.qualifiers = append(r.qualifiers, qualifierForm{alias: r.src.Text(child), pos: pos})
		case frontend.KindNamespaceImport:
			for _, gc := range frontend.NamedChildren(child) {
				if gc.Type() == frontend.KindIdentifier {
					r.qualifiers = append(r.qualifiers, qualifierForm{alias: r.src.Text(gc), pos: pos})
				}
			}
		case frontend.KindNamedImports:
			for _, spec := range frontend.NamedChildren(child) {
				if spec.Type() != frontend.KindImportSpecifier || frontend.IsTypeOnlySpecifier(spec) {
					continue
				}
				name := spec.ChildByFieldName("name")
				alias := spec.ChildByFieldName("alias")
				if name == nil {
					continue
				}
				export := r.src.Text(name)
				local := export
				if alias != nil {
					local = r.src.Text(alias)
				}
				if r.exports[export] {
					r.plain[local] = append(r.plain[local], plainForm{export: export, pos: pos})
				}
			}
		}
	}
}

// collectRequire recognizes CommonJS forms:
//
//	const fs = require("flowscript")            // qualifier
//	const { defineWorkflow: dw } = require(...) // renamed plain
func (r *importResolver) collectRequire(decl *sitter.Node) {
	value := decl.ChildByFieldName("value")
	if value == nil || value.Type() != frontend.KindCall {
		return
	}
	callee := value.ChildByFieldName("function")
	if callee == nil || callee.Type() != frontend.KindIdentifier || r.src.Text(callee) != "require" {
		return
	}
	args := value.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	source, ok := r.src.StringValue(args.NamedChild(0))
	if !ok || !r.lib.hasModule(source) {
		return
	}
	// Position past the declarator end so the binding introduced by the
	// require itself never counts as its own shadow.
	pos := decl.EndByte()

	name := decl.ChildByFieldName("name")
	if name == nil {
		return
	}
	switch name.Type() {
	case frontend.KindIdentifier:
		r.qualifiers = append(r.qualifiers, qualifierForm{alias: r.src.Text(name), pos: pos})
	case frontend.KindObjectPattern:
		for _, prop := range frontend.NamedChildren(name) {
			switch prop.Type() {
			case frontend.KindShorthandPattern:
				export := r.src.Text(prop)
				if r.exports[export] {
					r.plain[export] = append(r.plain[export], plainForm{export: export, pos: pos})
				}
			case frontend.KindPairPattern:
				key := prop.ChildByFieldName("key")
				val := prop.ChildByFieldName("value")
				if key == nil || val == nil || val.Type() != frontend.KindIdentifier {
					continue
				}
				export := r.src.Text(key)
				if r.exports[export] {
					r.plain[r.src.Text(val)] = append(r.plain[r.src.Text(val)], plainForm{export: export, pos: pos})
				}
			}
		}
	}
}

// resolveExport resolves an (already unwrapped) callee node to a recognized
// export name. Shadowed references and type-only imports never resolve.
func (r *importResolver) resolveExport(callee *sitter.Node) (string, bool) {
	if callee == nil {
		return "", false
	}
	switch callee.Type() {
	case frontend.KindIdentifier:
		text := r.src.Text(callee)
		for _, form := range r.plain[text] {
			if !r.scopes.shadowedAt(text, callee, form.pos) {
				return form.export, true
			}
		}
		if r.assume && r.exports[text] && !r.scopes.shadowedAt(text, callee, 0) {
			return text, true
		}
	case frontend.KindMember:
		object := callee.ChildByFieldName("object")
		property := callee.ChildByFieldName("property")
		if object == nil || property == nil || object.Type() != frontend.KindIdentifier {
			return "", false
		}
		export := r.src.Text(property)
		if !r.exports[export] {
			return "", false
		}
		alias := r.src.Text(object)
		for _, q := range r.qualifiers {
			if q.alias == alias && !r.scopes.shadowedAt(alias, callee, q.pos) {
				return export, true
			}
		}
	}
	return "", false
}
