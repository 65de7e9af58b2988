package analyzer

import (
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
	"github.com/rendis/flowlens/pkg/schema"
)

// walkContext carries the walker state for one workflow callback. Statistics
// and warnings are single-writer per run; nothing here is shared across runs.
type walkContext struct {
	src      *frontend.Source
	imports  *importResolver
	lib      Library
	identity *Identity
	spans    bool

	// stepAliases holds the names bound to the step operator at the current
	// position. sagaAliases holds saga-object names whose step/tryStep
	// methods are recognized; sagaSteps/sagaTries hold destructured locals.
	stepAliases map[string]bool
	sagaAliases map[string]bool
	sagaSteps   map[string]bool
	sagaTries   map[string]bool

	// inCallback is set while walking statements inside the workflow
	// callback. It drives the count/emit asymmetry for if/switch/loop.
	inCallback bool

	// deps indexes the declared dependencies by name for callee matching.
	deps map[string]schema.Dependency

	stats    *schema.Stats
	warnings *[]schema.Diagnostic
}

func newWalkContext(src *frontend.Source, imports *importResolver, lib Library, identity *Identity, spans bool, deps []schema.Dependency, stats *schema.Stats, warnings *[]schema.Diagnostic) *walkContext {
	ctx := &walkContext{
		src:         src,
		imports:     imports,
		lib:         lib,
		identity:    identity,
		spans:       spans,
		stepAliases: make(map[string]bool),
		sagaAliases: make(map[string]bool),
		sagaSteps:   make(map[string]bool),
		sagaTries:   make(map[string]bool),
		deps:        make(map[string]schema.Dependency, len(deps)),
		stats:       stats,
		warnings:    warnings,
	}
	for _, d := range deps {
		ctx.deps[d.Name] = d
	}
	return ctx
}

// walkCallback is the walker entry point for one workflow callback. It binds
// the step (or saga) aliases from the first parameter and walks the body.
// Aliases are scoped to one callback: a builder invoked several times gets
// fresh maps each time, so a name bound in one callback never leaks into the
// next.
func (ctx *walkContext) walkCallback(callback *sitter.Node, saga bool) []*schema.FlowNode {
	ctx.stepAliases = make(map[string]bool)
	ctx.sagaAliases = make(map[string]bool)
	ctx.sagaSteps = make(map[string]bool)
	ctx.sagaTries = make(map[string]bool)

	params := frontend.FunctionParameters(callback)
	if len(params) > 0 {
		ctx.bindOperatorParam(params[0], saga)
	}
	ctx.inCallback = true

	body := frontend.FunctionBody(callback)
	if body == nil {
		return nil
	}
	if body.Type() == frontend.KindStatementBlock {
		return ctx.walkStatements(body)
	}
	return ctx.walkNode(body)
}

// bindOperatorParam registers the step/saga operator names declared by the
// callback's first parameter, honoring destructuring renames.
func (ctx *walkContext) bindOperatorParam(param *sitter.Node, saga bool) {
	switch param.Type() {
	case frontend.KindIdentifier:
		if saga {
			ctx.sagaAliases[ctx.src.Text(param)] = true
		} else {
			ctx.stepAliases[ctx.src.Text(param)] = true
		}
	case frontend.KindObjectPattern:
		for _, prop := range frontend.NamedChildren(param) {
			key, local := destructuredNames(ctx.src, prop)
			if local == "" {
				continue
			}
			switch {
			case saga && key == "step":
				ctx.sagaSteps[local] = true
			case saga && key == "tryStep":
				ctx.sagaTries[local] = true
			case !saga && key == "step":
				ctx.stepAliases[local] = true
			}
		}
	}
}

// destructuredNames returns the (property, local) names of one object-pattern
// member, following renames and defaults.
func destructuredNames(src *frontend.Source, prop *sitter.Node) (string, string) {
	switch prop.Type() {
	case frontend.KindShorthandPattern, frontend.KindShorthandProperty:
		name := src.Text(prop)
		return name, name
	case frontend.KindPairPattern:
		key := prop.ChildByFieldName("key")
		value := prop.ChildByFieldName("value")
		if key == nil || value == nil {
			return "", ""
		}
		if value.Type() == frontend.KindAssignmentPattern {
			value = value.ChildByFieldName("left")
		}
		if value == nil || value.Type() != frontend.KindIdentifier {
			return "", ""
		}
		return src.Text(key), src.Text(value)
	case "object_assignment_pattern":
		left := prop.ChildByFieldName("left")
		if left == nil {
			return "", ""
		}
		name := src.Text(left)
		return name, name
	}
	return "", ""
}

// walkStatements concatenates the flow content of a statement block.
func (ctx *walkContext) walkStatements(block *sitter.Node) []*schema.FlowNode {
	var out []*schema.FlowNode
	for _, stmt := range frontend.NamedChildren(block) {
		out = append(out, ctx.walkNode(stmt)...)
	}
	return out
}

// walkNode classifies one statement or expression into flow nodes. An
// unrecognized shape contributes nothing, silently, so that arbitrary
// surrounding code never aborts the walk.
func (ctx *walkContext) walkNode(n *sitter.Node) []*schema.FlowNode {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case frontend.KindStatementBlock, frontend.KindProgram:
		return ctx.walkStatements(n)

	case frontend.KindExpressionStatement:
		if n.NamedChildCount() == 0 {
			return nil
		}
		return ctx.walkNode(n.NamedChild(0))

	case frontend.KindParenthesized, frontend.KindAwait:
		return ctx.walkNode(frontend.Unwrap(n))

	case frontend.KindLexicalDeclaration, frontend.KindVariableDeclaration:
		return ctx.walkDeclaration(n)

	case frontend.KindReturn:
		if n.NamedChildCount() == 0 {
			return nil
		}
		return ctx.walkNode(n.NamedChild(0))

	case frontend.KindAssignment:
		return ctx.walkAssignment(n)

	case frontend.KindIf:
		return ctx.walkIf(n)

	case frontend.KindTernary:
		return ctx.walkTernary(n)

	case frontend.KindSwitch:
		return ctx.walkSwitch(n)

	case frontend.KindFor:
		return ctx.walkForLoop(n)

	case frontend.KindForIn:
		return ctx.walkForInLoop(n)

	case frontend.KindWhile:
		return ctx.walkCondLoop(n, schema.LoopWhile)

	case frontend.KindDoWhile:
		return ctx.walkCondLoop(n, schema.LoopDoWhile)

	case frontend.KindTry:
		return ctx.walkTry(n)

	case "sequence_expression":
		var out []*schema.FlowNode
		for _, c := range frontend.NamedChildren(n) {
			out = append(out, ctx.walkNode(c)...)
		}
		return out

	case frontend.KindCall:
		return ctx.walkCall(n)
	}
	return nil
}

// walkDeclaration recurses variable initializers. Function-literal
// initializers are descended with the callback flag preserved. A single
// resulting step captures the declared name as its output binding.
func (ctx *walkContext) walkDeclaration(decl *sitter.Node) []*schema.FlowNode {
	var out []*schema.FlowNode
	for _, d := range frontend.NamedChildren(decl) {
		if d.Type() != frontend.KindVariableDeclarator {
			continue
		}
		value := d.ChildByFieldName("value")
		if value == nil {
			continue
		}
		var nodes []*schema.FlowNode
		if frontend.IsFunctionLiteral(value) {
			nodes = ctx.walkFunctionBody(value)
		} else {
			nodes = ctx.walkNode(value)
		}
		if name := d.ChildByFieldName("name"); name != nil && len(nodes) == 1 && nodes[0].Kind == schema.FlowStep {
			nodes[0].Step.OutputBinding = ctx.src.Text(name)
		}
		out = append(out, nodes...)
	}
	return out
}

// walkAssignment recurses the right-hand side and captures the target as an
// output binding when the result is a single step.
func (ctx *walkContext) walkAssignment(n *sitter.Node) []*schema.FlowNode {
	right := n.ChildByFieldName("right")
	nodes := ctx.walkNode(right)
	if left := n.ChildByFieldName("left"); left != nil && len(nodes) == 1 && nodes[0].Kind == schema.FlowStep {
		nodes[0].Step.OutputBinding = ctx.src.Text(left)
	}
	return nodes
}

// walkFunctionBody walks a nested function literal with the callback flag
// preserved. Parameters of the literal shadow any same-named operator aliases.
func (ctx *walkContext) walkFunctionBody(fn *sitter.Node) []*schema.FlowNode {
	inner := ctx.shadowedBy(fn)
	body := frontend.FunctionBody(fn)
	if body == nil {
		return nil
	}
	if body.Type() == frontend.KindStatementBlock {
		return inner.walkStatements(body)
	}
	return inner.walkNode(body)
}

// shadowedBy returns a context with the operator aliases hidden by fn's
// parameter names removed. The context is shared except for the alias maps.
func (ctx *walkContext) shadowedBy(fn *sitter.Node) *walkContext {
	var hidden []string
	for _, p := range frontend.FunctionParameters(fn) {
		for _, ident := range patternIdentifiers(p) {
			name := ctx.src.Text(ident)
			if ctx.stepAliases[name] || ctx.sagaAliases[name] || ctx.sagaSteps[name] || ctx.sagaTries[name] {
				hidden = append(hidden, name)
			}
		}
	}
	if len(hidden) == 0 {
		return ctx
	}
	inner := *ctx
	inner.stepAliases = withoutNames(ctx.stepAliases, hidden)
	inner.sagaAliases = withoutNames(ctx.sagaAliases, hidden)
	inner.sagaSteps = withoutNames(ctx.sagaSteps, hidden)
	inner.sagaTries = withoutNames(ctx.sagaTries, hidden)
	return &inner
}

func withoutNames(set map[string]bool, names []string) map[string]bool {
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// walkIf applies the count/emit asymmetry: inside the callback the statistic
// always increments; the node is emitted only with step-bearing content.
func (ctx *walkContext) walkIf(n *sitter.Node) []*schema.FlowNode {
	counted := ctx.inCallback
	if counted {
		ctx.stats.ConditionalCount++
	}

	cons := ctx.walkNode(n.ChildByFieldName("consequence"))
	var alt []*schema.FlowNode
	if elseClause := n.ChildByFieldName("alternative"); elseClause != nil {
		for _, c := range frontend.NamedChildren(elseClause) {
			alt = append(alt, ctx.walkNode(c)...)
		}
	}
	if len(cons) == 0 && len(alt) == 0 {
		return nil
	}
	if !counted {
		ctx.stats.ConditionalCount++
	}

	node := ctx.newNode(schema.FlowConditional, n)
	node.Conditional = &schema.ConditionalDetail{
		Condition:  ctx.src.Text(frontend.Unwrap(n.ChildByFieldName("condition"))),
		Consequent: cons,
		Alternate:  alt,
	}
	return []*schema.FlowNode{node}
}

func (ctx *walkContext) walkTernary(n *sitter.Node) []*schema.FlowNode {
	counted := ctx.inCallback
	if counted {
		ctx.stats.ConditionalCount++
	}

	cons := ctx.walkNode(n.ChildByFieldName("consequence"))
	alt := ctx.walkNode(n.ChildByFieldName("alternative"))
	if len(cons) == 0 && len(alt) == 0 {
		return nil
	}
	if !counted {
		ctx.stats.ConditionalCount++
	}

	node := ctx.newNode(schema.FlowConditional, n)
	node.Conditional = &schema.ConditionalDetail{
		Condition:  ctx.src.Text(frontend.Unwrap(n.ChildByFieldName("condition"))),
		Consequent: cons,
		Alternate:  alt,
	}
	return []*schema.FlowNode{node}
}

func (ctx *walkContext) walkSwitch(n *sitter.Node) []*schema.FlowNode {
	counted := ctx.inCallback
	if counted {
		ctx.stats.SwitchCount++
	}

	var cases []schema.SwitchCase
	body := n.ChildByFieldName("body")
	for _, c := range frontend.NamedChildren(body) {
		switch c.Type() {
		case frontend.KindSwitchCase:
			value := c.ChildByFieldName("value")
			content := ctx.walkCaseBody(c, value)
			if len(content) > 0 {
				cases = append(cases, schema.SwitchCase{Value: ctx.src.Text(value), Body: content})
			}
		case frontend.KindSwitchDefault:
			content := ctx.walkCaseBody(c, nil)
			if len(content) > 0 {
				cases = append(cases, schema.SwitchCase{Default: true, Body: content})
			}
		}
	}
	if len(cases) == 0 {
		return nil
	}
	if !counted {
		ctx.stats.SwitchCount++
	}

	node := ctx.newNode(schema.FlowSwitch, n)
	node.Switch = &schema.SwitchDetail{
		Discriminant: ctx.src.Text(frontend.Unwrap(n.ChildByFieldName("value"))),
		Cases:        cases,
	}
	return []*schema.FlowNode{node}
}

// walkCaseBody walks a case's statements, skipping the case value expression.
func (ctx *walkContext) walkCaseBody(c, value *sitter.Node) []*schema.FlowNode {
	var out []*schema.FlowNode
	for _, stmt := range frontend.NamedChildren(c) {
		if value != nil && frontend.SameNode(stmt, value) {
			continue
		}
		out = append(out, ctx.walkNode(stmt)...)
	}
	return out
}

func (ctx *walkContext) walkForLoop(n *sitter.Node) []*schema.FlowNode {
	cond := loopCondition(n.ChildByFieldName("condition"))
	detail := &schema.LoopDetail{Kind: schema.LoopFor, Source: ctx.src.Text(cond)}
	if count, ok := ctx.knownBound(cond); ok {
		detail.Count = &count
	}
	return ctx.emitLoop(n, detail, n.ChildByFieldName("body"))
}

func (ctx *walkContext) walkForInLoop(n *sitter.Node) []*schema.FlowNode {
	kind := schema.LoopForIn
	if hasOfKeyword(n) {
		kind = schema.LoopForOf
	}
	right := n.ChildByFieldName("right")
	detail := &schema.LoopDetail{
		Kind:    kind,
		Source:  ctx.src.Text(right),
		Pattern: ctx.src.Text(n.ChildByFieldName("left")),
	}
	if frontend.IsArrayLiteral(right) {
		count := int(right.NamedChildCount())
		detail.Count = &count
	}
	return ctx.emitLoop(n, detail, n.ChildByFieldName("body"))
}

func (ctx *walkContext) walkCondLoop(n *sitter.Node, kind schema.LoopKind) []*schema.FlowNode {
	detail := &schema.LoopDetail{
		Kind:   kind,
		Source: ctx.src.Text(frontend.Unwrap(n.ChildByFieldName("condition"))),
	}
	return ctx.emitLoop(n, detail, n.ChildByFieldName("body"))
}

// emitLoop applies the count/emit asymmetry shared by the native loop kinds.
func (ctx *walkContext) emitLoop(n *sitter.Node, detail *schema.LoopDetail, body *sitter.Node) []*schema.FlowNode {
	counted := ctx.inCallback
	if counted {
		ctx.stats.LoopCount++
	}
	content := ctx.walkNode(body)
	if len(content) == 0 {
		return nil
	}
	if !counted {
		ctx.stats.LoopCount++
	}
	node := ctx.newNode(schema.FlowLoop, n)
	node.Loop = detail
	node.Children = content
	return []*schema.FlowNode{node}
}

// walkTry concatenates the try body, catch body and finally body in order.
func (ctx *walkContext) walkTry(n *sitter.Node) []*schema.FlowNode {
	var out []*schema.FlowNode
	out = append(out, ctx.walkNode(n.ChildByFieldName("body"))...)
	if handler := n.ChildByFieldName("handler"); handler != nil {
		out = append(out, ctx.walkNode(handler.ChildByFieldName("body"))...)
	}
	if finalizer := n.ChildByFieldName("finalizer"); finalizer != nil {
		for _, c := range frontend.NamedChildren(finalizer) {
			out = append(out, ctx.walkNode(c)...)
		}
	}
	return out
}

// newNode allocates a flow node with the next identity and an optional span.
func (ctx *walkContext) newNode(kind schema.FlowKind, n *sitter.Node) *schema.FlowNode {
	node := &schema.FlowNode{ID: ctx.identity.Next(), Kind: kind}
	if ctx.spans {
		node.Span = ctx.src.Span(n)
	}
	return node
}

// sequenceOf wraps nodes per the sequence invariant: empty collapses to nil,
// a singleton collapses to the node itself.
func (ctx *walkContext) sequenceOf(anchor *sitter.Node, nodes []*schema.FlowNode) *schema.FlowNode {
	switch len(nodes) {
	case 0:
		return nil
	case 1:
		return nodes[0]
	}
	seq := ctx.newNode(schema.FlowSequence, anchor)
	seq.Children = nodes
	return seq
}

func (ctx *walkContext) warn(code, message string, n *sitter.Node) {
	*ctx.warnings = append(*ctx.warnings, schema.Diagnostic{Code: code, Message: message, Span: ctx.src.Span(n)})
}

// loopCondition unwraps the expression_statement the grammar places around a
// for-statement condition.
func loopCondition(cond *sitter.Node) *sitter.Node {
	if cond == nil {
		return nil
	}
	if cond.Type() == frontend.KindExpressionStatement && cond.NamedChildCount() > 0 {
		cond = cond.NamedChild(0)
	}
	return frontend.Unwrap(cond)
}

// knownBound extracts a constant iteration bound from conditions shaped like
// `i < 10` or `i <= 9`.
func (ctx *walkContext) knownBound(cond *sitter.Node) (int, bool) {
	if cond == nil || cond.Type() != "binary_expression" {
		return 0, false
	}
	op := cond.ChildByFieldName("operator")
	right := cond.ChildByFieldName("right")
	if op == nil || right == nil || right.Type() != frontend.KindNumber {
		return 0, false
	}
	bound, err := strconv.Atoi(ctx.src.Text(right))
	if err != nil {
		return 0, false
	}
	switch ctx.src.Text(op) {
	case "<":
		return bound, true
	case "<=":
		return bound + 1, true
	}
	return 0, false
}

// hasOfKeyword distinguishes for-of from for-in, which share a grammar kind.
func hasOfKeyword(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "of" {
			return true
		}
	}
	return false
}
