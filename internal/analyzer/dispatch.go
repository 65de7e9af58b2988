package analyzer

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
	"github.com/rendis/flowlens/pkg/schema"
)

// walkCall dispatches a call expression against the step-operation table.
// Matching is over the normalized (qualifier, method, argument-shape) triple;
// an unmatched call with a function-literal first argument falls through to
// the low-confidence nested-workflow heuristic, anything else contributes
// nothing.
func (ctx *walkContext) walkCall(call *sitter.Node) []*schema.FlowNode {
	callee := frontend.Unwrap(call.ChildByFieldName("function"))
	if callee == nil {
		return nil
	}
	args := callArguments(call)

	switch callee.Type() {
	case frontend.KindIdentifier:
		name := ctx.src.Text(callee)
		switch {
		case ctx.stepAliases[name]:
			return ctx.stepNode(call, args, "")
		case ctx.sagaSteps[name]:
			return ctx.sagaStepNode(call, args, false)
		case ctx.sagaTries[name]:
			return ctx.sagaStepNode(call, args, true)
		}
		if nodes, matched := ctx.libraryHelper(call, callee, args); matched {
			return nodes
		}

	case frontend.KindMember:
		object := frontend.Unwrap(callee.ChildByFieldName("object"))
		property := callee.ChildByFieldName("property")
		if object == nil || property == nil {
			break
		}
		method := ctx.src.Text(property)
		if object.Type() == frontend.KindIdentifier {
			objName := ctx.src.Text(object)
			switch {
			case ctx.stepAliases[objName]:
				return ctx.stepMethod(call, args, method)
			case ctx.sagaAliases[objName] && method == "step":
				return ctx.sagaStepNode(call, args, false)
			case ctx.sagaAliases[objName] && method == "tryStep":
				return ctx.sagaStepNode(call, args, true)
			case objName == "Promise":
				switch method {
				case "all", "allSettled":
					return ctx.combinatorNode(call, args, schema.FlowParallel, false)
				case "race", "any":
					return ctx.combinatorNode(call, args, schema.FlowRace, false)
				}
			}
		}
		// Namespace-qualified library helpers (e.g. fs.all after a default
		// or namespace import).
		if nodes, matched := ctx.libraryHelper(call, callee, args); matched {
			return nodes
		}
		if isIterationMethod(method) && len(args) > 0 && frontend.IsFunctionLiteral(args[0]) {
			return ctx.iterationNode(call, object, args[0])
		}
	}

	if len(args) > 0 && frontend.IsFunctionLiteral(args[0]) {
		return ctx.workflowRefNode(call, callee)
	}
	return nil
}

// libraryHelper matches import-resolved global helpers: all/any/settled
// combinators and the when/ifElse conditional helpers.
func (ctx *walkContext) libraryHelper(call, callee *sitter.Node, args []*sitter.Node) ([]*schema.FlowNode, bool) {
	export, ok := ctx.imports.resolveExport(callee)
	if !ok {
		return nil, false
	}
	if kind, ok := ctx.lib.Combinators[export]; ok {
		return ctx.combinatorNode(call, args, kind, true), true
	}
	if arity, ok := ctx.lib.ConditionalHelpers[export]; ok {
		return ctx.helperConditional(call, args, arity), true
	}
	return nil, false
}

// stepMethod dispatches the dotted step-operator forms.
func (ctx *walkContext) stepMethod(call *sitter.Node, args []*sitter.Node, method string) []*schema.FlowNode {
	switch method {
	case "sleep", "retry", "withTimeout", "try", "fromResult":
		return ctx.stepNode(call, args, method)
	case "parallel":
		return ctx.combinatorNode(call, args, schema.FlowParallel, true)
	case "race":
		return ctx.combinatorNode(call, args, schema.FlowRace, true)
	case "forEach":
		return ctx.forEachNode(call, args)
	case "branch":
		return ctx.branchNode(call, args)
	case "stream":
		return ctx.streamNode(call, args)
	}
	return nil
}

// splitStepArgs normalizes the id-first argument convention shared by the
// step family: a leading string literal is the id, any other leading
// expression paired with further arguments is a dynamic id, and an operation
// without an id yields the missing sentinel.
func (ctx *walkContext) splitStepArgs(args []*sitter.Node) (id string, op *sitter.Node, rest []*sitter.Node) {
	if len(args) == 0 {
		return schema.StepIDMissing, nil, nil
	}
	first := frontend.Unwrap(args[0])
	if value, ok := ctx.src.StringValue(first); ok {
		id = value
		if len(args) > 1 {
			op = args[1]
			rest = args[2:]
		}
		return id, op, rest
	}
	if len(args) > 1 {
		return schema.StepIDDynamic, args[1], args[2:]
	}
	if isOperationShaped(first) {
		return schema.StepIDMissing, first, nil
	}
	return schema.StepIDDynamic, nil, nil
}

// isOperationShaped reports whether a lone argument reads as an operation
// rather than a dynamic step id.
func isOperationShaped(n *sitter.Node) bool {
	if frontend.IsFunctionLiteral(n) {
		return true
	}
	switch n.Type() {
	case frontend.KindCall, frontend.KindIdentifier, frontend.KindMember:
		return true
	}
	return false
}

// stepNode builds a step flow node for the plain and dotted step forms.
// method is "" for plain step(id, op, opts).
func (ctx *walkContext) stepNode(call *sitter.Node, args []*sitter.Node, method string) []*schema.FlowNode {
	id, op, rest := ctx.splitStepArgs(args)
	if id == schema.StepIDMissing {
		ctx.warn(schema.DiagMissingStepID, "step call without an identifier", call)
	}
	ctx.stats.TotalSteps++

	detail := &schema.StepDetail{ID: id}
	if op != nil {
		detail.Callee, detail.DependencySource = ctx.resolveOperation(op)
		ctx.inheritDependency(detail)
		ctx.operationTypes(op, detail)
	}

	switch method {
	case "sleep":
		detail.Callee = "sleep"
		if len(args) > 1 {
			if ms, ok := ctx.intValue(args[1]); ok {
				detail.Timeout = &schema.Timeout{Ms: ms}
			}
		}
	case "retry":
		if len(rest) > 0 {
			detail.Retry = ctx.parseRetry(rest[0])
		}
	case "withTimeout":
		if len(rest) > 0 {
			if ms, ok := ctx.intValue(rest[0]); ok {
				detail.Timeout = &schema.Timeout{Ms: ms}
			}
		}
	}

	if opts := trailingObject(rest); opts != nil {
		ctx.applyStepOptions(opts, detail)
	}
	detail.Doc = ctx.docFor(call)

	node := ctx.newNode(schema.FlowStep, call)
	node.Step = detail
	return []*schema.FlowNode{node}
}

// implicitStep builds a step node for a combinator arm whose operation is a
// bare reference or call rather than a step-family invocation.
func (ctx *walkContext) implicitStep(arm *sitter.Node) *schema.FlowNode {
	ctx.stats.TotalSteps++
	detail := &schema.StepDetail{ID: schema.StepIDDynamic}
	detail.Callee, detail.DependencySource = ctx.resolveOperation(arm)
	ctx.inheritDependency(detail)
	node := ctx.newNode(schema.FlowStep, arm)
	node.Step = detail
	return node
}

// sagaStepNode builds a saga-step node for the dotted and destructured saga
// forms. Saga steps count toward the step total as well.
func (ctx *walkContext) sagaStepNode(call *sitter.Node, args []*sitter.Node, try bool) []*schema.FlowNode {
	id, op, rest := ctx.splitStepArgs(args)
	if id == schema.StepIDMissing {
		ctx.warn(schema.DiagMissingStepID, "saga step call without an identifier", call)
	}
	ctx.stats.TotalSteps++
	ctx.stats.SagaStepCount++

	detail := &schema.SagaDetail{ID: id, Try: try}
	if op != nil {
		detail.Callee, _ = ctx.resolveOperation(op)
	}
	if opts := trailingObject(rest); opts != nil {
		if comp := objectProperty(ctx.src, opts, "compensate"); comp != nil {
			detail.Compensated = true
			detail.CompensationCallee, _ = ctx.resolveOperation(comp)
		}
	}

	node := ctx.newNode(schema.FlowSagaStep, call)
	node.Saga = detail
	return []*schema.FlowNode{node}
}

// combinatorNode builds a parallel or race node. Explicit step combinators
// always emit; native promise combinators emit only when some arm produced
// step-bearing content, and bare promise arms stay invisible.
func (ctx *walkContext) combinatorNode(call *sitter.Node, args []*sitter.Node, kind schema.FlowKind, explicit bool) []*schema.FlowNode {
	elements := combinatorElements(args)

	var arms []*schema.FlowNode
	for _, el := range elements {
		if arm := ctx.combinatorArm(el, explicit); arm != nil {
			arms = append(arms, arm)
		}
	}
	if !explicit && len(arms) == 0 {
		return nil
	}

	if kind == schema.FlowRace {
		ctx.stats.RaceCount++
	} else {
		ctx.stats.ParallelCount++
	}
	node := ctx.newNode(kind, call)
	node.Children = arms
	return []*schema.FlowNode{node}
}

// combinatorElements returns the member expressions of a combinator: the
// elements of an array-literal first argument, else the arguments themselves.
func combinatorElements(args []*sitter.Node) []*sitter.Node {
	if len(args) == 1 && frontend.IsArrayLiteral(frontend.Unwrap(args[0])) {
		return frontend.NamedChildren(frontend.Unwrap(args[0]))
	}
	return args
}

// combinatorArm converts one combinator member into a flow node. For explicit
// step combinators every arm is an operation: function literals with no inner
// flow content and bare references become implicit steps.
func (ctx *walkContext) combinatorArm(el *sitter.Node, explicit bool) *schema.FlowNode {
	el = frontend.Unwrap(el)
	if el == nil || el.Type() == frontend.KindSpreadElement {
		return nil
	}

	if frontend.IsFunctionLiteral(el) {
		content := ctx.walkFunctionBody(el)
		if len(content) > 0 {
			return ctx.sequenceOf(el, content)
		}
		if explicit {
			return ctx.implicitStep(el)
		}
		return nil
	}
	if el.Type() == frontend.KindCall {
		if content := ctx.walkCall(el); len(content) > 0 {
			return ctx.sequenceOf(el, content)
		}
		if explicit {
			return ctx.implicitStep(el)
		}
		return nil
	}
	if explicit {
		return ctx.implicitStep(el)
	}
	return nil
}

// forEachNode builds the loop node for step.forEach(source, op, opts?).
func (ctx *walkContext) forEachNode(call *sitter.Node, args []*sitter.Node) []*schema.FlowNode {
	if len(args) < 2 {
		return nil
	}
	source := frontend.Unwrap(args[0])
	op := args[1]

	ctx.stats.LoopCount++
	detail := &schema.LoopDetail{
		Kind:        schema.LoopForOf,
		Source:      ctx.src.Text(source),
		CollectMode: "all",
	}
	if frontend.IsArrayLiteral(source) {
		count := int(source.NamedChildCount())
		detail.Count = &count
	}
	if frontend.IsFunctionLiteral(op) {
		if params := frontend.FunctionParameters(op); len(params) > 0 {
			detail.Pattern = ctx.src.Text(params[0])
		}
	}
	if opts := trailingObject(args[2:]); opts != nil {
		if id := objectProperty(ctx.src, opts, "id"); id != nil {
			if v, ok := ctx.src.StringValue(frontend.Unwrap(id)); ok {
				detail.ID = v
			}
		}
		if mode := objectProperty(ctx.src, opts, "collect"); mode != nil {
			if v, ok := ctx.src.StringValue(frontend.Unwrap(mode)); ok {
				detail.CollectMode = v
			}
		}
	}

	node := ctx.newNode(schema.FlowLoop, call)
	node.Loop = detail
	if arm := ctx.combinatorArm(op, true); arm != nil {
		node.Children = []*schema.FlowNode{arm}
	}
	return []*schema.FlowNode{node}
}

// branchNode builds a decision node for step.branch(id, cond, onTrue,
// onFalse?, opts?). A non-function alternate is recorded as a default value.
func (ctx *walkContext) branchNode(call *sitter.Node, args []*sitter.Node) []*schema.FlowNode {
	id, _, _ := ctx.splitStepArgs(args)
	if id == schema.StepIDMissing {
		ctx.warn(schema.DiagMissingStepID, "branch call without an identifier", call)
	}
	ctx.stats.ConditionalCount++

	detail := &schema.ConditionalDetail{BranchID: id}
	if len(args) > 1 {
		detail.Condition = ctx.src.Text(frontend.Unwrap(args[1]))
	}
	if len(args) > 2 {
		if arm := ctx.branchArm(args[2]); arm != nil {
			detail.Consequent = []*schema.FlowNode{arm}
		}
	}
	if len(args) > 3 {
		alt := frontend.Unwrap(args[3])
		if frontend.IsFunctionLiteral(alt) || alt.Type() == frontend.KindCall ||
			alt.Type() == frontend.KindIdentifier || alt.Type() == frontend.KindMember {
			if arm := ctx.branchArm(alt); arm != nil {
				detail.Alternate = []*schema.FlowNode{arm}
			}
		} else if !frontend.IsObjectLiteral(alt) {
			detail.DefaultValue = ctx.src.Text(alt)
		}
	}
	if opts := trailingObject(args); opts != nil {
		if label := objectProperty(ctx.src, opts, "label"); label != nil {
			if v, ok := ctx.src.StringValue(frontend.Unwrap(label)); ok {
				detail.Label = v
			}
		}
	}

	node := ctx.newNode(schema.FlowDecision, call)
	node.Conditional = detail
	return []*schema.FlowNode{node}
}

func (ctx *walkContext) branchArm(el *sitter.Node) *schema.FlowNode {
	return ctx.combinatorArm(el, true)
}

// streamNode builds a streaming-handle node for step.stream(id, op, opts?).
func (ctx *walkContext) streamNode(call *sitter.Node, args []*sitter.Node) []*schema.FlowNode {
	id, op, _ := ctx.splitStepArgs(args)
	if id == schema.StepIDMissing {
		ctx.warn(schema.DiagMissingStepID, "stream call without an identifier", call)
	}
	ctx.stats.StreamCount++

	detail := &schema.StreamDetail{ID: id}
	if op != nil {
		detail.Callee, _ = ctx.resolveOperation(op)
	}
	node := ctx.newNode(schema.FlowStream, call)
	node.Stream = detail
	return []*schema.FlowNode{node}
}

// helperConditional handles the when/ifElse global helpers. The node is
// emitted, and the statistic incremented, only when an arm carries content.
func (ctx *walkContext) helperConditional(call *sitter.Node, args []*sitter.Node, arity int) []*schema.FlowNode {
	if len(args) < 2 {
		return nil
	}
	cons := ctx.helperArm(args[1])
	var alt []*schema.FlowNode
	if arity >= 3 && len(args) > 2 {
		alt = ctx.helperArm(args[2])
	}
	if len(cons) == 0 && len(alt) == 0 {
		return nil
	}
	ctx.stats.ConditionalCount++

	node := ctx.newNode(schema.FlowConditional, call)
	node.Conditional = &schema.ConditionalDetail{
		Condition:  ctx.src.Text(frontend.Unwrap(args[0])),
		Consequent: cons,
		Alternate:  alt,
	}
	return []*schema.FlowNode{node}
}

func (ctx *walkContext) helperArm(el *sitter.Node) []*schema.FlowNode {
	el = frontend.Unwrap(el)
	if frontend.IsFunctionLiteral(el) {
		return ctx.walkFunctionBody(el)
	}
	if el != nil && el.Type() == frontend.KindCall {
		return ctx.walkCall(el)
	}
	return nil
}

// iterationNode models .map/.forEach/.filter/.flatMap receivers carrying an
// inline function literal as a forOf loop, emitted only with flow content.
func (ctx *walkContext) iterationNode(call, receiver, callback *sitter.Node) []*schema.FlowNode {
	content := ctx.walkFunctionBody(callback)
	if len(content) == 0 {
		return nil
	}
	ctx.stats.LoopCount++

	detail := &schema.LoopDetail{Kind: schema.LoopForOf, Source: ctx.src.Text(receiver)}
	if params := frontend.FunctionParameters(callback); len(params) > 0 {
		detail.Pattern = ctx.src.Text(params[0])
	}
	node := ctx.newNode(schema.FlowLoop, call)
	node.Loop = detail
	node.Children = content
	return []*schema.FlowNode{node}
}

// workflowRefNode is the low-confidence nested-workflow heuristic: any
// otherwise-unmatched call carrying a function-literal first argument. The
// function argument is not walked; the reference stays unresolved.
func (ctx *walkContext) workflowRefNode(call, callee *sitter.Node) []*schema.FlowNode {
	ctx.stats.WorkflowRefCount++
	node := ctx.newNode(schema.FlowWorkflowRef, call)
	node.Ref = &schema.RefDetail{Name: ctx.src.Text(callee), Unresolved: true}
	return []*schema.FlowNode{node}
}

// resolveOperation extracts (callee text, dependency source) from a step
// operation argument: a direct call, a bare reference, or a function literal
// whose expression body or first return is a call. A dependency-wrapping
// helper call is unwrapped first and its argument overrides the source.
func (ctx *walkContext) resolveOperation(op *sitter.Node) (string, string) {
	op = frontend.Unwrap(op)
	if op == nil {
		return "", ""
	}
	switch {
	case op.Type() == frontend.KindCall:
		callee := frontend.Unwrap(op.ChildByFieldName("function"))
		if callee == nil {
			return "", ""
		}
		if export, ok := ctx.imports.resolveExport(callee); ok && export == ctx.lib.DepHelper {
			return ctx.unwrapDepHelper(op)
		}
		return ctx.src.Text(callee), ""
	case frontend.IsFunctionLiteral(op):
		body := frontend.FunctionBody(op)
		if body == nil {
			return "", ""
		}
		if body.Type() != frontend.KindStatementBlock {
			return ctx.operationFromExpression(body)
		}
		if ret := firstReturn(body); ret != nil && ret.NamedChildCount() > 0 {
			return ctx.operationFromExpression(ret.NamedChild(0))
		}
		return "", ""
	case op.Type() == frontend.KindIdentifier, op.Type() == frontend.KindMember:
		return ctx.src.Text(op), ""
	}
	return "", ""
}

func (ctx *walkContext) operationFromExpression(expr *sitter.Node) (string, string) {
	expr = frontend.Unwrap(expr)
	if expr != nil && expr.Type() == frontend.KindCall {
		return ctx.resolveOperation(expr)
	}
	return "", ""
}

// unwrapDepHelper extracts the wrapped dependency of a fromDep(dep, ...) call.
func (ctx *walkContext) unwrapDepHelper(call *sitter.Node) (string, string) {
	args := callArguments(call)
	if len(args) == 0 {
		return "", ""
	}
	ref := frontend.Unwrap(args[0])
	if value, ok := ctx.src.StringValue(ref); ok {
		return value, value
	}
	text := ctx.src.Text(ref)
	return text, strings.TrimPrefix(text, "deps.")
}

// inheritDependency matches a resolved callee against the declared
// dependencies and inherits the dependency's name and error tags.
func (ctx *walkContext) inheritDependency(detail *schema.StepDetail) {
	root := detail.DependencySource
	if root == "" {
		root = calleeRoot(detail.Callee)
	}
	dep, ok := ctx.deps[root]
	if !ok {
		return
	}
	detail.DependencySource = dep.Name
	if len(detail.ErrorTags) == 0 {
		detail.ErrorTags = dep.ErrorTags
	}
}

// calleeRoot returns the leading identifier of a callee text, skipping a
// deps-object qualifier.
func calleeRoot(callee string) string {
	callee = strings.TrimPrefix(callee, "deps.")
	if i := strings.IndexAny(callee, ".("); i >= 0 {
		callee = callee[:i]
	}
	return callee
}

// operationTypes fills best-effort input/output type text from a
// function-literal operation's annotations.
func (ctx *walkContext) operationTypes(op *sitter.Node, detail *schema.StepDetail) {
	op = frontend.Unwrap(op)
	if !frontend.IsFunctionLiteral(op) {
		return
	}
	if params := frontend.FunctionParameters(op); len(params) > 0 {
		if t := ctx.src.DeclaredTypeText(params[0]); t != frontend.TypeUnknown {
			detail.InputType = t
		}
	}
	if t := ctx.src.ReturnTypeText(op); t != frontend.TypeUnknown {
		detail.OutputType = t
	}
}

// applyStepOptions parses the trailing options object of a step call.
func (ctx *walkContext) applyStepOptions(opts *sitter.Node, detail *schema.StepDetail) {
	if v := objectProperty(ctx.src, opts, "label"); v != nil {
		if s, ok := ctx.src.StringValue(frontend.Unwrap(v)); ok {
			detail.Label = s
		}
	}
	if v := objectProperty(ctx.src, opts, "reads"); v != nil {
		reads := frontend.Unwrap(v)
		if frontend.IsArrayLiteral(reads) {
			for _, el := range frontend.NamedChildren(reads) {
				if s, ok := ctx.src.StringValue(frontend.Unwrap(el)); ok {
					detail.Reads = append(detail.Reads, s)
				}
			}
		}
	}
	if v := objectProperty(ctx.src, opts, "retry"); v != nil {
		if retry := ctx.parseRetry(v); retry != nil {
			detail.Retry = retry
		}
	}
	if v := objectProperty(ctx.src, opts, "timeout"); v != nil {
		if ms, ok := ctx.intValue(v); ok {
			detail.Timeout = &schema.Timeout{Ms: ms}
		}
	}
}

// parseRetry accepts either a bare attempt count or a retry-policy object.
func (ctx *walkContext) parseRetry(n *sitter.Node) *schema.RetryPolicy {
	n = frontend.Unwrap(n)
	if n == nil {
		return nil
	}
	if attempts, ok := ctx.intValue(n); ok {
		return &schema.RetryPolicy{Attempts: attempts}
	}
	if !frontend.IsObjectLiteral(n) {
		return nil
	}
	policy := &schema.RetryPolicy{}
	if v := objectProperty(ctx.src, n, "attempts"); v != nil {
		policy.Attempts, _ = ctx.intValue(v)
	}
	if v := objectProperty(ctx.src, n, "backoff"); v != nil {
		if s, ok := ctx.src.StringValue(frontend.Unwrap(v)); ok {
			policy.Backoff = s
		}
	}
	if v := objectProperty(ctx.src, n, "delayMs"); v != nil {
		policy.DelayMs, _ = ctx.intValue(v)
	}
	return policy
}

func (ctx *walkContext) intValue(n *sitter.Node) (int, bool) {
	n = frontend.Unwrap(n)
	if n == nil || n.Type() != frontend.KindNumber {
		return 0, false
	}
	v, err := strconv.Atoi(ctx.src.Text(n))
	if err != nil {
		return 0, false
	}
	return v, true
}

// trailingObject returns the last argument when it is an object literal.
func trailingObject(args []*sitter.Node) *sitter.Node {
	if len(args) == 0 {
		return nil
	}
	last := frontend.Unwrap(args[len(args)-1])
	if frontend.IsObjectLiteral(last) {
		return last
	}
	return nil
}

// objectProperty returns the value of the named property of an object
// literal, or nil.
func objectProperty(src *frontend.Source, obj *sitter.Node, name string) *sitter.Node {
	for _, prop := range frontend.NamedChildren(obj) {
		if prop.Type() != frontend.KindPair {
			continue
		}
		key := prop.ChildByFieldName("key")
		if key == nil {
			continue
		}
		keyText := src.Text(key)
		if v, ok := src.StringValue(key); ok {
			keyText = v
		}
		if keyText == name {
			return prop.ChildByFieldName("value")
		}
	}
	return nil
}

// firstReturn finds the first return statement in a function body without
// descending into nested functions.
func firstReturn(body *sitter.Node) *sitter.Node {
	var found *sitter.Node
	frontend.Walk(body, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if frontend.IsFunctionLike(n) && !frontend.SameNode(n, body) {
			return false
		}
		if n.Type() == frontend.KindReturn {
			found = n
			return false
		}
		return true
	})
	return found
}

func isIterationMethod(method string) bool {
	switch method {
	case "map", "forEach", "filter", "flatMap":
		return true
	}
	return false
}
