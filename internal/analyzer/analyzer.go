package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rendis/flowlens/internal/frontend"
	"github.com/rendis/flowlens/pkg/schema"
)

// Options configures one Analyzer.
type Options struct {
	// SourcePath identifies the analyzed file in results and logs. It also
	// selects the grammar when Language is empty.
	SourcePath string

	// Language forces a grammar; empty picks by SourcePath extension.
	Language frontend.Language

	// IncludeSpans attaches source spans to workflow roots and flow nodes.
	IncludeSpans bool

	// AssumeImported treats the recognized export names as in scope even
	// without an import statement.
	AssumeImported bool

	// EntryPointFilter restricts discovery to one entry-point family.
	// Empty analyzes all four.
	EntryPointFilter schema.EntryPointKind

	// Counter supplies flow-node identities. Nil uses the process-wide
	// counter; tests inject a fresh one for deterministic numbering.
	Counter *Identity

	// Library overrides the recognized library surface.
	Library *Library

	Logger *slog.Logger
}

// Analyzer extracts workflow IR from source text. One Analyzer may serve
// multiple Analyze calls; each call allocates its own statistics, warnings
// and scope state.
type Analyzer struct {
	opts     Options
	lib      Library
	identity *Identity
	logger   *slog.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{opts: opts, lib: DefaultLibrary(), identity: opts.Counter, logger: opts.Logger}
	if opts.Library != nil {
		a.lib = *opts.Library
	}
	if a.identity == nil {
		a.identity = processIdentity
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Analyze parses content and returns one AnalysisResult per discovered entry
// point, in document order. A source with no recognized entry points yields
// an empty list.
func (a *Analyzer) Analyze(ctx context.Context, content []byte) ([]*schema.AnalysisResult, error) {
	lang := a.opts.Language
	if lang == "" {
		lang = frontend.LanguageForPath(a.opts.SourcePath)
	}
	src, err := frontend.Parse(ctx, content, a.opts.SourcePath, lang)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	scopes := newScopeIndex(src)
	imports := newImportResolver(src, scopes, a.lib, a.opts.AssumeImported)
	entryPoints := discoverEntryPoints(src, scopes, imports, a.lib, a.opts.EntryPointFilter)

	results := make([]*schema.AnalysisResult, 0, len(entryPoints))
	for _, ep := range entryPoints {
		result := a.analyzeEntryPoint(src, scopes, imports, ep)
		a.logger.DebugContext(ctx, "workflow analyzed",
			slog.String("run_id", result.Metadata.RunID),
			slog.String("workflow", result.Root.Name),
			slog.String("kind", string(result.Root.Kind)),
			slog.Int("steps", result.Metadata.Stats.TotalSteps),
			slog.Int("warnings", len(result.Metadata.Warnings)))
		results = append(results, result)
	}
	return results, nil
}

// AnalyzeNamed analyzes content and selects the single workflow called name.
// Zero matches reports the available names; more than one is ambiguous.
func (a *Analyzer) AnalyzeNamed(ctx context.Context, content []byte, name string) (*schema.AnalysisResult, error) {
	results, err := a.Analyze(ctx, content)
	if err != nil {
		return nil, err
	}
	var matches []*schema.AnalysisResult
	for _, r := range results {
		if r.Root.Name == name {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		available := "(none)"
		if len(results) > 0 {
			names := make([]string, 0, len(results))
			for _, r := range results {
				names = append(names, r.Root.Name)
			}
			available = strings.Join(names, ", ")
		}
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"no workflow named %q; available: %s", name, available).WithWorkflow(name)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeAmbiguous,
			"%d workflows named %q", len(matches), name).WithWorkflow(name)
	}
}

// analyzeEntryPoint walks one entry point into a finished result.
func (a *Analyzer) analyzeEntryPoint(src *frontend.Source, scopes *scopeIndex, imports *importResolver, ep *entryPoint) *schema.AnalysisResult {
	stats := schema.Stats{}
	var warnings []schema.Diagnostic
	wctx := newWalkContext(src, imports, a.lib, a.identity, a.opts.IncludeSpans, ep.deps, &stats, &warnings)

	saga := isSagaKind(ep.kind)
	var children []*schema.FlowNode
	for _, callback := range a.entryCallbacks(src, scopes, ep, wctx) {
		children = append(children, wctx.walkCallback(callback, saga)...)
	}
	stats.MaxDepth = forestDepth(children)

	root := &schema.WorkflowNode{
		Name:         a.workflowName(src, ep),
		Kind:         ep.kind,
		Dependencies: ep.deps,
		ErrorTags:    aggregateErrorTags(ep.deps, children),
		Children:     children,
		Doc:          wctx.docFor(ep.call),
	}
	if ep.options != nil {
		root.Description = ep.options.description
		root.Notes = ep.options.notes
		root.Strict = ep.options.strict
		root.DeclaredErrors = ep.options.declaredErrors
	}
	if a.opts.IncludeSpans {
		root.Span = src.Span(ep.call)
	}
	if cb := firstCallback(src, scopes, ep); cb != nil {
		if t := src.ReturnTypeText(cb); t != frontend.TypeUnknown {
			root.ReturnType = t
		}
	}

	return &schema.AnalysisResult{
		Root: root,
		Metadata: schema.Metadata{
			AnalyzedAt: time.Now().UTC(),
			RunID:      uuid.NewString(),
			Source:     src.Path,
			Warnings:   warnings,
			Stats:      stats,
		},
	}
}

// entryCallbacks resolves the callbacks to walk: the inline callback of
// single-shot forms, or the invocation-site callbacks of builder forms. A
// discovered invocation without an extractable callback is diagnosed and
// skipped.
func (a *Analyzer) entryCallbacks(src *frontend.Source, scopes *scopeIndex, ep *entryPoint, wctx *walkContext) []*sitter.Node {
	if !isBuilderKind(ep.kind) {
		if ep.callback == nil {
			wctx.warn(schema.DiagCallbackUnextractable, "runner call without an extractable callback", ep.call)
			return nil
		}
		return []*sitter.Node{ep.callback}
	}
	resolver := &invocationResolver{src: src, scopes: scopes}
	var callbacks []*sitter.Node
	for _, inv := range resolver.find(ep) {
		if inv.callback == nil {
			wctx.warn(schema.DiagCallbackUnextractable, "workflow invocation without an extractable callback", inv.call)
			continue
		}
		callbacks = append(callbacks, inv.callback)
	}
	return callbacks
}

// firstCallback returns the callback used for return-type inference.
func firstCallback(src *frontend.Source, scopes *scopeIndex, ep *entryPoint) *sitter.Node {
	if !isBuilderKind(ep.kind) {
		return ep.callback
	}
	resolver := &invocationResolver{src: src, scopes: scopes}
	for _, inv := range resolver.find(ep) {
		if inv.callback != nil {
			return inv.callback
		}
	}
	return nil
}

// workflowName resolves the root name: the binding, else the builder's name
// literal, else a synthesized name for unnamed single-shot runners.
func (a *Analyzer) workflowName(src *frontend.Source, ep *entryPoint) string {
	if ep.binding != "" {
		return ep.binding
	}
	if isBuilderKind(ep.kind) {
		if ep.workflowName != "" {
			return ep.workflowName
		}
		return "anonymous"
	}
	return src.SyntheticName(string(ep.kind), ep.call)
}

// aggregateErrorTags unions dependency and step error tags in first-seen
// order.
func aggregateErrorTags(deps []schema.Dependency, forest []*schema.FlowNode) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(list []string) {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	for _, d := range deps {
		add(d.ErrorTags)
	}
	var visit func(nodes []*schema.FlowNode)
	visit = func(nodes []*schema.FlowNode) {
		for _, n := range nodes {
			if n.Step != nil {
				add(n.Step.ErrorTags)
			}
			visit(n.Children)
			if n.Conditional != nil {
				visit(n.Conditional.Consequent)
				visit(n.Conditional.Alternate)
			}
			if n.Switch != nil {
				for _, c := range n.Switch.Cases {
					visit(c.Body)
				}
			}
		}
	}
	visit(forest)
	return tags
}

// forestDepth is the maximum nesting depth of a flow forest.
func forestDepth(nodes []*schema.FlowNode) int {
	max := 0
	for _, n := range nodes {
		depth := 1
		inner := forestDepth(n.Children)
		if n.Conditional != nil {
			if d := forestDepth(n.Conditional.Consequent); d > inner {
				inner = d
			}
			if d := forestDepth(n.Conditional.Alternate); d > inner {
				inner = d
			}
		}
		if n.Switch != nil {
			for _, c := range n.Switch.Cases {
				if d := forestDepth(c.Body); d > inner {
					inner = d
				}
			}
		}
		depth += inner
		if depth > max {
			max = depth
		}
	}
	return max
}
