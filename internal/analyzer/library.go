package analyzer

import "github.com/rendis/flowlens/pkg/schema"

// Library describes the recognized workflow library surface: which modules
// export it and which exports start an analysis unit or act as global
// combinator/conditional helpers.
type Library struct {
	// Modules are the import sources recognized as the workflow library.
	Modules []string

	// Builders maps entry-point export names to their family.
	Builders map[string]schema.EntryPointKind

	// Combinators maps global helper exports to the flow kind they produce.
	Combinators map[string]schema.FlowKind

	// ConditionalHelpers maps helper exports to their arity (2 or 3).
	ConditionalHelpers map[string]int

	// DepHelper is the dependency-wrapping helper export.
	DepHelper string
}

// DefaultLibrary returns the flowscript library surface.
func DefaultLibrary() Library {
	return Library{
		Modules: []string{"flowscript", "@flowscript/core"},
		Builders: map[string]schema.EntryPointKind{
			"defineWorkflow": schema.EntryWorkflow,
			"defineSaga":     schema.EntrySaga,
			"runWorkflow":    schema.EntryRun,
			"runSaga":        schema.EntrySagaRun,
		},
		Combinators: map[string]schema.FlowKind{
			"all":     schema.FlowParallel,
			"any":     schema.FlowRace,
			"settled": schema.FlowParallel,
		},
		ConditionalHelpers: map[string]int{
			"when":   2,
			"ifElse": 3,
		},
		DepHelper: "fromDep",
	}
}

// isBuilderKind reports whether kind is one of the reusable builder families.
func isBuilderKind(kind schema.EntryPointKind) bool {
	return kind == schema.EntryWorkflow || kind == schema.EntrySaga
}

// isSagaKind reports whether kind analyzes in saga mode.
func isSagaKind(kind schema.EntryPointKind) bool {
	return kind == schema.EntrySaga || kind == schema.EntrySagaRun
}

// exportNames returns every recognized export of the library.
func (l Library) exportNames() map[string]bool {
	out := make(map[string]bool)
	for name := range l.Builders {
		out[name] = true
	}
	for name := range l.Combinators {
		out[name] = true
	}
	for name := range l.ConditionalHelpers {
		out[name] = true
	}
	if l.DepHelper != "" {
		out[l.DepHelper] = true
	}
	return out
}

func (l Library) hasModule(path string) bool {
	for _, m := range l.Modules {
		if m == path {
			return true
		}
	}
	return false
}
