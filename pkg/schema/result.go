package schema

import "time"

// EntryPointKind enumerates the four recognized workflow entry-point families.
type EntryPointKind string

const (
	EntryWorkflow EntryPointKind = "workflow" // reusable builder
	EntrySaga     EntryPointKind = "saga"     // reusable saga builder
	EntryRun      EntryPointKind = "run"      // single-shot runner
	EntrySagaRun  EntryPointKind = "sagaRun"  // single-shot saga runner
)

// Dependency is one declared workflow dependency, extracted from the
// dependency-declaration object of a builder or runner call.
type Dependency struct {
	Name      string   `json:"name"`
	TypeText  string   `json:"type_text,omitempty"` // "unknown" when unresolvable
	ErrorTags []string `json:"error_tags,omitempty"`
}

// WorkflowNode is the root of one extracted workflow IR.
type WorkflowNode struct {
	// Name is the resolved binding name, or a synthesized
	// "<kind>@<file>:<line>" for unnamed single-shot runners.
	Name string         `json:"name"`
	Kind EntryPointKind `json:"kind"`

	Dependencies []Dependency `json:"dependencies,omitempty"`
	ErrorTags    []string     `json:"error_tags,omitempty"` // aggregated from deps and steps
	Children     []*FlowNode  `json:"children,omitempty"`

	Description    string      `json:"description,omitempty"` // options.description
	Notes          string      `json:"notes,omitempty"`       // options.notes rich-text body
	Doc            *DocComment `json:"doc,omitempty"`         // associated documentation comment
	ReturnType     string      `json:"return_type,omitempty"` // inferred callback return type text
	Strict         bool        `json:"strict,omitempty"`
	DeclaredErrors []string    `json:"declared_errors,omitempty"`
	Span           *Span       `json:"span,omitempty"`
}

// Diagnostic is a recoverable structural finding appended to a result's
// warning list. The analysis run always continues past one.
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Span    *Span  `json:"span,omitempty"`
}

// Diagnostic codes.
const (
	DiagMissingStepID         = "missing_step_id"
	DiagCallbackUnextractable = "callback_unextractable"
)

// Stats aggregates per-workflow construct counts. Statistics increment
// whenever a construct is textually present inside a workflow callback, even
// when the corresponding node is not emitted for lack of step-bearing content.
type Stats struct {
	TotalSteps       int `json:"total_steps"`
	ParallelCount    int `json:"parallel_count"`
	RaceCount        int `json:"race_count"`
	ConditionalCount int `json:"conditional_count"`
	SwitchCount      int `json:"switch_count"`
	LoopCount        int `json:"loop_count"`
	StreamCount      int `json:"stream_count"`
	SagaStepCount    int `json:"saga_step_count"`
	WorkflowRefCount int `json:"workflow_ref_count"`
	MaxDepth         int `json:"max_depth"`
}

// Metadata describes one analysis run over one entry point.
type Metadata struct {
	AnalyzedAt time.Time    `json:"analyzed_at"`
	RunID      string       `json:"run_id"`
	Source     string       `json:"source,omitempty"` // source path or identifier
	Warnings   []Diagnostic `json:"warnings,omitempty"`
	Stats      Stats        `json:"stats"`
}

// AnalysisResult is the immutable outcome for one discovered entry point.
type AnalysisResult struct {
	Root     *WorkflowNode `json:"root"`
	Metadata Metadata      `json:"metadata"`
}
