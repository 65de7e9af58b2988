package schema

// FlowKind classifies a flow node in the extracted IR.
type FlowKind string

const (
	FlowStep        FlowKind = "step"
	FlowSequence    FlowKind = "sequence"
	FlowParallel    FlowKind = "parallel"
	FlowRace        FlowKind = "race"
	FlowConditional FlowKind = "conditional"
	FlowDecision    FlowKind = "decision"
	FlowSwitch      FlowKind = "switch"
	FlowLoop        FlowKind = "loop"
	FlowStream      FlowKind = "stream"
	FlowSagaStep    FlowKind = "sagaStep"
	FlowWorkflowRef FlowKind = "workflowRef"
)

// Step identifier sentinels. A dynamic identifier expression is still counted;
// a missing identifier additionally produces a diagnostic.
const (
	StepIDDynamic = "<dynamic>"
	StepIDMissing = "<missing>"
)

// Span is a half-open source region in 1-based lines and 0-based columns.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// FlowNode is one control-flow unit in the IR. Kind selects which detail
// struct is populated; exactly one detail is non-nil except for sequence,
// parallel and race, which carry members in Children only.
//
// A node forest belongs exclusively to the WorkflowNode that produced it.
// IDs are monotonic per identity counter and deterministic after a reset.
type FlowNode struct {
	ID   int      `json:"id"`
	Kind FlowKind `json:"kind"`
	Span *Span    `json:"span,omitempty"`

	// Children holds ordered members for sequence/parallel/race and the
	// body of loop and stream nodes. Conditional, decision and switch
	// nodes keep their branches in the detail struct instead.
	Children []*FlowNode `json:"children,omitempty"`

	Step        *StepDetail        `json:"step,omitempty"`
	Conditional *ConditionalDetail `json:"conditional,omitempty"`
	Switch      *SwitchDetail      `json:"switch,omitempty"`
	Loop        *LoopDetail        `json:"loop,omitempty"`
	Stream      *StreamDetail      `json:"stream,omitempty"`
	Saga        *SagaDetail        `json:"saga,omitempty"`
	Ref         *RefDetail         `json:"ref,omitempty"`
}

// StepDetail describes a single step-family call site.
type StepDetail struct {
	ID               string       `json:"id"` // literal, <dynamic> or <missing>
	Label            string       `json:"label,omitempty"`
	Callee           string       `json:"callee,omitempty"`
	DependencySource string       `json:"dependency_source,omitempty"`
	ErrorTags        []string     `json:"error_tags,omitempty"`
	OutputBinding    string       `json:"output_binding,omitempty"`
	Reads            []string     `json:"reads,omitempty"`
	Retry            *RetryPolicy `json:"retry,omitempty"`
	Timeout          *Timeout     `json:"timeout,omitempty"`
	InputType        string       `json:"input_type,omitempty"`
	OutputType       string       `json:"output_type,omitempty"`
	Doc              *DocComment  `json:"doc,omitempty"`
}

// RetryPolicy is the statically extracted retry configuration of a step.
type RetryPolicy struct {
	Attempts int    `json:"attempts"`
	Backoff  string `json:"backoff,omitempty"` // none | linear | exponential
	DelayMs  int    `json:"delay_ms,omitempty"`
}

// Timeout is the statically extracted timeout of a step.
type Timeout struct {
	Ms int `json:"ms"`
}

// ConditionalDetail covers both conditional (if/ternary/helper) and decision
// (step.branch) nodes. Decisions carry a structured id and label instead of
// raw condition text.
type ConditionalDetail struct {
	Condition    string      `json:"condition,omitempty"`
	BranchID     string      `json:"branch_id,omitempty"`
	Label        string      `json:"label,omitempty"`
	Consequent   []*FlowNode `json:"consequent,omitempty"`
	Alternate    []*FlowNode `json:"alternate,omitempty"`
	DefaultValue string      `json:"default_value,omitempty"`
}

// SwitchDetail describes a switch statement with step-bearing cases.
type SwitchDetail struct {
	Discriminant string       `json:"discriminant"`
	Cases        []SwitchCase `json:"cases"`
}

// SwitchCase is one case (or the default) of a switch node.
type SwitchCase struct {
	Value   string      `json:"value,omitempty"`
	Default bool        `json:"default,omitempty"`
	Body    []*FlowNode `json:"body,omitempty"`
}

// LoopKind enumerates the loop node variants.
type LoopKind string

const (
	LoopFor     LoopKind = "for"
	LoopForOf   LoopKind = "forOf"
	LoopForIn   LoopKind = "forIn"
	LoopWhile   LoopKind = "while"
	LoopDoWhile LoopKind = "doWhile"
)

// LoopDetail describes a loop node. Combinator loops (step.forEach, native
// array iteration) are modeled as forOf with the structured fields set.
type LoopDetail struct {
	Kind        LoopKind `json:"kind"`
	Source      string   `json:"source,omitempty"`
	Count       *int     `json:"count,omitempty"` // known bound, nil if unknown
	ID          string   `json:"id,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	CollectMode string   `json:"collect_mode,omitempty"` // all | last | none
}

// StreamDetail describes a streaming handle produced by step.stream.
type StreamDetail struct {
	ID     string `json:"id"`
	Callee string `json:"callee,omitempty"`
}

// SagaDetail describes a saga step with optional compensation.
type SagaDetail struct {
	ID                 string `json:"id"`
	Callee             string `json:"callee,omitempty"`
	Compensated        bool   `json:"compensated"`
	CompensationCallee string `json:"compensation_callee,omitempty"`
	Try                bool   `json:"try"`
}

// RefDetail describes a nested sub-workflow reference. Unresolved marks the
// low-confidence heuristic match (any call carrying a function literal when
// no stronger rule applies).
type RefDetail struct {
	Name       string `json:"name"`
	Unresolved bool   `json:"unresolved"`
}
