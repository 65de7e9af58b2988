package render

// NodeKind classifies a diagram node by the flow construct it depicts.
type NodeKind string

const (
	NodeKindStep      NodeKind = "step"
	NodeKindCondition NodeKind = "condition"
	NodeKindDecision  NodeKind = "decision"
	NodeKindParallel  NodeKind = "parallel"
	NodeKindRace      NodeKind = "race"
	NodeKindLoop      NodeKind = "loop"
	NodeKindStream    NodeKind = "stream"
	NodeKindSaga      NodeKind = "saga"
	NodeKindRef       NodeKind = "ref"
	NodeKindStart     NodeKind = "start"
	NodeKindEnd       NodeKind = "end"
)

// Model is the intermediate representation shared by all renderers.
type Model struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node is one diagram node. Flow-control nodes carry their nested content as
// SubGraph children.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Children []*SubGraph
}

// SubGraph holds the nested nodes of a flow-control construct: combinator
// arms, conditional branches, switch cases, loop bodies.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// Edge is a sequencing edge between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}
