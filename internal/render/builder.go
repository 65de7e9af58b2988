package render

import (
	"fmt"

	"github.com/rendis/flowlens/pkg/schema"
)

// Build constructs a diagram Model from an analysis result. The workflow's
// top-level children form a start-to-end chain; flow-control nodes carry
// their nested content as subgraphs.
func Build(result *schema.AnalysisResult) (*Model, error) {
	if result == nil || result.Root == nil {
		return nil, schema.NewError(schema.ErrCodeRender, "nil analysis result")
	}
	root := result.Root

	model := &Model{Title: fmt.Sprintf("%s (%s)", root.Name, root.Kind)}

	start := &Node{ID: "__start__", Label: "Start", Kind: NodeKindStart}
	model.Nodes = append(model.Nodes, start)

	prev := start.ID
	for _, child := range root.Children {
		node := flowToNode(child)
		model.Nodes = append(model.Nodes, node)
		model.Edges = append(model.Edges, Edge{From: prev, To: node.ID})
		prev = node.ID
	}

	end := &Node{ID: "__end__", Label: "End", Kind: NodeKindEnd}
	model.Nodes = append(model.Nodes, end)
	model.Edges = append(model.Edges, Edge{From: prev, To: end.ID})

	return model, nil
}

// flowToNode maps one flow node, recursing flow-control content into
// subgraphs.
func flowToNode(n *schema.FlowNode) *Node {
	node := &Node{ID: nodeID(n), Label: nodeLabel(n), Kind: nodeKind(n)}

	switch n.Kind {
	case schema.FlowSequence:
		node.Children = append(node.Children, chainSubGraph("body", n.Children))

	case schema.FlowParallel, schema.FlowRace:
		for i, arm := range n.Children {
			node.Children = append(node.Children,
				chainSubGraph(fmt.Sprintf("arm_%d", i), []*schema.FlowNode{arm}))
		}

	case schema.FlowConditional, schema.FlowDecision:
		if n.Conditional != nil {
			if len(n.Conditional.Consequent) > 0 {
				node.Children = append(node.Children, chainSubGraph("then", n.Conditional.Consequent))
			}
			if len(n.Conditional.Alternate) > 0 {
				node.Children = append(node.Children, chainSubGraph("else", n.Conditional.Alternate))
			}
		}

	case schema.FlowSwitch:
		if n.Switch != nil {
			for _, c := range n.Switch.Cases {
				label := c.Value
				if c.Default {
					label = "default"
				}
				node.Children = append(node.Children, chainSubGraph(label, c.Body))
			}
		}

	case schema.FlowLoop, schema.FlowStream:
		if len(n.Children) > 0 {
			node.Children = append(node.Children, chainSubGraph("body", n.Children))
		}
	}
	return node
}

// chainSubGraph lays out a node list as a sequential chain.
func chainSubGraph(label string, nodes []*schema.FlowNode) *SubGraph {
	sg := &SubGraph{Label: label}
	prev := ""
	for _, n := range nodes {
		node := flowToNode(n)
		sg.Nodes = append(sg.Nodes, node)
		if prev != "" {
			sg.Edges = append(sg.Edges, Edge{From: prev, To: node.ID})
		}
		prev = node.ID
	}
	return sg
}

func nodeID(n *schema.FlowNode) string {
	return fmt.Sprintf("n%d", n.ID)
}

func nodeKind(n *schema.FlowNode) NodeKind {
	switch n.Kind {
	case schema.FlowStep, schema.FlowSequence:
		return NodeKindStep
	case schema.FlowParallel:
		return NodeKindParallel
	case schema.FlowRace:
		return NodeKindRace
	case schema.FlowConditional:
		return NodeKindCondition
	case schema.FlowDecision:
		return NodeKindDecision
	case schema.FlowSwitch:
		return NodeKindCondition
	case schema.FlowLoop:
		return NodeKindLoop
	case schema.FlowStream:
		return NodeKindStream
	case schema.FlowSagaStep:
		return NodeKindSaga
	case schema.FlowWorkflowRef:
		return NodeKindRef
	}
	return NodeKindStep
}

// nodeLabel builds a human-readable label for one flow node.
func nodeLabel(n *schema.FlowNode) string {
	switch n.Kind {
	case schema.FlowStep:
		if n.Step == nil {
			return "step"
		}
		if n.Step.Callee != "" {
			return fmt.Sprintf("%s\n(%s)", n.Step.ID, n.Step.Callee)
		}
		return n.Step.ID
	case schema.FlowSequence:
		return "sequence"
	case schema.FlowParallel:
		return fmt.Sprintf("parallel ×%d", len(n.Children))
	case schema.FlowRace:
		return fmt.Sprintf("race ×%d", len(n.Children))
	case schema.FlowConditional:
		if n.Conditional != nil && n.Conditional.Condition != "" {
			return n.Conditional.Condition
		}
		return "if"
	case schema.FlowDecision:
		if n.Conditional != nil && n.Conditional.BranchID != "" {
			return n.Conditional.BranchID
		}
		return "branch"
	case schema.FlowSwitch:
		if n.Switch != nil {
			return fmt.Sprintf("switch %s", n.Switch.Discriminant)
		}
		return "switch"
	case schema.FlowLoop:
		if n.Loop != nil {
			if n.Loop.Source != "" {
				return fmt.Sprintf("%s %s", n.Loop.Kind, n.Loop.Source)
			}
			return string(n.Loop.Kind)
		}
		return "loop"
	case schema.FlowStream:
		if n.Stream != nil {
			return fmt.Sprintf("stream %s", n.Stream.ID)
		}
		return "stream"
	case schema.FlowSagaStep:
		if n.Saga != nil {
			label := n.Saga.ID
			if n.Saga.Compensated {
				label += " ⟲"
			}
			return label
		}
		return "saga step"
	case schema.FlowWorkflowRef:
		if n.Ref != nil {
			return fmt.Sprintf("→ %s", n.Ref.Name)
		}
		return "workflow ref"
	}
	return string(n.Kind)
}
