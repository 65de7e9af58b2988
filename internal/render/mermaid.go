package render

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a Model as a Mermaid flowchart string.
func RenderMermaid(model *Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	// Render nodes with shapes based on kind.
	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))

		// Subgraphs for nested content.
		for _, sg := range node.Children {
			b.WriteString(fmt.Sprintf("    subgraph %s[\"%s: %s\"]\n",
				mermaidSafeID(node.ID+"_"+sg.Label), node.ID, sg.Label))
			for _, subNode := range sg.Nodes {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(subNode)))
				for _, nested := range subNode.Children {
					for _, deep := range nested.Nodes {
						b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(deep)))
					}
					for _, edge := range nested.Edges {
						b.WriteString(fmt.Sprintf("        %s\n", mermaidEdge(edge)))
					}
				}
			}
			for _, edge := range sg.Edges {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidEdge(edge)))
			}
			b.WriteString("    end\n")
		}
	}

	// Render edges.
	for _, edge := range model.Edges {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidEdge(edge)))
	}

	// Kind class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef step fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef parallel fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef race fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef condition fill:#6b3fa0,stroke:#4a2c70,color:#fff\n")
	b.WriteString("    classDef loop fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef saga fill:#4a4a4a,stroke:#333,color:#fff\n")
	b.WriteString("    classDef ref fill:#6b6b6b,stroke:#4a4a4a,color:#aaa,stroke-dasharray:5 5\n")

	var classify func(nodes []*Node)
	classify = func(nodes []*Node) {
		for _, node := range nodes {
			if cls := mermaidKindClass(node.Kind); cls != "" {
				b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
			}
			for _, sg := range node.Children {
				classify(sg.Nodes)
			}
		}
	}
	classify(model.Nodes)

	return b.String()
}

func mermaidEdge(edge Edge) string {
	label := ""
	if edge.Label != "" {
		label = fmt.Sprintf("|%s|", edge.Label)
	}
	return fmt.Sprintf("%s -->%s %s", mermaidSafeID(edge.From), label, mermaidSafeID(edge.To))
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindCondition, NodeKindDecision:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindParallel, NodeKindRace:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindStream:
		return fmt.Sprintf("%s([%q])", id, label)
	case NodeKindSaga:
		return fmt.Sprintf("%s[/%q/]", id, label)
	case NodeKindRef:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default: // step
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidKindClass maps a node kind to a Mermaid class name.
func mermaidKindClass(kind NodeKind) string {
	switch kind {
	case NodeKindStep:
		return "step"
	case NodeKindParallel:
		return "parallel"
	case NodeKindRace:
		return "race"
	case NodeKindCondition, NodeKindDecision:
		return "condition"
	case NodeKindLoop:
		return "loop"
	case NodeKindSaga, NodeKindStream:
		return "saga"
	case NodeKindRef:
		return "ref"
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
