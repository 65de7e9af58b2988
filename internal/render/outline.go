package render

import (
	"fmt"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// RenderOutline renders an analysis result as an indented text report:
// workflow header, dependency list, flow tree and statistics.
func RenderOutline(result *schema.AnalysisResult) string {
	if result == nil || result.Root == nil {
		return ""
	}
	root := result.Root
	var b strings.Builder

	fmt.Fprintf(&b, "workflow %s (%s)\n", root.Name, root.Kind)
	if root.Description != "" {
		fmt.Fprintf(&b, "  %s\n", root.Description)
	}
	if len(root.Dependencies) > 0 {
		b.WriteString("  dependencies:\n")
		for _, d := range root.Dependencies {
			line := "    - " + d.Name
			if d.TypeText != "" && d.TypeText != "unknown" {
				line += ": " + d.TypeText
			}
			if len(d.ErrorTags) > 0 {
				line += " !" + strings.Join(d.ErrorTags, " !")
			}
			b.WriteString(line + "\n")
		}
	}

	if len(root.Children) > 0 {
		b.WriteString("  flow:\n")
		writeForest(&b, root.Children, 2)
	} else {
		b.WriteString("  flow: (empty)\n")
	}

	s := result.Metadata.Stats
	fmt.Fprintf(&b, "  stats: steps=%d parallel=%d race=%d conditional=%d switch=%d loop=%d stream=%d saga=%d refs=%d depth=%d\n",
		s.TotalSteps, s.ParallelCount, s.RaceCount, s.ConditionalCount,
		s.SwitchCount, s.LoopCount, s.StreamCount, s.SagaStepCount,
		s.WorkflowRefCount, s.MaxDepth)

	for _, w := range result.Metadata.Warnings {
		fmt.Fprintf(&b, "  warning[%s]: %s\n", w.Code, w.Message)
	}
	return b.String()
}

func writeForest(b *strings.Builder, nodes []*schema.FlowNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		fmt.Fprintf(b, "%s- %s\n", indent, outlineLine(n))
		writeForest(b, n.Children, depth+1)
		if n.Conditional != nil {
			if len(n.Conditional.Consequent) > 0 {
				fmt.Fprintf(b, "%s  then:\n", indent)
				writeForest(b, n.Conditional.Consequent, depth+2)
			}
			if len(n.Conditional.Alternate) > 0 {
				fmt.Fprintf(b, "%s  else:\n", indent)
				writeForest(b, n.Conditional.Alternate, depth+2)
			}
		}
		if n.Switch != nil {
			for _, c := range n.Switch.Cases {
				label := c.Value
				if c.Default {
					label = "default"
				}
				fmt.Fprintf(b, "%s  case %s:\n", indent, label)
				writeForest(b, c.Body, depth+2)
			}
		}
	}
}

// outlineLine is the one-line summary of a flow node.
func outlineLine(n *schema.FlowNode) string {
	switch n.Kind {
	case schema.FlowStep:
		if n.Step == nil {
			return "step"
		}
		line := fmt.Sprintf("step %q", n.Step.ID)
		if n.Step.Callee != "" {
			line += " -> " + n.Step.Callee
		}
		if n.Step.Retry != nil {
			line += fmt.Sprintf(" retry=%d", n.Step.Retry.Attempts)
		}
		if n.Step.Timeout != nil {
			line += fmt.Sprintf(" timeout=%dms", n.Step.Timeout.Ms)
		}
		return line
	case schema.FlowSequence:
		return fmt.Sprintf("sequence (%d)", len(n.Children))
	case schema.FlowParallel:
		return fmt.Sprintf("parallel (%d arms)", len(n.Children))
	case schema.FlowRace:
		return fmt.Sprintf("race (%d arms)", len(n.Children))
	case schema.FlowConditional:
		if n.Conditional != nil {
			return fmt.Sprintf("if %s", n.Conditional.Condition)
		}
		return "if"
	case schema.FlowDecision:
		if n.Conditional != nil {
			return fmt.Sprintf("branch %q on %s", n.Conditional.BranchID, n.Conditional.Condition)
		}
		return "branch"
	case schema.FlowSwitch:
		if n.Switch != nil {
			return fmt.Sprintf("switch %s (%d cases)", n.Switch.Discriminant, len(n.Switch.Cases))
		}
		return "switch"
	case schema.FlowLoop:
		if n.Loop != nil {
			line := fmt.Sprintf("loop %s", n.Loop.Kind)
			if n.Loop.Source != "" {
				line += " over " + n.Loop.Source
			}
			if n.Loop.Count != nil {
				line += fmt.Sprintf(" x%d", *n.Loop.Count)
			}
			return line
		}
		return "loop"
	case schema.FlowStream:
		if n.Stream != nil {
			return fmt.Sprintf("stream %q", n.Stream.ID)
		}
		return "stream"
	case schema.FlowSagaStep:
		if n.Saga != nil {
			line := fmt.Sprintf("saga step %q", n.Saga.ID)
			if n.Saga.Try {
				line = fmt.Sprintf("saga try-step %q", n.Saga.ID)
			}
			if n.Saga.Compensated {
				line += " compensated"
				if n.Saga.CompensationCallee != "" {
					line += " by " + n.Saga.CompensationCallee
				}
			}
			return line
		}
		return "saga step"
	case schema.FlowWorkflowRef:
		if n.Ref != nil {
			return fmt.Sprintf("workflow ref %s (unresolved)", n.Ref.Name)
		}
		return "workflow ref"
	}
	return string(n.Kind)
}
