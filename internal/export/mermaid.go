package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/status"
)

var stateClasses = []struct {
	state string
	style string
}{
	{status.StateApproved, "fill:#d3f9d8,stroke:#2b8a3e"},
	{status.StateActive, "fill:#d0ebff,stroke:#1864ab"},
	{status.StateStale, "fill:#fff3bf,stroke:#e67700"},
	{status.StatePending, "fill:#f1f3f5,stroke:#868e96"},
}

// GenerateMermaid produces a Mermaid graph LR diagram of the stage
// progression of p. Each stage node is classed by its status.
func GenerateMermaid(p blueprint.Project) string {
	ps := status.ForProject(p)

	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for _, si := range ps.Stages {
		fmt.Fprintf(&sb, "  %s[\"%s\"]:::%s\n", nodeID(si.Stage), si.Label, si.State())
	}
	for _, s := range blueprint.Stages() {
		if next, ok := s.Next(); ok {
			arrow := "-->"
			if !p.ApprovedStages.Has(s) {
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "  %s %s %s\n", nodeID(s), arrow, nodeID(next))
		}
	}
	for _, c := range stateClasses {
		fmt.Fprintf(&sb, "  classDef %s %s\n", c.state, c.style)
	}
	return sb.String()
}

func nodeID(s blueprint.Stage) string {
	return fmt.Sprintf("S%d", s.Order())
}
