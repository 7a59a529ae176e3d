package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	stateStyles = map[string]lipgloss.Style{
		StateApproved: lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		StateActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D29922")),
		StateStale:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		StatePending:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

// Render formats ps as a stage table for terminal output.
func Render(ps ProjectStatus) string {
	var sb strings.Builder
	title := ps.Title
	if title == "" {
		title = "Untitled Project"
	}
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", title, ps.ID)))
	sb.WriteString("\n")

	for _, si := range ps.Stages {
		marker := "  "
		if si.Active {
			marker = "->"
		}
		state := si.State()
		label := stateStyles[state].Render(fmt.Sprintf("[%s]", state))
		fmt.Fprintf(&sb, "  %s %d. %-12s %s", marker, si.Stage.Order(), si.Label, label)
		if !si.Drafted {
			sb.WriteString(hintStyle.Render("  (empty)"))
		}
		sb.WriteString("\n")
	}

	if ps.SectionsTotal > 0 {
		fmt.Fprintf(&sb, "  Sections: %d/%d complete\n", ps.SectionsDone, ps.SectionsTotal)
	}
	switch {
	case ps.Complete():
		sb.WriteString(hintStyle.Render("  All stages approved. Next: Execute Plan."))
	case ps.CanApprove:
		sb.WriteString(hintStyle.Render("  Next: " + ps.ApproveLabel))
	default:
		sb.WriteString(hintStyle.Render("  Approve earlier stages before " + ps.ActiveStage.Label() + "."))
	}
	sb.WriteString("\n")
	return sb.String()
}
