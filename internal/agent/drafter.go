package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dusk-indust/blueprint/internal/a2a"
	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/gateway"
)

// Version is reported on the drafting agent's card.
var Version = "dev"

// NewDraftingAgent returns the local reference agent. It drafts downstream
// stage text from the product definition without calling out to a model,
// and acknowledges execution requests with an explicit outcome marker.
func NewDraftingAgent() *BaseAgent {
	card := a2a.AgentCard{
		Name:        "blueprint-drafter",
		Description: "Drafts data model, design, sections and export notes from an approved product definition",
		Version:     Version,
		Skills: []a2a.AgentSkill{
			{
				ID:          string(gateway.KindRegenerate),
				Name:        "Regenerate Stage",
				Description: "Produce fresh content for one blueprint stage",
				Tags:        []string{"blueprint", "drafting"},
			},
			{
				ID:          string(gateway.KindExecute),
				Name:        "Execute Plan",
				Description: "Accept an exported plan and report an outcome",
				Tags:        []string{"blueprint", "execution"},
			},
		},
	}
	return NewBaseAgent(card, processDraft)
}

func processDraft(_ context.Context, _ *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	p, err := gateway.DecodeTask(msg)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case gateway.KindRegenerate:
		text, sections, err := DraftStage(p.Title, p.Stage, p.Blueprint)
		if err != nil {
			return nil, err
		}
		art, err := gateway.DraftArtifact(p.Stage, text, sections)
		if err != nil {
			return nil, err
		}
		return []a2a.Artifact{art}, nil
	case gateway.KindExecute:
		return []a2a.Artifact{{
			ArtifactID: "report",
			Name:       "report",
			Parts:      []a2a.Part{a2a.TextPart(executionReport(p.Title, p.Plan))},
		}}, nil
	default:
		return nil, fmt.Errorf("agent: unsupported task kind %q", p.Kind)
	}
}

// DraftStage produces deterministic content for stage from the blueprint.
// Sections are returned only for the sections stage.
func DraftStage(title string, stage blueprint.Stage, b blueprint.Blueprint) (string, []blueprint.Section, error) {
	features := featureList(b)
	var sb strings.Builder

	switch stage {
	case blueprint.StageDataModel:
		fmt.Fprintf(&sb, "Entities for %s:\n", title)
		for _, f := range features {
			fmt.Fprintf(&sb, "- %s: id, status, createdAt, updatedAt\n", entityName(f))
		}
		return strings.TrimRight(sb.String(), "\n"), nil, nil

	case blueprint.StageDesign:
		fmt.Fprintf(&sb, "Screens for %s:\n", title)
		for _, f := range features {
			fmt.Fprintf(&sb, "- %s view backed by %s\n", f, entityName(f))
		}
		return strings.TrimRight(sb.String(), "\n"), nil, nil

	case blueprint.StageSections:
		sections := make([]blueprint.Section, 0, len(features))
		seen := make(map[string]int)
		for _, f := range features {
			id := slug(f)
			seen[id]++
			if n := seen[id]; n > 1 {
				id = fmt.Sprintf("%s-%d", id, n)
			}
			sections = append(sections, blueprint.Section{
				ID:      id,
				Title:   f,
				Summary: "Build the " + f + " flow end to end.",
				Agent:   "builder",
			})
		}
		fmt.Fprintf(&sb, "%d sections drafted for %s.", len(sections), title)
		return sb.String(), sections, nil

	case blueprint.StageExport:
		fmt.Fprintf(&sb, "Export checklist for %s:\n", title)
		fmt.Fprintf(&sb, "- %d sections planned\n", len(b.Sections))
		fmt.Fprintf(&sb, "- hand the Markdown export to the executor")
		return sb.String(), nil, nil

	default:
		return "", nil, fmt.Errorf("agent: stage %s is not regenerated", stage)
	}
}

func executionReport(title, plan string) string {
	if strings.TrimSpace(plan) == "" {
		return fmt.Sprintf("Received an empty plan for %s.\nOUTCOME: BLOCKED - plan is empty", title)
	}
	lines := strings.Count(plan, "\n") + 1
	return fmt.Sprintf("Accepted the %d-line plan for %s.\nOUTCOME: COMPLETE - plan accepted", lines, title)
}

// featureList returns one entry per non-empty line of the features text,
// with list markers removed. An empty feature list falls back to a single
// "Core" entry.
func featureList(b blueprint.Blueprint) []string {
	var out []string
	for _, line := range strings.Split(b.Features, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = []string{"Core"}
	}
	return out
}

func entityName(feature string) string {
	var sb strings.Builder
	for _, word := range strings.FieldsFunc(feature, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	if sb.Len() == 0 {
		return "Item"
	}
	return sb.String()
}

func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(sb.String(), "-")
	if out == "" {
		return "section"
	}
	return out
}
