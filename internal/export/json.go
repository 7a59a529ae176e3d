package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/status"
)

// ProjectExport is the top-level JSON export structure.
type ProjectExport struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	ExportedAt  string          `json:"exportedAt"`
	UpdatedAt   string          `json:"updatedAt"`
	ActiveStage string          `json:"activeStage"`
	CanApprove  bool            `json:"canApprove"`
	Stages      []StageExport   `json:"stages"`
	Sections    []SectionExport `json:"sections,omitempty"`
}

// StageExport describes one stage.
type StageExport struct {
	Stage   int    `json:"stage"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Status  string `json:"status"`
	Drafted bool   `json:"drafted"`
}

// SectionExport describes one section of the sections stage.
type SectionExport struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Agent     string `json:"agent,omitempty"`
	Completed bool   `json:"completed"`
}

// ExportProject builds a ProjectExport stamped with now.
func ExportProject(p blueprint.Project, now time.Time) *ProjectExport {
	ps := status.ForProject(p)

	export := &ProjectExport{
		ID:          p.ID,
		Title:       p.Title,
		ExportedAt:  now.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
		ActiveStage: ps.ActiveStage.String(),
		CanApprove:  ps.CanApprove,
	}
	for _, si := range ps.Stages {
		export.Stages = append(export.Stages, StageExport{
			Stage:   si.Stage.Order(),
			Name:    si.Name,
			Label:   si.Label,
			Status:  si.State(),
			Drafted: si.Drafted,
		})
	}
	for _, s := range p.Blueprint.Sections {
		export.Sections = append(export.Sections, SectionExport{
			ID:        s.ID,
			Title:     s.Title,
			Agent:     s.Agent,
			Completed: s.Completed,
		})
	}
	return export
}

// JSON returns the indented JSON status export of p.
func JSON(p blueprint.Project, now time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(ExportProject(p, now), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal %s: %w", p.ID, err)
	}
	return append(data, '\n'), nil
}
