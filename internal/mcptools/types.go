package mcptools

import (
	"time"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK generates JSON schemas from these struct tags.

// ProjectInput names the project a tool acts on.
type ProjectInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
}

// ListProjectsInput is the input for the list_projects tool.
type ListProjectsInput struct{}

// UpdateFieldInput is the input for the update_field tool.
type UpdateFieldInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	Field     string `json:"field" jsonschema:"one of overview, problems, features, dataModel, design, sectionsDraft, exportNotes"`
	Text      string `json:"text" jsonschema:"the new field text, stored verbatim"`
	Save      bool   `json:"save,omitempty" jsonschema:"persist immediately instead of waiting for save_project or autosave"`
}

// SetSectionInput is the input for the set_section_completion tool.
type SetSectionInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	SectionID string `json:"sectionId" jsonschema:"the section identifier"`
	Completed bool   `json:"completed" jsonschema:"the new completion flag"`
}

// SetStageInput is the input for the set_stage tool.
type SetStageInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	Stage     string `json:"stage" jsonschema:"one of product, dataModel, design, sections, export"`
}

// MarkStaleInput is the input for the mark_stale tool.
type MarkStaleInput struct {
	ProjectID string   `json:"projectId" jsonschema:"the project identifier"`
	Stages    []string `json:"stages" jsonschema:"stages to mark stale: dataModel, design, sections, export"`
}

// RenameInput is the input for the rename_project tool.
type RenameInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	Title     string `json:"title" jsonschema:"the new project title"`
}

// --- MCP Tool Output Types ---

// ProjectSummary is one row of list_projects.
type ProjectSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ActiveStage string   `json:"activeStage"`
	Approved    []string `json:"approved"`
	Stale       []string `json:"stale"`
	CanApprove  bool     `json:"canApprove"`
	Dirty       bool     `json:"dirty"`
	UpdatedAt   string   `json:"updatedAt"`
}

// ListProjectsOutput is the result of list_projects.
type ListProjectsOutput struct {
	Projects []ProjectSummary `json:"projects"`
}

// SectionView is one section of a project.
type SectionView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Completed bool   `json:"completed"`
}

// ProjectView is the full content of one project.
type ProjectView struct {
	Summary       ProjectSummary `json:"summary"`
	CreatedAt     string         `json:"createdAt"`
	Overview      string         `json:"overview"`
	Problems      string         `json:"problems"`
	Features      string         `json:"features"`
	DataModel     string         `json:"dataModel"`
	Design        string         `json:"design"`
	SectionsDraft string         `json:"sectionsDraft"`
	Sections      []SectionView  `json:"sections"`
	ExportNotes   string         `json:"exportNotes"`
}

// GetProjectOutput is the result of get_project and the editing tools.
type GetProjectOutput struct {
	Project ProjectView `json:"project"`
}

// StageStatus is one stage row of get_status.
type StageStatus struct {
	Stage   string `json:"stage"`
	Label   string `json:"label"`
	State   string `json:"state"`
	Drafted bool   `json:"drafted"`
}

// GetStatusOutput is the result of get_status.
type GetStatusOutput struct {
	ProjectID     string        `json:"projectId"`
	ActiveStage   string        `json:"activeStage"`
	CanApprove    bool          `json:"canApprove"`
	ApproveLabel  string        `json:"approveLabel"`
	Stages        []StageStatus `json:"stages"`
	SectionsDone  int           `json:"sectionsDone"`
	SectionsTotal int           `json:"sectionsTotal"`
	Message       string        `json:"message,omitempty"`
}

// ApproveOutput is the result of approve_stage and retry_regeneration.
type ApproveOutput struct {
	ProjectID   string   `json:"projectId"`
	Approved    string   `json:"approved,omitempty"`
	ActiveStage string   `json:"activeStage"`
	Regenerated []string `json:"regenerated"`
	Stale       []string `json:"stale"`
	// Status is "ok", or "degraded" when regeneration did not complete.
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExecuteOutput is the result of execute_plan.
type ExecuteOutput struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId,omitempty"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Report    string `json:"report"`
}

// ExportOutput is the result of export_markdown.
type ExportOutput struct {
	ProjectID string `json:"projectId"`
	Markdown  string `json:"markdown"`
}

// DeleteOutput is the result of delete_project.
type DeleteOutput struct {
	ProjectID string `json:"projectId"`
	Deleted   bool   `json:"deleted"`
}

// SaveOutput is the result of save_project.
type SaveOutput struct {
	ProjectID string `json:"projectId"`
	Saved     bool   `json:"saved"`
}

func summarize(p blueprint.Project, dirty bool) ProjectSummary {
	return ProjectSummary{
		ID:          p.ID,
		Title:       p.Title,
		ActiveStage: p.Blueprint.ActiveStage.String(),
		Approved:    names(p.ApprovedStages),
		Stale:       names(p.StaleStages),
		CanApprove:  blueprint.CanApprove(p, p.Blueprint.ActiveStage),
		Dirty:       dirty,
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func viewOf(p blueprint.Project, dirty bool) ProjectView {
	b := p.Blueprint
	v := ProjectView{
		Summary:       summarize(p, dirty),
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		Overview:      b.Overview,
		Problems:      b.Problems,
		Features:      b.Features,
		DataModel:     b.DataModel,
		Design:        b.Design,
		SectionsDraft: b.SectionsDraft,
		Sections:      make([]SectionView, len(b.Sections)),
		ExportNotes:   b.ExportNotes,
	}
	for i, s := range b.Sections {
		v.Sections[i] = SectionView{ID: s.ID, Title: s.Title, Summary: s.Summary, Agent: s.Agent, Completed: s.Completed}
	}
	return v
}

func names(set blueprint.StageSet) []string {
	out := set.Names()
	if out == nil {
		out = []string{}
	}
	return out
}

func stageNames(stages []blueprint.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.String()
	}
	return out
}
