package store

import (
	"fmt"
	"time"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// timeLayout is fixed-width so that lexical order of stored timestamps
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// record is the serialized form of a Project shared by the file, Redis and
// Kuzu backends.
type record struct {
	ID             string          `json:"id" toml:"id"`
	Title          string          `json:"title" toml:"title"`
	CreatedAt      string          `json:"createdAt" toml:"created_at"`
	UpdatedAt      string          `json:"updatedAt" toml:"updated_at"`
	ActiveStage    string          `json:"activeStage" toml:"active_stage"`
	ApprovedStages []string        `json:"approvedStages" toml:"approved_stages"`
	StaleStages    []string        `json:"staleStages" toml:"stale_stages"`
	Overview       string          `json:"overview" toml:"overview"`
	Problems       string          `json:"problems" toml:"problems"`
	Features       string          `json:"features" toml:"features"`
	DataModel      string          `json:"dataModel" toml:"data_model"`
	Design         string          `json:"design" toml:"design"`
	SectionsDraft  string          `json:"sectionsDraft" toml:"sections_draft"`
	ExportNotes    string          `json:"exportNotes" toml:"export_notes"`
	Sections       []sectionRecord `json:"sections" toml:"sections"`
}

type sectionRecord struct {
	ID        string `json:"id" toml:"id"`
	Title     string `json:"title" toml:"title"`
	Summary   string `json:"summary" toml:"summary"`
	Agent     string `json:"agent" toml:"agent"`
	Completed bool   `json:"completed" toml:"completed"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func toRecord(p blueprint.Project) record {
	b := p.Blueprint
	r := record{
		ID:             p.ID,
		Title:          p.Title,
		CreatedAt:      formatTime(p.CreatedAt),
		UpdatedAt:      formatTime(p.UpdatedAt),
		ActiveStage:    b.ActiveStage.String(),
		ApprovedStages: p.ApprovedStages.Names(),
		StaleStages:    p.StaleStages.Names(),
		Overview:       b.Overview,
		Problems:       b.Problems,
		Features:       b.Features,
		DataModel:      b.DataModel,
		Design:         b.Design,
		SectionsDraft:  b.SectionsDraft,
		ExportNotes:    b.ExportNotes,
	}
	for _, s := range b.Sections {
		r.Sections = append(r.Sections, sectionRecord(s))
	}
	return r
}

func (r record) project() (blueprint.Project, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("project %s: created_at: %w", r.ID, err)
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("project %s: updated_at: %w", r.ID, err)
	}
	active, err := blueprint.ParseStage(r.ActiveStage)
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("project %s: active stage: %w", r.ID, err)
	}
	approved, err := blueprint.ParseStageSet(r.ApprovedStages)
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("project %s: approved stages: %w", r.ID, err)
	}
	stale, err := blueprint.ParseStageSet(r.StaleStages)
	if err != nil {
		return blueprint.Project{}, fmt.Errorf("project %s: stale stages: %w", r.ID, err)
	}

	p := blueprint.Project{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: created,
		UpdatedAt: updated,
		Blueprint: blueprint.Blueprint{
			Overview:      r.Overview,
			Problems:      r.Problems,
			Features:      r.Features,
			DataModel:     r.DataModel,
			Design:        r.Design,
			SectionsDraft: r.SectionsDraft,
			ExportNotes:   r.ExportNotes,
			ActiveStage:   active,
		},
		ApprovedStages: approved,
		StaleStages:    stale,
	}
	for _, s := range r.Sections {
		p.Blueprint.Sections = append(p.Blueprint.Sections, blueprint.Section(s))
	}
	if err := p.Validate(); err != nil {
		return blueprint.Project{}, err
	}
	return p, nil
}
