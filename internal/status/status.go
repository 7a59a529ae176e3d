package status

import (
	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// State names used in status output.
const (
	StateApproved = "approved"
	StateActive   = "active"
	StateStale    = "stale"
	StatePending  = "pending"
)

// StageInfo describes one stage of a project.
type StageInfo struct {
	Stage    blueprint.Stage `json:"-"`
	Name     string          `json:"stage"` // wire name (e.g. "dataModel")
	Label    string          `json:"label"` // human-readable name (e.g. "Data Model")
	Approved bool            `json:"approved"`
	Active   bool            `json:"active"`
	Stale    bool            `json:"stale"`
	Drafted  bool            `json:"drafted"` // the stage has any content
}

// State returns the single word used for the stage in listings. A stale
// stage reports stale even when approved, since its content needs a refresh.
func (si StageInfo) State() string {
	switch {
	case si.Stale:
		return StateStale
	case si.Approved:
		return StateApproved
	case si.Active:
		return StateActive
	default:
		return StatePending
	}
}

// ProjectStatus holds the stage summary of one project.
type ProjectStatus struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	ActiveStage   blueprint.Stage `json:"activeStage"`
	Stages        []StageInfo     `json:"stages"`
	CanApprove    bool            `json:"canApprove"`
	ApproveLabel  string          `json:"approveLabel"`
	SectionsDone  int             `json:"sectionsDone"`
	SectionsTotal int             `json:"sectionsTotal"`
	ApprovedCount int             `json:"approvedCount"`
}

// Complete reports whether every non-terminal stage has been approved.
func (ps ProjectStatus) Complete() bool {
	return ps.ApprovedCount == len(blueprint.Stages())-1
}

// ForProject summarizes p.
func ForProject(p blueprint.Project) ProjectStatus {
	b := p.Blueprint
	ps := ProjectStatus{
		ID:            p.ID,
		Title:         p.Title,
		ActiveStage:   b.ActiveStage,
		CanApprove:    blueprint.CanApprove(p, b.ActiveStage),
		ApproveLabel:  b.ActiveStage.ApproveLabel(),
		SectionsTotal: len(b.Sections),
		ApprovedCount: p.ApprovedStages.Len(),
	}
	for _, s := range b.Sections {
		if s.Completed {
			ps.SectionsDone++
		}
	}
	for _, s := range blueprint.Stages() {
		ps.Stages = append(ps.Stages, StageInfo{
			Stage:    s,
			Name:     s.String(),
			Label:    s.Label(),
			Approved: p.ApprovedStages.Has(s),
			Active:   s == b.ActiveStage,
			Stale:    p.StaleStages.Has(s),
			Drafted:  drafted(b, s),
		})
	}
	return ps
}

// ForProjects summarizes each project in order.
func ForProjects(projects []blueprint.Project) []ProjectStatus {
	out := make([]ProjectStatus, len(projects))
	for i, p := range projects {
		out[i] = ForProject(p)
	}
	return out
}

func drafted(b blueprint.Blueprint, s blueprint.Stage) bool {
	for _, f := range blueprint.Fields() {
		if f.Stage() == s && b.Get(f) != "" {
			return true
		}
	}
	return s == blueprint.StageSections && len(b.Sections) > 0
}
