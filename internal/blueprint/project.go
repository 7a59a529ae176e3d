package blueprint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Approval rejections returned by CheckApproval.
var (
	ErrTerminalStage      = errors.New("export is the terminal stage and has no successor to approve into")
	ErrNotActiveStage     = errors.New("only the active stage can be approved")
	ErrAlreadyApproved    = errors.New("stage is already approved")
	ErrUpstreamUnapproved = errors.New("an earlier stage has not been approved yet")
)

// Section is a named unit of work within the sections stage.
type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Agent     string `json:"agent"`
	Completed bool   `json:"completed"`
}

// Blueprint is the mutable plan body of one project. Text fields for stages
// not yet reached are empty strings, never absent.
type Blueprint struct {
	Overview      string    `json:"overview"`
	Problems      string    `json:"problems"`
	Features      string    `json:"features"`
	DataModel     string    `json:"dataModel"`
	Design        string    `json:"design"`
	SectionsDraft string    `json:"sectionsDraft"`
	Sections      []Section `json:"sections"`
	ExportNotes   string    `json:"exportNotes"`
	ActiveStage   Stage     `json:"activeStage"`
}

// Clone returns a deep copy of the blueprint.
func (b Blueprint) Clone() Blueprint {
	out := b
	if b.Sections != nil {
		out.Sections = make([]Section, len(b.Sections))
		copy(out.Sections, b.Sections)
	}
	return out
}

// SectionIndex returns the position of the section with the given id, or -1.
func (b Blueprint) SectionIndex(id string) int {
	for i, s := range b.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Project is one product-definition effort with its blueprint and approvals.
type Project struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Blueprint      Blueprint `json:"blueprint"`
	ApprovedStages StageSet  `json:"approvedStages"`

	// StaleStages holds stages whose regeneration was requested but did not
	// complete. Their content may predate the latest upstream approval.
	StaleStages StageSet `json:"staleStages"`
}

// NewID returns a fresh project identifier.
func NewID() string {
	return uuid.NewString()
}

// NewProject builds a project positioned at the product stage. It is the
// hand-off point from upstream planning; the stage engine never calls it.
func NewProject(id, title string, now time.Time) Project {
	if id == "" {
		id = NewID()
	}
	return Project{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Blueprint: Blueprint{ActiveStage: StageProduct},
	}
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	out := p
	out.Blueprint = p.Blueprint.Clone()
	return out
}

// Validate checks the invariants every persisted project must satisfy.
func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("blueprint: project id is empty")
	}
	if !p.Blueprint.ActiveStage.Valid() {
		return fmt.Errorf("blueprint: project %s: %w: %d", p.ID, ErrUnknownStage, int(p.Blueprint.ActiveStage))
	}
	if err := ValidateSections(p.Blueprint.Sections); err != nil {
		return fmt.Errorf("blueprint: project %s: %w", p.ID, err)
	}
	return nil
}

// ValidateSections checks that every section has a unique, non-empty id.
func ValidateSections(sections []Section) error {
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		if s.ID == "" {
			return errors.New("section with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// CheckApproval returns nil when stage s of p may be approved, or the
// reason it may not. A stage is approvable only when it is the active
// stage, is not terminal, has not been approved, and every earlier stage
// has been approved.
func CheckApproval(p Project, s Stage) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	if s == StageExport {
		return ErrTerminalStage
	}
	if s != p.Blueprint.ActiveStage {
		return ErrNotActiveStage
	}
	if p.ApprovedStages.Has(s) {
		return ErrAlreadyApproved
	}
	for _, u := range s.Upstream() {
		if !p.ApprovedStages.Has(u) {
			return ErrUpstreamUnapproved
		}
	}
	return nil
}

// CanApprove reports whether stage s of p may be approved.
func CanApprove(p Project, s Stage) bool {
	return CheckApproval(p, s) == nil
}
