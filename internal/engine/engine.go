// Package engine is the stateful controller for a set of blueprint projects:
// selection, field edits, persistence, the approval protocol and plan
// execution. Every operation is safe for concurrent use; state is
// partitioned per project and at most one approval, regeneration or
// execution runs per project at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/export"
	"github.com/dusk-indust/blueprint/internal/gateway"
	"github.com/dusk-indust/blueprint/internal/store"
)

// DefaultGatewayTimeout bounds a single gateway call.
const DefaultGatewayTimeout = 2 * time.Minute

// Level grades a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Status is the engine's latest human-readable status message.
type Status struct {
	Level     Level
	Message   string
	ProjectID string
	At        time.Time
}

type entry struct {
	project  blueprint.Project
	dirty    bool
	inFlight bool
}

// Engine holds the in-memory project collection and synchronizes it with a
// store.Store.
type Engine struct {
	mu       sync.Mutex
	store    store.Store
	gateway  gateway.Gateway
	entries  []*entry
	selected string
	status   Status
	events   *eventReporter

	now     func() time.Time
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGatewayTimeout bounds each gateway call. A non-positive value leaves
// calls bounded only by the caller's context.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.events = newEventReporter(n)
		}
	}
}

// New returns an engine over st. gw may be nil, in which case approvals
// still commit but downstream stages are marked stale instead of
// regenerated.
func New(st store.Store, gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		gateway: gw,
		events:  newEventReporter(64),
		now:     time.Now,
		timeout: DefaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's event stream. The channel is closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.events.ch
}

// Close closes the event stream. It does not close the store.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events.close()
}

// Status returns the latest status message.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LoadProjects replaces the in-memory collection with the store's contents.
// On failure the collection and selection are left untouched and the error
// is reported in the status. Projects with unsaved edits or an operation in
// flight keep their in-memory state.
func (e *Engine) LoadProjects(ctx context.Context) ([]blueprint.Project, error) {
	loaded, err := e.store.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.fail("", fmt.Sprintf("Could not load projects: %v", err))
		return nil, err
	}

	keep := make(map[string]*entry)
	for _, ent := range e.entries {
		if ent.dirty || ent.inFlight {
			keep[ent.project.ID] = ent
		}
	}
	entries := make([]*entry, 0, len(loaded))
	for _, p := range loaded {
		if ent, ok := keep[p.ID]; ok {
			entries = append(entries, ent)
			delete(keep, p.ID)
			continue
		}
		entries = append(entries, &entry{project: p})
	}
	// Unsaved projects the store has not seen yet stay in the collection.
	for _, ent := range e.entries {
		if _, ok := keep[ent.project.ID]; ok {
			entries = append(entries, ent)
		}
	}
	e.entries = entries
	if e.selected != "" && e.find(e.selected) == nil {
		e.selected = ""
	}

	e.setStatus(LevelInfo, "", fmt.Sprintf("Loaded %d projects.", len(e.entries)))
	e.emit(EventLoaded, "", 0, e.status.Message)
	return e.snapshot(), nil
}

// Projects returns copies of every project in collection order.
func (e *Engine) Projects() []blueprint.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Project returns a copy of the project with the given id.
func (e *Engine) Project(id string) (blueprint.Project, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent := e.find(id)
	if ent == nil {
		return blueprint.Project{}, false
	}
	return ent.project.Clone(), true
}

// Selected returns a copy of the selected project.
func (e *Engine) Selected() (blueprint.Project, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == "" {
		return blueprint.Project{}, false
	}
	return e.find(e.selected).project.Clone(), true
}

// SelectedID returns the selected project id, or "".
func (e *Engine) SelectedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// SelectProject selects the project with the given id. Unknown ids leave the
// selection unchanged and return false.
func (e *Engine) SelectProject(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.find(id) == nil {
		return false
	}
	e.selected = id
	e.emit(EventSelected, id, 0, "")
	return true
}

// IsDirty reports whether the project has edits that have not been saved.
func (e *Engine) IsDirty(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent := e.find(id)
	return ent != nil && ent.dirty
}

// IsApproving reports whether an approval, regeneration or execution is in
// flight for the project.
func (e *Engine) IsApproving(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent := e.find(id)
	return ent != nil && ent.inFlight
}

// AddProject takes over a project created by upstream planning and persists
// it. The engine never creates projects itself.
func (e *Engine) AddProject(ctx context.Context, p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.find(p.ID) != nil {
		return fmt.Errorf("%w: %s", ErrProjectExists, p.ID)
	}
	if err := e.store.Save(ctx, p); err != nil {
		e.fail(p.ID, fmt.Sprintf("Could not save %q: %v", p.Title, err))
		return err
	}
	e.entries = append(e.entries, &entry{project: p.Clone()})
	e.setStatus(LevelSuccess, p.ID, fmt.Sprintf("Added %q.", p.Title))
	e.emit(EventAdded, p.ID, p.Blueprint.ActiveStage, "")
	return nil
}

// DeleteProject removes the project from the store and the collection. The
// selection is cleared when it pointed at the deleted project. A response
// to an in-flight regeneration for the project is discarded.
func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.index(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err := e.store.Delete(ctx, id); err != nil {
		e.fail(id, fmt.Sprintf("Could not delete project: %v", err))
		return err
	}
	e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	if e.selected == id {
		e.selected = ""
	}
	e.setStatus(LevelInfo, id, "Project deleted.")
	e.emit(EventDeleted, id, 0, "")
	return nil
}

// UpdateField replaces one text field of the selected project. The edit is
// applied in memory only; Save persists it.
func (e *Engine) UpdateField(f blueprint.Field, text string) error {
	return e.mutate(func(p *blueprint.Project) error {
		return p.Blueprint.Set(f, text)
	})
}

// UpdateOverview replaces the overview of the selected project.
func (e *Engine) UpdateOverview(text string) error {
	return e.UpdateField(blueprint.FieldOverview, text)
}

// UpdateProblems replaces the problem statement of the selected project.
func (e *Engine) UpdateProblems(text string) error {
	return e.UpdateField(blueprint.FieldProblems, text)
}

// UpdateFeatures replaces the feature list of the selected project.
func (e *Engine) UpdateFeatures(text string) error {
	return e.UpdateField(blueprint.FieldFeatures, text)
}

// UpdateDataModel replaces the data model draft of the selected project.
func (e *Engine) UpdateDataModel(text string) error {
	return e.UpdateField(blueprint.FieldDataModel, text)
}

// UpdateDesign replaces the design draft of the selected project.
func (e *Engine) UpdateDesign(text string) error {
	return e.UpdateField(blueprint.FieldDesign, text)
}

// UpdateSectionsDraft replaces the sections draft of the selected project.
func (e *Engine) UpdateSectionsDraft(text string) error {
	return e.UpdateField(blueprint.FieldSectionsDraft, text)
}

// UpdateExportNotes replaces the export notes of the selected project.
func (e *Engine) UpdateExportNotes(text string) error {
	return e.UpdateField(blueprint.FieldExportNotes, text)
}

// UpdateProjectTitle renames the selected project.
func (e *Engine) UpdateProjectTitle(title string) error {
	return e.mutate(func(p *blueprint.Project) error {
		p.Title = title
		return nil
	})
}

// SetSectionCompletion sets the completed flag of one section. Approvals are
// not affected.
func (e *Engine) SetSectionCompletion(sectionID string, completed bool) error {
	return e.mutate(func(p *blueprint.Project) error {
		i := p.Blueprint.SectionIndex(sectionID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
		}
		p.Blueprint.Sections[i].Completed = completed
		return nil
	})
}

// SetStage moves the selected project's navigation cursor. It never
// approves or regenerates anything.
func (e *Engine) SetStage(s blueprint.Stage) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", blueprint.ErrUnknownStage, int(s))
	}
	return e.mutate(func(p *blueprint.Project) error {
		p.Blueprint.ActiveStage = s
		return nil
	})
}

// MarkStale flags stages of the selected project as needing regeneration,
// typically after an upstream edit. RetryRegeneration refreshes them.
func (e *Engine) MarkStale(stages ...blueprint.Stage) error {
	for _, s := range stages {
		if !s.Valid() {
			return fmt.Errorf("%w: %d", blueprint.ErrUnknownStage, int(s))
		}
		if _, ok := s.DraftField(); !ok {
			return ErrNotRegenerable
		}
	}
	return e.mutate(func(p *blueprint.Project) error {
		for _, s := range stages {
			p.StaleStages = p.StaleStages.Add(s)
		}
		return nil
	})
}

// mutate applies fn to a copy of the selected project and installs the copy
// only when fn succeeds, so a failed edit changes nothing.
func (e *Engine) mutate(fn func(p *blueprint.Project) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, err := e.selectedEntry()
	if err != nil {
		return err
	}
	next := ent.project.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = e.now()
	ent.project = next
	ent.dirty = true
	e.emit(EventUpdated, next.ID, next.Blueprint.ActiveStage, "")
	return nil
}

// Save persists the selected project. A failure is reported in the status
// and leaves the edits in memory so Save can be retried.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, err := e.selectedEntry()
	if err != nil {
		return err
	}
	return e.saveEntry(ctx, ent)
}

// SaveDirty persists every project with unsaved edits and returns the joined
// errors of the saves that failed.
func (e *Engine) SaveDirty(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, ent := range e.entries {
		if !ent.dirty {
			continue
		}
		if err := e.saveEntry(ctx, ent); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DirtyCount returns the number of projects with unsaved edits.
func (e *Engine) DirtyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ent := range e.entries {
		if ent.dirty {
			n++
		}
	}
	return n
}

func (e *Engine) saveEntry(ctx context.Context, ent *entry) error {
	if err := e.store.Save(ctx, ent.project); err != nil {
		e.fail(ent.project.ID, fmt.Sprintf("Save failed, edits are kept in memory: %v", err))
		return err
	}
	ent.dirty = false
	e.setStatus(LevelSuccess, ent.project.ID, "Saved.")
	e.emit(EventSaved, ent.project.ID, ent.project.Blueprint.ActiveStage, "")
	return nil
}

// ExportMarkdown renders the selected project as Markdown.
func (e *Engine) ExportMarkdown() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, err := e.selectedEntry()
	if err != nil {
		return "", err
	}
	return export.Markdown(ent.project), nil
}

// ExportMarkdownFile writes the selected project's Markdown export to path.
// The file content is identical to ExportMarkdown.
func (e *Engine) ExportMarkdownFile(path string) error {
	e.mu.Lock()
	ent, err := e.selectedEntry()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	p := ent.project.Clone()
	e.mu.Unlock()
	return export.WriteMarkdownFile(path, p)
}

func (e *Engine) selectedEntry() (*entry, error) {
	if e.selected == "" {
		return nil, ErrNoProjectSelected
	}
	ent := e.find(e.selected)
	if ent == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, e.selected)
	}
	return ent, nil
}

func (e *Engine) entryByID(id string) (*entry, error) {
	if ent := e.find(id); ent != nil {
		return ent, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
}

func (e *Engine) find(id string) *entry {
	if i := e.index(id); i >= 0 {
		return e.entries[i]
	}
	return nil
}

func (e *Engine) index(id string) int {
	for i, ent := range e.entries {
		if ent.project.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) snapshot() []blueprint.Project {
	out := make([]blueprint.Project, len(e.entries))
	for i, ent := range e.entries {
		out[i] = ent.project.Clone()
	}
	return out
}

func (e *Engine) setStatus(level Level, projectID, msg string) {
	e.status = Status{Level: level, Message: msg, ProjectID: projectID, At: e.now()}
}

func (e *Engine) warn(projectID, msg string) {
	log.Printf("WARNING: %s", msg)
	e.setStatus(LevelWarning, projectID, msg)
}

func (e *Engine) fail(projectID, msg string) {
	e.setStatus(LevelError, projectID, msg)
	e.emit(EventError, projectID, 0, msg)
}

func (e *Engine) emit(kind EventKind, projectID string, stage blueprint.Stage, msg string) {
	e.events.emit(Event{Kind: kind, ProjectID: projectID, Stage: stage, Message: msg, At: e.now()})
}
