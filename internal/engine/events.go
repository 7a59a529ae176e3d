package engine

import (
	"time"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/gateway"
)

// EventKind identifies an engine state change.
type EventKind string

const (
	EventLoaded             EventKind = "loaded"
	EventSelected           EventKind = "selected"
	EventAdded              EventKind = "added"
	EventUpdated            EventKind = "updated"
	EventSaved              EventKind = "saved"
	EventDeleted            EventKind = "deleted"
	EventApprovalStarted    EventKind = "approval-started"
	EventApproved           EventKind = "approved"
	EventRegenerated        EventKind = "regenerated"
	EventRegenerationFailed EventKind = "regeneration-failed"
	EventDiscarded          EventKind = "discarded"
	EventExecuted           EventKind = "executed"
	EventProgress           EventKind = "progress"
	EventError              EventKind = "error"
)

// Event is published for every observable change of engine state.
type Event struct {
	Kind      EventKind
	ProjectID string
	Stage     blueprint.Stage
	Message   string
	At        time.Time
}

// eventReporter publishes events through a buffered channel. Events are
// dropped when no one keeps up with the channel.
type eventReporter struct {
	ch     chan Event
	closed bool
}

func newEventReporter(size int) *eventReporter {
	return &eventReporter{ch: make(chan Event, size)}
}

// emit must be called with the engine lock held.
func (r *eventReporter) emit(ev Event) {
	if r.closed {
		return
	}
	select {
	case r.ch <- ev:
	default:
	}
}

// close must be called with the engine lock held.
func (r *eventReporter) close() {
	if r.closed {
		return
	}
	r.closed = true
	close(r.ch)
}

// ReportProgress forwards a gateway dispatch event as an engine event. It
// is meant to be passed to gateway.WithProgress.
func (e *Engine) ReportProgress(ev gateway.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events.emit(Event{
		Kind:      EventProgress,
		ProjectID: ev.ProjectID,
		Stage:     ev.Stage,
		Message:   gateway.FormatProgress(ev),
		At:        e.now(),
	})
}
