package gateway

import (
	"fmt"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// ProgressStatus is the state of one dispatched stage.
type ProgressStatus int

const (
	ProgressPending ProgressStatus = iota
	ProgressWorking
	ProgressComplete
	ProgressFailed
)

// ProgressEvent reports the state of one stage dispatch.
type ProgressEvent struct {
	ProjectID string
	Stage     blueprint.Stage
	Agent     string
	Status    ProgressStatus
	Message   string
}

// FormatProgress renders an event as a single status line.
func FormatProgress(ev ProgressEvent) string {
	switch ev.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", ev.Stage.Label())
	case ProgressWorking:
		return fmt.Sprintf("  ● %s... (%s)", ev.Stage.Label(), ev.Agent)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s drafted", ev.Stage.Label())
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", ev.Stage.Label(), ev.Message)
	default:
		return fmt.Sprintf("  ? %s", ev.Stage.Label())
	}
}
