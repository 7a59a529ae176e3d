package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

var (
	ErrNoProjectSelected = errors.New("engine: no project selected")
	ErrProjectNotFound   = errors.New("engine: project not found")
	ErrProjectExists     = errors.New("engine: project already exists")
	ErrSectionNotFound   = errors.New("engine: section not found")

	// ErrInFlight is the reason given when an approval, regeneration or
	// execution is already running for the project.
	ErrInFlight = errors.New("an approval or execution is already in progress for this project")

	// ErrNotExportStage is returned when a plan is executed before the
	// project reaches the export stage.
	ErrNotExportStage = errors.New("engine: the plan can only be executed from the export stage")

	// ErrNothingStale is returned by RetryRegeneration when no stage of the
	// project is marked stale.
	ErrNothingStale = errors.New("engine: no stale stages to regenerate")

	// ErrNotRegenerable is returned when a stage that is never regenerated
	// is marked stale.
	ErrNotRegenerable = errors.New("engine: the product stage is authored, not regenerated")

	// ErrNoGateway is the cause of a GatewayDispatchError when the engine
	// has no gateway configured.
	ErrNoGateway = errors.New("engine: no agent gateway configured")
)

// NotApprovableError reports that an approval was rejected before any state
// changed.
type NotApprovableError struct {
	ProjectID string
	Stage     blueprint.Stage
	Reason    error
}

func (e *NotApprovableError) Error() string {
	return fmt.Sprintf("engine: cannot approve %s of project %s: %v", e.Stage.Label(), e.ProjectID, e.Reason)
}

func (e *NotApprovableError) Unwrap() error { return e.Reason }

// GatewayDispatchError reports that regeneration or execution did not
// complete. Approvals committed before the dispatch are kept.
type GatewayDispatchError struct {
	ProjectID string
	Targets   []blueprint.Stage
	Err       error
}

func (e *GatewayDispatchError) Error() string {
	if len(e.Targets) == 0 {
		return fmt.Sprintf("engine: dispatch for project %s failed: %v", e.ProjectID, e.Err)
	}
	names := make([]string, len(e.Targets))
	for i, s := range e.Targets {
		names[i] = s.String()
	}
	return fmt.Sprintf("engine: regenerating %s for project %s failed: %v",
		strings.Join(names, ", "), e.ProjectID, e.Err)
}

func (e *GatewayDispatchError) Unwrap() error { return e.Err }
