// Package gateway dispatches regeneration and plan-execution work from the
// engine to remote drafting agents.
package gateway

import (
	"context"
	"errors"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

var (
	// ErrNoAgents is returned when a regeneration is requested but no agent
	// endpoints are configured.
	ErrNoAgents = errors.New("gateway: no agent endpoints configured")

	// ErrNoExecutor is returned when execution is requested but neither an
	// executor nor any agent endpoint is configured.
	ErrNoExecutor = errors.New("gateway: no executor endpoint configured")
)

// Gateway is the engine's view of the remote collaborators. Implementations
// must honour ctx cancellation; a caller may abandon a call and discard its
// result at any time.
type Gateway interface {
	Regenerate(ctx context.Context, req RegenerateRequest) (*RegenerateResponse, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
}

// RegenerateRequest asks for fresh content for each target stage, using the
// full blueprint snapshot as context.
type RegenerateRequest struct {
	ProjectID string
	Title     string
	Approved  blueprint.StageSet
	Targets   []blueprint.Stage
	Blueprint blueprint.Blueprint
}

// Draft is the generated content for one stage.
type Draft struct {
	Stage blueprint.Stage
	Text  string

	// Sections is set only for the sections stage; HasSections distinguishes
	// "agent returned an empty list" from "agent returned no list".
	Sections    []blueprint.Section
	HasSections bool
}

// RegenerateResponse holds one draft per target, in target order.
type RegenerateResponse struct {
	Drafts []Draft
}

// ExecuteRequest hands the finalized plan to the execution collaborator.
type ExecuteRequest struct {
	ProjectID string
	Title     string
	Plan      string
}

// ExecuteResponse is the collaborator's free-form completion report.
type ExecuteResponse struct {
	TaskID string
	Text   string
}
