package engine

import (
	"context"
	"fmt"
	"sync"
)

// Intents serializes select-then-act sequences coming from request-driven
// surfaces such as the MCP server and the HTTP API, where concurrent
// requests must not interleave a selection change with another request's
// operation.
//
// Approve, Retry and Execute address the project by id and hold the intent
// lock only while selecting it. The gateway call runs unlocked, so other
// projects stay editable and a second approval of the same project is
// rejected with ErrInFlight instead of queueing behind the first.
type Intents struct {
	mu  sync.Mutex
	eng *Engine
}

// NewIntents wraps e.
func NewIntents(e *Engine) *Intents {
	return &Intents{eng: e}
}

// Engine returns the wrapped engine for read-only calls.
func (in *Intents) Engine() *Engine { return in.eng }

// On selects the project with the given id and runs fn while no other
// intent can change the selection. fn must not block on the gateway.
func (in *Intents) On(id string, fn func(e *Engine) error) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.selectLocked(id); err != nil {
		return err
	}
	return fn(in.eng)
}

// Approve approves the active stage of project id.
func (in *Intents) Approve(ctx context.Context, id string) (*ApprovalResult, error) {
	if err := in.selectProject(id); err != nil {
		return nil, err
	}
	return in.eng.ApproveProject(ctx, id)
}

// Retry regenerates the stale stages of project id.
func (in *Intents) Retry(ctx context.Context, id string) (*RegenerationResult, error) {
	if err := in.selectProject(id); err != nil {
		return nil, err
	}
	return in.eng.RetryProjectRegeneration(ctx, id)
}

// Execute runs the plan of project id.
func (in *Intents) Execute(ctx context.Context, id string) (*ExecutionResult, error) {
	if err := in.selectProject(id); err != nil {
		return nil, err
	}
	return in.eng.ExecuteProjectPlan(ctx, id)
}

func (in *Intents) selectProject(id string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.selectLocked(id)
}

func (in *Intents) selectLocked(id string) error {
	if !in.eng.SelectProject(id) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}
