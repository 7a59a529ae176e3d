package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/export"
	"github.com/dusk-indust/blueprint/internal/gateway"
	"github.com/dusk-indust/blueprint/internal/outcome"
)

// ExecutionResult is the classified report of a plan execution.
type ExecutionResult struct {
	ProjectID string
	TaskID    string
	Outcome   outcome.Result
	Report    string
}

// ExecuteCurrentProjectPlan hands the selected project's Markdown export to
// the execution collaborator and classifies its report. It is only valid at
// the export stage and shares the in-flight guard with approvals.
func (e *Engine) ExecuteCurrentProjectPlan(ctx context.Context) (*ExecutionResult, error) {
	return e.execute(ctx, e.selectedEntry)
}

// ExecuteProjectPlan is ExecuteCurrentProjectPlan for the project with the
// given id. The selection is not changed.
func (e *Engine) ExecuteProjectPlan(ctx context.Context, id string) (*ExecutionResult, error) {
	return e.execute(ctx, func() (*entry, error) { return e.entryByID(id) })
}

func (e *Engine) execute(ctx context.Context, pick func() (*entry, error)) (*ExecutionResult, error) {
	e.mu.Lock()
	ent, err := pick()
	if err != nil {
		e.setStatus(LevelError, "", err.Error())
		e.mu.Unlock()
		return nil, err
	}
	p := ent.project
	switch {
	case p.Blueprint.ActiveStage != blueprint.StageExport:
		e.setStatus(LevelError, p.ID, ErrNotExportStage.Error())
		e.mu.Unlock()
		return nil, ErrNotExportStage
	case ent.inFlight:
		err := fmt.Errorf("engine: project %s: %w", p.ID, ErrInFlight)
		e.setStatus(LevelError, p.ID, err.Error())
		e.mu.Unlock()
		return nil, err
	case e.gateway == nil:
		err := &GatewayDispatchError{ProjectID: p.ID, Err: ErrNoGateway}
		e.warn(p.ID, err.Error())
		e.mu.Unlock()
		return nil, err
	}
	ent.inFlight = true
	req := gateway.ExecuteRequest{ProjectID: p.ID, Title: p.Title, Plan: export.Markdown(p)}
	e.mu.Unlock()

	dctx, cancel := e.dispatchContext(ctx)
	resp, gerr := e.gateway.Execute(dctx, req)
	if gerr != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) && !errors.Is(gerr, context.DeadlineExceeded) {
		gerr = fmt.Errorf("%w: %w", context.DeadlineExceeded, gerr)
	}
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if ent := e.find(p.ID); ent != nil {
		ent.inFlight = false
	}
	if gerr != nil {
		derr := &GatewayDispatchError{ProjectID: p.ID, Err: gerr}
		e.warn(p.ID, fmt.Sprintf("Plan execution did not complete: %v", gerr))
		return nil, derr
	}

	res := &ExecutionResult{
		ProjectID: p.ID,
		TaskID:    resp.TaskID,
		Outcome:   outcome.Classify(resp.Text),
		Report:    resp.Text,
	}
	level, msg := describeOutcome(res.Outcome)
	e.setStatus(level, p.ID, msg)
	e.emit(EventExecuted, p.ID, blueprint.StageExport, msg)
	return res, nil
}

func describeOutcome(r outcome.Result) (Level, string) {
	suffix := ""
	if r.Reason != "" {
		suffix = ": " + r.Reason
	}
	switch r.Kind {
	case outcome.Complete:
		return LevelSuccess, "Plan executed" + suffix + "."
	case outcome.Continue:
		return LevelInfo, "Plan execution continues" + suffix + "."
	case outcome.Blocked:
		return LevelWarning, "Plan execution is blocked" + suffix + "."
	default:
		return LevelWarning, "Plan execution finished without an explicit outcome."
	}
}
