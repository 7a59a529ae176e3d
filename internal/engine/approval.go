package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/gateway"
)

// RegenerationResult describes what a regeneration produced.
type RegenerationResult struct {
	ProjectID   string
	Regenerated []blueprint.Stage
	// Stale lists the targets left without fresh content.
	Stale []blueprint.Stage
	// Discarded is set when the project was deleted before the gateway
	// answered.
	Discarded bool
}

// ApprovalResult describes a committed approval.
type ApprovalResult struct {
	Approved blueprint.Stage
	Active   blueprint.Stage
	RegenerationResult
}

// ApproveCurrentStage approves the selected project's active stage.
//
// The edits in memory, the new approval and the advanced active stage are
// committed together in one store write; if that write fails nothing
// changes. The downstream stages are then regenerated through the gateway.
// A failed or timed-out regeneration never rolls the approval back: the
// targets are marked stale and a GatewayDispatchError is returned together
// with the result.
func (e *Engine) ApproveCurrentStage(ctx context.Context) (*ApprovalResult, error) {
	return e.approve(ctx, e.selectedEntry)
}

// ApproveProject approves the active stage of the project with the given id
// without touching the selection. A second approval while the first is
// still regenerating is rejected with ErrInFlight.
func (e *Engine) ApproveProject(ctx context.Context, id string) (*ApprovalResult, error) {
	return e.approve(ctx, func() (*entry, error) { return e.entryByID(id) })
}

func (e *Engine) approve(ctx context.Context, pick func() (*entry, error)) (*ApprovalResult, error) {
	e.mu.Lock()
	ent, err := pick()
	if err != nil {
		e.setStatus(LevelError, "", err.Error())
		e.mu.Unlock()
		return nil, err
	}
	cur := ent.project
	stage := cur.Blueprint.ActiveStage

	reason := ErrInFlight
	if !ent.inFlight {
		reason = blueprint.CheckApproval(cur, stage)
	}
	if reason != nil {
		err := &NotApprovableError{ProjectID: cur.ID, Stage: stage, Reason: reason}
		e.setStatus(LevelError, cur.ID, err.Error())
		e.mu.Unlock()
		return nil, err
	}

	next := cur.Clone()
	next.ApprovedStages = next.ApprovedStages.Add(stage)
	if ns, ok := stage.Next(); ok {
		next.Blueprint.ActiveStage = ns
	}
	next.UpdatedAt = e.now()
	targets := stage.Downstream()
	if e.gateway == nil {
		for _, t := range targets {
			next.StaleStages = next.StaleStages.Add(t)
		}
	}

	if err := e.store.Save(ctx, next); err != nil {
		e.fail(cur.ID, fmt.Sprintf("Approval of %s was not saved: %v", stage.Label(), err))
		e.mu.Unlock()
		return nil, err
	}
	ent.project = next
	ent.dirty = false

	result := &ApprovalResult{
		Approved:           stage,
		Active:             next.Blueprint.ActiveStage,
		RegenerationResult: RegenerationResult{ProjectID: next.ID},
	}
	e.emit(EventApproved, next.ID, stage, "")

	if e.gateway == nil {
		result.Stale = targets
		e.warn(next.ID, fmt.Sprintf("Approved %s. No agent gateway is configured, so %s marked stale.",
			stage.Label(), stageList(targets)))
		e.mu.Unlock()
		return result, nil
	}

	ent.inFlight = true
	e.emit(EventApprovalStarted, next.ID, next.Blueprint.ActiveStage, "")
	req := regenerateRequest(next, targets)
	e.mu.Unlock()

	regen, err := e.regenerate(ctx, req)
	result.RegenerationResult = regen
	if err == nil && !regen.Discarded {
		e.mu.Lock()
		if len(regen.Stale) == 0 {
			e.setStatus(LevelSuccess, next.ID, fmt.Sprintf("Approved %s and drafted %s.",
				stage.Label(), stageList(regen.Regenerated)))
		}
		e.mu.Unlock()
	}
	return result, err
}

// RetryRegeneration re-dispatches the stale stages of the selected project.
// Approvals are never changed; stages regenerated successfully are no longer
// stale.
func (e *Engine) RetryRegeneration(ctx context.Context) (*RegenerationResult, error) {
	return e.retry(ctx, e.selectedEntry)
}

// RetryProjectRegeneration is RetryRegeneration for the project with the
// given id. The selection is not changed.
func (e *Engine) RetryProjectRegeneration(ctx context.Context, id string) (*RegenerationResult, error) {
	return e.retry(ctx, func() (*entry, error) { return e.entryByID(id) })
}

func (e *Engine) retry(ctx context.Context, pick func() (*entry, error)) (*RegenerationResult, error) {
	e.mu.Lock()
	ent, err := pick()
	if err != nil {
		e.setStatus(LevelError, "", err.Error())
		e.mu.Unlock()
		return nil, err
	}
	p := ent.project
	switch {
	case ent.inFlight:
		err := fmt.Errorf("engine: project %s: %w", p.ID, ErrInFlight)
		e.setStatus(LevelError, p.ID, err.Error())
		e.mu.Unlock()
		return nil, err
	case p.StaleStages.Len() == 0:
		e.setStatus(LevelInfo, p.ID, "Nothing is stale.")
		e.mu.Unlock()
		return nil, ErrNothingStale
	case e.gateway == nil:
		err := &GatewayDispatchError{ProjectID: p.ID, Targets: p.StaleStages.Stages(), Err: ErrNoGateway}
		e.warn(p.ID, err.Error())
		e.mu.Unlock()
		return nil, err
	}
	ent.inFlight = true
	targets := p.StaleStages.Stages()
	req := regenerateRequest(p, targets)
	e.emit(EventApprovalStarted, p.ID, p.Blueprint.ActiveStage, "retry")
	e.mu.Unlock()

	regen, err := e.regenerate(ctx, req)
	if err == nil && !regen.Discarded && len(regen.Stale) == 0 {
		e.mu.Lock()
		e.setStatus(LevelSuccess, p.ID, fmt.Sprintf("Regenerated %s.", stageList(regen.Regenerated)))
		e.mu.Unlock()
	}
	return &regen, err
}

func regenerateRequest(p blueprint.Project, targets []blueprint.Stage) gateway.RegenerateRequest {
	return gateway.RegenerateRequest{
		ProjectID: p.ID,
		Title:     p.Title,
		Approved:  p.ApprovedStages,
		Targets:   targets,
		Blueprint: p.Blueprint.Clone(),
	}
}

// regenerate calls the gateway without holding the lock and applies the
// result. The project's inFlight flag must be set by the caller; it is
// cleared here.
func (e *Engine) regenerate(ctx context.Context, req gateway.RegenerateRequest) (RegenerationResult, error) {
	dctx, cancel := e.dispatchContext(ctx)
	resp, gerr := e.gateway.Regenerate(dctx, req)
	if gerr != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) && !errors.Is(gerr, context.DeadlineExceeded) {
		gerr = fmt.Errorf("%w: %w", context.DeadlineExceeded, gerr)
	}
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	result := RegenerationResult{ProjectID: req.ProjectID}
	ent := e.find(req.ProjectID)
	if ent == nil {
		result.Discarded = true
		e.emit(EventDiscarded, req.ProjectID, 0, "project deleted during regeneration")
		return result, nil
	}
	ent.inFlight = false

	drafts := map[blueprint.Stage]gateway.Draft{}
	if gerr == nil && resp != nil {
		for _, d := range resp.Drafts {
			drafts[d.Stage] = d
		}
	}

	next := ent.project.Clone()
	var rejected []error
	for _, t := range req.Targets {
		d, ok := drafts[t]
		field, regenerable := t.DraftField()
		if ok && regenerable && d.HasSections {
			if err := blueprint.ValidateSections(d.Sections); err != nil {
				rejected = append(rejected, fmt.Errorf("%s draft rejected: %w", t, err))
				ok = false
			}
		}
		if !ok || !regenerable {
			next.StaleStages = next.StaleStages.Add(t)
			result.Stale = append(result.Stale, t)
			continue
		}
		_ = next.Blueprint.Set(field, d.Text)
		if d.HasSections {
			next.Blueprint.MergeSections(d.Sections)
		}
		next.StaleStages = next.StaleStages.Remove(t)
		result.Regenerated = append(result.Regenerated, t)
	}
	next.UpdatedAt = e.now()

	// The write must land even when the caller gave up waiting.
	werr := e.store.Save(context.WithoutCancel(ctx), next)
	ent.project = next
	ent.dirty = werr != nil

	for _, s := range result.Regenerated {
		e.emit(EventRegenerated, next.ID, s, "")
	}

	if gerr != nil {
		derr := &GatewayDispatchError{ProjectID: next.ID, Targets: req.Targets, Err: gerr}
		e.warn(next.ID, fmt.Sprintf("Regeneration did not complete; %s may be stale: %v",
			stageList(req.Targets), gerr))
		e.emit(EventRegenerationFailed, next.ID, next.Blueprint.ActiveStage, gerr.Error())
		if werr != nil {
			return result, errors.Join(derr, werr)
		}
		return result, derr
	}
	if werr != nil {
		e.fail(next.ID, fmt.Sprintf("Regenerated content was not saved, edits are kept in memory: %v", werr))
		return result, werr
	}
	if len(result.Stale) > 0 {
		cause := errors.New("gateway returned no draft")
		if len(rejected) > 0 {
			cause = errors.Join(rejected...)
		}
		derr := &GatewayDispatchError{ProjectID: next.ID, Targets: result.Stale, Err: cause}
		e.warn(next.ID, fmt.Sprintf("No usable draft was returned for %s; marked stale: %v",
			stageList(result.Stale), cause))
		e.emit(EventRegenerationFailed, next.ID, next.Blueprint.ActiveStage, derr.Error())
		return result, derr
	}
	return result, nil
}

func (e *Engine) dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func stageList(stages []blueprint.Stage) string {
	labels := make([]string, len(stages))
	for i, s := range stages {
		labels[i] = s.Label()
	}
	if len(labels) == 0 {
		return "no stages"
	}
	return strings.Join(labels, ", ")
}
