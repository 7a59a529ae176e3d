package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/status"
)

// BlueprintService handles MCP tool calls by forwarding them to the engine.
// Every tool names its project explicitly; selection changes are
// serialized through engine.Intents.
type BlueprintService struct {
	intents *engine.Intents
}

// NewBlueprintService returns a service for eng.
func NewBlueprintService(eng *engine.Engine) *BlueprintService {
	return &BlueprintService{intents: engine.NewIntents(eng)}
}

func (s *BlueprintService) eng() *engine.Engine { return s.intents.Engine() }

func (s *BlueprintService) view(id string) (GetProjectOutput, error) {
	p, ok := s.eng().Project(id)
	if !ok {
		return GetProjectOutput{}, fmt.Errorf("%w: %s", engine.ErrProjectNotFound, id)
	}
	return GetProjectOutput{Project: viewOf(p, s.eng().IsDirty(id))}, nil
}

// ListProjects returns a summary of every project.
func (s *BlueprintService) ListProjects(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListProjectsInput,
) (*mcp.CallToolResult, ListProjectsOutput, error) {
	out := ListProjectsOutput{Projects: []ProjectSummary{}}
	for _, p := range s.eng().Projects() {
		out.Projects = append(out.Projects, summarize(p, s.eng().IsDirty(p.ID)))
	}
	return nil, out, nil
}

// GetProject returns the full content of one project.
func (s *BlueprintService) GetProject(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// GetStatus reports the stage states of one project.
func (s *BlueprintService) GetStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, GetStatusOutput, error) {
	p, ok := s.eng().Project(input.ProjectID)
	if !ok {
		return nil, GetStatusOutput{}, fmt.Errorf("%w: %s", engine.ErrProjectNotFound, input.ProjectID)
	}
	ps := status.ForProject(p)
	out := GetStatusOutput{
		ProjectID:     p.ID,
		ActiveStage:   ps.ActiveStage.String(),
		CanApprove:    ps.CanApprove,
		ApproveLabel:  ps.ApproveLabel,
		SectionsDone:  ps.SectionsDone,
		SectionsTotal: ps.SectionsTotal,
	}
	for _, si := range ps.Stages {
		out.Stages = append(out.Stages, StageStatus{Stage: si.Name, Label: si.Label, State: si.State(), Drafted: si.Drafted})
	}
	if st := s.eng().Status(); st.ProjectID == p.ID {
		out.Message = st.Message
	}
	return nil, out, nil
}

// UpdateField replaces one text field.
func (s *BlueprintService) UpdateField(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateFieldInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	f, err := blueprint.ParseField(input.Field)
	if err != nil {
		return nil, GetProjectOutput{}, err
	}
	err = s.intents.On(input.ProjectID, func(e *engine.Engine) error {
		if err := e.UpdateField(f, input.Text); err != nil {
			return err
		}
		if input.Save {
			return e.Save(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, GetProjectOutput{}, err
	}
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// SetSectionCompletion toggles one section.
func (s *BlueprintService) SetSectionCompletion(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SetSectionInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	err := s.intents.On(input.ProjectID, func(e *engine.Engine) error {
		return e.SetSectionCompletion(input.SectionID, input.Completed)
	})
	if err != nil {
		return nil, GetProjectOutput{}, err
	}
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// SetStage moves the navigation cursor.
func (s *BlueprintService) SetStage(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SetStageInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	stage, err := blueprint.ParseStage(input.Stage)
	if err != nil {
		return nil, GetProjectOutput{}, err
	}
	if err := s.intents.On(input.ProjectID, func(e *engine.Engine) error { return e.SetStage(stage) }); err != nil {
		return nil, GetProjectOutput{}, err
	}
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// MarkStale flags stages for regeneration.
func (s *BlueprintService) MarkStale(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input MarkStaleInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	set, err := blueprint.ParseStageSet(input.Stages)
	if err != nil {
		return nil, GetProjectOutput{}, err
	}
	if err := s.intents.On(input.ProjectID, func(e *engine.Engine) error { return e.MarkStale(set.Stages()...) }); err != nil {
		return nil, GetProjectOutput{}, err
	}
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// RenameProject changes the project title.
func (s *BlueprintService) RenameProject(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RenameInput,
) (*mcp.CallToolResult, GetProjectOutput, error) {
	if err := s.intents.On(input.ProjectID, func(e *engine.Engine) error { return e.UpdateProjectTitle(input.Title) }); err != nil {
		return nil, GetProjectOutput{}, err
	}
	out, err := s.view(input.ProjectID)
	return nil, out, err
}

// SaveProject persists one project.
func (s *BlueprintService) SaveProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, SaveOutput, error) {
	err := s.intents.On(input.ProjectID, func(e *engine.Engine) error { return e.Save(ctx) })
	if err != nil {
		return nil, SaveOutput{ProjectID: input.ProjectID}, err
	}
	return nil, SaveOutput{ProjectID: input.ProjectID, Saved: true}, nil
}

// DeleteProject removes one project.
func (s *BlueprintService) DeleteProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.eng().DeleteProject(ctx, input.ProjectID); err != nil {
		return nil, DeleteOutput{ProjectID: input.ProjectID}, err
	}
	return nil, DeleteOutput{ProjectID: input.ProjectID, Deleted: true}, nil
}

// ApproveStage runs the approval protocol for the project's active stage. A
// regeneration failure is not a tool error: the approval is committed and
// the output reports a degraded status.
func (s *BlueprintService) ApproveStage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, ApproveOutput, error) {
	res, err := s.intents.Approve(ctx, input.ProjectID)
	if res == nil {
		return nil, ApproveOutput{ProjectID: input.ProjectID}, err
	}
	out := ApproveOutput{
		ProjectID:   res.ProjectID,
		Approved:    res.Approved.String(),
		ActiveStage: res.Active.String(),
	}
	return nil, s.fillRegeneration(out, res.RegenerationResult, err), nil
}

// RetryRegeneration re-dispatches the project's stale stages.
func (s *BlueprintService) RetryRegeneration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, ApproveOutput, error) {
	res, err := s.intents.Retry(ctx, input.ProjectID)
	if res == nil {
		return nil, ApproveOutput{ProjectID: input.ProjectID}, err
	}
	out := ApproveOutput{ProjectID: res.ProjectID}
	if p, ok := s.eng().Project(input.ProjectID); ok {
		out.ActiveStage = p.Blueprint.ActiveStage.String()
	}
	return nil, s.fillRegeneration(out, *res, err), nil
}

func (s *BlueprintService) fillRegeneration(out ApproveOutput, res engine.RegenerationResult, err error) ApproveOutput {
	out.Regenerated = stageNames(res.Regenerated)
	out.Stale = stageNames(res.Stale)
	out.Status = "ok"
	out.Message = s.eng().Status().Message
	if err != nil {
		out.Status = "degraded"
		out.Message = err.Error()
	}
	if res.Discarded {
		out.Message = "project was deleted before regeneration finished"
	}
	return out
}

// ExecutePlan hands the project's Markdown export to the executor.
func (s *BlueprintService) ExecutePlan(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, ExecuteOutput, error) {
	res, err := s.intents.Execute(ctx, input.ProjectID)
	if err != nil {
		var gde *engine.GatewayDispatchError
		if errors.As(err, &gde) {
			return nil, ExecuteOutput{ProjectID: input.ProjectID, Outcome: "failed", Reason: err.Error()}, nil
		}
		return nil, ExecuteOutput{ProjectID: input.ProjectID}, err
	}
	return nil, ExecuteOutput{
		ProjectID: res.ProjectID,
		TaskID:    res.TaskID,
		Outcome:   res.Outcome.Kind.String(),
		Reason:    res.Outcome.Reason,
		Report:    res.Report,
	}, nil
}

// ExportMarkdown renders the project as Markdown.
func (s *BlueprintService) ExportMarkdown(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, ExportOutput, error) {
	var md string
	err := s.intents.On(input.ProjectID, func(e *engine.Engine) error {
		var err error
		md, err = e.ExportMarkdown()
		return err
	})
	if err != nil {
		return nil, ExportOutput{ProjectID: input.ProjectID}, err
	}
	return nil, ExportOutput{ProjectID: input.ProjectID, Markdown: md}, nil
}
