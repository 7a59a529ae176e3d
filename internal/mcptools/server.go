package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/blueprint/internal/engine"
)

// version is set by the linker at build time.
var version = "dev"

// NewBlueprintMCPServer creates an MCP server exposing every engine intent
// as a tool.
func NewBlueprintMCPServer(eng *engine.Engine) *mcp.Server {
	svc := NewBlueprintService(eng)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "blueprint",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List all blueprint projects with their active stage, approved and stale stages.",
	}, svc.ListProjects)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_project",
		Description: "Return the full blueprint of one project: every text field and the section list.",
	}, svc.GetProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report the state of each stage of a project (approved, active, stale, pending) and whether the active stage can be approved.",
	}, svc.GetStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_field",
		Description: "Replace one blueprint text field. The edit stays in memory until save_project unless save is set.",
	}, svc.UpdateField)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_section_completion",
		Description: "Mark one section complete or incomplete. Does not affect stage approval.",
	}, svc.SetSectionCompletion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_stage",
		Description: "Move the project's active stage for viewing. Never approves or regenerates anything.",
	}, svc.SetStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "mark_stale",
		Description: "Flag downstream stages as stale after an upstream edit so retry_regeneration refreshes them.",
	}, svc.MarkStale)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rename_project",
		Description: "Change the project title.",
	}, svc.RenameProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_project",
		Description: "Persist the project's pending edits to the store.",
	}, svc.SaveProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_project",
		Description: "Delete a project from the store.",
	}, svc.DeleteProject)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "approve_stage",
		Description: "Approve the project's active stage, advance to the next stage and regenerate all downstream stages through the agent gateway.",
	}, svc.ApproveStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retry_regeneration",
		Description: "Regenerate the project's stale stages. Approvals are not changed.",
	}, svc.RetryRegeneration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_plan",
		Description: "Send the exported plan of a project at the export stage to the executor and classify its outcome.",
	}, svc.ExecutePlan)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_markdown",
		Description: "Render the project blueprint as a Markdown document.",
	}, svc.ExportMarkdown)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
