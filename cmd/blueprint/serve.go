package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/blueprint/internal/agent"
	"github.com/dusk-indust/blueprint/internal/api"
	"github.com/dusk-indust/blueprint/internal/mcptools"
)

func init() {
	serveMCPCmd.Flags().String("http", "", "serve MCP over streamable HTTP on this address instead of stdio")
	serveHTTPCmd.Flags().String("addr", "", "listen address (default from http.addr)")
	serveAgentCmd.Flags().String("addr", "", "listen address (default from agent.addr)")

	rootCmd.AddCommand(serveMCPCmd, serveHTTPCmd, serveAgentCmd)
}

// serve runs fn with the engine, autosave and store watching until ctx is
// cancelled, then flushes unsaved edits.
func serve(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.probe(ctx)
	stop, err := a.startBackground(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := stop(stopCtx); err != nil {
		log.Printf("WARNING: final save: %v", err)
	}
	return runErr
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Run the MCP server (stdio by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("http")
		return serve(cmd, func(ctx context.Context, a *app) error {
			server := mcptools.NewBlueprintMCPServer(a.eng)
			if addr != "" {
				log.Printf("mcp: listening on %s", addr)
				return mcptools.RunHTTP(ctx, server, addr)
			}
			return mcptools.RunStdio(ctx, server)
		})
	},
}

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return serve(cmd, func(ctx context.Context, a *app) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			router := api.BuildRouter(api.RouterDeps{
				ServiceName: "blueprint",
				Version:     version,
				Engine:      a.eng,
			})
			return api.Serve(ctx, addr, router)
		})
	},
}

var serveAgentCmd = &cobra.Command{
	Use:   "serve-agent",
	Short: "Run the local drafting agent over A2A",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			addr = cfg.Agent.Addr
		}

		agent.Version = version
		ag := agent.NewDraftingAgent()
		if err := ag.Start(cmd.Context(), addr); err != nil {
			return err
		}
		log.Printf("agent: %s listening on %s", ag.Card().Name, ag.Addr())

		<-cmd.Context().Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ag.Stop(stopCtx)
	},
}
