package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/export"
	"github.com/dusk-indust/blueprint/internal/outcome"
)

func init() {
	exportCmd.Flags().String("format", "md", "export format: md, json, mermaid")
	exportCmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(approveCmd, regenerateCmd, executeCmd, exportCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve <project-id>",
	Short: "Approve the active stage and draft the stages after it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		res, err := a.eng.ApproveCurrentStage(cmd.Context())
		if res == nil {
			return err
		}
		fmt.Printf("Approved %s; active stage is now %s.\n", res.Approved.Label(), res.Active.Label())
		printRegeneration(res.RegenerationResult)
		if err != nil {
			// The approval stands; the gateway failure is reported, not fatal.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			fmt.Fprintf(os.Stderr, "Run 'blueprint regenerate %s' to retry.\n", args[0])
		}
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <project-id>",
	Short: "Retry drafting for stale stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		res, err := a.eng.RetryRegeneration(cmd.Context())
		if res != nil {
			printRegeneration(*res)
		}
		return err
	},
}

func printRegeneration(res engine.RegenerationResult) {
	for _, s := range res.Regenerated {
		fmt.Printf("  ✓ %s drafted\n", s.Label())
	}
	for _, s := range res.Stale {
		fmt.Printf("  ✗ %s stale\n", s.Label())
	}
	if res.Discarded {
		fmt.Println("  project was deleted; drafts discarded")
	}
}

var executeCmd = &cobra.Command{
	Use:   "execute <project-id>",
	Short: "Send the exported plan to the executor agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		res, err := a.eng.ExecuteCurrentProjectPlan(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(res.Report)
		a.reportStatus(os.Stdout)
		if res.Outcome.Kind == outcome.Blocked {
			return fmt.Errorf("execution blocked: %s", res.Outcome.Reason)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project as Markdown, JSON or a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		p, _ := a.eng.Selected()

		if format == "md" && out != "" {
			return a.eng.ExportMarkdownFile(out)
		}
		data, err := render(p, format)
		if err != nil {
			return err
		}
		if out != "" {
			return os.WriteFile(out, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func render(p blueprint.Project, format string) ([]byte, error) {
	switch format {
	case "md", "markdown":
		return []byte(export.Markdown(p)), nil
	case "json":
		return export.JSON(p, time.Now())
	case "mermaid":
		return []byte(export.GenerateMermaid(p)), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want md, json or mermaid)", format)
	}
}
