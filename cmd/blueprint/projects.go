package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/status"
)

func init() {
	newCmd.Flags().String("id", "", "project id (generated when empty)")
	editCmd.Flags().StringP("file", "f", "", "read the field text from a file (- for stdin)")
	toggleSectionCmd.Flags().Bool("undo", false, "mark the section incomplete")

	rootCmd.AddCommand(listCmd, newCmd, showCmd, statusCmd, editCmd, renameCmd,
		setStageCmd, toggleSectionCmd, markStaleCmd, deleteCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects and their active stage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		projects := a.eng.Projects()
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			fmt.Println("Run 'blueprint new <title>' to start one.")
			return nil
		}
		for _, ps := range status.ForProjects(projects) {
			marker := " "
			if ps.CanApprove {
				marker = "*"
			}
			fmt.Printf("%s %-36s  %-12s  %d/4 approved  %s\n",
				marker, ps.ID, ps.ActiveStage.Label(), ps.ApprovedCount, ps.Title)
		}
		return nil
	},
}

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a project at the product stage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id, _ := cmd.Flags().GetString("id")
		p := blueprint.NewProject(id, strings.Join(args, " "), time.Now())
		if err := a.eng.AddProject(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Print a project's blueprint as Markdown",
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
		md, err := a.eng.ExportMarkdown()
		if err != nil {
			return err
		}
		fmt.Print(md)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show stage status for one or all projects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			p, ok := a.eng.Project(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", engine.ErrProjectNotFound, args[0])
			}
			fmt.Print(status.Render(status.ForProject(p)))
			return nil
		}
		for i, ps := range status.ForProjects(a.eng.Projects()) {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(status.Render(ps))
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <project-id> <field> [text]",
	Short: "Replace a blueprint text field and save",
	Long:  "Fields: " + fieldNames() + ". The text comes from the argument, or from --file.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := blueprint.ParseField(args[1])
		if err != nil {
			return err
		}
		text, err := fieldText(cmd, args)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		if err := a.eng.UpdateField(f, text); err != nil {
			return err
		}
		if err := a.saveIfDirty(cmd.Context()); err != nil {
			return err
		}
		if f.Stage() != blueprint.StageProduct {
			p, _ := a.eng.Selected()
			if p.ApprovedStages.Has(f.Stage()) {
				fmt.Printf("%s is already approved; run 'blueprint mark-stale' to redraft later stages.\n", f.Stage().Label())
			}
		}
		return nil
	},
}

func fieldText(cmd *cobra.Command, args []string) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	switch {
	case len(args) == 3 && path != "":
		return "", fmt.Errorf("give the text either as an argument or with --file, not both")
	case len(args) == 3:
		return args[2], nil
	case path == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case path != "":
		data, err := os.ReadFile(path)
		return string(data), err
	default:
		return "", fmt.Errorf("missing text: pass it as an argument or with --file")
	}
}

func fieldNames() string {
	names := make([]string, 0, len(blueprint.Fields()))
	for _, f := range blueprint.Fields() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

var renameCmd = &cobra.Command{
	Use:   "rename <project-id> <title>",
	Short: "Change a project's title",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		if err := a.eng.UpdateProjectTitle(strings.Join(args[1:], " ")); err != nil {
			return err
		}
		return a.saveIfDirty(cmd.Context())
	},
}

var setStageCmd = &cobra.Command{
	Use:   "set-stage <project-id> <stage>",
	Short: "Move the project's active stage without approving anything",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := blueprint.ParseStage(args[1])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		if err := a.eng.SetStage(stage); err != nil {
			return err
		}
		return a.saveIfDirty(cmd.Context())
	},
}

var toggleSectionCmd = &cobra.Command{
	Use:   "toggle-section <project-id> <section-id>",
	Short: "Mark a section complete (or incomplete with --undo)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		if err := a.eng.SetSectionCompletion(args[1], !undo); err != nil {
			return err
		}
		return a.saveIfDirty(cmd.Context())
	},
}

var markStaleCmd = &cobra.Command{
	Use:   "mark-stale <project-id> <stage>...",
	Short: "Flag downstream stages for regeneration",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := blueprint.ParseStageSet(args[1:])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectProject(args[0]); err != nil {
			return err
		}
		if err := a.eng.MarkStale(set.Stages()...); err != nil {
			return err
		}
		return a.saveIfDirty(cmd.Context())
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.eng.DeleteProject(cmd.Context(), args[0])
	},
}
