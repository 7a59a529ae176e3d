package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/blueprint/internal/scaffold"
)

// version is set by goreleaser at build time.
var version = "dev"

func init() {
	initCmd.Flags().Bool("force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd, versionCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write blueprint.yml, .env.example and the .mcp.json entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, _ := cmd.Flags().GetString("project-root")
		force, _ := cmd.Flags().GetBool("force")
		if err := scaffold.Install(root, force, os.Stdout); err != nil {
			return err
		}
		fmt.Println("\nSetup complete. Run 'blueprint serve-agent' and 'blueprint new <title>' to begin.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}
