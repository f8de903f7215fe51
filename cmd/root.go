package cmd

import (
	"fmt"
	"os"

	"github.com/meysamhadeli/codegrep/config"
	"github.com/meysamhadeli/codegrep/constants/lipgloss"
	"github.com/meysamhadeli/codegrep/models"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// RootDependencies holds the resolved configuration shared by subcommands.
type RootDependencies struct {
	Config *config.Config
	Cwd    string
}

var rootCmd = &cobra.Command{
	Use:   "codegrep",
	Short: "Structure-aware concurrent search and replace for code trees.",
	Long: `codegrep searches directory trees of source code with literal or regex
patterns, optionally restricted to structural regions such as function
bodies, class bodies, import blocks or comments. The same pipeline powers
previewed, interactive and in-place replacement.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(version)
			return
		}
		_ = cmd.Help()
	},
}

// handleRootCommand resolves the working directory and layered configuration
// for a subcommand run.
func handleRootCommand(cmd *cobra.Command) *RootDependencies {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error getting current directory: %v", err)))
		os.Exit(1)
	}
	return &RootDependencies{
		Config: config.LoadConfigs(cmd.Root(), cwd),
		Cwd:    cwd,
	}
}

// exitCodeFor maps a session outcome to the process exit code: 0 with
// matches, 1 without, 2 when the session degraded.
func exitCodeFor(outcome *models.SearchOutcome) int {
	switch {
	case outcome.Kind == models.OutcomePartialFailure:
		return 2
	case outcome.Matches == 0:
		return 1
	default:
		return 0
	}
}

// Execute runs the root command.
func Execute() {
	config.InitFlags(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		os.Exit(2)
	}
}
