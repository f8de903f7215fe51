package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meysamhadeli/codegrep/constants/lipgloss"
	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/searcher"
	"github.com/meysamhadeli/codegrep/searcher/contracts"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern> [path...]",
	Short: "Search files for a pattern, optionally restricted to structural scopes.",
	Long: `Search walks the given paths (default: the current directory), honoring
.gitignore and .codegrepignore files, and matches every text file against the
pattern. A bare pattern without regex metacharacters is matched literally.
--and and --or add combinator operands; --in-function, --in-class, --scope and
the *-only flags restrict matches to structural regions.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps := handleRootCommand(cmd)
		os.Exit(runSearch(cmd, deps, args))
	},
}

func init() {
	addPatternFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

// addPatternFlags registers the combinator and scope flags shared by search
// and replace.
func addPatternFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("and", nil, "Also require this pattern to match somewhere in the file")
	cmd.Flags().StringSlice("or", nil, "Also report matches of this pattern")
	cmd.Flags().String("in_function", "", "Only match inside the named function's body")
	cmd.Flags().String("in_class", "", "Only match inside the named class's body")
	cmd.Flags().StringSlice("scope", nil, "Only match inside these scope kinds: function, class, import, comment")
	cmd.Flags().Bool("functions_only", false, "Only match inside function bodies")
	cmd.Flags().Bool("imports_only", false, "Only match inside import statements")
	cmd.Flags().Bool("comments_only", false, "Only match inside comments")
}

// buildRequest assembles the request from config plus the command's own
// pattern and scope flags.
func buildRequest(cmd *cobra.Command, deps *RootDependencies, pattern string, roots []string) (models.SearchRequest, error) {
	req, err := deps.Config.BuildRequest(pattern, roots)
	if err != nil {
		return req, err
	}
	req.Pattern.And, _ = cmd.Flags().GetStringSlice("and")
	req.Pattern.Or, _ = cmd.Flags().GetStringSlice("or")
	req.Scope.InFunction, _ = cmd.Flags().GetString("in_function")
	req.Scope.InClass, _ = cmd.Flags().GetString("in_class")
	req.Scope.InScope, _ = cmd.Flags().GetStringSlice("scope")
	req.Scope.FunctionsOnly, _ = cmd.Flags().GetBool("functions_only")
	req.Scope.ImportsOnly, _ = cmd.Flags().GetBool("imports_only")
	req.Scope.CommentsOnly, _ = cmd.Flags().GetBool("comments_only")

	for _, kind := range req.Scope.InScope {
		if models.ScopeKindFromName(kind) == models.ScopeNone {
			return req, fmt.Errorf("unknown scope kind %q", kind)
		}
	}
	return req, nil
}

// sinkFor picks the output sink for the configured format.
func sinkFor(format string, noColor bool) (contracts.IResultSink, error) {
	switch format {
	case "text", "":
		return &textSink{out: os.Stdout, color: colorEnabled(noColor)}, nil
	case "json":
		return newJSONSink(os.Stdout), nil
	case "count":
		return &countSink{out: os.Stdout}, nil
	case "files":
		return &filesSink{out: os.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func runSearch(cmd *cobra.Command, deps *RootDependencies, args []string) int {
	req, err := buildRequest(cmd, deps, args[0], args[1:])
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}

	sink, err := sinkFor(deps.Config.Format, deps.Config.NoColor)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}

	c, err := searcher.New(req)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outcome, err := c.Run(ctx, sink)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}

	reportOutcome(outcome)
	return exitCodeFor(outcome)
}

// reportOutcome prints warnings, errors and the session stats box to stderr
// so machine-readable stdout stays clean.
func reportOutcome(outcome *models.SearchOutcome) {
	for _, w := range outcome.Warnings {
		pterm.Warning.WithWriter(os.Stderr).Println(w)
	}
	for _, e := range outcome.Errors {
		pterm.Error.WithWriter(os.Stderr).Println(e.Error())
	}
	if outcome.Kind == models.OutcomeCancelled {
		pterm.Warning.WithWriter(os.Stderr).Println("session cancelled")
	}

	stats := fmt.Sprintf("%d matches in %d files (%d searched, %d skipped) in %s",
		outcome.Matches, outcome.Stats.FilesMatched, outcome.Stats.FilesSearched,
		outcome.Stats.FilesSkipped, outcome.Stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(os.Stderr, lipgloss.BoxStyle.Render(stats))
}
