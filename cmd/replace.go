package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meysamhadeli/codegrep/constants/lipgloss"
	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/replace"
	"github.com/meysamhadeli/codegrep/replace/contracts"
	"github.com/meysamhadeli/codegrep/searcher"
	"github.com/meysamhadeli/codegrep/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// errQuit ends the session from an interactive q answer. It travels through
// the sink error path but is reported as a normal stop, not a failure.
var errQuit = errors.New("replace session ended")

var replaceCmd = &cobra.Command{
	Use:   "replace <pattern> <template> [path...]",
	Short: "Replace pattern matches across files, with preview by default.",
	Long: `Replace runs the same pipeline as search, then rewrites the matched spans
with the template. $0 inserts the whole match, $1..$9 and ${name} insert
captures, $$ a literal dollar. Without --write or --interactive the changes
are only previewed as a diff. Files are rewritten atomically and never
touched when their content changed between matching and applying.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		deps := handleRootCommand(cmd)
		os.Exit(runReplace(cmd, deps, args))
	},
}

func init() {
	addPatternFlags(replaceCmd)
	replaceCmd.Flags().Bool("write", false, "Apply every replacement without asking")
	replaceCmd.Flags().Bool("interactive", false, "Ask before each replacement (y/n/a/q)")
	rootCmd.AddCommand(replaceCmd)
}

// stdinPrompter renders the pending change and reads one decision.
type stdinPrompter struct {
	reader *bufio.Reader
	color  bool
}

func (p *stdinPrompter) Decide(ctx context.Context, rec models.MatchRecord, preview string) (string, error) {
	header := fmt.Sprintf("%s:%d:%d", rec.Path, rec.Line, rec.Column)
	if p.color {
		header = lipgloss.Magenta.Render(header)
	}
	fmt.Println(header)
	fmt.Println(preview)
	return utils.DecisionPromptWithContext(ctx, p.reader, "replace? [y/n/a/q] ")
}

// replaceSink feeds each file's matches straight into the replace engine as
// the coordinator delivers them.
type replaceSink struct {
	ctx    context.Context
	engine *replace.Engine
	color  bool

	filesChanged int
	replacements int
	skipped      int
}

func (s *replaceSink) Consume(res *models.FileResult) error {
	out, err := s.engine.ProcessFile(s.ctx, res)
	if err != nil {
		var applyErr *models.ReplaceApplyError
		if errors.As(err, &applyErr) {
			// Per-file failure: report, keep going with other files.
			fmt.Fprintln(os.Stderr, lipgloss.Red.Render(err.Error()))
			return nil
		}
		return err
	}
	if out == nil {
		if s.engine.Quit() {
			return errQuit
		}
		return nil
	}

	s.replacements += out.Replaced
	s.skipped += out.Skipped
	if out.Replaced > 0 {
		s.filesChanged++
	}
	if out.Diff != "" {
		header := res.Candidate.Path
		if s.color {
			header = lipgloss.Magenta.Render(header)
		}
		fmt.Println(header)
		fmt.Print(renderDiffColored(out.Diff, s.color))
	}
	if s.engine.Quit() {
		return errQuit
	}
	return nil
}

func renderDiffColored(diff string, color bool) string {
	if !color {
		return diff
	}
	var out []byte
	for _, line := range splitLines(diff) {
		switch {
		case len(line) > 0 && line[0] == '-':
			line = lipgloss.Red.Render(line)
		case len(line) > 0 && line[0] == '+':
			line = lipgloss.Green.Render(line)
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return string(out)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func runReplace(cmd *cobra.Command, deps *RootDependencies, args []string) int {
	req, err := buildRequest(cmd, deps, args[0], args[2:])
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}
	req.Mode = models.ModeReplace
	// Deterministic delivery keeps previews and prompts in traversal order.
	req.Ordering = models.OrderStable

	write, _ := cmd.Flags().GetBool("write")
	interactive, _ := cmd.Flags().GetBool("interactive")
	mode := models.ReplacePreview
	switch {
	case write && interactive:
		fmt.Println(lipgloss.Red.Render("--write and --interactive are mutually exclusive"))
		return 2
	case write:
		mode = models.ReplaceWrite
	case interactive:
		mode = models.ReplaceInteractive
	}
	req.Replace = models.ReplaceSpec{Template: args[1], Mode: mode}

	color := colorEnabled(deps.Config.NoColor)
	var prompter contracts.IDecisionPrompter
	if mode == models.ReplaceInteractive {
		prompter = &stdinPrompter{reader: bufio.NewReader(os.Stdin), color: color}
	}
	engine, err := replace.NewEngine(req.Replace, prompter)
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

	sink := &replaceSink{ctx: ctx, engine: engine, color: color}
	outcome, err := c.Run(ctx, sink)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(err.Error()))
		return 2
	}

	// An interactive quit flows back as a sink error; strip it from the
	// outcome so it is not reported as a failure.
	outcome.Errors = withoutQuit(outcome.Errors)
	if engine.Quit() && outcome.Kind == models.OutcomeCancelled {
		outcome.Kind = models.OutcomeCompleted
	}

	for _, w := range outcome.Warnings {
		pterm.Warning.WithWriter(os.Stderr).Println(w)
	}
	for _, e := range outcome.Errors {
		pterm.Error.WithWriter(os.Stderr).Println(e.Error())
	}

	verb := "replaced"
	if mode == models.ReplacePreview {
		verb = "would replace"
	}
	stats := fmt.Sprintf("%s %d matches in %d files (%d skipped) in %s",
		verb, sink.replacements, sink.filesChanged, sink.skipped,
		outcome.Stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(os.Stderr, lipgloss.BoxStyle.Render(stats))

	if outcome.Kind == models.OutcomePartialFailure {
		return 2
	}
	if sink.replacements == 0 {
		return 1
	}
	return 0
}

func withoutQuit(errs []error) []error {
	out := errs[:0]
	for _, e := range errs {
		if errors.Is(e, errQuit) || errors.Is(e, context.Canceled) {
			continue
		}
		out = append(out, e)
	}
	return out
}
