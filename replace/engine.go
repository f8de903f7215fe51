// Package replace turns match records into per-file edit plans and commits
// them: render-only previews, an interactive per-match walkthrough, or
// straight writes. Every committed file goes through an atomic
// write-then-rename so readers never observe a half-spliced file.
package replace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/replace/contracts"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/zeebo/xxh3"
)

// errOverlappingEdits guards the splice: a plan whose edits share bytes
// would corrupt the file and is refused outright.
var errOverlappingEdits = errors.New("overlapping edits in plan")

// FileOutcome reports what the engine did with one file.
type FileOutcome struct {
	Plan     *models.ReplacePlan
	Diff     string // rendered preview, empty outside preview mode
	Replaced int    // edits applied (or planned, in preview mode)
	Skipped  int    // matches declined interactively
}

// Engine applies one replacement template across the session's results. It
// is driven from the delivery goroutine and carries the interactive
// apply-all / quit state across files.
type Engine struct {
	mode     models.ReplaceMode
	segs     []segment
	prompter contracts.IDecisionPrompter

	applyAll bool
	quit     bool
}

// NewEngine parses the template once. Interactive mode requires a prompter.
func NewEngine(spec models.ReplaceSpec, prompter contracts.IDecisionPrompter) (*Engine, error) {
	segs, err := parseTemplate(spec.Template)
	if err != nil {
		return nil, err
	}
	return &Engine{mode: spec.Mode, segs: segs, prompter: prompter}, nil
}

// Quit reports whether an interactive session was ended with q. The caller
// should stop feeding results and cancel the search.
func (e *Engine) Quit() bool { return e.quit }

// ProcessFile builds the file's edit plan and, outside preview mode,
// commits it. Per-file failures come back as errors; the file on disk is
// never left partially rewritten.
func (e *Engine) ProcessFile(ctx context.Context, res *models.FileResult) (*FileOutcome, error) {
	if e.quit || len(res.Records) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := res.Candidate.Path
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ReplaceApplyError{Path: path, Cause: err}
	}
	// Records were derived from a snapshot of the content; refuse to splice
	// offsets into a file that has moved on since.
	if res.ContentHash != 0 && xxh3.Hash(content) != res.ContentHash {
		return nil, &models.ReplaceApplyError{Path: path, Cause: models.ErrFileChanged}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &models.ReplaceApplyError{Path: path, Cause: err}
	}

	plan := &models.ReplacePlan{
		Path:     path,
		FileMode: info.Mode(),
		BaseHash: xxh3.Hash(content),
		Matches:  len(res.Records),
	}
	outcome := &FileOutcome{Plan: plan}

	for _, rec := range res.Records {
		replacement := expand(e.segs, content, rec)
		keep, err := e.decide(ctx, content, rec, replacement)
		if err != nil {
			return nil, err
		}
		if !keep {
			outcome.Skipped++
			if e.quit {
				break
			}
			continue
		}
		plan.Edits = append(plan.Edits, models.Edit{
			Start:       rec.Start,
			End:         rec.End,
			Replacement: replacement,
		})
	}
	outcome.Replaced = len(plan.Edits)
	if len(plan.Edits) == 0 {
		return outcome, nil
	}
	if plan.Overlaps() {
		return nil, &models.ReplaceApplyError{Path: path, Cause: errOverlappingEdits}
	}

	after := applyEdits(content, plan.Edits)
	if e.mode == models.ReplacePreview {
		outcome.Diff = renderDiff(content, after)
		return outcome, nil
	}

	if err := writeAtomic(path, after, plan.FileMode); err != nil {
		return nil, &models.ReplaceApplyError{Path: path, Cause: err}
	}
	plan.Applied = true
	return outcome, nil
}

// decide resolves one match to apply-or-skip under the current mode.
func (e *Engine) decide(ctx context.Context, content []byte, rec models.MatchRecord, replacement []byte) (bool, error) {
	if e.mode != models.ReplaceInteractive || e.applyAll {
		return true, nil
	}
	answer, err := e.prompter.Decide(ctx, rec, linePreview(content, rec, replacement))
	if err != nil {
		return false, err
	}
	switch answer {
	case contracts.DecisionYes:
		return true, nil
	case contracts.DecisionAll:
		e.applyAll = true
		return true, nil
	case contracts.DecisionQuit:
		e.quit = true
		return false, nil
	default:
		return false, nil
	}
}

// applyEdits splices the edits into a copy of content, back to front so
// earlier offsets stay valid while later ones shift.
func applyEdits(content []byte, edits []models.Edit) []byte {
	out := append([]byte(nil), content...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		tail := append([]byte(nil), out[e.End:]...)
		out = append(out[:e.Start], e.Replacement...)
		out = append(out, tail...)
	}
	return out
}

// linePreview renders the affected line before and after one replacement.
func linePreview(content []byte, rec models.MatchRecord, replacement []byte) string {
	lineStart := rec.Start - (rec.Column - 1)
	lineEnd := rec.Start
	for lineEnd < len(content) && content[lineEnd] != '\n' {
		lineEnd++
	}
	var b strings.Builder
	b.WriteString("- ")
	b.Write(content[lineStart:lineEnd])
	b.WriteString("\n+ ")
	b.Write(content[lineStart:rec.Start])
	b.Write(replacement)
	if rec.End <= lineEnd {
		b.Write(content[rec.End:lineEnd])
	}
	return b.String()
}

// renderDiff produces a line-oriented diff with -/+ prefixes and untouched
// lines elided, for the preview sink to colorize.
func renderDiff(before, after []byte) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out.WriteString(prefix)
			out.WriteString(" ")
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}

// writeAtomic replaces path's content via a same-directory temp file and
// rename. The original survives any failure before the rename.
func writeAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".codegrep-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	tmpPath = ""
	return nil
}
