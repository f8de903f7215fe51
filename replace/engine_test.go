package replace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/replace/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

// scriptedPrompter replays a fixed answer sequence.
type scriptedPrompter struct {
	answers []string
	asked   int
}

func (p *scriptedPrompter) Decide(_ context.Context, _ models.MatchRecord, _ string) (string, error) {
	if p.asked >= len(p.answers) {
		return contracts.DecisionQuit, nil
	}
	a := p.answers[p.asked]
	p.asked++
	return a, nil
}

// resultFor fabricates a FileResult whose records cover every occurrence of
// needle, the way the matching stage would produce them.
func resultFor(t *testing.T, dir, name, content, needle string) *models.FileResult {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res := &models.FileResult{
		Candidate:   models.FileCandidate{Path: path, Size: int64(len(content))},
		ContentHash: xxh3.Hash([]byte(content)),
	}
	for from := 0; ; {
		i := strings.Index(content[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		line := 1 + strings.Count(content[:start], "\n")
		lineStart := strings.LastIndexByte(content[:start], '\n') + 1
		res.Records = append(res.Records, models.MatchRecord{
			Path:   path,
			Start:  start,
			End:    start + len(needle),
			Line:   line,
			Column: start - lineStart + 1,
		})
		from = start + len(needle)
	}
	return res
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestParseTemplate(t *testing.T) {
	segs, err := parseTemplate("pre $1 mid ${name} $$ $0")
	require.NoError(t, err)
	require.Len(t, segs, 6)
	assert.Equal(t, "pre ", segs[0].literal)
	assert.Equal(t, 1, segs[1].group)
	assert.Equal(t, "name", segs[3].name)
	assert.Equal(t, " $ ", segs[4].literal)
	assert.Equal(t, 0, segs[5].group)

	for _, bad := range []string{"trailing $", "$x", "${unterminated", "${}"} {
		_, err := parseTemplate(bad)
		assert.Error(t, err, "template %q should not parse", bad)
	}
}

func TestExpand_CaptureReferences(t *testing.T) {
	segs, err := parseTemplate("${verb}_$1 was $0")
	require.NoError(t, err)

	content := []byte("do_thing")
	rec := models.MatchRecord{
		Start: 0, End: 8,
		Groups: []models.CaptureGroup{
			{Name: "verb", Start: 0, End: 2, Text: "do"},
			{Name: "", Start: 3, End: 8, Text: "thing"},
		},
	}
	// $1 is the first group regardless of its name.
	assert.Equal(t, "do_do was do_thing", string(expand(segs, content, rec)))

	// An unparticipating group expands to nothing.
	rec.Groups[1] = models.CaptureGroup{Start: -1, End: -1}
	segs, err = parseTemplate("[$2]")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(expand(segs, content, rec)))
}

func TestProcessFile_WriteMode(t *testing.T) {
	dir := t.TempDir()
	res := resultFor(t, dir, "a.txt", "foo bar foo baz foo", "foo")

	eng, err := NewEngine(models.ReplaceSpec{Template: "quux", Mode: models.ReplaceWrite}, nil)
	require.NoError(t, err)

	out, err := eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 3, out.Replaced)
	assert.True(t, out.Plan.Applied)
	assert.Equal(t, "quux bar quux baz quux", readBack(t, res.Candidate.Path))
}

func TestProcessFile_PreservesFileMode(t *testing.T) {
	dir := t.TempDir()
	res := resultFor(t, dir, "a.sh", "foo\n", "foo")
	require.NoError(t, os.Chmod(res.Candidate.Path, 0o755))

	eng, err := NewEngine(models.ReplaceSpec{Template: "bar", Mode: models.ReplaceWrite}, nil)
	require.NoError(t, err)
	_, err = eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)

	info, err := os.Stat(res.Candidate.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestProcessFile_PreviewTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	content := "foo bar\nplain line\nfoo again\n"
	res := resultFor(t, dir, "a.txt", content, "foo")

	eng, err := NewEngine(models.ReplaceSpec{Template: "qux", Mode: models.ReplacePreview}, nil)
	require.NoError(t, err)
	out, err := eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, content, readBack(t, res.Candidate.Path), "preview must not write")
	assert.False(t, out.Plan.Applied)
	assert.Contains(t, out.Diff, "- foo bar")
	assert.Contains(t, out.Diff, "+ qux bar")
	assert.NotContains(t, out.Diff, "plain line")
}

func TestProcessFile_StaleFileRefused(t *testing.T) {
	dir := t.TempDir()
	res := resultFor(t, dir, "a.txt", "foo bar", "foo")
	// The file moves on after matching but before applying.
	require.NoError(t, os.WriteFile(res.Candidate.Path, []byte("rewritten elsewhere"), 0o644))

	eng, err := NewEngine(models.ReplaceSpec{Template: "qux", Mode: models.ReplaceWrite}, nil)
	require.NoError(t, err)
	_, err = eng.ProcessFile(context.Background(), res)

	var applyErr *models.ReplaceApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.ErrorIs(t, err, models.ErrFileChanged)
	assert.Equal(t, "rewritten elsewhere", readBack(t, res.Candidate.Path))
}

func TestProcessFile_InteractiveAnswers(t *testing.T) {
	dir := t.TempDir()
	res := resultFor(t, dir, "a.txt", "foo foo foo", "foo")

	prompter := &scriptedPrompter{answers: []string{"n", "y", "y"}}
	eng, err := NewEngine(models.ReplaceSpec{Template: "qux", Mode: models.ReplaceInteractive}, prompter)
	require.NoError(t, err)

	out, err := eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Replaced)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, "foo qux qux", readBack(t, res.Candidate.Path))
}

func TestProcessFile_InteractiveApplyAllSticks(t *testing.T) {
	dir := t.TempDir()
	first := resultFor(t, dir, "a.txt", "foo foo", "foo")
	second := resultFor(t, dir, "b.txt", "foo", "foo")

	prompter := &scriptedPrompter{answers: []string{contracts.DecisionAll}}
	eng, err := NewEngine(models.ReplaceSpec{Template: "qux", Mode: models.ReplaceInteractive}, prompter)
	require.NoError(t, err)

	_, err = eng.ProcessFile(context.Background(), first)
	require.NoError(t, err)
	_, err = eng.ProcessFile(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, "qux qux", readBack(t, first.Candidate.Path))
	assert.Equal(t, "qux", readBack(t, second.Candidate.Path))
	assert.Equal(t, 1, prompter.asked, "apply-all must suppress further prompts")
}

func TestProcessFile_InteractiveQuit(t *testing.T) {
	dir := t.TempDir()
	first := resultFor(t, dir, "a.txt", "foo foo foo", "foo")
	second := resultFor(t, dir, "b.txt", "foo", "foo")

	prompter := &scriptedPrompter{answers: []string{"y", contracts.DecisionQuit}}
	eng, err := NewEngine(models.ReplaceSpec{Template: "qux", Mode: models.ReplaceInteractive}, prompter)
	require.NoError(t, err)

	out, err := eng.ProcessFile(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, eng.Quit())
	// The answered yes still lands; quit stops further prompting.
	assert.Equal(t, 1, out.Replaced)
	assert.Equal(t, "qux foo foo", readBack(t, first.Candidate.Path))

	skipped, err := eng.ProcessFile(context.Background(), second)
	require.NoError(t, err)
	assert.Nil(t, skipped)
	assert.Equal(t, "foo", readBack(t, second.Candidate.Path))
}

func TestApplyEdits_BackToFrontKeepsOffsets(t *testing.T) {
	content := []byte("aa BB cc BB dd")
	edits := []models.Edit{
		{Start: 3, End: 5, Replacement: []byte("longer")},
		{Start: 9, End: 11, Replacement: []byte("x")},
	}
	assert.Equal(t, "aa longer cc x dd", string(applyEdits(content, edits)))
}

func TestProcessFile_ReplacementIdempotent(t *testing.T) {
	dir := t.TempDir()
	res := resultFor(t, dir, "a.txt", "old old", "old")

	eng, err := NewEngine(models.ReplaceSpec{Template: "new", Mode: models.ReplaceWrite}, nil)
	require.NoError(t, err)
	_, err = eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)

	// Searching the rewritten file for the pattern finds nothing to do.
	rewritten := readBack(t, res.Candidate.Path)
	assert.NotContains(t, rewritten, "old")
	assert.Equal(t, "new new", rewritten)
}

func TestProcessFile_GroupTemplate(t *testing.T) {
	dir := t.TempDir()
	content := "call handle(req)\n"
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res := &models.FileResult{
		Candidate:   models.FileCandidate{Path: path, Size: int64(len(content))},
		ContentHash: xxh3.Hash([]byte(content)),
		Records: []models.MatchRecord{{
			Path: path, Start: 5, End: 16, Line: 1, Column: 6,
			Groups: []models.CaptureGroup{{Name: "fn", Start: 5, End: 11, Text: "handle"}},
		}},
	}

	eng, err := NewEngine(models.ReplaceSpec{Template: "${fn}Checked(req)", Mode: models.ReplaceWrite}, nil)
	require.NoError(t, err)
	_, err = eng.ProcessFile(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "call handleChecked(req)\n", readBack(t, path))
}
