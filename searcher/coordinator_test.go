package searcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meysamhadeli/codegrep/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectSink records delivery order for assertions.
type collectSink struct {
	results []*models.FileResult
	fail    error // returned from Consume when set
}

func (s *collectSink) Consume(r *models.FileResult) error {
	if s.fail != nil {
		return s.fail
	}
	s.results = append(s.results, r)
	return nil
}

func (s *collectSink) paths() []string {
	out := make([]string, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r.Candidate.Path)
	}
	return out
}

func (s *collectSink) totalRecords() int {
	n := 0
	for _, r := range s.results {
		n += len(r.Records)
	}
	return n
}

func seedTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func baseRequest(root string) models.SearchRequest {
	return models.SearchRequest{
		Pattern:   models.PatternSpec{Pattern: "needle", CaseSensitive: true},
		Traversal: models.TraversalFilter{Roots: []string{root}, RespectIgnores: true},
		Limits:    models.Limits{Workers: 4},
	}
}

func TestRun_FindsMatchesAcrossTree(t *testing.T) {
	root := seedTree(t, map[string]string{
		"a.txt":       "a needle here\nand a needle there\n",
		"sub/b.txt":   "one needle\n",
		"sub/c.txt":   "nothing to see\n",
		"sub/d/e.txt": "needle\n",
	})

	c, err := New(baseRequest(root))
	require.NoError(t, err)

	sink := &collectSink{}
	outcome, err := c.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, int64(4), outcome.Matches)
	assert.Equal(t, int64(3), outcome.Stats.FilesMatched)
	assert.Equal(t, int64(4), outcome.Stats.FilesSearched)
	assert.Len(t, sink.results, 3)
}

func TestRun_StableOrderIndependentOfWorkerCount(t *testing.T) {
	files := make(map[string]string, 24)
	for i := 0; i < 24; i++ {
		// Uneven sizes so completion order differs from dispatch order.
		pad := ""
		if i%3 == 0 {
			pad = strings.Repeat("x", 64*1024)
		}
		files[fmt.Sprintf("f%02d.txt", i)] = pad + "needle\n"
	}
	root := seedTree(t, files)

	var baseline []string
	for _, workers := range []int{1, 2, 4, 8} {
		req := baseRequest(root)
		req.Limits.Workers = workers
		req.Ordering = models.OrderStable

		c, err := New(req)
		require.NoError(t, err)
		sink := &collectSink{}
		_, err = c.Run(context.Background(), sink)
		require.NoError(t, err)

		if baseline == nil {
			baseline = sink.paths()
			require.Len(t, baseline, 24)
			continue
		}
		assert.Equal(t, baseline, sink.paths(), "worker count %d changed delivery order", workers)
	}
}

func TestRun_RecordsWithinFileStayOffsetOrdered(t *testing.T) {
	root := seedTree(t, map[string]string{
		"a.txt": "needle x needle y needle\n",
	})
	c, err := New(baseRequest(root))
	require.NoError(t, err)

	sink := &collectSink{}
	_, err = c.Run(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.results, 1)

	records := sink.results[0].Records
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Start, records[i-1].Start)
	}
}

func TestRun_MemoryBudgetSkipsOversizedFiles(t *testing.T) {
	big := strings.Repeat("x", 8*1024)
	root := seedTree(t, map[string]string{
		"small.txt": "needle\n",
		"big.txt":   big + "needle\n",
	})

	req := baseRequest(root)
	req.Limits.MemoryBudget = 1024

	c, err := New(req)
	require.NoError(t, err)
	sink := &collectSink{}
	outcome, err := c.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, int64(1), outcome.Stats.FilesSkipped)
	assert.Equal(t, int64(1), outcome.Matches)
	require.Len(t, sink.results, 1)
	assert.Equal(t, filepath.Join(root, "small.txt"), sink.results[0].Candidate.Path)
}

func TestRun_MatchCapStopsEarlyAsCompleted(t *testing.T) {
	files := make(map[string]string, 40)
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = "needle needle needle\n"
	}
	root := seedTree(t, files)

	req := baseRequest(root)
	req.Limits.MaxMatches = 5
	req.Ordering = models.OrderStable

	c, err := New(req)
	require.NoError(t, err)
	sink := &collectSink{}
	outcome, err := c.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, int64(5), outcome.Matches)
	assert.Equal(t, 5, sink.totalRecords())
}

func TestRun_ContextCancellation(t *testing.T) {
	root := seedTree(t, map[string]string{"a.txt": "needle\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(baseRequest(root))
	require.NoError(t, err)
	outcome, err := c.Run(ctx, &collectSink{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCancelled, outcome.Kind)
}

func TestRun_TimeoutCancels(t *testing.T) {
	root := seedTree(t, map[string]string{"a.txt": "needle\n"})

	req := baseRequest(root)
	req.Limits.Timeout = time.Nanosecond

	c, err := New(req)
	require.NoError(t, err)
	outcome, err := c.Run(context.Background(), &collectSink{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCancelled, outcome.Kind)
}

func TestProcess_ExpiredDeadlineStopsMatching(t *testing.T) {
	// Deadline expiry must reach the matcher's cancellation hook, not only
	// the walker, so a file already dispatched yields no records.
	root := seedTree(t, map[string]string{"a.txt": "needle one\nneedle two\n"})
	path := filepath.Join(root, "a.txt")
	info, err := os.Stat(path)
	require.NoError(t, err)

	c, err := New(baseRequest(root))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	res := c.process(ctx, newSession(models.Limits{}), models.FileCandidate{
		Path: path, Size: info.Size(), Kind: models.KindText,
	})
	assert.Empty(t, res.Records)
}

func TestRun_MissingRootIsPartialFailure(t *testing.T) {
	root := seedTree(t, map[string]string{"a.txt": "needle\n"})

	req := baseRequest(root)
	req.Traversal.Roots = []string{root, filepath.Join(root, "does-not-exist")}

	c, err := New(req)
	require.NoError(t, err)
	outcome, err := c.Run(context.Background(), &collectSink{})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomePartialFailure, outcome.Kind)
	assert.Equal(t, int64(1), outcome.Matches)
	require.NotEmpty(t, outcome.Errors)
	var ioErr *models.IoError
	assert.ErrorAs(t, outcome.Errors[0], &ioErr)
}

func TestRun_SinkFailureCancelsSession(t *testing.T) {
	root := seedTree(t, map[string]string{"a.txt": "needle\n", "b.txt": "needle\n"})

	boom := errors.New("sink closed")
	c, err := New(baseRequest(root))
	require.NoError(t, err)

	outcome, err := c.Run(context.Background(), &collectSink{fail: boom})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCancelled, outcome.Kind)
	require.NotEmpty(t, outcome.Errors)
	assert.ErrorIs(t, outcome.Errors[len(outcome.Errors)-1], boom)
}

func TestNew_RejectsUncompilablePattern(t *testing.T) {
	req := baseRequest(".")
	req.Pattern.Pattern = `broken(?=`
	_, err := New(req)
	var compileErr *models.PatternCompileError
	assert.ErrorAs(t, err, &compileErr)
}

func TestSession_BudgetNeverNegative(t *testing.T) {
	s := newSession(models.Limits{MemoryBudget: 100})
	assert.True(t, s.reserve(60))
	assert.False(t, s.reserve(60))
	assert.True(t, s.reserve(40))
	assert.False(t, s.reserve(1))
	s.release(60)
	assert.True(t, s.reserve(60))
}
