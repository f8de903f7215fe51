// Package searcher coordinates a session: it streams candidates from the
// walker through a bounded worker pool into a single-consumer delivery loop,
// enforcing the session's ordering, match cap, memory budget and
// cancellation semantics.
package searcher

import (
	"container/heap"
	"context"
	"runtime"
	"time"

	"github.com/meysamhadeli/codegrep/matcher"
	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/searcher/contracts"
	"github.com/meysamhadeli/codegrep/walker"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

// Coordinator owns one compiled request. It is reusable; each Run is an
// independent session over the request's roots.
type Coordinator struct {
	req     models.SearchRequest
	matcher *matcher.Matcher
}

// New compiles the request's pattern once. A pattern neither regex tier
// accepts fails here, before any traversal starts.
func New(req models.SearchRequest) (*Coordinator, error) {
	m, err := matcher.Compile(req.Pattern, matcher.Options{
		Scope:         req.Scope,
		IncludeBinary: req.Traversal.IncludeBinary,
		Fast:          req.Fast,
		Hash:          req.Mode == models.ModeReplace,
	})
	if err != nil {
		return nil, err
	}
	return &Coordinator{req: req, matcher: m}, nil
}

// Run executes the session and delivers every file result to sink. It
// returns once traversal and matching have fully wound down; no goroutines
// outlive the call.
func (c *Coordinator) Run(ctx context.Context, sink contracts.IResultSink) (*models.SearchOutcome, error) {
	start := time.Now()
	sess := newSession(c.req.Limits)

	if c.req.Limits.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.req.Limits.Timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.req.Limits.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// The candidate channel is the backpressure point: when workers fall
	// behind, the walker blocks here instead of buffering the filesystem.
	cands := make(chan models.FileCandidate, 2*workers)
	results := make(chan seqResult, 4*workers)

	w := walker.New(c.req.Traversal, walker.Options{
		Cancelled: sess.isCancelled,
		OnError:   sess.recordError,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(cands)
		return w.Walk(gctx, cands)
	})
	g.Go(func() error {
		defer close(results)
		p := pool.New().WithMaxGoroutines(workers)
		var seq uint64
		for cand := range cands {
			if sess.isCancelled() || gctx.Err() != nil {
				continue // drain so the producer never blocks forever
			}
			cand, id := cand, seq
			seq++
			p.Go(func() {
				results <- seqResult{seq: id, res: c.process(gctx, sess, cand)}
			})
		}
		p.Wait()
		return nil
	})

	capReached := c.deliverAll(results, sess, sink, cancel)

	runErr := g.Wait()

	errs, warnings := sess.drain()
	outcome := &models.SearchOutcome{
		Matches:  sess.matches.Load(),
		Errors:   errs,
		Warnings: warnings,
		Stats: models.SearchStats{
			FilesSearched: sess.filesSearched.Load(),
			FilesMatched:  sess.filesMatched.Load(),
			FilesSkipped:  sess.filesSkipped.Load(),
			Elapsed:       time.Since(start),
		},
	}
	switch {
	case capReached:
		// Hitting the match cap is a successful stop, not a cancellation.
		outcome.Kind = models.OutcomeCompleted
	case sess.isCancelled() || ctx.Err() != nil:
		outcome.Kind = models.OutcomeCancelled
	case len(errs) > 0:
		outcome.Kind = models.OutcomePartialFailure
	default:
		outcome.Kind = models.OutcomeCompleted
	}
	return outcome, runErr
}

// process matches a single candidate under the session's budget. A file
// whose reservation would overdraw the budget is skipped, not failed. The
// matcher's cancellation hook folds in the context so a deadline expiring
// mid-file stops the record loop just like an explicit cancel.
func (c *Coordinator) process(ctx context.Context, sess *session, cand models.FileCandidate) *models.FileResult {
	cancelled := func() bool {
		return sess.isCancelled() || ctx.Err() != nil
	}
	if cancelled() {
		return &models.FileResult{Candidate: cand}
	}
	if !sess.reserve(cand.Size) {
		return &models.FileResult{Candidate: cand, Skipped: models.SkipTooLarge}
	}
	defer sess.release(cand.Size)

	return c.matcher.MatchFile(cand, matcher.Hooks{
		Cancelled: cancelled,
		Warn:      sess.warn,
	})
}

// deliverAll is the single consumer of worker results. In stable mode it
// reorders by dispatch sequence before delivery; either way it drains the
// channel to completion so workers never block on a dead consumer.
func (c *Coordinator) deliverAll(results <-chan seqResult, sess *session, sink contracts.IResultSink, cancel context.CancelFunc) bool {
	d := &delivery{
		sess:       sess,
		sink:       sink,
		cancel:     cancel,
		maxMatches: int64(c.req.Limits.MaxMatches),
	}

	if c.req.Ordering != models.OrderStable {
		for sr := range results {
			d.deliver(sr.res)
		}
		return d.capReached
	}

	var next uint64
	var buf seqHeap
	for sr := range results {
		heap.Push(&buf, sr)
		for buf.Len() > 0 && buf[0].seq == next {
			d.deliver(heap.Pop(&buf).(seqResult).res)
			next++
		}
	}
	// After close every dispatched sequence has arrived, so the remainder
	// pops in order with no holes.
	for buf.Len() > 0 {
		d.deliver(heap.Pop(&buf).(seqResult).res)
	}
	return d.capReached
}

// delivery applies stats, the match cap and sink handoff to each result.
type delivery struct {
	sess       *session
	sink       contracts.IResultSink
	cancel     context.CancelFunc
	maxMatches int64
	delivered  int64
	capReached bool
	sinkDead   bool
}

func (d *delivery) deliver(res *models.FileResult) {
	if res.Err != nil {
		d.sess.recordError(res.Err)
	}
	if res.Skipped != models.SkipNone {
		d.sess.filesSkipped.Add(1)
	} else {
		d.sess.filesSearched.Add(1)
	}
	if len(res.Records) == 0 {
		return
	}

	if d.maxMatches > 0 {
		remaining := d.maxMatches - d.delivered
		if remaining <= 0 {
			return
		}
		if int64(len(res.Records)) > remaining {
			res.Records = res.Records[:remaining]
		}
	}

	d.sess.filesMatched.Add(1)
	d.sess.matches.Add(int64(len(res.Records)))
	d.delivered += int64(len(res.Records))

	if !d.sinkDead && d.sink != nil {
		if err := d.sink.Consume(res); err != nil {
			d.sess.recordError(err)
			d.sinkDead = true
			d.sess.cancel()
			d.cancel()
		}
	}

	if d.maxMatches > 0 && d.delivered >= d.maxMatches && !d.capReached {
		d.capReached = true
		d.sess.cancel()
		d.cancel()
	}
}
