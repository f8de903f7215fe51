package matcher

import (
	"bytes"
	"errors"
	"sort"

	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/scope"
	"github.com/zeebo/xxh3"
)

// cancelCheckInterval is how many records are built between cancellation
// probes while post-processing a file's matches.
const cancelCheckInterval = 64

// Options configures a Matcher beyond the pattern itself.
type Options struct {
	Scope models.ScopeFilter
	// IncludeBinary keeps matching files whose content turns out to contain
	// NUL bytes instead of skipping them.
	IncludeBinary bool
	// Fast disables string/comment escape analysis during scope resolution.
	Fast bool
	// Hash records an xxh3 of each file's content on the result, for
	// staleness checks before a later rewrite.
	Hash bool
}

// Hooks are the per-session callbacks a Matcher reports through. Both are
// optional.
type Hooks struct {
	// Cancelled is polled periodically during matching; a true return stops
	// work on the current file.
	Cancelled func() bool
	// Warn receives non-fatal per-file notes, such as scope analysis falling
	// back to unscoped matches.
	Warn func(msg string)
}

// Matcher is a compiled pattern plus the scope policy to apply per file.
// It is immutable after Compile and safe for concurrent use.
type Matcher struct {
	primary  engine
	or       []engine
	and      []engine
	opts     Options
	resolver *scope.Resolver
}

// Compile builds the engines for the primary pattern and every combinator
// operand. Tier selection runs once here; a pattern neither tier accepts
// fails the whole session with a PatternCompileError.
func Compile(spec models.PatternSpec, opts Options) (*Matcher, error) {
	primary, err := compileEngine(spec.Pattern, spec)
	if err != nil {
		return nil, err
	}
	m := &Matcher{
		primary:  primary,
		opts:     opts,
		resolver: scope.NewResolver(scope.Options{SkipEscapeAnalysis: opts.Fast}),
	}
	for _, operand := range spec.Or {
		eng, err := compileEngine(operand, spec)
		if err != nil {
			return nil, err
		}
		m.or = append(m.or, eng)
	}
	for _, operand := range spec.And {
		eng, err := compileEngine(operand, spec)
		if err != nil {
			return nil, err
		}
		m.and = append(m.and, eng)
	}
	return m, nil
}

// MatchFile runs the compiled pattern over one candidate and returns its
// result. Errors stay on the result; a failed file never fails the session.
func (m *Matcher) MatchFile(cand models.FileCandidate, hooks Hooks) *models.FileResult {
	res := &models.FileResult{Candidate: cand}

	content, done, err := readContent(cand.Path, cand.Size)
	if err != nil {
		res.Err = &models.IoError{Path: cand.Path, Cause: err}
		return res
	}
	defer done()

	// The walker sniffs only a prefix; the full content can still turn out
	// to be binary.
	if !m.opts.IncludeBinary && bytes.IndexByte(content, 0) >= 0 {
		res.Skipped = models.SkipBinary
		res.Err = &models.EncodingError{Path: cand.Path}
		return res
	}

	if m.opts.Hash {
		res.ContentHash = xxh3.Hash(content)
	}

	if cancelled(hooks) {
		return res
	}

	for _, eng := range m.and {
		if !eng.matches(content) {
			return res
		}
	}

	raw := m.primary.findAll(content)
	if len(m.or) > 0 {
		raw = mergeOr(raw, m.or, content)
	}
	if len(raw) == 0 {
		return res
	}

	regions, scoped := m.scopeRegions(cand, content, hooks)

	ix := newLineIndex(content)
	records := make([]models.MatchRecord, 0, len(raw))
	for i, rm := range raw {
		if i%cancelCheckInterval == 0 && cancelled(hooks) {
			break
		}
		var sc *models.ScopeContext
		if scoped {
			if sc = m.acceptScope(regions, rm); sc == nil {
				continue
			}
		}
		records = append(records, buildRecord(cand.Path, rm, ix, content, sc))
	}
	res.Records = records
	return res
}

// scopeRegions resolves the file's structural regions when a scope filter is
// active. scoped is false when matches should be kept unscoped: either no
// filter is set, or the file was too ambiguous to analyze.
func (m *Matcher) scopeRegions(cand models.FileCandidate, content []byte, hooks Hooks) (regions []models.ScopeContext, scoped bool) {
	if !m.opts.Scope.Active() {
		return nil, false
	}
	regions, err := m.resolver.Resolve(cand.Language, content)
	if err != nil {
		if errors.Is(err, models.ErrScopeAmbiguous) && hooks.Warn != nil {
			hooks.Warn(cand.Path + ": scope analysis inconclusive, matches kept unscoped")
		}
		return nil, false
	}
	return regions, true
}

// acceptScope checks every active scope condition against the regions
// enclosing the match. Conditions combine conjunctively, each satisfiable by
// a different enclosing region; the innermost satisfying region is returned
// for attachment, nil when any condition fails.
func (m *Matcher) acceptScope(regions []models.ScopeContext, rm rawMatch) *models.ScopeContext {
	var enclosing []*models.ScopeContext
	for i := range regions {
		if regions[i].Contains(rm.start, rm.end) {
			enclosing = append(enclosing, &regions[i])
		}
	}
	var hit *models.ScopeContext
	for _, cond := range m.conditions() {
		sat := innermost(enclosing, cond)
		if sat == nil {
			return nil
		}
		if hit == nil || sat.End-sat.Start < hit.End-hit.Start {
			hit = sat
		}
	}
	return hit
}

// conditions expands the scope filter into independent region predicates.
func (m *Matcher) conditions() []func(*models.ScopeContext) bool {
	f := m.opts.Scope
	var conds []func(*models.ScopeContext) bool
	if f.FunctionsOnly {
		conds = append(conds, kindIs(models.ScopeFunction))
	}
	if f.ImportsOnly {
		conds = append(conds, kindIs(models.ScopeImport))
	}
	if f.CommentsOnly {
		conds = append(conds, kindIs(models.ScopeComment))
	}
	if name := f.InFunction; name != "" {
		conds = append(conds, func(r *models.ScopeContext) bool {
			return r.Kind == models.ScopeFunction && r.Name == name
		})
	}
	if name := f.InClass; name != "" {
		conds = append(conds, func(r *models.ScopeContext) bool {
			return r.Kind == models.ScopeClass && r.Name == name
		})
	}
	if len(f.InScope) > 0 {
		kinds := make(map[models.ScopeKind]bool, len(f.InScope))
		for _, n := range f.InScope {
			kinds[models.ScopeKindFromName(n)] = true
		}
		conds = append(conds, func(r *models.ScopeContext) bool { return kinds[r.Kind] })
	}
	return conds
}

func kindIs(k models.ScopeKind) func(*models.ScopeContext) bool {
	return func(r *models.ScopeContext) bool { return r.Kind == k }
}

func innermost(regions []*models.ScopeContext, cond func(*models.ScopeContext) bool) *models.ScopeContext {
	var best *models.ScopeContext
	for _, r := range regions {
		if !cond(r) {
			continue
		}
		if best == nil || r.End-r.Start < best.End-best.Start {
			best = r
		}
	}
	return best
}

// mergeOr unions the primary match set with every OR operand's, de-duplicated
// by byte range and returned in offset order.
func mergeOr(raw []rawMatch, or []engine, content []byte) []rawMatch {
	seen := make(map[[2]int]struct{}, len(raw))
	for _, rm := range raw {
		seen[[2]int{rm.start, rm.end}] = struct{}{}
	}
	for _, eng := range or {
		for _, rm := range eng.findAll(content) {
			key := [2]int{rm.start, rm.end}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			raw = append(raw, rm)
		}
	}
	sort.Slice(raw, func(i, j int) bool {
		if raw[i].start != raw[j].start {
			return raw[i].start < raw[j].start
		}
		return raw[i].end < raw[j].end
	})
	return raw
}

func buildRecord(path string, rm rawMatch, ix *lineIndex, content []byte, sc *models.ScopeContext) models.MatchRecord {
	line, col := ix.position(rm.start)
	endLine, endCol := ix.position(rm.end)
	ls, le := ix.lineBounds(line)
	return models.MatchRecord{
		Path:      path,
		Start:     rm.start,
		End:       rm.end,
		Line:      line,
		Column:    col,
		EndLine:   endLine,
		EndColumn: endCol,
		LineText:  string(content[ls:le]),
		Groups:    rm.groups,
		Scope:     sc,
	}
}

func cancelled(hooks Hooks) bool {
	return hooks.Cancelled != nil && hooks.Cancelled()
}
