// Package scope delimits structural regions of source files without parsing
// them. A single linear scan tracks nested delimiter depth per language
// family while a string/comment state machine keeps delimiter-like bytes
// inside literals from opening or closing scopes.
package scope

import (
	"bytes"
	"sort"

	"github.com/meysamhadeli/codegrep/models"
)

// Options tune the resolver.
type Options struct {
	// SkipEscapeAnalysis drops the string-literal state machine. Scanning
	// gets cheaper; delimiters inside string literals may then be counted
	// as real nesting. Used by fast mode.
	SkipEscapeAnalysis bool
}

// Resolver computes the flat list of ScopeContext regions for a file.
type Resolver struct {
	opts Options
}

// NewResolver returns a resolver with the given options.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve scans content once and returns its scope regions sorted by start
// offset. When the nesting cannot be established (malformed or truncated
// file), it returns a single whole-file unscoped region together with
// models.ErrScopeAmbiguous; the caller should match unscoped and attach a
// session warning instead of failing the file.
func (r *Resolver) Resolve(language string, content []byte) ([]models.ScopeContext, error) {
	s := &scanState{
		fam:         familyFor(language),
		src:         content,
		fast:        r.opts.SkipEscapeAnalysis,
		importStart: -1,
	}
	s.run()

	if s.ambiguous {
		return []models.ScopeContext{{Kind: models.ScopeNone, Start: 0, End: len(content)}},
			models.ErrScopeAmbiguous
	}

	sort.Slice(s.regions, func(i, j int) bool {
		if s.regions[i].Start != s.regions[j].Start {
			return s.regions[i].Start < s.regions[j].Start
		}
		return s.regions[i].End > s.regions[j].End
	})
	return s.regions, nil
}

type scanPhase int

const (
	phaseCode scanPhase = iota
	phaseString
	phaseLineComment
	phaseBlockComment
)

// openScope is a brace-delimited region whose closing brace has not been
// seen yet. depth is the nesting depth just after its opening brace.
type openScope struct {
	kind  models.ScopeKind
	name  string
	start int
	depth int
}

// indentScope is an open indentation-delimited region (python family).
type indentScope struct {
	kind   models.ScopeKind
	name   string
	start  int
	indent int
}

type scanState struct {
	fam  family
	src  []byte
	fast bool

	regions []models.ScopeContext

	phase        scanPhase
	str          stringDelim
	commentStart int
	blockCloser  string

	depth   int
	open    []openScope
	pending *openScope

	indentOpen []indentScope

	importStart  int
	importEnd    int
	inImportList bool // inside a parenthesized import block (go style)

	ambiguous bool
}

func (s *scanState) run() {
	n := len(s.src)
	lineStart := 0

	for i := 0; i < n; {
		if i == lineStart && s.phase == phaseCode {
			s.lineHead(i)
		}

		c := s.src[i]
		switch s.phase {
		case phaseCode:
			if m := s.matchAny(i, s.fam.lineComments); m != "" {
				s.commentStart = i
				s.phase = phaseLineComment
				i += len(m)
				continue
			}
			if opener, closer := s.matchBlockOpen(i); opener != "" {
				s.commentStart = i
				s.blockCloser = closer
				s.phase = phaseBlockComment
				i += len(opener)
				continue
			}
			if !s.fast {
				if sd, ok := s.matchStringOpen(i); ok {
					s.str = sd
					s.phase = phaseString
					i += len(sd.open)
					continue
				}
			}
			if s.tracksBraces() {
				switch c {
				case '{':
					s.depth++
					if s.pending != nil {
						s.pending.depth = s.depth
						s.open = append(s.open, *s.pending)
						s.pending = nil
					}
				case '}':
					s.depth--
					if s.depth < 0 {
						s.ambiguous = true
						return
					}
					for len(s.open) > 0 && s.open[len(s.open)-1].depth > s.depth {
						top := s.open[len(s.open)-1]
						s.open = s.open[:len(s.open)-1]
						s.regions = append(s.regions, models.ScopeContext{
							Kind: top.kind, Name: top.name, Start: top.start, End: i + 1,
						})
					}
				case ';':
					// A declaration ended without a body; forget any scope
					// still waiting for its opening brace.
					s.pending = nil
				}
			}
			if c == '\n' {
				lineStart = i + 1
			}
			i++

		case phaseString:
			if s.str.escape && c == '\\' && i+1 < n {
				i += 2
				continue
			}
			if s.hasAt(i, s.str.close) {
				s.phase = phaseCode
				i += len(s.str.close)
				continue
			}
			if c == '\n' {
				lineStart = i + 1
				if !s.str.multiline {
					// Unterminated single-line literal; resume at the next
					// line rather than swallowing the rest of the file.
					s.phase = phaseCode
				}
			}
			i++

		case phaseLineComment:
			if c == '\n' {
				s.regions = append(s.regions, models.ScopeContext{
					Kind: models.ScopeComment, Start: s.commentStart, End: i,
				})
				s.phase = phaseCode
				lineStart = i + 1
			}
			i++

		case phaseBlockComment:
			if s.hasAt(i, s.blockCloser) {
				s.regions = append(s.regions, models.ScopeContext{
					Kind: models.ScopeComment, Start: s.commentStart, End: i + len(s.blockCloser),
				})
				s.phase = phaseCode
				i += len(s.blockCloser)
				continue
			}
			if c == '\n' {
				lineStart = i + 1
			}
			i++
		}
	}

	s.finish(n)
}

// finish settles EOF state: trailing comments close, unterminated block
// comments or multiline strings and unbalanced braces flag ambiguity.
func (s *scanState) finish(n int) {
	switch s.phase {
	case phaseLineComment:
		s.regions = append(s.regions, models.ScopeContext{
			Kind: models.ScopeComment, Start: s.commentStart, End: n,
		})
	case phaseBlockComment:
		s.ambiguous = true
		return
	case phaseString:
		if s.str.multiline {
			s.ambiguous = true
			return
		}
	}

	s.flushImports()
	for _, sc := range s.indentOpen {
		s.regions = append(s.regions, models.ScopeContext{
			Kind: sc.kind, Name: sc.name, Start: sc.start, End: n,
		})
	}
	if s.tracksBraces() && (s.depth != 0 || len(s.open) > 0) {
		s.ambiguous = true
	}
}

func (s *scanState) tracksBraces() bool {
	return !s.fam.indentBased &&
		(len(s.fam.funcKeywords) > 0 || len(s.fam.classKeywords) > 0)
}

// lineHead runs once per line while in code state: it closes indentation
// scopes, extends or flushes the current import run, and arms pending
// function/class scopes from the line's leading keyword.
func (s *scanState) lineHead(lineStart int) {
	lineEnd := lineStart
	for lineEnd < len(s.src) && s.src[lineEnd] != '\n' {
		lineEnd++
	}
	line := s.src[lineStart:lineEnd]
	trimmed := bytes.TrimLeft(line, " \t")
	indent := len(line) - len(trimmed)
	blank := len(trimmed) == 0
	commentOnly := !blank && s.matchAny(lineStart+indent, s.fam.lineComments) != ""

	if s.fam.indentBased && !blank && !commentOnly {
		for len(s.indentOpen) > 0 && s.indentOpen[len(s.indentOpen)-1].indent >= indent {
			top := s.indentOpen[len(s.indentOpen)-1]
			s.indentOpen = s.indentOpen[:len(s.indentOpen)-1]
			s.regions = append(s.regions, models.ScopeContext{
				Kind: top.kind, Name: top.name, Start: top.start, End: lineStart,
			})
		}
	}

	if blank || commentOnly {
		if !s.inImportList {
			s.flushImports()
		}
		return
	}

	if s.scanImportLine(trimmed, lineStart, lineEnd) {
		return
	}
	s.flushImports()

	rest := stripModifiers(trimmed)
	if kw := keywordAt(rest, s.fam.funcKeywords); kw != "" {
		s.armScope(models.ScopeFunction, funcName(s.fam, kw, rest[len(kw):]), lineStart, indent)
		return
	}
	if kw := keywordAt(rest, s.fam.classKeywords); kw != "" {
		if kw == "type" && !bytes.Contains(rest, []byte(" struct")) && !bytes.Contains(rest, []byte(" interface")) {
			return
		}
		s.armScope(models.ScopeClass, identAfter(rest[len(kw):]), lineStart, indent)
	}
}

func (s *scanState) armScope(kind models.ScopeKind, name string, lineStart, indent int) {
	if s.fam.indentBased {
		s.indentOpen = append(s.indentOpen, indentScope{
			kind: kind, name: name, start: lineStart, indent: indent,
		})
		return
	}
	s.pending = &openScope{kind: kind, name: name, start: lineStart}
}

// scanImportLine extends the current contiguous import run when the line has
// import-statement shape (or continues a parenthesized import list).
func (s *scanState) scanImportLine(trimmed []byte, lineStart, lineEnd int) bool {
	if s.inImportList {
		s.importEnd = lineEnd
		if len(trimmed) > 0 && trimmed[0] == ')' {
			s.inImportList = false
		}
		return true
	}
	for _, p := range s.fam.importPrefixes {
		if !bytes.HasPrefix(trimmed, []byte(p.prefix)) {
			continue
		}
		if p.requires != "" && !bytes.Contains(trimmed, []byte(p.requires)) {
			continue
		}
		if s.importStart < 0 {
			s.importStart = lineStart
		}
		s.importEnd = lineEnd
		if bytes.Contains(trimmed, []byte("(")) && !bytes.Contains(trimmed, []byte(")")) {
			s.inImportList = true
		}
		return true
	}
	return false
}

func (s *scanState) flushImports() {
	if s.importStart >= 0 {
		s.regions = append(s.regions, models.ScopeContext{
			Kind: models.ScopeImport, Start: s.importStart, End: s.importEnd,
		})
	}
	s.importStart = -1
	s.inImportList = false
}

func (s *scanState) matchAny(i int, tokens []string) string {
	for _, t := range tokens {
		if s.hasAt(i, t) {
			return t
		}
	}
	return ""
}

func (s *scanState) matchBlockOpen(i int) (string, string) {
	for _, bc := range s.fam.blockComments {
		if s.hasAt(i, bc[0]) {
			return bc[0], bc[1]
		}
	}
	return "", ""
}

func (s *scanState) matchStringOpen(i int) (stringDelim, bool) {
	for _, sd := range s.fam.strings {
		if s.hasAt(i, sd.open) {
			return sd, true
		}
	}
	return stringDelim{}, false
}

func (s *scanState) hasAt(i int, token string) bool {
	if token == "" || i+len(token) > len(s.src) {
		return false
	}
	return string(s.src[i:i+len(token)]) == token
}

// stripModifiers removes leading visibility/async qualifier tokens.
func stripModifiers(line []byte) []byte {
	for {
		stripped := false
		for _, m := range modifiers {
			if bytes.HasPrefix(line, []byte(m)) && len(line) > len(m) && (line[len(m)] == ' ' || line[len(m)] == '\t') {
				line = bytes.TrimLeft(line[len(m):], " \t")
				stripped = true
				break
			}
		}
		if !stripped {
			return line
		}
	}
}

// keywordAt returns the keyword the line starts with, requiring a word
// break after it so "func" never matches "funcs".
func keywordAt(line []byte, keywords []string) string {
	for _, kw := range keywords {
		if bytes.HasPrefix(line, []byte(kw)) {
			if len(line) == len(kw) {
				return kw
			}
			next := line[len(kw)]
			if next == ' ' || next == '\t' || next == '(' {
				return kw
			}
		}
	}
	return ""
}

// funcName extracts the declared name after a function keyword, skipping a
// go method receiver when present.
func funcName(fam family, kw string, rest []byte) string {
	rest = bytes.TrimLeft(rest, " \t")
	if kw == "func" && len(rest) > 0 && rest[0] == '(' {
		end := bytes.IndexByte(rest, ')')
		if end < 0 {
			return ""
		}
		rest = bytes.TrimLeft(rest[end+1:], " \t")
	}
	return identAfter(rest)
}

// identAfter reads the first identifier of line, skipping a leading generic
// parameter list.
func identAfter(line []byte) string {
	line = bytes.TrimLeft(line, " \t")
	if len(line) > 0 && line[0] == '<' {
		end := bytes.IndexByte(line, '>')
		if end < 0 {
			return ""
		}
		line = bytes.TrimLeft(line[end+1:], " \t")
	}
	end := 0
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}
	return string(line[:end])
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
