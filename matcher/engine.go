package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/meysamhadeli/codegrep/models"
)

// rawMatch is an engine hit before it becomes a MatchRecord.
type rawMatch struct {
	start  int
	end    int
	groups []models.CaptureGroup
}

// engine is one compiled search strategy. Engines return matches in byte
// order and never overlap within their own result set.
type engine interface {
	findAll(content []byte) []rawMatch
	matches(content []byte) bool
}

// regexMeta are the characters whose presence promotes a bare pattern from
// literal to regex matching.
const regexMeta = `.*+?^$|[](){}\`

func hasRegexMeta(pattern string) bool {
	return strings.ContainsAny(pattern, regexMeta)
}

// needsFallback inspects regex syntax for constructs the standard engine
// rejects: lookaround, backreferences and atomic groups. Selection happens
// once at compile time; the two tiers are never mixed mid-file.
func needsFallback(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i+1 < len(pattern) {
				next := pattern[i+1]
				if (next >= '1' && next <= '9') || next == 'k' {
					return true
				}
				i++ // skip the escaped character
			}
		case '(':
			if strings.HasPrefix(pattern[i:], "(?=") ||
				strings.HasPrefix(pattern[i:], "(?!") ||
				strings.HasPrefix(pattern[i:], "(?<=") ||
				strings.HasPrefix(pattern[i:], "(?<!") ||
				strings.HasPrefix(pattern[i:], "(?>") {
				return true
			}
		}
	}
	return false
}

// compileEngine builds the engine for one pattern operand.
func compileEngine(pattern string, spec models.PatternSpec) (engine, error) {
	if spec.Literal || (!hasRegexMeta(pattern) && !spec.WordBoundary) {
		return &literalEngine{
			needle:        pattern,
			caseSensitive: spec.CaseSensitive,
			wordBoundary:  spec.WordBoundary,
		}, nil
	}

	expr := pattern
	if spec.WordBoundary {
		expr = `\b(?:` + expr + `)\b`
	}

	if needsFallback(pattern) {
		return compileFallback(expr, spec.CaseSensitive, nil)
	}

	stdExpr := expr
	if !spec.CaseSensitive {
		stdExpr = "(?i)" + stdExpr
	}
	re, err := regexp.Compile(stdExpr)
	if err != nil {
		return compileFallback(expr, spec.CaseSensitive, err)
	}
	return &stdEngine{re: re}, nil
}

func compileFallback(expr string, caseSensitive bool, fastErr error) (engine, error) {
	opts := regexp2.None
	if !caseSensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		if fastErr == nil {
			fastErr = err
			err = nil
		}
		return nil, &models.PatternCompileError{Pattern: expr, FastErr: fastErr, FallbackErr: err}
	}
	return &fallbackEngine{re: re}, nil
}

// literalEngine scans for a fixed needle without regex machinery. Case
// folding is ASCII-only so byte offsets stay exact.
type literalEngine struct {
	needle        string
	caseSensitive bool
	wordBoundary  bool
}

func (e *literalEngine) findAll(content []byte) []rawMatch {
	if len(e.needle) == 0 {
		return nil
	}
	var out []rawMatch
	for i := 0; i+len(e.needle) <= len(content); {
		if !e.matchAt(content, i) {
			i++
			continue
		}
		end := i + len(e.needle)
		if !e.wordBoundary || (!isWordByte(byteBefore(content, i)) && !isWordByte(byteAt(content, end))) {
			out = append(out, rawMatch{start: i, end: end})
			i = end
			continue
		}
		i++
	}
	return out
}

func (e *literalEngine) matches(content []byte) bool {
	return len(e.findAll(content)) > 0
}

func (e *literalEngine) matchAt(content []byte, i int) bool {
	for j := 0; j < len(e.needle); j++ {
		a, b := content[i+j], e.needle[j]
		if a == b {
			continue
		}
		if !e.caseSensitive && asciiLower(a) == asciiLower(b) {
			continue
		}
		return false
	}
	return true
}

// stdEngine is the fast tier: the standard library's linear-time regexp.
type stdEngine struct {
	re *regexp.Regexp
}

func (e *stdEngine) findAll(content []byte) []rawMatch {
	idx := e.re.FindAllSubmatchIndex(content, -1)
	if idx == nil {
		return nil
	}
	names := e.re.SubexpNames()
	out := make([]rawMatch, 0, len(idx))
	for _, loc := range idx {
		rm := rawMatch{start: loc[0], end: loc[1]}
		for g := 1; g < len(loc)/2; g++ {
			cg := models.CaptureGroup{Start: loc[2*g], End: loc[2*g+1]}
			if g < len(names) {
				cg.Name = names[g]
			}
			if cg.Start >= 0 {
				cg.Text = string(content[cg.Start:cg.End])
			}
			rm.groups = append(rm.groups, cg)
		}
		out = append(out, rm)
	}
	return out
}

func (e *stdEngine) matches(content []byte) bool {
	return e.re.Match(content)
}

// fallbackEngine is the second tier for syntax the fast engine rejects.
// regexp2 reports rune offsets, so results go through a rune-to-byte
// conversion when the content is not pure ASCII.
type fallbackEngine struct {
	re *regexp2.Regexp
}

func (e *fallbackEngine) findAll(content []byte) []rawMatch {
	text := string(content)
	conv := newRuneConverter(text)

	var out []rawMatch
	m, err := e.re.FindStringMatch(text)
	for m != nil && err == nil {
		rm := rawMatch{start: conv.byteOffset(m.Index), end: conv.byteOffset(m.Index + m.Length)}
		groups := m.Groups()
		for g := 1; g < len(groups); g++ {
			cg := models.CaptureGroup{Start: -1, End: -1, Name: numberlessName(groups[g].Name)}
			if n := len(groups[g].Captures); n > 0 {
				last := groups[g].Captures[n-1]
				cg.Start = conv.byteOffset(last.Index)
				cg.End = conv.byteOffset(last.Index + last.Length)
				cg.Text = string(content[cg.Start:cg.End])
			}
			rm.groups = append(rm.groups, cg)
		}
		out = append(out, rm)
		m, err = e.re.FindNextMatch(m)
	}
	return out
}

func (e *fallbackEngine) matches(content []byte) bool {
	ok, _ := e.re.MatchString(string(content))
	return ok
}

// numberlessName drops regexp2's synthetic numeric group names so numbered
// groups look the same across both tiers.
func numberlessName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return name
		}
	}
	return ""
}

// runeConverter maps regexp2 rune offsets to byte offsets. Pure-ASCII
// content short-circuits to identity.
type runeConverter struct {
	offsets []int // nil for identity
}

func newRuneConverter(s string) runeConverter {
	if len(s) == utf8.RuneCountInString(s) {
		return runeConverter{}
	}
	offsets := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	return runeConverter{offsets: offsets}
}

func (c runeConverter) byteOffset(runeIdx int) int {
	if c.offsets == nil {
		return runeIdx
	}
	if runeIdx < 0 {
		return c.offsets[0]
	}
	if runeIdx >= len(c.offsets) {
		return c.offsets[len(c.offsets)-1]
	}
	return c.offsets[runeIdx]
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func asciiLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func byteBefore(content []byte, i int) byte {
	if i == 0 {
		return 0
	}
	return content[i-1]
}

func byteAt(content []byte, i int) byte {
	if i >= len(content) {
		return 0
	}
	return content[i]
}
