package models

import "time"

// Mode selects what the session does with the matches it finds.
type Mode int

const (
	ModeSearch Mode = iota
	ModeReplace
)

// Ordering selects the cross-file delivery policy.
type Ordering int

const (
	// OrderUnordered delivers file results in completion order. Matches
	// within a single file still arrive in byte-offset order.
	OrderUnordered Ordering = iota
	// OrderStable delivers file results in traversal-submission order
	// regardless of worker count.
	OrderStable
)

// ReplaceMode selects how a replace session touches the filesystem.
type ReplaceMode int

const (
	// ReplacePreview builds plans and renders them without writing.
	ReplacePreview ReplaceMode = iota
	// ReplaceInteractive asks for a decision per match before applying.
	ReplaceInteractive
	// ReplaceWrite applies every plan without asking.
	ReplaceWrite
)

// PatternSpec describes what to search for. It is compiled exactly once per
// session.
type PatternSpec struct {
	Pattern string
	// And operands are file-level post-filters: a file contributes matches
	// only when every operand matches somewhere in it.
	And []string
	// Or operands contribute their own matches, de-duplicated by byte range.
	Or []string
	// Literal forces plain-text matching even when the pattern contains
	// regex metacharacters.
	Literal       bool
	CaseSensitive bool
	WordBoundary  bool
}

// ScopeFilter restricts matches to structural regions of a file.
type ScopeFilter struct {
	InFunction    string
	InClass       string
	InScope       []string // scope kind names: function, class, import, comment
	FunctionsOnly bool
	ImportsOnly   bool
	CommentsOnly  bool
}

// Active reports whether any structural restriction is set.
func (f ScopeFilter) Active() bool {
	return f.InFunction != "" || f.InClass != "" || len(f.InScope) > 0 ||
		f.FunctionsOnly || f.ImportsOnly || f.CommentsOnly
}

// TraversalFilter bounds which files the walker produces.
type TraversalFilter struct {
	Roots          []string
	IncludeHidden  bool
	IncludeBinary  bool
	RespectIgnores bool     // honor .gitignore / .codegrepignore files
	IgnorePatterns []string // extra patterns applied at every level
	Extensions     []string // keep only these extensions, empty = all
	Types          []string // keep only these named file types, empty = all
	MaxFileSize    int64    // bytes, 0 = unbounded
	MaxDepth       int      // directory depth below each root, 0 = unbounded
	ModifiedWithin time.Duration
}

// Limits carries the concurrency and resource bounds for a session.
type Limits struct {
	Workers      int           // 0 = logical core count
	MemoryBudget int64         // bytes reservable by in-flight files, 0 = unbounded
	MaxMatches   int           // global cap, 0 = unbounded
	Timeout      time.Duration // 0 = none
}

// ReplaceSpec carries the replacement template and write policy.
type ReplaceSpec struct {
	// Template is literal text with $0..$9 and ${name} capture references;
	// $$ escapes a dollar sign.
	Template string
	Mode     ReplaceMode
}

// SearchRequest is the fully-resolved, immutable description of one session.
// It is constructed once by the CLI/config layer and owned by the coordinator
// for the session's lifetime.
type SearchRequest struct {
	Pattern   PatternSpec
	Scope     ScopeFilter
	Traversal TraversalFilter
	Limits    Limits
	Mode      Mode
	Replace   ReplaceSpec
	Ordering  Ordering
	// Fast disables the string/comment escape analysis in the scope
	// resolver. Cheaper, but delimiters inside literals may be miscounted.
	Fast bool
}
