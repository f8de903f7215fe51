package models

// ScopeKind tags the structural region a ScopeContext describes.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeFunction
	ScopeClass
	ScopeImport
	ScopeComment
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeImport:
		return "import"
	case ScopeComment:
		return "comment"
	default:
		return "none"
	}
}

// ScopeKindFromName maps a user-facing kind name back to its ScopeKind.
// Unknown names map to ScopeNone.
func ScopeKindFromName(name string) ScopeKind {
	switch name {
	case "function":
		return ScopeFunction
	case "class":
		return ScopeClass
	case "import":
		return ScopeImport
	case "comment":
		return ScopeComment
	default:
		return ScopeNone
	}
}

// ScopeContext is a structurally meaningful byte range of a file: a
// function or class body, an import block, or a comment span.
type ScopeContext struct {
	Kind  ScopeKind
	Name  string // function/class name, empty for imports and comments
	Start int    // byte offset, inclusive
	End   int    // byte offset, exclusive
}

// Contains reports whether the byte range [start,end) lies inside the scope.
func (s ScopeContext) Contains(start, end int) bool {
	return start >= s.Start && end <= s.End
}

// CaptureGroup is one captured submatch of a regex pattern.
type CaptureGroup struct {
	Name  string // empty for numbered groups
	Start int    // byte offset, -1 when the group did not participate
	End   int
	Text  string
}

// MatchRecord is one match of the session pattern inside a file. Records for
// a file are strictly ordered by byte offset and never mutated after
// creation.
type MatchRecord struct {
	Path      string
	Start     int // byte offset, inclusive
	End       int // byte offset, exclusive
	Line      int // 1-based line of Start
	Column    int // 1-based byte column of Start within its line
	EndLine   int
	EndColumn int
	LineText  string // the full line containing Start, without the newline
	Groups    []CaptureGroup
	Scope     *ScopeContext // enclosing scope, nil when not computed
}

// SkipReason explains why a worker refused a candidate.
type SkipReason int

const (
	SkipNone SkipReason = iota
	// SkipTooLarge means reserving the file's size would have exhausted the
	// session memory budget.
	SkipTooLarge
	// SkipBinary means the content turned out to be binary on full read.
	SkipBinary
)

// FileResult is the per-file unit flowing from workers to the coordinator.
type FileResult struct {
	Candidate FileCandidate
	Records   []MatchRecord
	Skipped   SkipReason
	// ContentHash is the xxh3 of the content the records were derived from.
	// Set only in replace mode; the replace engine refuses to rewrite a file
	// whose content no longer hashes to this value.
	ContentHash uint64
	Err         error // per-file recoverable error, nil on success
}
