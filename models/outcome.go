package models

import "time"

// OutcomeKind discriminates how a session ended.
type OutcomeKind int

const (
	// OutcomeCompleted means traversal and matching ran to the end (or hit
	// the match cap, which is a successful stop).
	OutcomeCompleted OutcomeKind = iota
	// OutcomeCancelled means the session was stopped early by cancellation
	// or deadline.
	OutcomeCancelled
	// OutcomePartialFailure means the session finished but some files were
	// skipped with recoverable errors.
	OutcomePartialFailure
)

// SearchStats are the session counters the CLI layer renders.
type SearchStats struct {
	FilesSearched int64
	FilesMatched  int64
	FilesSkipped  int64
	Elapsed       time.Duration
}

// FilesPerSecond derives the traversal rate, 0 for an instantaneous run.
func (s SearchStats) FilesPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.FilesSearched) / secs
}

// SearchOutcome is what the coordinator hands back to the caller. The
// CLI layer maps it to an exit code; that mapping is not the core's concern.
type SearchOutcome struct {
	Kind     OutcomeKind
	Matches  int64
	Errors   []error  // per-path recoverable errors, in occurrence order
	Warnings []string // non-fatal session warnings (scope ambiguity etc.)
	Stats    SearchStats
}
