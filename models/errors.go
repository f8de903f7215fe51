package models

import (
	"errors"
	"fmt"
)

// IoError records a per-path filesystem failure. The file is skipped and the
// error attached to the session; it never aborts the run.
type IoError struct {
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// PatternCompileError means the pattern compiled on neither regex tier. It
// aborts the whole request before any traversal begins.
type PatternCompileError struct {
	Pattern     string
	FastErr     error
	FallbackErr error
}

func (e *PatternCompileError) Error() string {
	if e.FallbackErr != nil {
		return fmt.Sprintf("pattern %q failed to compile: %v (fallback engine: %v)",
			e.Pattern, e.FastErr, e.FallbackErr)
	}
	return fmt.Sprintf("pattern %q failed to compile: %v", e.Pattern, e.FastErr)
}

func (e *PatternCompileError) Unwrap() error { return e.FastErr }

// EncodingError means a file classified as text turned out not to be. The
// file is reclassified as binary and skipped unless binary search is enabled.
type EncodingError struct {
	Path string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid text encoding: %s", e.Path)
}

// ReplaceApplyError means one file's edit set could not be applied. The
// original file is left untouched; the session continues with other files.
type ReplaceApplyError struct {
	Path  string
	Cause error
}

func (e *ReplaceApplyError) Error() string {
	return fmt.Sprintf("replace failed: %s: %v", e.Path, e.Cause)
}

func (e *ReplaceApplyError) Unwrap() error { return e.Cause }

// ErrScopeAmbiguous flags a file whose nesting could not be established.
// The resolver falls back to a single whole-file region; matching proceeds
// unscoped with a session warning.
var ErrScopeAmbiguous = errors.New("scope resolution ambiguous")

// ErrFileChanged is the cause wrapped in a ReplaceApplyError when a file's
// content no longer hashes to the value captured at match time.
var ErrFileChanged = errors.New("file changed since match")
