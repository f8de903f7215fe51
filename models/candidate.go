package models

import "time"

// ContentKind is the walker's classification of a file's raw content.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindText
	KindBinary
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// FileCandidate is a file the walker selected as eligible for matching.
// It is produced once per file, never mutated, and consumed by exactly one
// worker.
type FileCandidate struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Kind     ContentKind
	Language string // language family key, empty when undetected
}
