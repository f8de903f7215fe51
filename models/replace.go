package models

import "io/fs"

// Edit is a single byte-range replacement within a file.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ReplacePlan is the ordered, non-overlapping edit set for one file. Edits
// are kept in ascending offset order; they are applied back-to-front so
// earlier offsets stay valid after each splice.
type ReplacePlan struct {
	Path     string
	FileMode fs.FileMode
	Edits    []Edit
	// BaseHash is the xxh3 of the content the plan was built against.
	BaseHash uint64
	// Matches counts the records the plan was built from, including ones
	// the user skipped interactively.
	Matches int
	// Applied is set once the plan has been committed to disk.
	Applied bool
}

// Overlaps reports whether any two edits in the plan share bytes. A valid
// plan never overlaps; the check exists so the engine can refuse a corrupt
// one instead of splicing garbage.
func (p *ReplacePlan) Overlaps() bool {
	for i := 1; i < len(p.Edits); i++ {
		if p.Edits[i].Start < p.Edits[i-1].End {
			return true
		}
	}
	return false
}
