package matcher

import "sort"

// lineIndex converts byte offsets to 1-based line and column positions.
// It is built lazily, only for files that actually produce matches.
type lineIndex struct {
	starts []int // starts[i] is the byte offset where line i+1 begins
	size   int
}

func newLineIndex(content []byte) *lineIndex {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts, size: len(content)}
}

// position returns the 1-based line and column for a byte offset. Columns
// count bytes from the line start, matching the offsets in MatchRecord.
func (ix *lineIndex) position(offset int) (line, column int) {
	i := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset }) - 1
	return i + 1, offset - ix.starts[i] + 1
}

// lineBounds returns the byte range of a 1-based line, excluding the
// trailing newline.
func (ix *lineIndex) lineBounds(line int) (start, end int) {
	start = ix.starts[line-1]
	if line < len(ix.starts) {
		end = ix.starts[line] - 1
	} else {
		end = ix.size
	}
	return start, end
}
