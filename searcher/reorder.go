package searcher

import "github.com/meysamhadeli/codegrep/models"

// seqResult pairs a worker's result with the sequence number its candidate
// was dispatched under.
type seqResult struct {
	seq uint64
	res *models.FileResult
}

// seqHeap is a min-heap on sequence number. In stable ordering mode the
// aggregator parks early finishers here until their predecessors arrive,
// making delivery order independent of worker count.
type seqHeap []seqResult

func (h seqHeap) Len() int            { return len(h) }
func (h seqHeap) Less(i, j int) bool  { return h[i].seq < h[j].seq }
func (h seqHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x interface{}) { *h = append(*h, x.(seqResult)) }

func (h *seqHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
