package searcher

import (
	"sync"
	"sync/atomic"

	"github.com/meysamhadeli/codegrep/models"
)

// session holds the mutable state shared across a run's goroutines: the
// cancellation flag, the memory budget and the error/warning collectors.
type session struct {
	cancelled atomic.Bool

	bounded bool
	budget  atomic.Int64 // bytes remaining, valid only when bounded

	matches       atomic.Int64
	filesSearched atomic.Int64
	filesMatched  atomic.Int64
	filesSkipped  atomic.Int64

	mu       sync.Mutex
	errs     []error
	warnings []string
}

func newSession(limits models.Limits) *session {
	s := &session{bounded: limits.MemoryBudget > 0}
	if s.bounded {
		s.budget.Store(limits.MemoryBudget)
	}
	return s
}

// cancel is monotonic: once set, every periodic probe observes it.
func (s *session) cancel() { s.cancelled.Store(true) }

func (s *session) isCancelled() bool { return s.cancelled.Load() }

// reserve claims n bytes of the budget, or reports false when the claim
// would overdraw it. The CAS loop keeps the remaining budget from ever
// going negative under concurrent reservations.
func (s *session) reserve(n int64) bool {
	if !s.bounded {
		return true
	}
	for {
		cur := s.budget.Load()
		if n > cur {
			return false
		}
		if s.budget.CompareAndSwap(cur, cur-n) {
			return true
		}
	}
}

func (s *session) release(n int64) {
	if s.bounded {
		s.budget.Add(n)
	}
}

func (s *session) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *session) warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (s *session) drain() (errs []error, warnings []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs, s.warnings
}
