package contracts

import "github.com/meysamhadeli/codegrep/models"

// IResultSink consumes per-file results in delivery order. Implementations
// are called from a single goroutine and never concurrently. A non-nil error
// cancels the rest of the session.
type IResultSink interface {
	Consume(result *models.FileResult) error
}
