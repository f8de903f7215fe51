package contracts

import (
	"context"

	"github.com/meysamhadeli/codegrep/models"
)

// Decision values returned by a prompter.
const (
	DecisionYes  = "y" // apply this replacement
	DecisionNo   = "n" // skip this replacement
	DecisionAll  = "a" // apply this and every remaining replacement
	DecisionQuit = "q" // stop the whole replace session
)

// IDecisionPrompter asks what to do with one pending replacement. preview is
// the rendered before/after for the affected line. Any unrecognized answer
// is treated as DecisionNo.
type IDecisionPrompter interface {
	Decide(ctx context.Context, record models.MatchRecord, preview string) (string, error)
}
