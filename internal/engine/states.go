package engine

import (
	"fmt"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// transitions is the full table of automatic pipeline moves. Replay re-entry
// into a dead-lettered document is an explicit act outside this table.
var transitions = map[model.State][]model.State{
	model.StateDiscovered:  {model.StateClaimed},
	model.StateClaimed:     {model.StateDownloading},
	model.StateDownloading: {model.StateExtracting, model.StateFailed},
	model.StateExtracting:  {model.StateValidating, model.StateFailed},
	model.StateValidating:  {model.StateStored, model.StateNeedsReview},
	model.StateFailed:      {model.StateExtracting, model.StateDeadLetter},
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to model.State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a pipeline move. Side effects happen only after the
// move is accepted; a rejected pair is an integrity fault.
func Transition(from, to model.State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, from, to)
	}
	return nil
}
