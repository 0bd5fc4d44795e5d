package engine

import (
	"fmt"

	"github.com/roach88/float/internal/state"
)

// ReplayMismatchError reports a journaled step whose recorded state hash
// differs from the hash obtained by re-applying the reducer.
type ReplayMismatchError struct {
	Seq        int64
	DispatchID string
	ActionType string
	Want       string
	Got        string
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay mismatch at seq %d (dispatch=%s, action=%s): recorded %s, replayed %s",
		e.Seq, e.DispatchID, e.ActionType, e.Want, e.Got)
}

// Replay re-applies steps to the initial state in order and verifies every
// recorded state hash. Reducers are pure, so a clean replay reproduces the
// exact state the engine held after the last step. Rules and effects are not
// re-run: the journal already holds every action they produced.
func Replay(steps []Step) (state.State, error) {
	return ReplayFrom(state.New(), steps)
}

// ReplayFrom is Replay starting at s.
func ReplayFrom(s state.State, steps []Step) (state.State, error) {
	var last int64
	for _, step := range steps {
		if step.Seq <= last {
			return s, fmt.Errorf("replay: seq %d is not after %d", step.Seq, last)
		}
		last = step.Seq
	}

	cur := s.Clone()
	for _, step := range steps {
		cur = state.Reduce(cur, step.Action)
		got, err := cur.Hash()
		if err != nil {
			return cur, fmt.Errorf("replay: hash at seq %d: %w", step.Seq, err)
		}
		if step.StateHash != "" && got != step.StateHash {
			return cur, &ReplayMismatchError{
				Seq:        step.Seq,
				DispatchID: step.DispatchID,
				ActionType: step.Action.Type,
				Want:       step.StateHash,
				Got:        got,
			}
		}
	}
	return cur, nil
}
