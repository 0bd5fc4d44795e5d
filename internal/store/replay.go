package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/rules"
	"github.com/roach88/float/internal/state"
)

// Snapshot is the state rebuilt from the journal.
type Snapshot struct {
	State   state.State
	Rules   []*rules.Rule
	LastSeq int64
	Steps   int
}

// Verify replays the whole journal, checking every recorded state hash,
// and rebuilds the registered rules from the middleware slice.
func (s *Store) Verify(ctx context.Context) (Snapshot, error) {
	steps, err := s.ReadSteps(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("verify: %w", err)
	}

	st, err := engine.Replay(steps)
	if err != nil {
		return Snapshot{}, fmt.Errorf("verify: %w", err)
	}

	rs, err := RulesFromState(st)
	if err != nil {
		return Snapshot{}, fmt.Errorf("verify: %w", err)
	}

	snap := Snapshot{State: st, Rules: rs, Steps: len(steps)}
	if len(steps) > 0 {
		snap.LastSeq = steps[len(steps)-1].Seq
	}

	slog.Info("journal verified",
		"steps", snap.Steps,
		"last_seq", snap.LastSeq,
		"rules", len(rs),
	)
	return snap, nil
}

// RulesFromState rebuilds rules from their registered views in
// registration order.
func RulesFromState(st state.State) ([]*rules.Rule, error) {
	out := make([]*rules.Rule, 0, len(st.Middleware.Registered))
	for i, v := range st.Middleware.Registered {
		r, err := rules.New(v.Name, rules.Trigger{
			Kind:   rules.TriggerKind(v.TriggerKind),
			Source: v.Trigger,
		}, v.Actions)
		if err != nil {
			return nil, fmt.Errorf("registered rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
