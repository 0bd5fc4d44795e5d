package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/float/internal/engine"
)

// AppendStep journals one applied step. It implements engine.Journal.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - writing the same step
// twice is silently ignored.
func (s *Store) AppendStep(ctx context.Context, step engine.Step) error {
	payload, err := marshalPayload(step.Action.Payload)
	if err != nil {
		return fmt.Errorf("append step %d: %w", step.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps
		(seq, dispatch_id, depth, origin, rule, action_type, payload, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		step.Seq,
		step.DispatchID,
		step.Depth,
		string(step.Origin),
		step.Rule,
		step.Action.Type,
		payload,
		step.StateHash,
	)
	if err != nil {
		return fmt.Errorf("append step %d: %w", step.Seq, err)
	}
	return nil
}

// AppendDiagnostic records one diagnostic.
func (s *Store) AppendDiagnostic(ctx context.Context, d engine.Diagnostic) error {
	var errText string
	if d.Err != nil {
		errText = d.Err.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics
		(kind, dispatch_id, action_type, rule, provider, effect, message, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(d.Kind),
		d.DispatchID,
		d.ActionType,
		d.Rule,
		d.Provider,
		d.Effect,
		d.Message,
		errText,
	)
	if err != nil {
		return fmt.Errorf("append diagnostic: %w", err)
	}
	return nil
}

// DiagnosticSink returns an engine.DiagnosticSink that records into the
// journal. Write failures are logged, never propagated.
func (s *Store) DiagnosticSink() engine.DiagnosticSink {
	return func(d engine.Diagnostic) {
		if err := s.AppendDiagnostic(context.Background(), d); err != nil {
			slog.Error("diagnostic not journaled",
				"kind", string(d.Kind),
				"error", err,
				"event", "diagnostic_journal_failed",
			)
		}
	}
}

// Reset empties the journal. The journal covers one process lifetime, so
// it is reset whenever a new engine starts writing to it.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"steps", "diagnostics"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset journal: clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
