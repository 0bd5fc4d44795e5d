package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
)

const selectSteps = `
	SELECT seq, dispatch_id, depth, origin, rule, action_type, payload, state_hash
	FROM steps
`

// ReadSteps returns every journaled step ordered by seq.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadSteps(ctx context.Context) ([]engine.Step, error) {
	return s.querySteps(ctx, selectSteps+`ORDER BY seq ASC`)
}

// ReadStepsAfter returns the steps with seq greater than after.
func (s *Store) ReadStepsAfter(ctx context.Context, after int64) ([]engine.Step, error) {
	return s.querySteps(ctx, selectSteps+`WHERE seq > ? ORDER BY seq ASC`, after)
}

// ReadDispatch returns the steps of one top-level dispatch ordered by seq.
func (s *Store) ReadDispatch(ctx context.Context, dispatchID string) ([]engine.Step, error) {
	return s.querySteps(ctx, selectSteps+`WHERE dispatch_id = ? ORDER BY seq ASC`, dispatchID)
}

// ReadStepsByType returns the steps whose action has actionType.
func (s *Store) ReadStepsByType(ctx context.Context, actionType string) ([]engine.Step, error) {
	return s.querySteps(ctx, selectSteps+`WHERE action_type = ? ORDER BY seq ASC`, actionType)
}

// DispatchIDs returns every dispatch ID in the order its first step was
// applied.
func (s *Store) DispatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dispatch_id
		FROM steps
		GROUP BY dispatch_id
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dispatch ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dispatch id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch ids: %w", err)
	}
	return ids, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM steps`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadStep returns the step with seq, or ErrNotFound.
func (s *Store) ReadStep(ctx context.Context, seq int64) (engine.Step, error) {
	steps, err := s.querySteps(ctx, selectSteps+`WHERE seq = ?`, seq)
	if err != nil {
		return engine.Step{}, err
	}
	if len(steps) == 0 {
		return engine.Step{}, fmt.Errorf("step %d: %w", seq, ErrNotFound)
	}
	return steps[0], nil
}

// ReadDiagnostics returns the diagnostics of dispatchID in the order they
// were recorded. An empty dispatchID returns every diagnostic.
func (s *Store) ReadDiagnostics(ctx context.Context, dispatchID string) ([]engine.Diagnostic, error) {
	query := `
		SELECT kind, dispatch_id, action_type, rule, provider, effect, message, error
		FROM diagnostics
	`
	var args []any
	if dispatchID != "" {
		query += `WHERE dispatch_id = ? `
		args = append(args, dispatchID)
	}
	query += `ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []engine.Diagnostic{}
	for rows.Next() {
		var (
			d       engine.Diagnostic
			kind    string
			errText string
		)
		if err := rows.Scan(&kind, &d.DispatchID, &d.ActionType, &d.Rule, &d.Provider, &d.Effect, &d.Message, &errText); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Kind = engine.DiagnosticKind(kind)
		if errText != "" {
			d.Err = errors.New(errText)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

func (s *Store) querySteps(ctx context.Context, query string, args ...any) ([]engine.Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []engine.Step{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func scanStep(rows *sql.Rows) (engine.Step, error) {
	var (
		step       engine.Step
		origin     string
		actionType string
		payload    sql.NullString
	)
	if err := rows.Scan(
		&step.Seq,
		&step.DispatchID,
		&step.Depth,
		&origin,
		&step.Rule,
		&actionType,
		&payload,
		&step.StateHash,
	); err != nil {
		return engine.Step{}, fmt.Errorf("scan step: %w", err)
	}

	value, err := unmarshalPayload(payload)
	if err != nil {
		return engine.Step{}, fmt.Errorf("step %d: %w", step.Seq, err)
	}
	step.Origin = engine.Origin(origin)
	step.Action = ir.NewAction(actionType, value)
	return step, nil
}
