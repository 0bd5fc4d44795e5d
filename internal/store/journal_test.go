package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

func testStep(seq int64, dispatchID, actionType string, payload ir.IRValue) engine.Step {
	return engine.Step{
		DispatchID: dispatchID,
		Seq:        seq,
		Origin:     engine.OriginExternal,
		Action:     ir.NewAction(actionType, payload),
		StateHash:  "hash",
	}
}

func TestAppendStep_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	step := engine.Step{
		DispatchID: "d-1",
		Seq:        7,
		Depth:      2,
		Origin:     engine.OriginRule,
		Rule:       "mention",
		Action: ir.NewAction("context/store", ir.IRObject{
			"context": ir.IRString("react"),
			"data":    ir.IRObject{"big": ir.IRInt(9007199254740993)},
		}),
		StateHash: "abc",
	}
	require.NoError(t, s.AppendStep(ctx, step))

	got, err := s.ReadStep(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, step, got)
}

func TestAppendStep_NilPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-1", "brain/idle", nil)))

	got, err := s.ReadStep(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.Action.Payload)
}

func TestAppendStep_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-1", "a/first", nil)))
	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-1", "a/second", nil)))

	steps, err := s.ReadSteps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "a/first", steps[0].Action.Type)
}

func TestReadSteps_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.AppendStep(ctx, testStep(seq, "d-1", "a/b", nil)))
	}

	steps, err := s.ReadSteps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{steps[0].Seq, steps[1].Seq, steps[2].Seq})

	after, err := s.ReadStepsAfter(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestReadSteps_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	steps, err := s.ReadSteps(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, steps)
	assert.Empty(t, steps)

	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestReadDispatch_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-2", "a/x", nil)))
	require.NoError(t, s.AppendStep(ctx, testStep(2, "d-1", "a/y", nil)))
	require.NoError(t, s.AppendStep(ctx, testStep(3, "d-2", "a/z", nil)))

	steps, err := s.ReadDispatch(ctx, "d-2")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "a/x", steps[0].Action.Type)
	assert.Equal(t, "a/z", steps[1].Action.Type)

	ids, err := s.DispatchIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d-2", "d-1"}, ids)

	byType, err := s.ReadStepsByType(ctx, "a/y")
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, int64(2), byType[0].Seq)

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestReadStep_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadStep(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiagnostics_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sink := s.DiagnosticSink()
	sink(engine.Diagnostic{
		Kind:       engine.DiagProviderUnavailable,
		DispatchID: "d-1",
		ActionType: "chroma/search",
		Provider:   "chroma",
		Effect:     "chroma_search",
		Message:    "provider unavailable, skipping effect",
		Err:        errors.New("provider unavailable: chroma"),
	})
	sink(engine.Diagnostic{Kind: engine.DiagCycleWarning, Rule: "echo", Message: "cycle"})

	all, err := s.ReadDiagnostics(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, engine.DiagProviderUnavailable, all[0].Kind)
	assert.Equal(t, "chroma", all[0].Provider)
	require.Error(t, all[0].Err)
	assert.Equal(t, "provider unavailable: chroma", all[0].Err.Error())
	assert.NoError(t, all[1].Err)

	one, err := s.ReadDiagnostics(ctx, "d-1")
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestVerify_ReproducesEngineState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := engine.New(engine.WithJournal(s), engine.WithIDGenerator(engine.NewSequenceGenerator("")))
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- first.Run(runCtx) }()

	r, err := rules.New("mention", rules.Pattern("/react/i"), []ir.Action{
		ir.NewAction("context/load", ir.IRObject{"context": ir.IRString("react")}),
	})
	require.NoError(t, err)
	_, err = first.Register(ctx, r)
	require.NoError(t, err)
	_, err = first.Dispatch(ctx, ir.NewAction("user/react", nil))
	require.NoError(t, err)

	want, err := first.State().Hash()
	require.NoError(t, err)
	cancel()
	<-done

	snap, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.LastSeq)
	assert.Equal(t, 3, snap.Steps)
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, "mention", snap.Rules[0].Name)

	got, err := snap.State.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerify_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-1", "vault/touch", ir.IRObject{"file": ir.IRString("a")})))

	_, err := s.Verify(ctx)
	require.Error(t, err)

	var mismatch *engine.ReplayMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestReset_EmptiesJournal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-1", "a/b", nil)))
	require.NoError(t, s.AppendDiagnostic(ctx, engine.Diagnostic{Kind: engine.DiagJournalError, Message: "x"}))
	require.NoError(t, s.Reset(ctx))

	steps, err := s.ReadSteps(ctx)
	require.NoError(t, err)
	assert.Empty(t, steps)

	diags, err := s.ReadDiagnostics(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, diags)

	// Seq 1 is free again.
	require.NoError(t, s.AppendStep(ctx, testStep(1, "d-2", "a/c", nil)))
	got, err := s.ReadStep(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "d-2", got.DispatchID)
}
