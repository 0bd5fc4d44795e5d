package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/float/internal/llm"
)

func TestCompile_FastPathSkipsFallback(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("must not be called")}
	c := NewDefault(fc)

	r, err := c.Compile(context.Background(), "when someone mentions React, load react-patterns context")
	require.NoError(t, err)
	assert.Equal(t, "react_context_loader", r.Name)
	assert.Empty(t, fc.prompts)
}

func TestCompile_FallsBackToCompletion(t *testing.T) {
	fc := &fakeCompleter{reply: `{"name": "restore_notify", "condition": ".type == \"bridges/restore\"", "actions": [{"type": "brain/boost_focus"}]}`}
	c := NewDefault(fc)

	r, err := c.Compile(context.Background(), "on bridge restore, validate and notify")
	require.NoError(t, err)
	assert.Equal(t, "restore_notify", r.Name)
	assert.Equal(t, StrategyCompletion, r.CompiledBy)
	assert.Len(t, fc.prompts, 1)
}

func TestCompile_FallbackUnavailable(t *testing.T) {
	c := NewDefault(nil)

	r, err := c.Compile(context.Background(), "do something clever")
	assert.Nil(t, r)
	require.Error(t, err)
	assert.True(t, IsCompileFailure(err))
	assert.ErrorIs(t, err, llm.ErrNoCompleter)

	var f *CompileFailure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "do something clever", f.Text)
	assert.Contains(t, f.Message(), `❌ Could not parse middleware from: "do something clever"`)
	assert.Contains(t, f.Message(), "if someone mentions airbender, load avatar context")

	var se *StrategyError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StrategyCompletion, se.Strategy)
}

func TestCompile_FallbackError(t *testing.T) {
	c := NewDefault(&fakeCompleter{err: errors.New("boom")})

	_, err := c.Compile(context.Background(), "do something clever")
	assert.True(t, IsCompileFailure(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestCompile_EmptyText(t *testing.T) {
	_, err := New(PatternStrategy{}).Compile(context.Background(), "   ")
	assert.True(t, IsCompileFailure(err))
}

func TestCompile_NoStrategyRecognized(t *testing.T) {
	_, err := New(PatternStrategy{}).Compile(context.Background(), "nothing matches")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no strategy recognized")
}

func TestCompile_FastPathErrorFallsThrough(t *testing.T) {
	fc := &fakeCompleter{reply: `{"name": "ok", "pattern": "^bridges/restore$", "actions": [{"type": "brain/boost_focus"}]}`}
	c := NewDefault(fc)

	r, err := c.Compile(context.Background(), "on bridge restore, dispatch middleware/register")
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Name)
}
