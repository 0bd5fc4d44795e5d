package rulefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleRules = `
rules:
  - description: When someone mentions React, load react context
  - name: ping_touch
    condition: .type == "app/ping"
    actions:
      - type: vault/touch
        payload:
          file: notes.md
`

func startEngine(t *testing.T) *engine.Engine {
	t.Helper()

	e := engine.New(engine.WithIDGenerator(engine.NewSequenceGenerator("")))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return e
}

func ruleNames(e *engine.Engine) []string {
	var names []string
	for _, r := range e.Rules() {
		names = append(names, r.Name)
	}
	return names
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse_DescriptionAndStructuredEntries(t *testing.T) {
	entries, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].IsDescription())
	assert.False(t, entries[1].IsDescription())

	r, err := entries[1].Rule()
	require.NoError(t, err)
	assert.Equal(t, "ping_touch", r.Name)
	assert.Equal(t, rules.TriggerPredicate, r.Trigger.Kind)
	assert.Equal(t, CompiledBy, r.CompiledBy)
	require.Len(t, r.Actions, 1)
	assert.Equal(t, "vault/touch", r.Actions[0].Type)
	assert.Equal(t, "notes.md", r.Actions[0].PayloadObject().StringField("file"))
}

func TestParse_Empty(t *testing.T) {
	entries, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParse_RejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "rules:\n  - descripton: typo\n"},
		{"empty entry", "rules:\n  - {}\n"},
		{"mixed", "rules:\n  - description: x\n    name: y\n"},
		{"missing name", "rules:\n  - pattern: app\n    actions: [{type: app/x}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestEntryRule_ConditionWinsOverPattern(t *testing.T) {
	e := Entry{
		Name:      "both",
		Condition: `.type == "app/a"`,
		Pattern:   "app/b",
		Actions:   []ActionDoc{{Type: "app/c"}},
	}
	r, err := e.Rule()
	require.NoError(t, err)
	assert.Equal(t, rules.TriggerPredicate, r.Trigger.Kind)
	assert.Equal(t, `.type == "app/a"`, r.Trigger.Source)
}

func TestEntryRule_Errors(t *testing.T) {
	_, err := Entry{Name: "no_trigger", Actions: []ActionDoc{{Type: "app/x"}}}.Rule()
	assert.ErrorIs(t, err, rules.ErrInvalidRule)

	_, err = Entry{Name: "reserved", Pattern: "app", Actions: []ActionDoc{{Type: "middleware/register"}}}.Rule()
	assert.ErrorIs(t, err, rules.ErrInvalidRule)

	_, err = Entry{Name: "no_actions", Pattern: "app"}.Rule()
	assert.ErrorIs(t, err, rules.ErrInvalidRule)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_RegistersEntriesInOrder(t *testing.T) {
	e := startEngine(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, sampleRules)

	rep, err := NewLoader(e).LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"react_context_loader", "ping_touch"}, rep.Registered)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, []string{"react_context_loader", "ping_touch"}, ruleNames(e))
	assert.Equal(t, compiler.StrategyPattern, e.Rules()[0].CompiledBy)

	res, err := e.Dispatch(context.Background(), ir.NewAction("app/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, res.State.Vault.RecentFiles)
}

func TestLoader_ApplyIsIncremental(t *testing.T) {
	e := startEngine(t)
	entries, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	l := NewLoader(e)
	first := l.Apply(context.Background(), entries)
	require.Len(t, first.Registered, 2)

	more := append(entries, Entry{
		Name:    "extra",
		Pattern: "^app/",
		Actions: []ActionDoc{{Type: "brain/boost_focus"}},
	})
	second := l.Apply(context.Background(), more)

	assert.Equal(t, []string{"extra"}, second.Registered)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, e.Rules(), 3)
}

func TestLoader_FailedEntryIsIsolatedAndRetried(t *testing.T) {
	e := startEngine(t)
	entries := []Entry{
		{Description: "make everything better somehow"},
		{Name: "ok", Pattern: "^app/", Actions: []ActionDoc{{Type: "brain/boost_focus"}}},
	}

	l := NewLoader(e)
	rep := l.Apply(context.Background(), entries)
	assert.Equal(t, []string{"ok"}, rep.Registered)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, 0, rep.Failed[0].Index)
	assert.True(t, compiler.IsCompileFailure(rep.Failed[0].Err))

	again := l.Apply(context.Background(), entries)
	assert.Len(t, again.Failed, 1)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, e.Rules(), 1)
}

func TestWatch_RegistersAddedEntries(t *testing.T) {
	e := startEngine(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, "rules: []\n")

	l := NewLoader(e)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, path, 20*time.Millisecond) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// The watch is registered asynchronously; keep rewriting until the
	// change is picked up.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(sampleRules), 0o644)
		return len(e.Rules()) == 2
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, []string{"react_context_loader", "ping_touch"}, ruleNames(e))
}

func TestWatch_KeepsRulesOnBrokenReload(t *testing.T) {
	e := startEngine(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, sampleRules)

	l := NewLoader(e)
	_, err := l.LoadFile(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, path, 20*time.Millisecond) }()

	writeFile(t, path, "rules: [\n")
	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, e.Rules(), 2)
}
