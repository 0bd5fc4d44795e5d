package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

func TestPatternStrategy_MentionLoadsContext(t *testing.T) {
	r, err := PatternStrategy{}.TryCompile(context.Background(), "when someone mentions React, load react-patterns context")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, "react_context_loader", r.Name)
	assert.Equal(t, rules.Pattern("/React/i"), r.Trigger)
	assert.Equal(t, StrategyPattern, r.CompiledBy)
	assert.Equal(t, []ir.Action{
		ir.NewAction("context/load", ir.IRObject{"context": ir.IRString("react-patterns")}),
		ir.NewAction("brain/boost_focus", ir.IRObject{"reason": ir.IRString("react_mentioned")}),
	}, r.Actions)

	ok, err := r.Match(context.Background(), ir.NewAction("chat/react_question", ir.IRObject{}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPatternStrategy_IfMentions(t *testing.T) {
	r, err := PatternStrategy{}.TryCompile(context.Background(), "if someone mentions airbender, load avatar context")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "airbender_context_loader", r.Name)
	assert.Equal(t, "avatar", r.Actions[0].PayloadObject().StringField("context"))
}

func TestPatternStrategy_ContainsTriggersSearch(t *testing.T) {
	r, err := PatternStrategy{}.TryCompile(context.Background(), "when actions contain burp, search chroma and structure response")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, "burp_chroma_middleware", r.Name)
	assert.Equal(t, rules.TriggerPredicate, r.Trigger.Kind)
	assert.Equal(t, []ir.Action{
		ir.NewAction("chroma/search", ir.IRObject{"query": ir.IRString("burp")}),
		ir.NewAction("brain/boost_focus", ir.IRObject{"reason": ir.IRString("burp_triggered")}),
	}, r.Actions)

	tests := []struct {
		name   string
		action ir.Action
		want   bool
	}{
		{"type contains", ir.Action{Type: "burp/detected"}, true},
		{"payload contains", ir.NewAction("chat/message", ir.IRObject{"text": ir.IRString("big BURP")}), true},
		{"unrelated", ir.NewAction("chat/message", ir.IRObject{"text": ir.IRString("hello")}), false},
		{"own search action", ir.NewAction("chroma/search", ir.IRObject{"query": ir.IRString("burp")}), false},
		{"own boost action", ir.NewAction("brain/boost_focus", ir.IRObject{"reason": ir.IRString("burp_triggered")}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := r.Match(context.Background(), tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPatternStrategy_QuotedNeedle(t *testing.T) {
	r, err := PatternStrategy{}.TryCompile(context.Background(), `When an action contains "deploy", search vault`)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "deploy_vault_middleware", r.Name)
	assert.Equal(t, "vault/search", r.Actions[0].Type)
}

func TestPatternStrategy_OnEventDispatch(t *testing.T) {
	r, err := PatternStrategy{}.TryCompile(context.Background(), "on bridge restore, dispatch brain/boost_focus")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, "on_bridge_restore", r.Name)
	assert.Equal(t, rules.Pattern("^bridges?/restore$"), r.Trigger)
	assert.Equal(t, []ir.Action{{Type: "brain/boost_focus"}}, r.Actions)

	for typ, want := range map[string]bool{
		"bridges/restore":          true,
		"bridge/restore":           true,
		"bridges/restore_complete": false,
	} {
		ok, err := r.Match(context.Background(), ir.NewAction(typ, ir.IRObject{"bridge_id": ir.IRString("b")}))
		require.NoError(t, err)
		assert.Equal(t, want, ok, typ)
	}
}

func TestPatternStrategy_OnEventDispatchInvalidAction(t *testing.T) {
	_, err := PatternStrategy{}.TryCompile(context.Background(), "on bridge restore, dispatch middleware/register")
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrInvalidRule)
}

func TestPatternStrategy_NoMatch(t *testing.T) {
	for _, text := range []string{
		"on bridge restore, validate and notify",
		"make everything faster",
		"when someone mentions React",
	} {
		r, err := PatternStrategy{}.TryCompile(context.Background(), text)
		assert.NoError(t, err, text)
		assert.Nil(t, r, text)
	}
}

func TestContainsPredicate(t *testing.T) {
	assert.Equal(t,
		`((.type | ascii_downcase | contains("x")) or (.payload | tojson | ascii_downcase | contains("x"))) and .type != "y/search"`,
		containsPredicate("x", "y/search"))
}
