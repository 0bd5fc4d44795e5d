package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/float/internal/ir"
)

func TestNewStateJSON(t *testing.T) {
	data, err := json.Marshal(New())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"brain": {"current_context": null, "focus_state": "idle", "loaded_data": null},
		"bridges": {"active_bridge": null, "restored_context": null},
		"context": {"active": [], "data": {}, "hierarchy": {}},
		"middleware": {"registered": []},
		"vault": {"recent_files": [], "search_results": []}
	}`, string(data))
}

func TestCloneIsDeep(t *testing.T) {
	s := New()
	s = Reduce(s, act("context/link", obj(ir.O("parent", ir.IRString("p")), ir.O("child", ir.IRString("c")))))
	s = Reduce(s, act("bridges/restore", obj(ir.O("bridge_id", ir.IRString("X")))))
	s = Reduce(s, act("context/store", obj(ir.O("context", ir.IRString("p")), ir.O("data", obj(ir.O("k", ir.IRInt(1)))))))

	clone := s.Clone()
	clone.Context.Hierarchy["p"][0] = "changed"
	*clone.Bridges.ActiveBridge = "Y"
	clone.Context.Data["p"].(ir.IRObject)["k"] = ir.IRInt(2)

	assert.Equal(t, "c", s.Context.Hierarchy["p"][0])
	assert.Equal(t, "X", *s.Bridges.ActiveBridge)
	assert.Equal(t, ir.IRInt(1), s.Context.Data["p"].(ir.IRObject)["k"])
}

func TestSlice(t *testing.T) {
	s := Reduce(New(), act("brain/boost_focus", nil))

	brain, ok := s.Slice("brain")
	require.True(t, ok)
	assert.Equal(t, ir.IRString("boosted"), brain.(ir.IRObject)["focus_state"])

	_, ok = s.Slice("nope")
	assert.False(t, ok)
}

func TestHashChangesWithState(t *testing.T) {
	a, err := New().Hash()
	require.NoError(t, err)
	b, err := Reduce(New(), act("brain/idle", nil)).Hash()
	require.NoError(t, err)
	c, err := Reduce(New(), act("brain/boost_focus", nil)).Hash()
	require.NoError(t, err)

	assert.Equal(t, a, b, "idle on an idle brain changes nothing")
	assert.NotEqual(t, a, c)
}

func TestRuleViewToIROmitsMissingPayload(t *testing.T) {
	view := RuleView{
		Name:        "r",
		TriggerKind: "predicate",
		Trigger:     `.type == "x/y"`,
		Actions:     []ir.Action{{Type: "brain/boost_focus"}},
	}
	rendered := view.ToIR()
	actions := rendered["actions"].(ir.IRArray)
	assert.NotContains(t, actions[0].(ir.IRObject), "payload")

	parsed, ok := RuleViewFromIR(rendered)
	require.True(t, ok)
	assert.Equal(t, view, parsed)
}
