package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionCopiesPayload(t *testing.T) {
	payload := IRObject{"context": IRString("react-patterns")}
	a := NewAction("context/load", payload)

	payload["context"] = IRString("mutated")

	assert.Equal(t, "react-patterns", a.PayloadObject().StringField("context"))
}

func TestActionCloneIsIndependent(t *testing.T) {
	a := NewAction("vault/search_complete", IRArray{IRObject{"id": IRString("doc-1")}})
	b := a.Clone()

	b.Payload.(IRArray)[0].(IRObject)["id"] = IRString("changed")

	assert.Equal(t, IRString("doc-1"), a.Payload.(IRArray)[0].(IRObject)["id"])
}

func TestActionDomainVerb(t *testing.T) {
	tests := []struct {
		typ    string
		domain string
		verb   string
	}{
		{"context/load", "context", "load"},
		{"bridges/restore_complete", "bridges", "restore_complete"},
		{"a/b/c", "a", "b/c"},
		{"plain", "plain", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			a := Action{Type: tt.typ}
			assert.Equal(t, tt.domain, a.Domain())
			assert.Equal(t, tt.verb, a.Verb())
		})
	}
}

func TestActionPayloadObject(t *testing.T) {
	assert.Nil(t, Action{Type: "x/y"}.PayloadObject())
	assert.Nil(t, Action{Type: "x/y", Payload: IRString("s")}.PayloadObject())
	assert.NotNil(t, Action{Type: "x/y", Payload: IRObject{}}.PayloadObject())
}

func TestActionToIRRendersMissingPayloadAsNull(t *testing.T) {
	assert.Equal(t, IRObject{"type": IRString("brain/boost_focus"), "payload": IRNull{}},
		Action{Type: "brain/boost_focus"}.ToIR())
}

func TestActionJSON(t *testing.T) {
	a := NewAction("chroma/search", IRObject{"query": IRString("react"), "n_results": IRInt(5)})

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"payload":{"n_results":5,"query":"react"},"type":"chroma/search"}`, string(data))

	var decoded Action
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a, decoded)
}

func TestActionJSONWithoutPayload(t *testing.T) {
	data, err := json.Marshal(Action{Type: "brain/boost_focus"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"brain/boost_focus"}`, string(data))

	var decoded Action
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.HasPayload())
}

func TestActionUnmarshalRejectsNonStringType(t *testing.T) {
	var a Action
	err := json.Unmarshal([]byte(`{"type": 5}`), &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
}

func TestActionString(t *testing.T) {
	assert.Equal(t, `{"payload":{"bridge_id":"b-1"},"type":"bridges/restore"}`,
		NewAction("bridges/restore", IRObject{"bridge_id": IRString("b-1")}).String())
}
