package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("")
	var _ IRValue = IRInt(0)
	var _ IRValue = IRFloat(0)
	var _ IRValue = IRBool(false)
	var _ IRValue = IRArray{}
	var _ IRValue = IRObject{}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{"zebra": IRInt(1), "alpha": IRInt(2), "beta": IRInt(3)}
	assert.Equal(t, []string{"alpha", "beta", "zebra"}, obj.SortedKeys())
	assert.Empty(t, IRObject{}.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, 0, compareKeysRFC8785("a", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "ab"))
	// Surrogate pair (0xD83D...) sorts before U+FF5E in UTF-16.
	assert.Equal(t, -1, compareKeysRFC8785("\U0001F600", "\uFF5E"))
}

func TestIRObjectStringField(t *testing.T) {
	obj := IRObject{"query": IRString("react"), "n": IRInt(5)}
	assert.Equal(t, "react", obj.StringField("query"))
	assert.Equal(t, "", obj.StringField("n"))
	assert.Equal(t, "", obj.StringField("missing"))
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"list": IRArray{IRString("a")},
		"obj":  IRObject{"k": IRInt(1)},
	}

	clone := Clone(orig).(IRObject)
	clone["list"].(IRArray)[0] = IRString("mutated")
	clone["obj"].(IRObject)["k"] = IRInt(99)
	clone["new"] = IRBool(true)

	assert.Equal(t, IRString("a"), orig["list"].(IRArray)[0])
	assert.Equal(t, IRInt(1), orig["obj"].(IRObject)["k"])
	assert.NotContains(t, orig, "new")
}

func TestCloneNil(t *testing.T) {
	assert.Equal(t, IRNull{}, Clone(nil))
}

func TestEqual(t *testing.T) {
	a := IRObject{"x": IRArray{IRInt(1), IRFloat(0.5)}, "y": IRNull{}}
	b := IRObject{"y": IRNull{}, "x": IRArray{IRInt(1), IRFloat(0.5)}}

	assert.True(t, Equal(a, b))
	assert.True(t, Equal(nil, IRNull{}))
	assert.False(t, Equal(IRInt(1), IRFloat(1)))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"b": IRInt(1)}))
}

func TestFromAny(t *testing.T) {
	got, err := FromAny(map[string]any{
		"s":     "text",
		"i":     7,
		"f":     0.25,
		"b":     true,
		"n":     nil,
		"arr":   []any{"a", 1},
		"num":   json.Number("12"),
		"numf":  json.Number("1.5"),
		"strs":  []string{"x"},
		"inner": map[string]string{"k": "v"},
	})
	require.NoError(t, err)

	want := IRObject{
		"s":     IRString("text"),
		"i":     IRInt(7),
		"f":     IRFloat(0.25),
		"b":     IRBool(true),
		"n":     IRNull{},
		"arr":   IRArray{IRString("a"), IRInt(1)},
		"num":   IRInt(12),
		"numf":  IRFloat(1.5),
		"strs":  IRArray{IRString("x")},
		"inner": IRObject{"k": IRString("v")},
	}
	assert.Equal(t, want, got)
}

func TestFromAnyRejects(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.Error(t, err)

	_, err = FromAny([]any{map[string]any{"bad": make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[0]")
}

func TestToAnyRoundTrip(t *testing.T) {
	v := IRObject{
		"type":    IRString("chroma/search"),
		"payload": IRObject{"query": IRString("react"), "n": IRInt(5), "d": IRFloat(0.5), "ok": IRBool(true), "z": IRNull{}},
		"tags":    IRArray{IRString("a")},
	}

	plain := ToAny(v)
	m, ok := plain.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chroma/search", m["type"])
	assert.Equal(t, 5, m["payload"].(map[string]any)["n"])
	assert.Nil(t, m["payload"].(map[string]any)["z"])

	back, err := FromAny(plain)
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestUnmarshalIRValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  IRValue
	}{
		{"int", `42`, IRInt(42)},
		{"float", `3.14`, IRFloat(3.14)},
		{"exponent", `1e3`, IRFloat(1000)},
		{"null", `null`, IRNull{}},
		{"string", `"hi"`, IRString("hi")},
		{"nested", `{"a":[1,2.5,null]}`, IRObject{"a": IRArray{IRInt(1), IRFloat(2.5), IRNull{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalIRValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalIRValueRejectsInvalid(t *testing.T) {
	for _, input := range []string{``, `{`, `1 2`} {
		_, err := UnmarshalIRValue([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{"b": IRInt(1), "a": IRArray{IRString("x"), IRNull{}}, "c": IRFloat(0.5)}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null],"b":1,"c":0.5}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestIRObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj IRObject
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &obj))

	var arr IRArray
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &arr))
}

func TestNewIRObjectFromPairs(t *testing.T) {
	obj := NewIRObjectFromPairs(O("context", IRString("react-patterns")), O("depth", IRInt(2)))
	assert.Equal(t, IRObject{"context": IRString("react-patterns"), "depth": IRInt(2)}, obj)
}
