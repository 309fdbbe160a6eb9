package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_IntegralNumbersReadAsFloat(t *testing.T) {
	v, err := Parse([]byte(`{"temperature": 61, "target": 70.5}`))
	require.NoError(t, err)

	temp, _ := v.Get("temperature")
	f, ok := temp.AsFloat()
	require.True(t, ok)
	assert.Equal(t, 61.0, f)

	i, ok := temp.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(61), i)

	target, _ := v.Get("target")
	_, ok = target.AsInt()
	assert.False(t, ok, "70.5 is not integral")
}

func TestParse_Variants(t *testing.T) {
	v, err := Parse([]byte(`[null, true, "x", [1], {"k": false}]`))
	require.NoError(t, err)

	items, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, items, 5)

	assert.Equal(t, TypeNull, items[0].Type())
	assert.Equal(t, TypeBool, items[1].Type())
	assert.Equal(t, TypeString, items[2].Type())
	assert.Equal(t, TypeArray, items[3].Type())
	assert.Equal(t, TypeObject, items[4].Type())

	_, ok = items[2].AsFloat()
	assert.False(t, ok)
	_, ok = items[0].Get("k")
	assert.False(t, ok)
	_, ok = items[3].Index(5)
	assert.False(t, ok)
}

func TestParse_RejectsOverflow(t *testing.T) {
	_, err := Parse([]byte(`1e400`))
	assert.Error(t, err)
}

func TestValue_MarshalJSON(t *testing.T) {
	v := Object(map[string]Value{
		"objects": Object(map[string]Value{"toolhead": Null()}),
		"count":   Number(100),
		"tags":    Array(String("a"), Bool(true)),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"objects":{"toolhead":null},"count":100,"tags":["a",true]}`, string(data))
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{"n": 3, "names": []string{"a", "b"}})
	require.NoError(t, err)

	n, _ := v.Get("n")
	f, _ := n.AsFloat()
	assert.Equal(t, 3.0, f)
	assert.Equal(t, []string{"n", "names"}, v.Keys())

	_, err = FromInterface(struct{}{})
	assert.Error(t, err)
}
