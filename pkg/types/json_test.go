package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONDistinguishesIntFromDec(t *testing.T) {
	decoded, err := DecodeOrdered([]byte(`{"a": 3, "b": 3.0, "c": 3.5}`))
	require.NoError(t, err)
	v, err := FromJSON(decoded)
	require.NoError(t, err)

	a, _ := v.O.Get("a")
	assert.Equal(t, KindInt, a.Kind)

	b, _ := v.O.Get("b")
	assert.Equal(t, KindDec, b.Kind)

	c, _ := v.O.Get("c")
	assert.Equal(t, KindDec, c.Kind)
}

func TestDecodeOrderedPreservesKeyOrder(t *testing.T) {
	decoded, err := DecodeOrdered([]byte(`{"z": 1, "a": 2, "m": 3}`))
	require.NoError(t, err)
	v, err := FromJSON(decoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, v.O.Keys())
}

func TestRoundTripArbitraryPrecisionInt(t *testing.T) {
	big := "123456789012345678901234567890"
	decoded, err := DecodeOrdered([]byte(big))
	require.NoError(t, err)
	v, err := FromJSON(decoded)
	require.NoError(t, err)
	require.Equal(t, KindInt, v.Kind)
	assert.Equal(t, big, v.I.String())
}

func TestToJSONRoundTrip(t *testing.T) {
	decoded, err := DecodeOrdered([]byte(`{"name":"a","nums":[1,2.5,null],"ok":true}`))
	require.NoError(t, err)
	v, err := FromJSON(decoded)
	require.NoError(t, err)

	out := ToJSON(v)
	ro, ok := out.(*OrderedRawObject)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "nums", "ok"}, ro.Keys)

	encoded, err := ro.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"name":"a"`)
}
