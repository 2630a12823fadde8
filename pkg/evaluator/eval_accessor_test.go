package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

func TestEvalFieldAccessorOnObject(t *testing.T) {
	v := eval(t, `$|$.a`, `{"a":1}`)
	assert.Equal(t, int64(1), v.I.Int64())
}

func TestEvalFieldAccessorMissingIsNull(t *testing.T) {
	v := eval(t, `$|$[missing]`, `{"a":1}`)
	assert.True(t, v.IsNull())
}

func TestEvalFieldAccessorOnNullPropagates(t *testing.T) {
	v := eval(t, `$|$[a][b]`, `{"a":null}`)
	assert.True(t, v.IsNull())
}

func TestEvalFieldAccessorOnNonObjectIsTypeError(t *testing.T) {
	err := evalExpectError(t, `$|$[a]`, `1`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalIndexAccessorSupportsNegativeIndices(t *testing.T) {
	v := eval(t, `$|$[-1]`, `[1,2,3]`)
	assert.Equal(t, int64(3), v.I.Int64())
}

func TestEvalIndexAccessorOutOfRangeIsNull(t *testing.T) {
	v := eval(t, `$|$[5]`, `[1,2,3]`)
	assert.True(t, v.IsNull())
}

func TestEvalIndexAccessorOnObjectStringifiesKey(t *testing.T) {
	v := eval(t, `$|$[0]`, `{"0":"x"}`)
	assert.Equal(t, "x", v.S)

	v = eval(t, `$|$[0]`, `{"1":"x"}`)
	assert.True(t, v.IsNull())
}

func TestEvalIndexAccessorOnScalarIsTypeError(t *testing.T) {
	err := evalExpectError(t, `$|$[0]`, `1`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalComputedKeyAccessOnObject(t *testing.T) {
	v := eval(t, `$|@k := "a"|$[@k]`, `{"a":9}`)
	assert.Equal(t, int64(9), v.I.Int64())
}

func TestEvalComputedKeyAccessOnArray(t *testing.T) {
	v := eval(t, `$|@i := 1|$[@i]`, `[10,20,30]`)
	assert.Equal(t, int64(20), v.I.Int64())
}

func TestEvalComputedKeyWithWrongKeyKindIsTypeError(t *testing.T) {
	err := evalExpectError(t, `$|@k := true|$[@k]`, `{"a":1}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalExistenceOperator(t *testing.T) {
	assert.True(t, eval(t, `$|$[a]?`, `{"a":1}`).B)
	assert.False(t, eval(t, `$|$[missing]?`, `{}`).B)
}

func TestEvalDottedAccessorChain(t *testing.T) {
	v := eval(t, `$|$.a.b.c`, `{"a":{"b":{"c":7}}}`)
	assert.Equal(t, int64(7), v.I.Int64())
}
