package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

func TestEvalIntAdditionStaysExactInt(t *testing.T) {
	v := eval(t, `1 + 2`, `{}`)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, int64(3), v.I.Int64())
}

func TestEvalMixedIntDecDemotesOnWholeResult(t *testing.T) {
	v := eval(t, `1 + 2.0`, `{}`)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, int64(3), v.I.Int64())
}

func TestEvalDecPlusDecNeverDemotes(t *testing.T) {
	v := eval(t, `1.0 + 2.0`, `{}`)
	assert.Equal(t, types.KindDec, v.Kind)
}

func TestEvalMixedIntDecKeepsFractionWhenNotWhole(t *testing.T) {
	v := eval(t, `1 + 2.5`, `{}`)
	require.Equal(t, types.KindDec, v.Kind)
	assert.Equal(t, "3.5", v.D.String())
}

func TestEvalStringConcatenation(t *testing.T) {
	v := eval(t, `"foo" + "bar"`, `{}`)
	require.Equal(t, types.KindStr, v.Kind)
	assert.Equal(t, "foobar", v.S)
}

func TestEvalArrayConcatenation(t *testing.T) {
	v := eval(t, `[1, 2] + [3]`, `{}`)
	require.Equal(t, types.KindArr, v.Kind)
	assert.Len(t, v.A, 3)
}

func TestEvalIntDivisionStaysIntOnExactQuotient(t *testing.T) {
	v := eval(t, `10 / 2`, `{}`)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, int64(5), v.I.Int64())
}

func TestEvalIntDivisionPromotesOnRemainder(t *testing.T) {
	v := eval(t, `10 / 3`, `{}`)
	assert.Equal(t, types.KindDec, v.Kind)
}

func TestEvalDivisionByZeroIsError(t *testing.T) {
	err := evalExpectError(t, `1 / 0`, `{}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalModuloRequiresIntegers(t *testing.T) {
	v := eval(t, `7 % 3`, `{}`)
	assert.Equal(t, int64(1), v.I.Int64())

	err := evalExpectError(t, `7.5 % 3`, `{}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalComparisonOperators(t *testing.T) {
	assert.True(t, eval(t, `1 < 2`, `{}`).B)
	assert.True(t, eval(t, `2 <= 2`, `{}`).B)
	assert.True(t, eval(t, `"b" > "a"`, `{}`).B)
}

func TestEvalComparisonAcrossIncompatibleTypesIsError(t *testing.T) {
	err := evalExpectError(t, `1 < "a"`, `{}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrType, cloveErr.Code)
}

func TestEvalEqualityIgnoresKind(t *testing.T) {
	assert.True(t, eval(t, `3 == 3.0`, `{}`).B)
	assert.False(t, eval(t, `3 != 3.0`, `{}`).B)
}

func TestEvalShortCircuitAndOr(t *testing.T) {
	assert.False(t, eval(t, `false and (1/0 == 0)`, `{}`).B)
	assert.True(t, eval(t, `true or (1/0 == 0)`, `{}`).B)
}

func TestEvalCoalesceFallsThroughOnlyOnNull(t *testing.T) {
	v := eval(t, `$|$[missing] ?? 7`, `{}`)
	assert.Equal(t, int64(7), v.I.Int64())

	v = eval(t, `0 ?? 7`, `{}`)
	assert.Equal(t, int64(0), v.I.Int64())
}

func TestEvalUnaryMinusAndNot(t *testing.T) {
	v := eval(t, `-5`, `{}`)
	assert.Equal(t, int64(-5), v.I.Int64())

	v = eval(t, `!false`, `{}`)
	assert.True(t, v.B)
}

func TestEvalArbitraryPrecisionIntMultiplication(t *testing.T) {
	v := eval(t, `99999999999999999999 * 2`, `{}`)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, "199999999999999999998", v.I.String())
}
