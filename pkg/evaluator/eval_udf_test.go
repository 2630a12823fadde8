package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

func TestEvalUdfCallWithInQueryDefinition(t *testing.T) {
	v := eval(t, `&double,1 := @1 * 2&double[21]`, `{}`)
	assert.Equal(t, int64(42), v.I.Int64())
}

func TestEvalUdfArgsEvaluateAgainstCallerBindings(t *testing.T) {
	v := eval(t, `&inc,1 := @1 + 1&inc[$[n]]`, `{"n":9}`)
	assert.Equal(t, int64(10), v.I.Int64())
}

func TestEvalUdfArityMismatchIsError(t *testing.T) {
	err := evalExpectError(t, `&double,1 := @1 * 2&double[1, 2]`, `{}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrArityMismatch, cloveErr.Code)
}

func TestEvalUnknownUdfIsError(t *testing.T) {
	err := evalExpectError(t, `&missing[1]`, `{}`)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrUnknownUdf, cloveErr.Code)
}

func TestEvalUdfRecursionRespectsDepthLimit(t *testing.T) {
	q, err := parser.Parse(`&loop,1 := &loop[@1 + 1]&loop[0]`)
	require.NoError(t, err)
	_, err = New(WithMaxDepth(5)).Eval(nil, q, decode(t, `{}`), nil, nil)
	require.Error(t, err)
	cloveErr, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.ErrStackOverflow, cloveErr.Code)
}

func TestEvalUdfBodyAsTransparentFilterExpression(t *testing.T) {
	v := eval(t, `&big,1 := ?(@1 > 100)&big[150]`, `{}`)
	assert.True(t, v.B)

	v = eval(t, `&big,1 := ?(@1[p] > 100)?($[items].any(&big[@]))`,
		`{"items":[{"p":50},{"p":200}]}`)
	require.Equal(t, types.KindObj, v.Kind)
	_, ok := v.O.Get("items")
	assert.True(t, ok)
}

func TestEvalPreloadedUdfsAreAvailable(t *testing.T) {
	preloaded := map[string]*types.UdfDef{
		"triple": {Name: "triple", Arity: 1, Body: &types.Expr{
			Type:  types.NodeBinop,
			BinOp: "*",
			LHS:   &types.Expr{Type: types.NodeCtxArg, N: 1},
			RHS:   &types.Expr{Type: types.NodeLiteral, Lit: types.Int(3)},
		}},
	}
	q, err := parser.Parse(`&triple[7]`)
	require.NoError(t, err)
	v, err := New().Eval(nil, q, decode(t, `{}`), nil, preloaded)
	require.NoError(t, err)
	assert.Equal(t, int64(21), v.I.Int64())
}

func TestEvalInQueryDefinitionOverridesPreloaded(t *testing.T) {
	preloaded := map[string]*types.UdfDef{
		"f": {Name: "f", Arity: 1, Body: &types.Expr{Type: types.NodeLiteral, Lit: types.Int(1)}},
	}
	q, err := parser.Parse(`&f,1 := 2&f[0]`)
	require.NoError(t, err)
	v, err := New().Eval(nil, q, decode(t, `{}`), nil, preloaded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.I.Int64())
}
