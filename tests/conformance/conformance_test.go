// Package conformance runs the literal scenarios and universal invariants
// the value model and evaluator are expected to hold, independent of any
// one package's internal test suite.
package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardy-sh/clove-lang/pkg/evaluator"
	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

func decode(t *testing.T, jsonSrc string) *types.Value {
	t.Helper()
	raw, err := types.DecodeOrdered([]byte(jsonSrc))
	require.NoError(t, err)
	v, err := types.FromJSON(raw)
	require.NoError(t, err)
	return v
}

func run(t *testing.T, query, rootJSON string, preloaded map[string]*types.UdfDef) *types.Value {
	t.Helper()
	q, err := parser.Parse(query)
	require.NoError(t, err, "parsing %q", query)
	root := decode(t, rootJSON)
	v, err := evaluator.New().Eval(nil, q, root, nil, preloaded)
	require.NoError(t, err, "evaluating %q against %s", query, rootJSON)
	return v
}

// Scenario 1: filter-then-count over a nested array.
func TestScenarioFilterAboveThresholdCount(t *testing.T) {
	v := run(t, `$[items].filter(x => x[p] > 100).count()`,
		`{"items":[{"p":50},{"p":150},{"p":200}]}`, nil)
	assert.Equal(t, int64(2), v.I.Int64())
}

// Scenario 2: chained coalesce falls through two nulls to the literal.
func TestScenarioChainedCoalesce(t *testing.T) {
	v := run(t, `$[a][b] ?? $[a][c] ?? "x"`, `{"a":{"b":null}}`, nil)
	require.Equal(t, types.KindStr, v.Kind)
	assert.Equal(t, "x", v.S)
}

// Scenario 3: division demotes to Dec only when the quotient is inexact.
func TestScenarioDivisionExactnessDependsOnRemainder(t *testing.T) {
	v := run(t, `$[n] / 3`, `{"n":100}`, nil)
	assert.Equal(t, types.KindDec, v.Kind)

	v = run(t, `$[n] / 10`, `{"n":100}`, nil)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, int64(10), v.I.Int64())
}

// Scenario 4: filter-transform the whole array, then output the result
// via an explicit root-relative `!` stage.
func TestScenarioFilterTransformThenOutput(t *testing.T) {
	v := run(t, `$|~($[items] := ?(@ > 1))|!($)`, `{"items":[1,2,3]}`, nil)
	items, ok := v.O.Get("items")
	require.True(t, ok)
	require.Len(t, items.A, 2)
	assert.Equal(t, int64(2), items.A[0].I.Int64())
	assert.Equal(t, int64(3), items.A[1].I.Int64())
}

// Scenario 5: two sequential deletes, one on a present field and one on a
// missing nested field -- the latter is a silent no-op.
func TestScenarioSequentialDeleteWithSilentNoOp(t *testing.T) {
	v := run(t, `$|-($[pwd])|-($[u][missing])`, `{"pwd":"s","u":{"k":"v"}}`, nil)
	require.Equal(t, []string{"u"}, v.O.Keys())
	u, ok := v.O.Get("u")
	require.True(t, ok)
	assert.Equal(t, []string{"k"}, u.O.Keys())
}

// Scenario 6: a UDF used as the predicate passed to a HOF method leaves
// the input unchanged when the condition holds.
func TestScenarioUdfAsHofPredicate(t *testing.T) {
	v := run(t, `&big,1 := ?(@1[p] > 100)?($[items].any(&big[@]))`,
		`{"items":[{"p":50},{"p":200}]}`, nil)
	assert.True(t, v.Truthy())
}

// --- Universal invariants ---

func TestInvariantPurityOfRepeatedEvaluation(t *testing.T) {
	q, err := parser.Parse(`$[items].filter(x => x[p] > 100).count()`)
	require.NoError(t, err)
	root := decode(t, `{"items":[{"p":50},{"p":150}]}`)

	v1, err := evaluator.New().Eval(nil, q, root, nil, nil)
	require.NoError(t, err)
	v2, err := evaluator.New().Eval(nil, q, root, nil, nil)
	require.NoError(t, err)
	assert.True(t, types.Equal(v1, v2))

	items, _ := root.O.Get("items")
	require.Len(t, items.A, 2)
}

func TestInvariantPurityLeavesInputUntouchedByReference(t *testing.T) {
	q, err := parser.Parse(`$|~($[items] := ?(@[p] > 100))`)
	require.NoError(t, err)
	root := decode(t, `{"items":[{"p":50},{"p":150}],"other":{"k":1}}`)

	_, err = evaluator.New().Eval(nil, q, root, nil, nil)
	require.NoError(t, err)

	other, ok := root.O.Get("other")
	require.True(t, ok)
	assert.Equal(t, int64(1), func() int64 { k, _ := other.O.Get("k"); return k.I.Int64() }())
}

func TestInvariantNullSafeAccessOnMissingPath(t *testing.T) {
	v := run(t, `$[a][b][c]`, `{}`, nil)
	assert.True(t, v.IsNull())

	v = run(t, `$[a][b][c]?`, `{}`, nil)
	assert.False(t, v.B)
}

func TestInvariantOutputIdentityWithoutOutputStage(t *testing.T) {
	withoutOutput := run(t, `$|~($[a] := 9)`, `{"a":1}`, nil)
	withOutput := run(t, `$|~($[a] := 9)|!($)`, `{"a":1}`, nil)
	assert.True(t, types.Equal(withoutOutput, withOutput))
}

func TestInvariantTransformLocality(t *testing.T) {
	q, err := parser.Parse(`$|~($[a][b] := 99)`)
	require.NoError(t, err)
	root := decode(t, `{"a":{"b":1,"c":2},"d":3}`)
	result, err := evaluator.New().Eval(nil, q, root, nil, nil)
	require.NoError(t, err)

	d, ok := result.O.Get("d")
	require.True(t, ok)
	dOrig, _ := root.O.Get("d")
	assert.Same(t, dOrig, d)

	a, _ := result.O.Get("a")
	c, ok := a.O.Get("c")
	require.True(t, ok)
	assert.Equal(t, int64(2), c.I.Int64())

	b, ok := a.O.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(99), b.I.Int64())
}

func TestInvariantDeleteIdempotence(t *testing.T) {
	once := run(t, `$|-($[a])`, `{"a":1,"b":2}`, nil)
	twice := run(t, `$|-($[a])|-($[a])`, `{"a":1,"b":2}`, nil)
	assert.True(t, types.Equal(once, twice))
}

func TestInvariantArithmeticExactnessForLargeIntegers(t *testing.T) {
	v := run(t, `99999999999999999999 + 1`, `{}`, nil)
	require.Equal(t, types.KindInt, v.Kind)
	assert.Equal(t, "100000000000000000000", v.I.String())

	v = run(t, `10 / 2`, `{}`, nil)
	require.Equal(t, types.KindInt, v.Kind)
}

func TestInvariantCoalesceShortCircuitsOnFirstNonNull(t *testing.T) {
	v := run(t, `null ?? 1 ?? 2`, `{}`, nil)
	assert.Equal(t, int64(1), v.I.Int64())
}

func TestInvariantEqualityAcrossKindAndStringNumberMismatch(t *testing.T) {
	assert.True(t, eqResult(t, `1 == 1.0`))
	assert.False(t, eqResult(t, `"1" == 1`))
}

func eqResult(t *testing.T, query string) bool {
	t.Helper()
	return run(t, query, `{}`, nil).B
}
