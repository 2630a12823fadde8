package evaluator

import (
	"encoding/json"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

// evalMethod dispatches a `.name(args)` call. Null receivers short-circuit
// to the three documented special cases before falling through to the
// universal and kind-specific tables.
func (e *Evaluator) evalMethod(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	recv, err := e.evalExpr(ec, expr.Object, dollar)
	if err != nil {
		return nil, err
	}

	if recv.IsNull() {
		switch expr.Name {
		case "type":
			return types.Str("null"), nil
		case "exists":
			return types.False, nil
		case "matches":
			return types.False, nil
		default:
			return types.Null, nil
		}
	}

	switch expr.Name {
	case "type":
		return types.Str(recv.TypeName()), nil
	case "to_string":
		return types.Str(stringifyValue(recv)), nil
	case "exists":
		return types.Bool(recv.Exists()), nil
	case "matches":
		if recv.Kind != types.KindStr {
			return types.False, nil
		}
	}

	switch recv.Kind {
	case types.KindArr:
		return e.evalArrayMethod(ec, expr, dollar, recv)
	case types.KindObj:
		return evalObjectMethod(expr, recv)
	case types.KindStr:
		return e.evalStringMethod(ec, expr, dollar, recv)
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "%s has no method %q", recv.TypeName(), expr.Name)
	}
}

// callLambda evaluates a lambda argument with elem bound as the innermost
// @. lam is either a NodeLambda (whose Body runs) or, for the
// parameter-less `@…` form, a bare expression that mentions @ directly --
// the two are equivalent, so only NodeLambda unwraps to its Body first.
func (e *Evaluator) callLambda(ec *EvalContext, dollar *types.Value, lam *types.Expr, elem *types.Value) (*types.Value, error) {
	body := lam
	if lam.Type == types.NodeLambda {
		body = lam.Body
	}
	ec.pushLambda(elem)
	v, err := e.evalExpr(ec, body, dollar)
	ec.popFrame()
	return v, err
}

func (e *Evaluator) evalArrayMethod(ec *EvalContext, expr *types.Expr, dollar *types.Value, recv *types.Value) (*types.Value, error) {
	switch expr.Name {
	case "any":
		lam, err := lambdaArg(expr)
		if err != nil {
			return nil, err
		}
		for _, el := range recv.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			v, err := e.callLambda(ec, dollar, lam, el)
			if err != nil {
				return nil, err
			}
			if v.Truthy() {
				return types.True, nil
			}
		}
		return types.False, nil

	case "all":
		lam, err := lambdaArg(expr)
		if err != nil {
			return nil, err
		}
		for _, el := range recv.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			v, err := e.callLambda(ec, dollar, lam, el)
			if err != nil {
				return nil, err
			}
			if !v.Truthy() {
				return types.False, nil
			}
		}
		return types.True, nil

	case "filter":
		lam, err := lambdaArg(expr)
		if err != nil {
			return nil, err
		}
		kept := make([]*types.Value, 0, len(recv.A))
		for _, el := range recv.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			v, err := e.callLambda(ec, dollar, lam, el)
			if err != nil {
				return nil, err
			}
			if v.Truthy() {
				kept = append(kept, el)
			}
		}
		return types.Arr(kept), nil

	case "map":
		lam, err := lambdaArg(expr)
		if err != nil {
			return nil, err
		}
		out := make([]*types.Value, len(recv.A))
		for i, el := range recv.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			v, err := e.callLambda(ec, dollar, lam, el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return types.Arr(out), nil

	case "sum":
		if len(expr.Args) > 0 {
			lam, err := lambdaArg(expr)
			if err != nil {
				return nil, err
			}
			mapped := make([]*types.Value, len(recv.A))
			for i, el := range recv.A {
				if err := ec.checkCancel(); err != nil {
					return nil, err
				}
				v, err := e.callLambda(ec, dollar, lam, el)
				if err != nil {
					return nil, err
				}
				mapped[i] = v
			}
			return sumArray(mapped, expr.Pos)
		}
		return sumArray(recv.A, expr.Pos)

	case "count", "length":
		return types.Int(int64(len(recv.A))), nil

	case "first":
		if len(recv.A) == 0 {
			return types.Null, nil
		}
		return recv.A[0], nil

	case "last":
		if len(recv.A) == 0 {
			return types.Null, nil
		}
		return recv.A[len(recv.A)-1], nil

	case "unique":
		out := make([]*types.Value, 0, len(recv.A))
		for _, el := range recv.A {
			dup := false
			for _, seen := range out {
				if types.Equal(seen, el) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, el)
			}
		}
		return types.Arr(out), nil

	case "sort":
		if len(expr.Args) > 0 {
			lam, err := lambdaArg(expr)
			if err != nil {
				return nil, err
			}
			return e.sortByKey(ec, dollar, recv.A, lam)
		}
		return sortPlain(recv.A, false), nil

	case "sort_desc":
		return sortPlain(recv.A, true), nil

	case "min":
		return minMax(recv.A, expr.Pos, true)

	case "max":
		return minMax(recv.A, expr.Pos, false)

	case "avg":
		return avgArray(recv.A, expr.Pos)

	case "reverse":
		out := make([]*types.Value, len(recv.A))
		for i, el := range recv.A {
			out[len(recv.A)-1-i] = el
		}
		return types.Arr(out), nil

	case "flatten":
		return types.Arr(flattenOneLevel(recv.A)), nil

	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "array has no method %q", expr.Name)
	}
}

func evalObjectMethod(expr *types.Expr, recv *types.Value) (*types.Value, error) {
	switch expr.Name {
	case "keys":
		keys := recv.O.Keys()
		out := make([]*types.Value, len(keys))
		for i, k := range keys {
			out[i] = types.Str(k)
		}
		return types.Arr(out), nil
	case "values":
		keys := recv.O.Keys()
		out := make([]*types.Value, len(keys))
		for i, k := range keys {
			v, _ := recv.O.Get(k)
			out[i] = v
		}
		return types.Arr(out), nil
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "object has no method %q", expr.Name)
	}
}

func (e *Evaluator) evalStringMethod(ec *EvalContext, expr *types.Expr, dollar *types.Value, recv *types.Value) (*types.Value, error) {
	arg := func(i int) (*types.Value, error) {
		if i >= len(expr.Args) {
			return nil, types.NewError(types.ErrType, expr.Pos, "%s requires an argument", expr.Name)
		}
		return e.evalExpr(ec, expr.Args[i], dollar)
	}

	switch expr.Name {
	case "upper":
		return types.Str(strings.ToUpper(recv.S)), nil
	case "lower":
		return types.Str(strings.ToLower(recv.S)), nil
	case "trim":
		return types.Str(strings.TrimSpace(recv.S)), nil
	case "length":
		return types.Int(int64(utf8.RuneCountInString(recv.S))), nil
	case "contains":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		return types.Bool(strings.Contains(recv.S, a.S)), nil
	case "startswith":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		return types.Bool(strings.HasPrefix(recv.S, a.S)), nil
	case "endswith":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		return types.Bool(strings.HasSuffix(recv.S, a.S)), nil
	case "split":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(recv.S, a.S)
		out := make([]*types.Value, len(parts))
		for i, p := range parts {
			out[i] = types.Str(p)
		}
		return types.Arr(out), nil
	case "matches":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		re, err := ec.compileRegex(a.S)
		if err != nil {
			return nil, types.NewError(types.ErrRegex, expr.Pos, "invalid pattern %q: %s", a.S, err.Error())
		}
		return types.Bool(re.MatchString(recv.S)), nil
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "string has no method %q", expr.Name)
	}
}

// lambdaArg returns a method's lambda argument, accepting both the named
// `ident => expr` form and the parameter-less form where the argument is
// simply an expression mentioning @ directly.
func lambdaArg(expr *types.Expr) (*types.Expr, error) {
	if len(expr.Args) == 0 {
		return nil, types.NewError(types.ErrType, expr.Pos, "%s requires a lambda argument", expr.Name)
	}
	return expr.Args[0], nil
}

func (e *Evaluator) sortByKey(ec *EvalContext, dollar *types.Value, vals []*types.Value, lam *types.Expr) (*types.Value, error) {
	keys := make([]*types.Value, len(vals))
	for i, el := range vals {
		if err := ec.checkCancel(); err != nil {
			return nil, err
		}
		k, err := e.callLambda(ec, dollar, lam, el)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return types.SortKeyLess(keys[idx[i]], keys[idx[j]])
	})
	out := make([]*types.Value, len(vals))
	for i, ix := range idx {
		out[i] = vals[ix]
	}
	return types.Arr(out), nil
}

func sortPlain(vals []*types.Value, desc bool) *types.Value {
	out := append([]*types.Value(nil), vals...)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return types.SortKeyLess(out[j], out[i])
		}
		return types.SortKeyLess(out[i], out[j])
	})
	return types.Arr(out)
}

func sumArray(vals []*types.Value, pos types.Position) (*types.Value, error) {
	allInt := true
	for _, v := range vals {
		if !v.IsNumeric() {
			return nil, types.NewError(types.ErrType, pos, "sum requires numeric elements, found %s", v.TypeName())
		}
		if v.Kind != types.KindInt {
			allInt = false
		}
	}
	if allInt {
		acc := big.NewInt(0)
		for _, v := range vals {
			acc.Add(acc, v.I)
		}
		return types.IntFromBig(acc), nil
	}
	acc := vals[0].AsDecimal()
	for _, v := range vals[1:] {
		acc = acc.Add(v.AsDecimal())
	}
	return types.Dec(acc), nil
}

func avgArray(vals []*types.Value, pos types.Position) (*types.Value, error) {
	if len(vals) == 0 {
		return types.Null, nil
	}
	sum, err := sumArray(vals, pos)
	if err != nil {
		return nil, err
	}
	n := int64(len(vals))
	if sum.Kind == types.KindInt {
		nb := big.NewInt(n)
		q, m := new(big.Int).QuoRem(sum.I, nb, new(big.Int))
		if m.Sign() == 0 {
			return types.IntFromBig(q), nil
		}
	}
	result := sum.AsDecimal().DivRound(types.Int(n).AsDecimal(), divisionPrecision)
	return types.Dec(result), nil
}

func minMax(vals []*types.Value, pos types.Position, wantMin bool) (*types.Value, error) {
	if len(vals) == 0 {
		return types.Null, nil
	}
	best := vals[0]
	for _, v := range vals[1:] {
		cmp, err := types.Compare(v, best)
		if err != nil {
			return nil, types.NewError(types.ErrType, pos, "%s", err.Error())
		}
		if (wantMin && cmp < 0) || (!wantMin && cmp > 0) {
			best = v
		}
	}
	return best, nil
}

// flattenOneLevel splices each direct array element's own elements into
// the result; nested arrays deeper than one level stay nested, matching
// the reference implementation's single-level flatten.
func flattenOneLevel(vals []*types.Value) []*types.Value {
	out := make([]*types.Value, 0, len(vals))
	for _, v := range vals {
		if v.Kind == types.KindArr {
			out = append(out, v.A...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

// stringifyValue implements to_string: strings pass through verbatim,
// scalars render their literal text, arrays/objects render as JSON.
func stringifyValue(v *types.Value) string {
	switch v.Kind {
	case types.KindStr:
		return v.S
	case types.KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case types.KindInt:
		return v.I.String()
	case types.KindDec:
		return v.D.String()
	case types.KindNull:
		return "null"
	default:
		b, _ := json.Marshal(types.ToJSON(v))
		return string(b)
	}
}
