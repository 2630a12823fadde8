package evaluator

import (
	"strconv"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

// evalAccessor evaluates one `[...]`/`.field` step. Receivers are evaluated
// eagerly; Null propagates through Field/Index/ComputedKey access without
// error (accessing deeper into a missing value just stays missing), but a
// type mismatch against a present, non-null receiver is a TypeError.
func (e *Evaluator) evalAccessor(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	recv, err := e.evalExpr(ec, expr.Object, dollar)
	if err != nil {
		return nil, err
	}

	switch expr.AccKind {
	case types.AccField:
		if recv.IsNull() {
			return types.Null, nil
		}
		if recv.Kind != types.KindObj {
			return nil, types.NewError(types.ErrType, expr.Pos, "cannot access field %q on %s", expr.FieldName, recv.TypeName())
		}
		if v, ok := recv.O.Get(expr.FieldName); ok {
			return v, nil
		}
		return types.Null, nil

	case types.AccIndexInt:
		if recv.IsNull() {
			return types.Null, nil
		}
		if recv.Kind == types.KindObj {
			key := strconv.FormatInt(expr.IntVal, 10)
			if v, ok := recv.O.Get(key); ok {
				return v, nil
			}
			return types.Null, nil
		}
		if recv.Kind != types.KindArr {
			return nil, types.NewError(types.ErrType, expr.Pos, "cannot index %s with an integer", recv.TypeName())
		}
		idx, ok := types.NormalizedIndex(expr.IntVal, len(recv.A))
		if !ok {
			return types.Null, nil
		}
		return recv.A[idx], nil

	case types.AccIndexFloat:
		if recv.IsNull() {
			return types.Null, nil
		}
		if recv.Kind != types.KindObj {
			return nil, types.NewError(types.ErrType, expr.Pos, "cannot index %s with a decimal key", recv.TypeName())
		}
		key := types.StringifyKey(expr.DecVal)
		if v, ok := recv.O.Get(key); ok {
			return v, nil
		}
		return types.Null, nil

	case types.AccComputedKey:
		if recv.IsNull() {
			return types.Null, nil
		}
		key, err := e.evalExpr(ec, expr.KeyExpr, dollar)
		if err != nil {
			return nil, err
		}
		return e.evalComputedKeyAccess(expr.Pos, recv, key)

	case types.AccExistence:
		return types.Bool(recv.Exists()), nil

	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "unknown accessor kind %q", expr.AccKind)
	}
}

func (e *Evaluator) evalComputedKeyAccess(pos types.Position, recv, key *types.Value) (*types.Value, error) {
	switch recv.Kind {
	case types.KindArr:
		if !key.IsNumeric() {
			return nil, types.NewError(types.ErrType, pos, "cannot index an array with a %s key", key.TypeName())
		}
		idx, ok := types.NormalizedIndex(key.AsDecimal().IntPart(), len(recv.A))
		if !ok {
			return types.Null, nil
		}
		return recv.A[idx], nil
	case types.KindObj:
		if key.Kind != types.KindStr && !key.IsNumeric() {
			return nil, types.NewError(types.ErrType, pos, "cannot use a %s value as an object key", key.TypeName())
		}
		k := types.StringifyKey(key)
		if v, ok := recv.O.Get(k); ok {
			return v, nil
		}
		return types.Null, nil
	default:
		return nil, types.NewError(types.ErrType, pos, "cannot index %s with a computed key", recv.TypeName())
	}
}
