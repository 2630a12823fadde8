package evaluator

import (
	"math/big"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

// evalExpr evaluates expr. dollar is the value `$` resolves to for this
// stage's whole expression tree -- it is threaded unchanged through every
// recursive call (accessor receivers, method/UDF arguments, object/array
// literal elements) because `$` is lexically stable for a stage; only `@`
// changes as lambda frames are pushed and popped during iteration.
func (e *Evaluator) evalExpr(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	switch expr.Type {
	case types.NodeLiteral:
		return expr.Lit, nil
	case types.NodeRoot:
		return dollar, nil
	case types.NodeCtx:
		v, ok := ec.resolveCtx()
		if !ok {
			return nil, types.NewError(types.ErrUnboundArg, expr.Pos, "@ used outside any lambda or UDF body")
		}
		return v, nil
	case types.NodeCtxArg:
		v, ok := ec.resolveCtxArg(expr.N)
		if !ok {
			return nil, types.NewError(types.ErrUnboundArg, expr.Pos, "@%d used outside a UDF body of sufficient arity", expr.N)
		}
		return v, nil
	case types.NodeScopeRef:
		v, ok := ec.lookupScope(expr.Name)
		if !ok {
			return nil, types.NewError(types.ErrUnboundScope, expr.Pos, "scope %q is not bound", expr.Name)
		}
		return v, nil
	case types.NodeEnvVar:
		s, ok := ec.env(expr.Name)
		if !ok {
			return types.Null, nil
		}
		return types.Str(s), nil
	case types.NodeAccessor:
		return e.evalAccessor(ec, expr, dollar)
	case types.NodeMethod:
		return e.evalMethod(ec, expr, dollar)
	case types.NodeBinop:
		return e.evalBinop(ec, expr, dollar)
	case types.NodeUnop:
		return e.evalUnop(ec, expr, dollar)
	case types.NodeUdfCall:
		return e.evalUdfCall(ec, expr, dollar)
	case types.NodeLambda:
		return nil, types.NewError(types.ErrType, expr.Pos, "lambda expression is only valid as a method or UDF argument")
	case types.NodeObjectLit:
		obj := types.NewObject()
		for _, pair := range expr.Pairs {
			v, err := e.evalExpr(ec, pair.Value, dollar)
			if err != nil {
				return nil, err
			}
			obj.Set(pair.Key, v)
		}
		return types.Obj(obj), nil
	case types.NodeArrayLit:
		vals := make([]*types.Value, 0, len(expr.Args))
		for _, a := range expr.Args {
			v, err := e.evalExpr(ec, a, dollar)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return types.Arr(vals), nil
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "unknown expression node %q", expr.Type)
	}
}

func (e *Evaluator) evalUnop(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	operand, err := e.evalExpr(ec, expr.LHS, dollar)
	if err != nil {
		return nil, err
	}
	switch expr.UnOp {
	case "-":
		if !operand.IsNumeric() {
			return nil, types.NewError(types.ErrType, expr.Pos, "unary - requires a number, got %s", operand.TypeName())
		}
		if operand.Kind == types.KindInt {
			return types.IntFromBig(new(big.Int).Neg(operand.I)), nil
		}
		return types.Dec(operand.D.Neg()), nil
	case "!":
		return types.Bool(!operand.Truthy()), nil
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "unknown unary operator %q", expr.UnOp)
	}
}
