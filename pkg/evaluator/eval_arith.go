package evaluator

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

// divisionPrecision is the number of fractional decimal places kept for an
// inexact division, comfortably exceeding the minimum 34 significant
// digits the value model promises for decimal results.
const divisionPrecision = 40

func (e *Evaluator) evalBinop(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	switch expr.BinOp {
	case "and":
		return e.evalShortCircuitAnd(ec, expr, dollar)
	case "or":
		return e.evalShortCircuitOr(ec, expr, dollar)
	case "??":
		return e.evalCoalesce(ec, expr, dollar)
	}

	lhs, err := e.evalExpr(ec, expr.LHS, dollar)
	if err != nil {
		return nil, err
	}
	rhs, err := e.evalExpr(ec, expr.RHS, dollar)
	if err != nil {
		return nil, err
	}

	switch expr.BinOp {
	case "==":
		return types.Bool(types.Equal(lhs, rhs)), nil
	case "!=":
		return types.Bool(!types.Equal(lhs, rhs)), nil
	case "<", ">", "<=", ">=":
		return e.evalComparison(expr, lhs, rhs)
	case "+":
		return e.evalAdd(expr, lhs, rhs)
	case "-":
		return e.evalNumeric(expr, lhs, rhs, decimal.Decimal.Sub)
	case "*":
		return e.evalNumeric(expr, lhs, rhs, decimal.Decimal.Mul)
	case "/":
		return e.evalDivide(expr, lhs, rhs)
	case "%":
		return e.evalModulo(expr, lhs, rhs)
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "unknown binary operator %q", expr.BinOp)
	}
}

func (e *Evaluator) evalShortCircuitAnd(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	lhs, err := e.evalExpr(ec, expr.LHS, dollar)
	if err != nil {
		return nil, err
	}
	if !lhs.Truthy() {
		return types.False, nil
	}
	rhs, err := e.evalExpr(ec, expr.RHS, dollar)
	if err != nil {
		return nil, err
	}
	return types.Bool(rhs.Truthy()), nil
}

func (e *Evaluator) evalShortCircuitOr(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	lhs, err := e.evalExpr(ec, expr.LHS, dollar)
	if err != nil {
		return nil, err
	}
	if lhs.Truthy() {
		return types.True, nil
	}
	rhs, err := e.evalExpr(ec, expr.RHS, dollar)
	if err != nil {
		return nil, err
	}
	return types.Bool(rhs.Truthy()), nil
}

func (e *Evaluator) evalCoalesce(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	lhs, err := e.evalExpr(ec, expr.LHS, dollar)
	if err != nil {
		return nil, err
	}
	if !lhs.IsNull() {
		return lhs, nil
	}
	return e.evalExpr(ec, expr.RHS, dollar)
}

func (e *Evaluator) evalComparison(expr *types.Expr, lhs, rhs *types.Value) (*types.Value, error) {
	cmp, err := types.Compare(lhs, rhs)
	if err != nil {
		return nil, types.NewError(types.ErrType, expr.Pos, "%s", err.Error())
	}
	switch expr.BinOp {
	case "<":
		return types.Bool(cmp < 0), nil
	case ">":
		return types.Bool(cmp > 0), nil
	case "<=":
		return types.Bool(cmp <= 0), nil
	case ">=":
		return types.Bool(cmp >= 0), nil
	default:
		return nil, types.NewError(types.ErrType, expr.Pos, "unknown comparison operator %q", expr.BinOp)
	}
}

// evalAdd handles `+`: numeric addition, string concatenation, and array
// concatenation, per operand kind.
func (e *Evaluator) evalAdd(expr *types.Expr, lhs, rhs *types.Value) (*types.Value, error) {
	if lhs.Kind == types.KindStr && rhs.Kind == types.KindStr {
		return types.Str(lhs.S + rhs.S), nil
	}
	if lhs.Kind == types.KindArr && rhs.Kind == types.KindArr {
		combined := make([]*types.Value, 0, len(lhs.A)+len(rhs.A))
		combined = append(combined, lhs.A...)
		combined = append(combined, rhs.A...)
		return types.Arr(combined), nil
	}
	return e.evalNumeric(expr, lhs, rhs, decimal.Decimal.Add)
}

// evalNumeric implements the shared promote-compute-demote rule for
// + - *: both-Int operands compute exactly over big.Int and stay Int;
// otherwise both operands promote to decimal, and the decimal result
// demotes back to Int only when exactly one operand was Dec and the
// result has zero fractional part (a Dec paired with a Dec never
// demotes, even when numerically whole).
func (e *Evaluator) evalNumeric(expr *types.Expr, lhs, rhs *types.Value, op func(decimal.Decimal, decimal.Decimal) decimal.Decimal) (*types.Value, error) {
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return nil, types.NewError(types.ErrType, expr.Pos, "%s requires numbers, got %s and %s", expr.BinOp, lhs.TypeName(), rhs.TypeName())
	}
	if lhs.Kind == types.KindInt && rhs.Kind == types.KindInt {
		return types.IntFromBig(intOp(expr.BinOp, lhs.I, rhs.I)), nil
	}
	result := op(lhs.AsDecimal(), rhs.AsDecimal())
	wholeResult := result.Sub(result.Truncate(0)).IsZero()
	if lhs.Kind != rhs.Kind && wholeResult {
		return types.IntFromBig(result.Truncate(0).BigInt()), nil
	}
	return types.Dec(result), nil
}

func intOp(op string, a, b *big.Int) *big.Int {
	switch op {
	case "+":
		return new(big.Int).Add(a, b)
	case "-":
		return new(big.Int).Sub(a, b)
	case "*":
		return new(big.Int).Mul(a, b)
	default:
		panic("evaluator: intOp called with non-arithmetic operator " + op)
	}
}

func (e *Evaluator) evalDivide(expr *types.Expr, lhs, rhs *types.Value) (*types.Value, error) {
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return nil, types.NewError(types.ErrType, expr.Pos, "/ requires numbers, got %s and %s", lhs.TypeName(), rhs.TypeName())
	}
	if rhs.AsDecimal().IsZero() {
		return nil, types.NewError(types.ErrType, expr.Pos, "division by zero")
	}
	if lhs.Kind == types.KindInt && rhs.Kind == types.KindInt {
		q, m := new(big.Int).QuoRem(lhs.I, rhs.I, new(big.Int))
		if m.Sign() == 0 {
			return types.IntFromBig(q), nil
		}
	}
	result := lhs.AsDecimal().DivRound(rhs.AsDecimal(), divisionPrecision)
	return types.Dec(result), nil
}

func (e *Evaluator) evalModulo(expr *types.Expr, lhs, rhs *types.Value) (*types.Value, error) {
	if lhs.Kind != types.KindInt || rhs.Kind != types.KindInt {
		return nil, types.NewError(types.ErrType, expr.Pos, "%% requires integers, got %s and %s", lhs.TypeName(), rhs.TypeName())
	}
	if rhs.I.Sign() == 0 {
		return nil, types.NewError(types.ErrType, expr.Pos, "division by zero")
	}
	return types.IntFromBig(new(big.Int).Rem(lhs.I, rhs.I)), nil
}
