package evaluator

import (
	"github.com/tardy-sh/clove-lang/pkg/types"
	"github.com/tardy-sh/clove-lang/pkg/wasmudf"
)

// evalUdfCall evaluates `&name[args]`: arguments are evaluated left to
// right against the caller's own `$`/`@`/`@N` bindings (not the callee's),
// then the callee body runs with args addressed as @1..@9. Recursion is
// bounded by a depth counter riding the native Go call stack rather than
// a trampoline -- the contract is only a configurable depth limit raising
// StackOverflow, not elimination of stack growth.
func (e *Evaluator) evalUdfCall(ec *EvalContext, expr *types.Expr, dollar *types.Value) (*types.Value, error) {
	if wm, ok := ec.wasmUdfs[expr.Name]; ok {
		return e.evalWasmUdfCall(ec, expr, dollar, wm)
	}

	def, ok := ec.udfs[expr.Name]
	if !ok {
		return nil, types.NewError(types.ErrUnknownUdf, expr.Pos, "unknown UDF %q", expr.Name)
	}
	if len(expr.Args) != def.Arity {
		return nil, types.NewError(types.ErrArityMismatch, expr.Pos, "%s expects %d argument(s), got %d", expr.Name, def.Arity, len(expr.Args))
	}

	args := make([]*types.Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := e.evalExpr(ec, a, dollar)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if ec.udfDepth >= ec.maxUdfDepth {
		return nil, types.NewError(types.ErrStackOverflow, expr.Pos, "UDF call depth exceeded %d", ec.maxUdfDepth)
	}
	ec.udfDepth++
	ec.pushUdf(args)
	result, err := e.evalExpr(ec, def.Body, dollar)
	ec.popFrame()
	ec.udfDepth--
	return result, err
}

// evalWasmUdfCall evaluates a UDF whose body is a compiled WASM module
// instead of an Expr: arguments are evaluated exactly as for a Clove-bodied
// UDF, then handed to the module across the host/guest boundary rather than
// bound as @1..@9 and interpreted -- there is no frame to push, since the
// module has no @/@N binding visibility into the caller at all.
func (e *Evaluator) evalWasmUdfCall(ec *EvalContext, expr *types.Expr, dollar *types.Value, wm *wasmudf.Module) (*types.Value, error) {
	if len(expr.Args) != wm.Arity() {
		return nil, types.NewError(types.ErrArityMismatch, expr.Pos, "%s expects %d argument(s), got %d", expr.Name, wm.Arity(), len(expr.Args))
	}
	args := make([]*types.Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := e.evalExpr(ec, a, dollar)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	result, err := wm.Call(ec.ctx, args)
	if err != nil {
		return nil, types.NewError(types.ErrType, expr.Pos, "WASM UDF %q failed", expr.Name).WithCause(err)
	}
	return result, nil
}
