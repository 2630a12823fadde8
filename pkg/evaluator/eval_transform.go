package evaluator

import "github.com/tardy-sh/clove-lang/pkg/types"

// pathSeg is one step of a Transform/Delete target: a literal object field
// or a literal array index. Computed keys never appear here -- extractPath
// rejects any accessor other than Field/IndexInt, so it can resolve the
// whole path without evaluating anything.
type pathSeg struct {
	field   string
	index   int64
	isField bool
}

// extractPath walks a Transform/Delete Path expression into a literal
// segment list. The path must be rooted at $ (current); a scope-rooted
// path has no parent to rewrite, since scope bindings are immutable and
// are not part of the value flowing through the pipeline, so it is
// rejected here rather than accepted and silently ignored.
func extractPath(e *types.Expr) ([]pathSeg, error) {
	switch e.Type {
	case types.NodeRoot:
		return nil, nil
	case types.NodeAccessor:
		if e.AccKind != types.AccField && e.AccKind != types.AccIndexInt {
			return nil, types.NewError(types.ErrPath, e.Pos, "transform/delete target must be a chain of field or index accessors")
		}
		parent, err := extractPath(e.Object)
		if err != nil {
			return nil, err
		}
		if e.AccKind == types.AccField {
			return append(parent, pathSeg{field: e.FieldName, isField: true}), nil
		}
		return append(parent, pathSeg{index: e.IntVal}), nil
	default:
		return nil, types.NewError(types.ErrPath, e.Pos, "transform/delete target must be rooted at $")
	}
}

func getSeg(v *types.Value, seg pathSeg) (*types.Value, bool) {
	if seg.isField {
		if v.Kind != types.KindObj {
			return nil, false
		}
		return v.O.Get(seg.field)
	}
	if v.Kind != types.KindArr {
		return nil, false
	}
	idx, ok := types.NormalizedIndex(seg.index, len(v.A))
	if !ok {
		return nil, false
	}
	return v.A[idx], true
}

func setSeg(v *types.Value, seg pathSeg, newChild *types.Value, pos types.Position) (*types.Value, error) {
	if seg.isField {
		if v.Kind != types.KindObj {
			return nil, types.NewError(types.ErrPath, pos, "cannot set field %q on %s", seg.field, v.TypeName())
		}
		clone := v.O.Clone()
		clone.Set(seg.field, newChild)
		return types.Obj(clone), nil
	}
	if v.Kind != types.KindArr {
		return nil, types.NewError(types.ErrPath, pos, "cannot set index on %s", v.TypeName())
	}
	idx, ok := types.NormalizedIndex(seg.index, len(v.A))
	if !ok {
		return nil, types.NewError(types.ErrPath, pos, "index %d out of range", seg.index)
	}
	out := append([]*types.Value(nil), v.A...)
	out[idx] = newChild
	return types.Arr(out), nil
}

// evalDeleteStage removes the Path target from current, rebuilding only
// the ancestors of the deleted node (structural sharing). A missing
// target, at any depth, is a silent no-op.
func (e *Evaluator) evalDeleteStage(ec *EvalContext, stage *types.Stage, current *types.Value) (*types.Value, error) {
	segs, err := extractPath(stage.Path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, types.NewError(types.ErrPath, stage.Pos, "delete target must name a field or index")
	}
	return deleteAt(current, segs), nil
}

func deleteAt(v *types.Value, segs []pathSeg) *types.Value {
	seg := segs[0]
	if len(segs) == 1 {
		if seg.isField {
			if v.Kind != types.KindObj {
				return v
			}
			if _, ok := v.O.Get(seg.field); !ok {
				return v
			}
			clone := v.O.Clone()
			clone.Delete(seg.field)
			return types.Obj(clone)
		}
		if v.Kind != types.KindArr {
			return v
		}
		idx, ok := types.NormalizedIndex(seg.index, len(v.A))
		if !ok {
			return v
		}
		out := make([]*types.Value, 0, len(v.A)-1)
		out = append(out, v.A[:idx]...)
		out = append(out, v.A[idx+1:]...)
		return types.Arr(out)
	}

	child, ok := getSeg(v, seg)
	if !ok {
		return v
	}
	newChild := deleteAt(child, segs[1:])
	rebuilt, err := setSeg(v, seg, newChild, types.Position{})
	if err != nil {
		return v
	}
	return rebuilt
}

// evalTransformStage replaces the Path target with a newly computed value
// (AssignValue), or maps/filters it as an array with the element bound to
// @ (AssignMap/AssignFilter, classified by whether the RHS expression
// references @). Unlike the reference implementation this module is
// ported from, AssignFilter/AssignMap are accepted on both object-field
// and array-index targets -- the reference restricts them to object
// fields, but nothing in this language's contract for those RHS kinds
// depends on the target's accessor kind, only on the target's current
// value being an array.
func (e *Evaluator) evalTransformStage(ec *EvalContext, stage *types.Stage, current *types.Value) (*types.Value, error) {
	segs, err := extractPath(stage.Path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, types.NewError(types.ErrPath, stage.Pos, "transform target must name a field or index")
	}
	return e.transformAt(ec, current, segs, stage.Rhs, current, stage.Pos)
}

func (e *Evaluator) transformAt(ec *EvalContext, v *types.Value, segs []pathSeg, rhs *types.Rhs, dollar *types.Value, pos types.Position) (*types.Value, error) {
	seg := segs[0]
	if len(segs) == 1 {
		old, existed := getSeg(v, seg)
		if !existed {
			old = types.Null
		}
		newChild, err := e.computeRhs(ec, rhs, old, dollar, pos)
		if err != nil {
			return nil, err
		}
		return setSeg(v, seg, newChild, pos)
	}

	child, ok := getSeg(v, seg)
	if !ok {
		return nil, types.NewError(types.ErrPath, pos, "transform target path does not exist")
	}
	newChild, err := e.transformAt(ec, child, segs[1:], rhs, dollar, pos)
	if err != nil {
		return nil, err
	}
	return setSeg(v, seg, newChild, pos)
}

func (e *Evaluator) computeRhs(ec *EvalContext, rhs *types.Rhs, old *types.Value, dollar *types.Value, pos types.Position) (*types.Value, error) {
	switch rhs.Kind {
	case types.RhsValue:
		return e.evalExpr(ec, rhs.Expr, dollar)

	case types.RhsFilter:
		if old.Kind != types.KindArr {
			return nil, types.NewError(types.ErrType, pos, "filter transform target must be an array, got %s", old.TypeName())
		}
		kept := make([]*types.Value, 0, len(old.A))
		for _, el := range old.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			ec.pushLambda(el)
			cond, err := e.evalExpr(ec, rhs.Expr, dollar)
			ec.popFrame()
			if err != nil {
				return nil, err
			}
			if cond.Truthy() {
				kept = append(kept, el)
			}
		}
		return types.Arr(kept), nil

	case types.RhsMap:
		if old.Kind != types.KindArr {
			return nil, types.NewError(types.ErrType, pos, "map transform target must be an array, got %s", old.TypeName())
		}
		out := make([]*types.Value, len(old.A))
		for i, el := range old.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			ec.pushLambda(el)
			v, err := e.evalExpr(ec, rhs.Expr, dollar)
			ec.popFrame()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return types.Arr(out), nil

	default:
		return nil, types.NewError(types.ErrType, pos, "unknown transform RHS kind %q", rhs.Kind)
	}
}
