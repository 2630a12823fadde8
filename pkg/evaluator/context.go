package evaluator

import (
	"context"
	"regexp"

	"github.com/tardy-sh/clove-lang/pkg/types"
	"github.com/tardy-sh/clove-lang/pkg/wasmudf"
)

// EnvFunc looks up an environment variable by name, mirroring the shape a
// host passes in (e.g. os.LookupEnv).
type EnvFunc func(name string) (string, bool)

type frameKind uint8

const (
	frameLambda frameKind = iota
	frameUdf
)

// frame is one entry of the evaluator's binding stack. A lambda frame
// carries the element bound to @; a UDF frame carries the positional
// arguments addressed as @1..@9. @ lookups skip over UDF frames to find
// the nearest enclosing lambda frame; @N lookups skip over lambda frames
// to find the nearest enclosing UDF frame -- the two binding kinds are
// independent, matching how an argument expression passed into a UDF
// call can still see an @ bound by an outer array-iterating method.
type frame struct {
	kind frameKind
	ctx  *types.Value
	args []*types.Value
}

// EvalContext holds all mutable state for one query evaluation: it is
// never shared across evaluations and is not exposed to hosts.
type EvalContext struct {
	root *types.Value

	scopes   map[string]*types.Value
	udfs     map[string]*types.UdfDef
	wasmUdfs map[string]*wasmudf.Module

	frames []frame

	env EnvFunc
	ctx context.Context

	regexCache map[string]*regexp.Regexp

	udfDepth    int
	maxUdfDepth int
}

func newEvalContext(ctx context.Context, root *types.Value, env EnvFunc, maxUdfDepth int, wasmUdfs map[string]*wasmudf.Module) *EvalContext {
	if env == nil {
		env = func(string) (string, bool) { return "", false }
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if wasmUdfs == nil {
		wasmUdfs = make(map[string]*wasmudf.Module)
	}
	return &EvalContext{
		root:        root,
		scopes:      make(map[string]*types.Value),
		udfs:        make(map[string]*types.UdfDef),
		wasmUdfs:    wasmUdfs,
		env:         env,
		ctx:         ctx,
		regexCache:  make(map[string]*regexp.Regexp),
		maxUdfDepth: maxUdfDepth,
	}
}

// checkCancel reports whether the host-supplied context has been canceled
// or has exceeded its deadline. Called at stage boundaries and inside
// unbounded iteration loops (array HOF methods, filter/transform element
// loops) so a timeout set via WithTimeout is honored without the core
// scheduling anything of its own.
func (ec *EvalContext) checkCancel() error {
	select {
	case <-ec.ctx.Done():
		return types.NewError(types.ErrType, types.Position{}, "evaluation canceled: %s", ec.ctx.Err()).WithCause(ec.ctx.Err())
	default:
		return nil
	}
}

// registerUdfs merges preloaded UDFs with in-query definitions, the latter
// taking precedence on name collision.
func (ec *EvalContext) registerUdfs(preloaded map[string]*types.UdfDef, inQuery []*types.UdfDef) error {
	for name, def := range preloaded {
		ec.udfs[name] = def
	}
	seen := make(map[string]bool, len(inQuery))
	for _, def := range inQuery {
		if seen[def.Name] {
			return types.NewError(types.ErrParse, def.Pos, "duplicate UDF definition %q", def.Name)
		}
		seen[def.Name] = true
		ec.udfs[def.Name] = def
	}
	return nil
}

func (ec *EvalContext) bindScope(name string, v *types.Value, pos types.Position) error {
	if _, ok := ec.scopes[name]; ok {
		return types.NewError(types.ErrType, pos, "scope %q is already bound; rebinding is not permitted", name)
	}
	ec.scopes[name] = v
	return nil
}

func (ec *EvalContext) lookupScope(name string) (*types.Value, bool) {
	v, ok := ec.scopes[name]
	return v, ok
}

func (ec *EvalContext) pushLambda(v *types.Value) {
	ec.frames = append(ec.frames, frame{kind: frameLambda, ctx: v})
}

func (ec *EvalContext) pushUdf(args []*types.Value) {
	ec.frames = append(ec.frames, frame{kind: frameUdf, args: args})
}

func (ec *EvalContext) popFrame() {
	ec.frames = ec.frames[:len(ec.frames)-1]
}

func (ec *EvalContext) resolveCtx() (*types.Value, bool) {
	for i := len(ec.frames) - 1; i >= 0; i-- {
		if ec.frames[i].kind == frameLambda {
			return ec.frames[i].ctx, true
		}
	}
	return nil, false
}

func (ec *EvalContext) resolveCtxArg(n int) (*types.Value, bool) {
	for i := len(ec.frames) - 1; i >= 0; i-- {
		if ec.frames[i].kind == frameUdf {
			if n >= 1 && n <= len(ec.frames[i].args) {
				return ec.frames[i].args[n-1], true
			}
			return nil, false
		}
	}
	return nil, false
}

// compileRegex compiles pat once per context and reuses it for the rest of
// this evaluation -- the language's `matches` method is the only regex
// consumer, and the cache is scoped to one EvalContext rather than the
// whole process.
func (ec *EvalContext) compileRegex(pat string) (*regexp.Regexp, error) {
	if re, ok := ec.regexCache[pat]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, err
	}
	ec.regexCache[pat] = re
	return re, nil
}
