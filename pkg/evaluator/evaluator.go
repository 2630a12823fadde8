// Package evaluator walks a parsed Query against a JSON value, producing a
// JSON value.
package evaluator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tardy-sh/clove-lang/pkg/cache"
	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
	"github.com/tardy-sh/clove-lang/pkg/wasmudf"
)

// EvalOptions configures an Evaluator.
type EvalOptions struct {
	// MaxDepth bounds UDF call recursion; exceeding it raises
	// StackOverflow. Defaults to 256.
	MaxDepth int
	Debug    bool
	Logger   *slog.Logger

	// Caching, when true, makes EvalSource keep a bounded LRU of parsed
	// queries keyed by source text instead of reparsing every call.
	Caching   bool
	CacheSize int

	// Timeout bounds one Eval call when the caller's context carries no
	// deadline of its own.
	Timeout time.Duration

	// Env supplies the default `$NAME` resolver used when Eval/Check is
	// called with a nil env.
	Env EnvFunc

	// UDFs supplies default preloaded UDFs merged under any per-call
	// preloaded map and any in-query definitions.
	UDFs map[string]*types.UdfDef

	// WasmUDFs supplies UDFs backed by a compiled WASM module rather than
	// a Clove expression. A name present in both WasmUDFs and UDFs (or an
	// in-query definition) resolves to the WASM module; call dispatch
	// checks WasmUDFs first.
	WasmUDFs map[string]*wasmudf.Module
}

// EvalOption mutates an EvalOptions value.
type EvalOption func(*EvalOptions)

func WithMaxDepth(n int) EvalOption {
	return func(o *EvalOptions) { o.MaxDepth = n }
}

func WithDebug(enabled bool) EvalOption {
	return func(o *EvalOptions) { o.Debug = enabled }
}

func WithLogger(l *slog.Logger) EvalOption {
	return func(o *EvalOptions) { o.Logger = l }
}

func WithCaching(enabled bool) EvalOption {
	return func(o *EvalOptions) { o.Caching = enabled }
}

func WithCacheSize(n int) EvalOption {
	return func(o *EvalOptions) { o.CacheSize = n }
}

func WithTimeout(d time.Duration) EvalOption {
	return func(o *EvalOptions) { o.Timeout = d }
}

func WithEnv(env EnvFunc) EvalOption {
	return func(o *EvalOptions) { o.Env = env }
}

func WithUDFs(udfs map[string]*types.UdfDef) EvalOption {
	return func(o *EvalOptions) { o.UDFs = udfs }
}

// WithWASMUDF registers a single WASM-backed UDF under name, accumulating
// across repeated calls with this option rather than replacing the set.
func WithWASMUDF(name string, m *wasmudf.Module) EvalOption {
	return func(o *EvalOptions) {
		if o.WasmUDFs == nil {
			o.WasmUDFs = make(map[string]*wasmudf.Module)
		}
		o.WasmUDFs[name] = m
	}
}

// Evaluator executes Query ASTs. It holds no per-evaluation state -- each
// call to Eval creates its own EvalContext -- so one Evaluator is safe to
// reuse (and to share) across concurrent evaluations. Its own query cache,
// when enabled, is independently synchronized (see pkg/cache).
type Evaluator struct {
	opts   EvalOptions
	logger *slog.Logger
	cache  *cache.Cache
}

func New(opts ...EvalOption) *Evaluator {
	o := EvalOptions{MaxDepth: 256}
	for _, f := range opts {
		f(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	e := &Evaluator{opts: o, logger: o.Logger}
	if o.Caching {
		e.cache = cache.New(o.CacheSize)
	}
	return e
}

// EvalSource parses src (via the cache when caching is enabled) and then
// evaluates it, exactly as Eval does for an already-compiled Query.
func (e *Evaluator) EvalSource(ctx context.Context, src string, root *types.Value, env EnvFunc, preloaded map[string]*types.UdfDef) (*types.Value, error) {
	compile := func() (*types.Query, error) { return parser.Parse(src) }
	var q *types.Query
	var err error
	if e.cache != nil {
		var hit bool
		q, hit, err = e.cache.GetOrCompileHit(src, compile)
		if e.opts.Debug {
			if hit {
				e.logger.Debug("compile cache hit", "src", src)
			} else {
				e.logger.Debug("compile cache miss", "src", src)
			}
		}
	} else {
		q, err = compile()
	}
	if err != nil {
		return nil, err
	}
	return e.Eval(ctx, q, root, env, preloaded)
}

// Eval runs q against root. env resolves `$NAME` lookups, falling back to
// WithEnv's default when nil; preloaded supplies UDFs available before any
// in-query definition is registered (in-query definitions take precedence
// over both preloaded and WithUDFs defaults on name collision). ctx is
// checked at each stage boundary and at each iteration of an unbounded
// loop (array HOF methods, filter/transform element loops); a nil ctx
// behaves as context.Background().
func (e *Evaluator) Eval(ctx context.Context, q *types.Query, root *types.Value, env EnvFunc, preloaded map[string]*types.UdfDef) (*types.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.opts.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
		}
	}
	if env == nil {
		env = e.opts.Env
	}

	ec := newEvalContext(ctx, root, env, e.opts.MaxDepth, e.opts.WasmUDFs)
	combined := make(map[string]*types.UdfDef, len(e.opts.UDFs)+len(preloaded))
	for name, def := range e.opts.UDFs {
		combined[name] = def
	}
	for name, def := range preloaded {
		combined[name] = def
	}
	if err := ec.registerUdfs(combined, q.Udfs); err != nil {
		return nil, err
	}

	if e.opts.Debug {
		e.logger.Debug("eval start", "stages", len(q.Stages), "udfs", len(q.Udfs))
	}

	current := root
	for i, stage := range q.Stages {
		if err := ec.checkCancel(); err != nil {
			return nil, err
		}
		v, err := e.evalStage(ec, stage, current)
		if err != nil {
			if e.opts.Debug {
				e.logger.Debug("eval stage failed", "index", i, "kind", stage.Kind, "error", err)
			}
			return nil, err
		}
		current = v
	}
	return current, nil
}

// Check runs q against root and reports the truthiness of the result
// alongside a short textual diagnostic -- the ambient `check` entry point
// described for the host-facing diagnostic surface: the pretty-printed
// result on success, or the error's text on failure.
func (e *Evaluator) Check(ctx context.Context, q *types.Query, root *types.Value, env EnvFunc, preloaded map[string]*types.UdfDef) (bool, string) {
	result, err := e.Eval(ctx, q, root, env, preloaded)
	if err != nil {
		return false, err.Error()
	}
	pretty, merr := json.MarshalIndent(types.ToJSON(result), "", "  ")
	if merr != nil {
		return result.Truthy(), result.TypeName()
	}
	return result.Truthy(), string(pretty)
}

func (e *Evaluator) evalStage(ec *EvalContext, stage *types.Stage, current *types.Value) (*types.Value, error) {
	switch stage.Kind {
	case types.StageRootStart:
		return ec.root, nil
	case types.StageBind:
		v, err := e.evalExpr(ec, stage.Expr, current)
		if err != nil {
			return nil, err
		}
		if err := ec.bindScope(stage.Name, v, stage.Pos); err != nil {
			return nil, err
		}
		return current, nil
	case types.StageFilter:
		return e.evalFilterStage(ec, stage, current)
	case types.StageTransform:
		return e.evalTransformStage(ec, stage, current)
	case types.StageDelete:
		return e.evalDeleteStage(ec, stage, current)
	case types.StageOutput, types.StageBareExpr:
		return e.evalExpr(ec, stage.Expr, current)
	default:
		return nil, types.NewError(types.ErrParse, stage.Pos, "unknown stage kind %q", stage.Kind)
	}
}

// evalFilterStage implements `?(expr)`: on an array, keep elements for
// which expr (with the element bound as @) is truthy; on anything else,
// keep current if expr against current is truthy, else produce Null.
func (e *Evaluator) evalFilterStage(ec *EvalContext, stage *types.Stage, current *types.Value) (*types.Value, error) {
	if current.Kind == types.KindArr {
		kept := make([]*types.Value, 0, len(current.A))
		for _, el := range current.A {
			if err := ec.checkCancel(); err != nil {
				return nil, err
			}
			ec.pushLambda(el)
			cond, err := e.evalExpr(ec, stage.Expr, current)
			ec.popFrame()
			if err != nil {
				return nil, err
			}
			if cond.Truthy() {
				kept = append(kept, el)
			}
		}
		return types.Arr(kept), nil
	}
	cond, err := e.evalExpr(ec, stage.Expr, current)
	if err != nil {
		return nil, err
	}
	if cond.Truthy() {
		return current, nil
	}
	return types.Null, nil
}
