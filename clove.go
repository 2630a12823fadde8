// Package clove provides a Go implementation of the Clove query and
// transformation language: a pipeline of stages, separated by `|`, that
// reads, filters, transforms, and reshapes a JSON document.
//
// # Quick Start
//
//	// Simple evaluation
//	result, err := clove.Eval(`$[items]`, doc, nil, nil)
//
//	// Compile once, evaluate many times
//	q, err := clove.Compile(`$[items] | ?(@[price] > 100)`)
//	result1, _ := clove.EvalQuery(ctx, q, doc1, nil, nil)
//	result2, _ := clove.EvalQuery(ctx, q, doc2, nil, nil)
//
//	// With options
//	result, err := clove.Eval(`$[items]`, doc, nil, nil,
//	    clove.WithTimeout(5*time.Second),
//	)
//
// Package-level Eval keeps a process-wide compile cache (see pkg/cache),
// so repeated calls with the same source text skip re-parsing. Compile
// consults the same cache; parse with parser.Parse and run the result with
// EvalQuery to bypass it.
package clove

import (
	"context"
	"fmt"

	"github.com/tardy-sh/clove-lang/pkg/cache"
	"github.com/tardy-sh/clove-lang/pkg/evaluator"
	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

// EvalOption re-exports evaluator.EvalOption so callers need only import
// this package for the common case.
type EvalOption = evaluator.EvalOption

var (
	WithMaxDepth  = evaluator.WithMaxDepth
	WithDebug     = evaluator.WithDebug
	WithLogger    = evaluator.WithLogger
	WithCaching   = evaluator.WithCaching
	WithCacheSize = evaluator.WithCacheSize
	WithTimeout   = evaluator.WithTimeout
	WithEnv       = evaluator.WithEnv
	WithUDFs      = evaluator.WithUDFs
	WithWASMUDF   = evaluator.WithWASMUDF
)

var defaultCache = cache.New(256)

// Version returns the current version of this module.
func Version() string {
	return "v0.1.0-dev"
}

// Compile parses src into a Query for repeated evaluation, consulting the
// package-level compile cache first.
func Compile(src string, opts ...parser.CompileOption) (*types.Query, error) {
	return defaultCache.GetOrCompile(src, func() (*types.Query, error) {
		return parser.Parse(src, opts...)
	})
}

// MustCompile is like Compile but panics if src cannot be compiled. It
// simplifies safe initialization of package-level queries.
func MustCompile(src string) *types.Query {
	q, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("clove: Compile(%q): %v", src, err))
	}
	return q
}

// Eval compiles src and evaluates it against root in a single call. env
// resolves `$NAME` lookups (nil falls back to no environment access);
// preloaded supplies UDFs available to the query before any in-query
// definition. For repeated evaluation of the same source, prefer Compile
// plus EvalQuery.
func Eval(src string, root *types.Value, env evaluator.EnvFunc, preloaded map[string]*types.UdfDef, opts ...EvalOption) (*types.Value, error) {
	q, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return EvalQuery(context.Background(), q, root, env, preloaded, opts...)
}

// EvalQuery evaluates an already-compiled Query with a caller-supplied
// context, for cancellation or a deadline.
func EvalQuery(ctx context.Context, q *types.Query, root *types.Value, env evaluator.EnvFunc, preloaded map[string]*types.UdfDef, opts ...EvalOption) (*types.Value, error) {
	ev := evaluator.New(opts...)
	return ev.Eval(ctx, q, root, env, preloaded)
}

// Check compiles and evaluates src, reporting the truthiness of the
// result alongside a short textual diagnostic: the pretty-printed result
// on success, or the error's text on failure.
func Check(src string, root *types.Value, env evaluator.EnvFunc, preloaded map[string]*types.UdfDef, opts ...EvalOption) (bool, string) {
	q, err := Compile(src)
	if err != nil {
		return false, err.Error()
	}
	ev := evaluator.New(opts...)
	return ev.Check(context.Background(), q, root, env, preloaded)
}

// EvalWithContext evaluates src with a custom context, for cancellation or
// a deadline bound to the caller rather than WithTimeout.
func EvalWithContext(ctx context.Context, src string, root *types.Value, env evaluator.EnvFunc, preloaded map[string]*types.UdfDef, opts ...EvalOption) (*types.Value, error) {
	q, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return EvalQuery(ctx, q, root, env, preloaded, opts...)
}
