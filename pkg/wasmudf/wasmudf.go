// Package wasmudf lets a host supply a UDF body as a compiled WebAssembly
// module instead of Clove source text, for hosts that want to ship UDFs
// as precompiled, sandboxed bytecode. It is an optional sibling to the
// core's own (arity, Expr) UDF table -- the core itself never touches
// WASM, it only calls through the Module type this package defines.
//
// A module must export three functions using a small alloc/call/free ABI:
//
//	clove_udf_alloc(size i32) -> ptr i32
//	clove_udf_free(ptr i32, size i32)
//	clove_udf_call(argsPtr i32, argsLen i32) -> packed i64
//
// The host JSON-encodes the call arguments (an array of arity elements,
// via pkg/types' ToJSON) into memory obtained from clove_udf_alloc, calls
// clove_udf_call, and reads the JSON-encoded result out of the packed
// (ptr<<32 | len) return value, freeing both buffers afterward.
package wasmudf

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

// Module is a loaded, instantiated WASM UDF backend for one UDF name.
type Module struct {
	runtime wazero.Runtime
	mod     api.Module

	alloc api.Function
	free  api.Function
	call  api.Function

	arity int
}

// Load compiles and instantiates wasmBytes as a UDF of the given arity.
// The returned Module owns its own wazero runtime; callers must call
// Close when done with it.
func Load(ctx context.Context, wasmBytes []byte, arity int) (*Module, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wasmudf: instantiating WASI: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wasmudf: compiling module: %w", err)
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("wasmudf: instantiating module: %w", err)
	}

	m := &Module{runtime: runtime, mod: mod, arity: arity}
	for _, f := range []struct {
		name string
		dest *api.Function
	}{
		{"clove_udf_alloc", &m.alloc},
		{"clove_udf_free", &m.free},
		{"clove_udf_call", &m.call},
	} {
		fn := mod.ExportedFunction(f.name)
		if fn == nil {
			runtime.Close(ctx)
			return nil, fmt.Errorf("wasmudf: module does not export %q", f.name)
		}
		*f.dest = fn
	}
	return m, nil
}

// Close releases the module's runtime and all memory it owns.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// Arity is the number of arguments this UDF expects.
func (m *Module) Arity() int { return m.arity }

// Call invokes the module with args JSON-encoded per the package's ABI
// and decodes its JSON result back into a Value.
func (m *Module) Call(ctx context.Context, args []*types.Value) (*types.Value, error) {
	if len(args) != m.arity {
		return nil, fmt.Errorf("wasmudf: expected %d argument(s), got %d", m.arity, len(args))
	}

	rawArgs := make([]interface{}, len(args))
	for i, a := range args {
		rawArgs[i] = types.ToJSON(a)
	}
	argsJSON, err := json.Marshal(rawArgs)
	if err != nil {
		return nil, fmt.Errorf("wasmudf: encoding arguments: %w", err)
	}

	argsPtr, err := m.writeBytes(ctx, argsJSON)
	if err != nil {
		return nil, err
	}
	defer m.freeBytes(ctx, argsPtr, uint32(len(argsJSON)))

	results, err := m.call.Call(ctx, uint64(argsPtr), uint64(len(argsJSON)))
	if err != nil {
		return nil, fmt.Errorf("wasmudf: calling module: %w", err)
	}
	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)
	defer m.freeBytes(ctx, outPtr, outLen)

	outBytes, ok := m.mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("wasmudf: result (ptr=%d len=%d) out of bounds", outPtr, outLen)
	}

	decoded, err := types.DecodeOrdered(outBytes)
	if err != nil {
		return nil, fmt.Errorf("wasmudf: decoding result: %w", err)
	}
	return types.FromJSON(decoded)
}

func (m *Module) writeBytes(ctx context.Context, data []byte) (uint32, error) {
	results, err := m.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("wasmudf: alloc: %w", err)
	}
	ptr := uint32(results[0])
	if !m.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("wasmudf: writing %d bytes at %d out of bounds", len(data), ptr)
	}
	return ptr, nil
}

func (m *Module) freeBytes(ctx context.Context, ptr, length uint32) {
	_, _ = m.free.Call(ctx, uint64(ptr), uint64(length))
}
