package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/plughost-dev/plughost/hostfuncs"
)

// HostModuleName is the import namespace plugins use for host functions.
const HostModuleName = "plughost"

// Executor instantiates and runs WASM plugins on a shared wazero runtime.
type Executor struct {
	runtime  wazero.Runtime
	registry *hostfuncs.HandlerRegistry
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHandlerRegistry sets the host function registry plugins may call.
func WithHandlerRegistry(registry *hostfuncs.HandlerRegistry) ExecutorOption {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithExecutorLogger sets the structured logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor with the given options. Without an
// explicit registry, plugins get the default bridge.
func NewExecutor(ctx context.Context, opts ...ExecutorOption) (*Executor, error) {
	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		reg, err := hostfuncs.DefaultRegistry(e.logger, 1)
		if err != nil {
			return nil, fmt.Errorf("creating default registry: %w", err)
		}
		e.registry = reg
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if err := e.registerHostFunctions(ctx); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("registering host functions: %w", err)
	}

	return e, nil
}

// Close releases the runtime and every module instantiated on it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// registerHostFunctions exposes every registry handler under the host
// module namespace. The wire convention packs a guest pointer and length
// into one uint64 (ptr<<32 | len); responses are written back into guest
// memory through the guest's exported allocate function.
func (e *Executor) registerHostFunctions(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(HostModuleName)

	for _, name := range e.registry.Names() {
		localName := name
		builder.NewFunctionBuilder().
			WithFunc(func(ctx context.Context, m api.Module, packed uint64) uint64 {
				ptr := uint32(packed >> 32)
				length := uint32(packed)
				payload, ok := m.Memory().Read(ptr, length)
				if !ok {
					return 0
				}
				resp, err := e.registry.Invoke(ctx, localName, payload)
				if err != nil || len(resp) == 0 {
					return 0
				}

				allocate := m.ExportedFunction(guestAllocExport)
				if allocate == nil {
					return 0
				}
				results, err := allocate.Call(ctx, uint64(len(resp)))
				if err != nil || len(results) == 0 {
					return 0
				}
				respPtr := uint32(results[0])
				if !m.Memory().Write(respPtr, resp) {
					return 0
				}
				return (uint64(respPtr) << 32) | uint64(len(resp))
			}).
			Export(name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

// Load compiles and instantiates a WASM artifact.
func (e *Executor) Load(ctx context.Context, wasmBytes []byte) (*WasmPlugin, error) {
	mod, err := e.runtime.Instantiate(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("instantiating module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("calling _initialize: %w", err)
		}
	}

	return &WasmPlugin{module: mod}, nil
}
