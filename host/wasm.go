package host

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	dErrors "github.com/plughost-dev/plughost/domain/errors"
	"github.com/plughost-dev/plughost/hostfuncs"
)

// guestAllocExport is the allocator every guest must export so the host
// can place request and response bytes in guest memory.
const guestAllocExport = "allocate"

// wasmPageSize is the WebAssembly linear memory page size.
const wasmPageSize = 64 * 1024

// WasmPlugin is one instantiated WASM module.
type WasmPlugin struct {
	module   api.Module
	unloaded atomic.Bool
}

var _ LoadedPlugin = (*WasmPlugin)(nil)

// Execute calls the plugin's entry export.
func (p *WasmPlugin) Execute(ctx context.Context, input []byte) ([]byte, error) {
	return p.Invoke(ctx, EntryExport, input)
}

// Invoke calls a named export with the packed pointer convention and
// charges any memory the call grew against the caller's tracker.
func (p *WasmPlugin) Invoke(ctx context.Context, export string, input []byte) ([]byte, error) {
	if p.unloaded.Load() {
		return nil, &dErrors.NotSupportedError{Reason: "plugin is unloaded"}
	}

	pagesBefore := p.module.Memory().Size() / wasmPageSize

	packed, err := p.callRaw(ctx, export, input)
	if err != nil {
		return nil, err
	}

	if scope, ok := hostfuncs.ScopeFrom(ctx); ok && scope.Tracker != nil {
		pagesAfter := p.module.Memory().Size() / wasmPageSize
		if pagesAfter > pagesBefore {
			grown := uint64(pagesAfter-pagesBefore) * wasmPageSize
			if memErr := scope.Tracker.TrackMemory(grown); memErr != nil {
				return nil, memErr
			}
		}
	}

	if packed == 0 {
		return nil, nil
	}
	return p.readPacked(packed)
}

// Unload closes the module. Idempotent.
func (p *WasmPlugin) Unload(ctx context.Context) error {
	if p.unloaded.Swap(true) {
		return nil
	}
	return p.module.Close(ctx)
}

// callRaw invokes an export. Inputs are copied into guest memory through
// the guest allocator and passed as (ptr, len); the result is the packed
// response location.
func (p *WasmPlugin) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	f := p.module.ExportedFunction(name)
	if f == nil {
		return 0, fmt.Errorf("export %q not found", name)
	}

	var results []uint64
	var err error

	if len(input) == 0 {
		results, err = f.Call(ctx)
	} else {
		allocate := p.module.ExportedFunction(guestAllocExport)
		if allocate == nil {
			return 0, fmt.Errorf("guest does not export %q", guestAllocExport)
		}
		resAlloc, errAlloc := allocate.Call(ctx, uint64(len(input)))
		if errAlloc != nil {
			return 0, fmt.Errorf("allocating in guest: %w", errAlloc)
		}
		if len(resAlloc) == 0 {
			return 0, fmt.Errorf("guest allocator returned no results")
		}
		ptr := uint32(resAlloc[0])
		if !p.module.Memory().Write(ptr, input) {
			return 0, fmt.Errorf("writing input to guest memory")
		}
		results, err = f.Call(ctx, uint64(ptr), uint64(len(input)))
	}

	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// readPacked copies the response bytes out of guest memory.
func (p *WasmPlugin) readPacked(packed uint64) ([]byte, error) {
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	if ptr == 0 || length == 0 {
		return nil, nil
	}
	data, ok := p.module.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("reading response from guest memory")
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}
