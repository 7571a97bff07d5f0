//go:build linux || darwin

package host

import (
	"context"
	"fmt"
	"plugin"
	"sync/atomic"

	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// NativeFunc is the signature every exported native plugin function must
// have. The entry point is the exported symbol "Run"; hook handlers are
// additional exported symbols of the same shape.
type NativeFunc func(ctx context.Context, input []byte) ([]byte, error)

// nativeEntrySymbol is the exported symbol used as the entry point.
const nativeEntrySymbol = "Run"

// NativePlugin is a shared-object plugin loaded through the runtime
// linker. The process cannot unlink a loaded object, so Unload only bars
// further calls.
type NativePlugin struct {
	handle   *plugin.Plugin
	entry    NativeFunc
	unloaded atomic.Bool
}

var _ LoadedPlugin = (*NativePlugin)(nil)

// LoadNative opens a shared object and resolves its entry symbol.
func LoadNative(path string) (LoadedPlugin, error) {
	handle, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening native plugin: %w", err)
	}

	entry, err := lookupFunc(handle, nativeEntrySymbol)
	if err != nil {
		return nil, err
	}

	return &NativePlugin{handle: handle, entry: entry}, nil
}

func lookupFunc(handle *plugin.Plugin, symbol string) (NativeFunc, error) {
	sym, err := handle.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("resolving symbol %q: %w", symbol, err)
	}
	fn, ok := sym.(func(context.Context, []byte) ([]byte, error))
	if !ok {
		return nil, fmt.Errorf("symbol %q has wrong type %T", symbol, sym)
	}
	return fn, nil
}

// Execute calls the entry symbol.
func (p *NativePlugin) Execute(ctx context.Context, input []byte) ([]byte, error) {
	if p.unloaded.Load() {
		return nil, &dErrors.NotSupportedError{Reason: "plugin is unloaded"}
	}
	return p.entry(ctx, input)
}

// Invoke resolves and calls a named exported symbol.
func (p *NativePlugin) Invoke(ctx context.Context, export string, input []byte) ([]byte, error) {
	if p.unloaded.Load() {
		return nil, &dErrors.NotSupportedError{Reason: "plugin is unloaded"}
	}
	fn, err := lookupFunc(p.handle, export)
	if err != nil {
		return nil, err
	}
	return fn(ctx, input)
}

// Unload bars further calls. The shared object stays mapped; the runtime
// linker has no unload.
func (p *NativePlugin) Unload(ctx context.Context) error {
	p.unloaded.Store(true)
	return nil
}
