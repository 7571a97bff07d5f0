// Package host loads, executes and supervises plugins. It binds each
// plugin's sandbox, resource tracker and bridge state, verifies artifact
// signatures before anything is instantiated, and serializes execution
// per plugin.
package host

import (
	"context"
)

// EntryExport is the export every plugin provides as its entry point.
const EntryExport = "run"

// LoadedPlugin is one instantiated plugin, WASM or native. Implementations
// are not safe for concurrent calls; the registry serializes access.
type LoadedPlugin interface {
	// Execute calls the plugin's entry point with the input payload.
	Execute(ctx context.Context, input []byte) ([]byte, error)

	// Invoke calls a named export, used for hook handlers.
	Invoke(ctx context.Context, export string, input []byte) ([]byte, error)

	// Unload releases the plugin instance. Idempotent.
	Unload(ctx context.Context) error
}
