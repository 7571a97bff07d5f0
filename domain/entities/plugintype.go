package entities

import "path/filepath"

// PluginType is the kind of executable artifact a plugin is distributed as.
type PluginType int

const (
	// PluginTypeWasm is a compiled WebAssembly module.
	PluginTypeWasm PluginType = iota

	// PluginTypeNative is a natively compiled shared library.
	PluginTypeNative
)

// String returns the human-readable name of the plugin type.
func (t PluginType) String() string {
	switch t {
	case PluginTypeWasm:
		return "wasm"
	case PluginTypeNative:
		return "native"
	default:
		return "unknown"
	}
}

// pluginTypeByExtension is the authoritative extension table. Detection is
// table-driven and case-sensitive; artifact content is never inspected.
var pluginTypeByExtension = map[string]PluginType{
	".wasm":  PluginTypeWasm,
	".dll":   PluginTypeNative,
	".so":    PluginTypeNative,
	".dylib": PluginTypeNative,
}

// PluginTypeFromPath maps a file path to its plugin type by extension.
// The second return value is false for any extension not in the table.
func PluginTypeFromPath(path string) (PluginType, bool) {
	t, ok := pluginTypeByExtension[filepath.Ext(path)]
	return t, ok
}
