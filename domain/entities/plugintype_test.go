package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginTypeFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected PluginType
		ok       bool
	}{
		{"a.wasm", PluginTypeWasm, true},
		{"b.dll", PluginTypeNative, true},
		{"c.so", PluginTypeNative, true},
		{"d.dylib", PluginTypeNative, true},
		{"e.txt", 0, false},
		{"noext", 0, false},
		{"/plugins/deep/nested.wasm", PluginTypeWasm, true},
		// Detection is case-sensitive.
		{"f.WASM", 0, false},
		{"g.So", 0, false},
		// Only the final extension counts.
		{"h.wasm.sig", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := PluginTypeFromPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestPluginTypeString(t *testing.T) {
	assert.Equal(t, "wasm", PluginTypeWasm.String())
	assert.Equal(t, "native", PluginTypeNative.String())
	assert.Equal(t, "unknown", PluginType(42).String())
}
