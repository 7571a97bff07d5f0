package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginContextBuilder(t *testing.T) {
	pctx := NewPluginContext().
		WithCapability(CapabilityNetwork).
		WithArgs("--verbose", "input.txt").
		WithMemoryLimit(1024).
		WithFuelLimit(500)

	assert.True(t, pctx.HasCapability(CapabilityNetwork))
	assert.False(t, pctx.HasCapability(CapabilityShell))
	assert.Equal(t, []string{"--verbose", "input.txt"}, pctx.Args())
	assert.Equal(t, uint64(1024), pctx.MemoryLimit())
	assert.Equal(t, uint64(500), pctx.FuelLimit())
}

func TestPluginContextBuilderDoesNotMutateParent(t *testing.T) {
	base := NewPluginContext().WithArgs("a")

	widened := base.WithCapability(CapabilityShell).WithArgs("b")

	assert.False(t, base.HasCapability(CapabilityShell))
	assert.Equal(t, []string{"a"}, base.Args())
	assert.True(t, widened.HasCapability(CapabilityShell))
	assert.Equal(t, []string{"a", "b"}, widened.Args())
}

func TestPluginContextEmpty(t *testing.T) {
	pctx := NewPluginContext()

	assert.False(t, pctx.HasCapability(CapabilityNetwork))
	assert.Empty(t, pctx.Args())
	assert.Zero(t, pctx.MemoryLimit())
	assert.Zero(t, pctx.FuelLimit())
}
