package entities

// PluginContext is the per-call configuration bound when a plugin is
// executed: the capability subset granted for this call, CLI-style
// arguments, and the memory/fuel ceilings in effect. The builder is
// additive; there is no way to widen a context after it is handed to a
// plugin instance.
type PluginContext struct {
	capabilities map[Capability]struct{}
	args         []string
	maxMemory    uint64
	maxFuel      uint64
}

// NewPluginContext creates an empty context: no capabilities, no args.
func NewPluginContext() PluginContext {
	return PluginContext{capabilities: make(map[Capability]struct{})}
}

// WithCapability returns the context with one capability added.
func (c PluginContext) WithCapability(cap Capability) PluginContext {
	caps := make(map[Capability]struct{}, len(c.capabilities)+1)
	for k := range c.capabilities {
		caps[k] = struct{}{}
	}
	caps[cap] = struct{}{}
	c.capabilities = caps
	return c
}

// WithArgs returns the context with CLI-style arguments appended.
func (c PluginContext) WithArgs(args ...string) PluginContext {
	c.args = append(append([]string(nil), c.args...), args...)
	return c
}

// WithMemoryLimit returns the context with the per-call memory ceiling set.
func (c PluginContext) WithMemoryLimit(bytes uint64) PluginContext {
	c.maxMemory = bytes
	return c
}

// WithFuelLimit returns the context with the per-call fuel ceiling set.
func (c PluginContext) WithFuelLimit(fuel uint64) PluginContext {
	c.maxFuel = fuel
	return c
}

// HasCapability is a pure subset query; it does not audit.
func (c PluginContext) HasCapability(cap Capability) bool {
	_, ok := c.capabilities[cap]
	return ok
}

// Args returns a copy of the bound arguments.
func (c PluginContext) Args() []string {
	return append([]string(nil), c.args...)
}

// MemoryLimit returns the per-call memory ceiling (0 means inherit).
func (c PluginContext) MemoryLimit() uint64 { return c.maxMemory }

// FuelLimit returns the per-call fuel ceiling (0 means inherit).
func (c PluginContext) FuelLimit() uint64 { return c.maxFuel }
