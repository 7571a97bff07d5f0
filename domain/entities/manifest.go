package entities

import "time"

// PluginManifest is the sidecar declaration shipped next to a plugin
// artifact. It is the only input to sandbox and budget construction: a
// permission or root not named here is never granted.
type PluginManifest struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Version     string `json:"version" yaml:"version" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`

	// Capabilities are requested by manifest identifier (see Capability).
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty" validate:"dive,required"`

	// FSRead and FSWrite are filesystem roots (literal prefixes or glob
	// patterns) the plugin may touch in the respective mode.
	FSRead  []string `json:"fs_read,omitempty" yaml:"fs_read,omitempty"`
	FSWrite []string `json:"fs_write,omitempty" yaml:"fs_write,omitempty"`

	// Network lists the hosts and ports the plugin may connect to. A nil
	// Network means deny-all.
	Network *NetworkManifest `json:"network,omitempty" yaml:"network,omitempty"`

	// Limits overrides the host default resource budget.
	Limits *LimitsManifest `json:"limits,omitempty" yaml:"limits,omitempty"`

	// Hooks are lifecycle events the plugin subscribes to at load time.
	Hooks []HookManifest `json:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// NetworkManifest declares an allow-listed network policy.
type NetworkManifest struct {
	Hosts []string `json:"hosts" yaml:"hosts" validate:"required,min=1"`

	// Ports holds single ports ("443"), ranges ("8000-8010") or "*".
	// Empty means any port.
	Ports []string `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// LimitsManifest is the wire form of ResourceLimits.
type LimitsManifest struct {
	MaxMemoryBytes uint64 `json:"max_memory_bytes,omitempty" yaml:"max_memory_bytes,omitempty"`
	MaxFuel        uint64 `json:"max_fuel,omitempty" yaml:"max_fuel,omitempty"`
	MaxDurationMS  uint64 `json:"max_duration_ms,omitempty" yaml:"max_duration_ms,omitempty"`
}

// HookManifest subscribes one plugin handler to a host lifecycle event.
type HookManifest struct {
	Event    string `json:"event" yaml:"event" validate:"required"`
	Handler  string `json:"handler" yaml:"handler" validate:"required"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// RequestedCapabilities parses the manifest's capability identifiers.
// Unknown identifiers are reported, not silently dropped.
func (m *PluginManifest) RequestedCapabilities() ([]Capability, error) {
	caps := make([]Capability, 0, len(m.Capabilities))
	for _, name := range m.Capabilities {
		c, err := ParseCapability(name)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// ResourceLimits resolves the manifest's limits against a host default.
// Unset fields inherit from the default.
func (m *PluginManifest) ResourceLimits(def ResourceLimits) ResourceLimits {
	if m.Limits == nil {
		return def
	}
	out := def
	if m.Limits.MaxMemoryBytes > 0 {
		out.MaxMemoryBytes = m.Limits.MaxMemoryBytes
	}
	if m.Limits.MaxFuel > 0 {
		out.MaxFuel = m.Limits.MaxFuel
	}
	if m.Limits.MaxDurationMS > 0 {
		out.MaxDuration = time.Duration(m.Limits.MaxDurationMS) * time.Millisecond
	}
	return out
}
