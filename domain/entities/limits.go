package entities

import "time"

// ResourceLimits is the budget a plugin may consume. It is immutable once a
// tracker has been built from it.
type ResourceLimits struct {
	// MaxMemoryBytes caps cumulative guest allocations.
	MaxMemoryBytes uint64

	// MaxFuel caps the abstract CPU-proxy units charged to the plugin.
	MaxFuel uint64

	// MaxDuration caps wall-clock time since the tracker was created.
	MaxDuration time.Duration
}

// DefaultResourceLimits returns the budget applied to plugins whose manifest
// does not declare one.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryBytes: 64 * 1024 * 1024,
		MaxFuel:        10_000_000,
		MaxDuration:    30 * time.Second,
	}
}

// StrictResourceLimits returns a tighter budget for untrusted plugins.
func StrictResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryBytes: 8 * 1024 * 1024,
		MaxFuel:        1_000_000,
		MaxDuration:    5 * time.Second,
	}
}

// ResourceSnapshot is a consistent read of a tracker's counters.
type ResourceSnapshot struct {
	MemoryUsed   uint64
	FuelConsumed uint64
	Killed       bool
}
