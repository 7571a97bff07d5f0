// Package resource meters a plugin's memory, fuel and wall-clock budgets.
// The tracker is lock-free and safe for concurrent use; once a budget is
// violated the plugin is killed and stays killed.
package resource

import (
	"sync/atomic"
	"time"

	"github.com/plughost-dev/plughost/domain/entities"
	dErrors "github.com/plughost-dev/plughost/domain/errors"
)

// Tracker meters one plugin instance against its resource limits.
type Tracker struct {
	limits entities.ResourceLimits
	start  atomic.Int64 // unix nanos; reset per execution

	memory atomic.Uint64
	fuel   atomic.Uint64
	killed atomic.Bool
}

// NewTracker creates a tracker for the given limits. The wall clock starts
// now.
func NewTracker(limits entities.ResourceLimits) *Tracker {
	t := &Tracker{limits: limits}
	t.start.Store(time.Now().UnixNano())
	return t
}

// ResetClock restarts the wall clock. The host calls this at the start of
// each execution so the duration budget is per call, not per instance.
// Memory, fuel and the kill switch are unaffected.
func (t *Tracker) ResetClock() {
	t.start.Store(time.Now().UnixNano())
}

// TrackMemory records a memory allocation. It returns a ResourceLimitError
// and trips the kill switch when the running total exceeds the budget, or
// when the tracker was already killed.
func (t *Tracker) TrackMemory(bytes uint64) error {
	if t.killed.Load() {
		return &dErrors.ResourceLimitError{
			Kind:   dErrors.ResourceMemory,
			Used:   t.memory.Load(),
			Limit:  t.limits.MaxMemoryBytes,
			Killed: true,
		}
	}
	used := t.memory.Add(bytes)
	if t.limits.MaxMemoryBytes > 0 && used > t.limits.MaxMemoryBytes {
		t.killed.Store(true)
		return &dErrors.ResourceLimitError{
			Kind:  dErrors.ResourceMemory,
			Used:  used,
			Limit: t.limits.MaxMemoryBytes,
		}
	}
	return nil
}

// ReleaseMemory records a deallocation. Releasing more than was tracked
// clamps to zero rather than wrapping.
func (t *Tracker) ReleaseMemory(bytes uint64) {
	for {
		cur := t.memory.Load()
		next := uint64(0)
		if cur > bytes {
			next = cur - bytes
		}
		if t.memory.CompareAndSwap(cur, next) {
			return
		}
	}
}

// ConsumeFuel records computation units spent. It returns a
// ResourceLimitError and trips the kill switch when the running total
// exceeds the budget, or when the tracker was already killed.
func (t *Tracker) ConsumeFuel(units uint64) error {
	if t.killed.Load() {
		return &dErrors.ResourceLimitError{
			Kind:   dErrors.ResourceFuel,
			Used:   t.fuel.Load(),
			Limit:  t.limits.MaxFuel,
			Killed: true,
		}
	}
	used := t.fuel.Add(units)
	if t.limits.MaxFuel > 0 && used > t.limits.MaxFuel {
		t.killed.Store(true)
		return &dErrors.ResourceLimitError{
			Kind:  dErrors.ResourceFuel,
			Used:  used,
			Limit: t.limits.MaxFuel,
		}
	}
	return nil
}

// CheckTimeout returns a TimeoutError when the tracker's wall clock has
// exceeded the duration budget. A timeout does not trip the kill switch:
// the caller decides whether a slow call ends the instance.
func (t *Tracker) CheckTimeout() error {
	if t.limits.MaxDuration <= 0 {
		return nil
	}
	elapsed := t.Elapsed()
	if elapsed > t.limits.MaxDuration {
		return &dErrors.TimeoutError{Elapsed: elapsed, Limit: t.limits.MaxDuration}
	}
	return nil
}

// Kill trips the kill switch directly. Used when the host aborts an
// instance for reasons outside budget accounting.
func (t *Tracker) Kill() {
	t.killed.Store(true)
}

// Killed reports whether the kill switch has tripped.
func (t *Tracker) Killed() bool {
	return t.killed.Load()
}

// Elapsed returns the wall-clock time since the tracker started or the
// clock was last reset.
func (t *Tracker) Elapsed() time.Duration {
	return time.Duration(time.Now().UnixNano() - t.start.Load())
}

// Limits returns the budgets this tracker enforces.
func (t *Tracker) Limits() entities.ResourceLimits {
	return t.limits
}

// Snapshot returns the current consumption.
func (t *Tracker) Snapshot() entities.ResourceSnapshot {
	return entities.ResourceSnapshot{
		MemoryUsed:   t.memory.Load(),
		FuelConsumed: t.fuel.Load(),
		Killed:       t.killed.Load(),
	}
}

// Utilization returns memory and fuel consumption as fractions of their
// budgets. Unlimited budgets report zero.
func (t *Tracker) Utilization() (memory, fuel float64) {
	if t.limits.MaxMemoryBytes > 0 {
		memory = float64(t.memory.Load()) / float64(t.limits.MaxMemoryBytes)
	}
	if t.limits.MaxFuel > 0 {
		fuel = float64(t.fuel.Load()) / float64(t.limits.MaxFuel)
	}
	return memory, fuel
}
