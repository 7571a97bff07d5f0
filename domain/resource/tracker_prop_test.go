package resource

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/plughost-dev/plughost/domain/entities"
)

// Property: for any sequence of allocations, the tracker either stays within
// budget with an exact running total, or kills at the first violating
// allocation and rejects everything after it.
func TestTrackerMemoryAccountingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.Uint64Range(1, 1<<20).Draw(t, "limit")
		tr := NewTracker(entities.ResourceLimits{MaxMemoryBytes: limit})

		numAllocs := rapid.IntRange(1, 100).Draw(t, "numAllocs")
		var total uint64
		killed := false

		for i := 0; i < numAllocs; i++ {
			alloc := rapid.Uint64Range(0, limit/4+1).Draw(t, "alloc")
			err := tr.TrackMemory(alloc)

			if killed {
				if err == nil {
					t.Fatalf("allocation %d succeeded after kill", i)
				}
				continue
			}

			total += alloc
			if total > limit {
				if err == nil {
					t.Fatalf("allocation %d exceeded limit (%d > %d) without error", i, total, limit)
				}
				killed = true
				continue
			}
			if err != nil {
				t.Fatalf("allocation %d within budget (%d <= %d) failed: %v", i, total, limit, err)
			}
		}

		if killed != tr.Killed() {
			t.Fatalf("killed mismatch: expected %v, tracker says %v", killed, tr.Killed())
		}
		if !killed && tr.Snapshot().MemoryUsed != total {
			t.Fatalf("running total mismatch: expected %d, got %d", total, tr.Snapshot().MemoryUsed)
		}
	})
}

// Property: fuel accounting is exact up to the first violation.
func TestTrackerFuelAccountingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.Uint64Range(1, 1<<16).Draw(t, "limit")
		tr := NewTracker(entities.ResourceLimits{MaxFuel: limit})

		var total uint64
		for !tr.Killed() {
			units := rapid.Uint64Range(1, limit/2+1).Draw(t, "units")
			err := tr.ConsumeFuel(units)
			total += units

			if total > limit {
				if err == nil {
					t.Fatalf("consumption past limit (%d > %d) succeeded", total, limit)
				}
				break
			}
			if err != nil {
				t.Fatalf("consumption within budget (%d <= %d) failed: %v", total, limit, err)
			}
		}
	})
}
