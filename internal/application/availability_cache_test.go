package application

import (
	"testing"
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

func TestAvailabilityCache(t *testing.T) {
	t.Parallel()

	cache := NewAvailabilityCache(8, time.Minute)
	r := scheduler.SingleDay(scheduler.MustParseDate("2024-06-10"))
	label := "window"
	value := []CellAvailability{{
		CellID: "C1",
		RoomID: "R1",
		Label:  &label,
		Days:   []DayAvailability{{Date: r.Start, Free: []scheduler.Segment{scheduler.SegmentAM}}},
	}}

	cache.Store(availabilityKey("R1", "", r), "R1", cache.Generation("R1"), value)
	cache.Store(availabilityKey("R1", "C1", r), "R1", cache.Generation("R1"), value)
	cache.Store(availabilityKey("R10", "", r), "R10", cache.Generation("R10"), value)

	value[0].Days[0].Free[0] = scheduler.SegmentPM
	got, ok := cache.Get(availabilityKey("R1", "", r))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got[0].Days[0].Free[0] != scheduler.SegmentAM {
		t.Fatalf("expected stored copy to be isolated from caller mutation")
	}
	got[0].Days[0].Free[0] = scheduler.SegmentFull
	again, _ := cache.Get(availabilityKey("R1", "", r))
	if again[0].Days[0].Free[0] != scheduler.SegmentAM {
		t.Fatalf("expected returned copy to be isolated from the cache")
	}

	cache.InvalidateRoom("R1")
	if _, ok := cache.Get(availabilityKey("R1", "C1", r)); ok {
		t.Fatalf("expected room entries to be dropped")
	}
	if _, ok := cache.Get(availabilityKey("R10", "", r)); !ok {
		t.Fatalf("expected other rooms sharing a prefix to survive")
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one remaining entry, got %d", cache.Len())
	}
}

func TestAvailabilityCache_SkipsResultsReadBeforeInvalidation(t *testing.T) {
	t.Parallel()

	cache := NewAvailabilityCache(8, time.Minute)
	r := scheduler.SingleDay(scheduler.MustParseDate("2024-06-10"))
	key := availabilityKey("R1", "", r)
	stale := []CellAvailability{{CellID: "C1", RoomID: "R1"}}

	generation := cache.Generation("R1")
	cache.InvalidateRoom("R1")
	if cache.Store(key, "R1", generation, stale) {
		t.Fatal("expected a result read before the invalidation to be dropped")
	}
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected no cached entry")
	}

	other := cache.Generation("R2")
	cache.InvalidateRoom("R1")
	if !cache.Store(availabilityKey("R2", "", r), "R2", other, stale) {
		t.Fatal("expected invalidating one room to leave the others cacheable")
	}
	if !cache.Store(key, "R1", cache.Generation("R1"), stale) {
		t.Fatal("expected a fresh generation to be stored")
	}
}

func TestAvailabilityCacheNil(t *testing.T) {
	t.Parallel()

	var cache *AvailabilityCache
	if cache.Store("k", "R1", cache.Generation("R1"), nil) {
		t.Fatal("expected nil cache to refuse stores")
	}
	cache.InvalidateRoom("R1")
	if _, ok := cache.Get("k"); ok {
		t.Fatalf("expected nil cache to miss")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected nil cache to be empty")
	}
}
