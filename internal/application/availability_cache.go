package application

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/desk-booking/internal/scheduler"
)

// AvailabilityCache stores computed availability per room and range so that
// repeated grid refreshes do not rescan bookings. Every mutation of a room
// drops that room's entries and bumps its generation, so a result computed
// from reads that raced the mutation is never stored.
type AvailabilityCache struct {
	entries *expirable.LRU[string, []CellAvailability]

	mu          sync.Mutex
	generations map[string]uint64
}

// NewAvailabilityCache constructs a cache holding at most size entries for ttl.
func NewAvailabilityCache(size int, ttl time.Duration) *AvailabilityCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{
		entries:     expirable.NewLRU[string, []CellAvailability](size, nil, ttl),
		generations: make(map[string]uint64),
	}
}

// Get returns a copy of the cached availability for key.
func (c *AvailabilityCache) Get(key string) ([]CellAvailability, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return cloneAvailability(cached), true
}

// Generation returns the room's invalidation counter. Capture it before
// reading the bookings a result is computed from.
func (c *AvailabilityCache) Generation(roomID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[roomID]
}

// Store caches a copy of value under key unless roomID was invalidated after
// generation was captured. It reports whether the value was kept.
func (c *AvailabilityCache) Store(key, roomID string, generation uint64, value []CellAvailability) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[roomID] != generation {
		return false
	}
	c.entries.Add(key, cloneAvailability(value))
	return true
}

// InvalidateRoom drops every entry computed for the room.
func (c *AvailabilityCache) InvalidateRoom(roomID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[roomID]++
	prefix := roomID + "|"
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
}

// Len reports the number of live entries.
func (c *AvailabilityCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func availabilityKey(roomID, cellID string, r scheduler.Range) string {
	var b strings.Builder
	b.WriteString(roomID)
	b.WriteString("|")
	b.WriteString(cellID)
	b.WriteString("|")
	b.WriteString(r.Start.String())
	b.WriteString("|")
	b.WriteString(r.End.String())
	return b.String()
}

func cloneAvailability(in []CellAvailability) []CellAvailability {
	if in == nil {
		return nil
	}
	out := make([]CellAvailability, len(in))
	for i, cell := range in {
		out[i] = cell
		out[i].Label = cloneString(cell.Label)
		out[i].Days = make([]DayAvailability, len(cell.Days))
		for j, day := range cell.Days {
			out[i].Days[j] = DayAvailability{
				Date:      day.Date,
				Free:      append([]scheduler.Segment(nil), day.Free...),
				Occupants: append([]Occupant(nil), day.Occupants...),
			}
		}
	}
	return out
}
