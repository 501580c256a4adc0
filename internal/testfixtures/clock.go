package testfixtures

import (
	"sync"
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// Clock is a manually driven time source handed to services as their Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

// Now returns the instant the clock points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now as an injectable function; a nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d, typically past a session TTL.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Today is the booking day the clock currently falls on.
func (c *Clock) Today() scheduler.Date {
	return scheduler.DateOf(c.Now())
}

// AdvanceDays moves the clock n calendar days ahead, keeping the time of day,
// and returns the new booking day.
func (c *Clock) AdvanceDays(n int) scheduler.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
	return scheduler.DateOf(c.now)
}
