package testfixtures

import (
	"sync"
	"time"

	"github.com/example/campus-rooms/internal/application"
)

// Clock is the hand-driven time source behind fixture services. It only moves
// forward, so bookings seeded ahead of it stay upcoming until a test elapses them.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start.UTC()}
}

// Now returns the clock's current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection into services. A nil clock falls back to
// the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d and returns the new instant. Negative
// durations are ignored.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.current = c.current.Add(d)
	}
	return c.current
}

// Elapse advances the clock to the end of booking, the first instant at which
// it counts as elapsed. A booking that already ended leaves the clock alone.
func (c *Clock) Elapse(booking application.Booking) time.Time {
	return c.Advance(booking.End.Sub(c.Now()))
}
