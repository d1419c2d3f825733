package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source shared between a service and its test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock is set to.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for constructors that take a func() time.Time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvancePast moves the clock just beyond t, as an evaluation would observe
// it right after a cutoff. It never moves the clock backwards.
func (c *Clock) AdvancePast(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next := t.Add(time.Second); next.After(c.current) {
		c.current = next
	}
	return c.current
}
