package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced time source. Pass Clock.Now wherever a
// func() time.Time is accepted.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock at now, or at 2026-01-01 08:00:00 UTC when no
// time is given.
func NewClock(now ...time.Time) *Clock {
	t := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	if len(now) > 0 {
		t = now[0]
	}
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
