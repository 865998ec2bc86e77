// Package clock provides the wall-clock capability the DSR engine uses to
// stamp discovery and transaction messages (spec §3, §9: "inject both a
// monotonic clock and a wall clock as capability objects, so tests can
// advance time deterministically").
package clock

import (
	"sync"
	"time"
)

// Clock produces the integer-second "message stamp" used to identify
// RREQ/RREP/DATA messages and transactions. Stamp returns strictly
// increasing values even when called more than once within the same
// wall-clock second.
type Clock struct {
	mu         sync.Mutex
	lastUnique uint32
	nowFn      func() uint32 // overridable for testing
}

// New creates a Clock driven by the system clock.
func New() *Clock {
	return &Clock{
		nowFn: func() uint32 {
			return uint32(time.Now().Unix())
		},
	}
}

// Now returns the current stamp value without the uniqueness guarantee.
// The maintenance tick (spec §4.7) uses this to refresh the node's
// timestamp once per second.
func (c *Clock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// SetFixed overrides the clock source with a base value that advances with
// real elapsed time from the moment SetFixed is called. Tests that need to
// jump time arbitrarily should use NewFake instead.
func (c *Clock) SetFixed(t uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := time.Now()
	c.nowFn = func() uint32 {
		return t + uint32(time.Since(base).Seconds())
	}
}

// Stamp returns a strictly increasing timestamp. If the underlying clock
// hasn't advanced past the last value handed out, the internal counter is
// bumped by one so that two discovery or transaction stamps minted in the
// same wall-clock second are never mistaken for a retransmission of each
// other by a seen-cache keyed on stamp.
func (c *Clock) Stamp() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn()
	if t <= c.lastUnique {
		c.lastUnique++
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}

// NewFake creates a Clock whose time only advances when Advance is called,
// for deterministic tests of retry and timeout behavior.
func NewFake(t0 uint32) *Clock {
	c := &Clock{}
	c.nowFn = func() uint32 { return t0 }
	return c
}

// Advance moves a fake clock forward by d, rounded down to whole seconds.
// On a Clock created with New it replaces the system clock source with a
// fixed value d ahead of the current time, which then no longer advances.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.nowFn()
	next := cur + uint32(d.Seconds())
	c.nowFn = func() uint32 { return next }
}
