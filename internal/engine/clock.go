package engine

import "sync/atomic"

// LogicalClock issues strictly increasing sequence numbers.
// Implemented by Clock and by testutil.DeterministicClock.
type LogicalClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for resolver events.
//
// Every VariationChanged and VariationLoaded event carries a strictly
// increasing sequence number from this clock, so observers can order
// deliveries without wall-clock time and drop stale detail loads.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
