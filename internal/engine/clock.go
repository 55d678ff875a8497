package engine

import "sync/atomic"

// Clock is a monotonic logical clock used to stamp submitted units.
//
// The seq makes log lines from the foreground caller and the loop easy to
// correlate. It carries no wall-clock meaning.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
