package engine

import "sync/atomic"

// SeqSource stamps sweep records with a strictly increasing sequence number.
// Implemented by Clock and testutil.DeterministicClock.
type SeqSource interface {
	Next() int64
	Current() int64
}

// Clock is the logical clock for journal ordering.
//
// Sweep records are ordered by seq, never by wall time, so a journal read
// back from SQLite replays in exactly the order owners were flushed.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, typically the highest seq
// already present in the journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
