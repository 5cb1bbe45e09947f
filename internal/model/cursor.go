package model

import "sync/atomic"

// Cursor tracks, per currency, the highest block number already fully
// processed by a poller. It lives in memory only: on restart it is
// reseeded from the configured start block (see internal/config).
type Cursor struct {
	value atomic.Uint64
}

// NewCursor seeds a cursor at start.
func NewCursor(start uint64) *Cursor {
	c := &Cursor{}
	c.value.Store(start)
	return c
}

// Get returns the current cursor value.
func (c *Cursor) Get() uint64 {
	return c.value.Load()
}

// Advance moves the cursor forward to block, but never backward — a
// poller that lost a race with itself (it shouldn't, ticks don't
// overlap) never regresses the cursor.
func (c *Cursor) Advance(block uint64) {
	for {
		cur := c.value.Load()
		if block <= cur {
			return
		}
		if c.value.CompareAndSwap(cur, block) {
			return
		}
	}
}
