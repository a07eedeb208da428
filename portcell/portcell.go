// Package portcell holds the single piece of mutable state shared between
// the portmapper and VXI-11 goroutines: the TCP port the VXI-11 Core
// service is currently listening on. The scope requires a fresh port for
// every session, so the VXI-11 goroutine advances the cell on every
// session teardown; the portmapper goroutines only ever read it.
package portcell

import "sync/atomic"

// Cell is an atomically accessed port number, valid in [start, end].
type Cell struct {
	v     atomic.Uint32
	start uint32
	end   uint32
}

// New returns a Cell initialized to start. Panics if end < start, since
// that would make the rotation range empty.
func New(start, end uint16) *Cell {
	if end < start {
		panic("portcell: end < start")
	}
	c := &Cell{start: uint32(start), end: uint32(end)}
	c.v.Store(c.start)
	return c
}

// Load returns the currently advertised port.
func (c *Cell) Load() uint16 {
	return uint16(c.v.Load())
}

// Advance moves the cell to the next port in the rotation, wrapping back
// to start once end is passed, and returns the new value. Called exactly
// once per VXI-11 session teardown, regardless of how the session ended.
func (c *Cell) Advance() uint16 {
	for {
		old := c.v.Load()
		next := old + 1
		if next > c.end {
			next = c.start
		}
		if c.v.CompareAndSwap(old, next) {
			return uint16(next)
		}
	}
}
