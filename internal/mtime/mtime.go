// Package mtime hands out modification stamps shared by every object that
// participates in rebuild decisions (grids, transfer functions, properties).
//
// Stamps come from one process-wide counter, so a stamp taken from a grid can
// be compared against a stamp taken when a table was built.
package mtime

import "sync/atomic"

// Stamp is a monotonically increasing modification time. Zero means "never".
type Stamp uint64

var counter atomic.Uint64

// Next returns a stamp newer than every stamp returned before it.
func Next() Stamp {
	return Stamp(counter.Add(1))
}

// Newer reports whether s was taken after o.
func (s Stamp) Newer(o Stamp) bool {
	return s > o
}

// Tracker embeds a stamp into an object.
type Tracker struct {
	stamp Stamp
}

// Modified bumps the stamp.
func (t *Tracker) Modified() {
	t.stamp = Next()
}

// MTime returns the last modification stamp.
func (t *Tracker) MTime() Stamp {
	return t.stamp
}
