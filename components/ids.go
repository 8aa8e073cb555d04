package components

import "sync/atomic"

// IDAllocator hands out monotonically increasing identifiers. One allocator
// is shared by reference for each id space of a run.
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator creates an allocator whose first id is start.
func NewIDAllocator(start uint64) *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(start)
	return a
}

// Next returns a fresh id.
func (a *IDAllocator) Next() uint64 {
	return a.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return.
func (a *IDAllocator) Peek() uint64 {
	return a.next.Load()
}

// Reset sets the next id, used when restoring a checkpoint.
func (a *IDAllocator) Reset(next uint64) {
	a.next.Store(next)
}
