package buffer

import (
	"fmt"
	"sync/atomic"
)

// State is the fill state of a buffer.
type State int

// Buffer states.
const (
	Empty State = iota
	Partial
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Partial:
		return "partial"
	case Full:
		return "full"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Ring is a fixed-capacity single-producer single-consumer byte ring.
//
// The producer only advances the write index and the consumer only the
// read index. Indices run over [0, 2*capacity) so a full ring is told
// apart from an empty one without a shared counter.
type Ring struct {
	buf  []byte
	wrap uint32

	rd       atomic.Uint32 // consumer
	wr       atomic.Uint32 // producer
	overflow atomic.Bool
}

// NewRing creates a Ring holding up to capacity bytes.
func NewRing(capacity int) *Ring {
	if capacity < 1 || capacity > 1<<30 {
		panic(fmt.Sprintf("buffer: invalid capacity %d", capacity))
	}
	return &Ring{buf: make([]byte, capacity), wrap: uint32(capacity) * 2}
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of readable bytes.
func (r *Ring) Len() int {
	return int(r.used(r.rd.Load(), r.wr.Load()))
}

// Free returns the number of writable slots.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Empty reports whether nothing is readable.
func (r *Ring) Empty() bool {
	return r.rd.Load() == r.wr.Load()
}

// Full reports whether no slot is writable.
func (r *Ring) Full() bool {
	return r.Len() == r.Cap()
}

// State derives the fill state.
func (r *Ring) State() State {
	switch n := r.Len(); {
	case n == 0:
		return Empty
	case n == r.Cap():
		return Full
	default:
		return Partial
	}
}

// Overflowed reports whether a write was rejected since the last Reset
// or ClearOverflow.
func (r *Ring) Overflowed() bool {
	return r.overflow.Load()
}

// ClearOverflow clears the overflow flag.
func (r *Ring) ClearOverflow() {
	r.overflow.Store(false)
}

// Write appends b. When the ring is full, b is dropped, the overflow
// flag is set and false is returned. Producer side.
func (r *Ring) Write(b byte) bool {
	rd, wr := r.rd.Load(), r.wr.Load()
	if r.used(rd, wr) == uint32(len(r.buf)) {
		r.overflow.Store(true)
		return false
	}
	r.buf[r.slot(wr)] = b
	r.wr.Store(r.advance(wr, 1))
	return true
}

// Read removes the oldest byte. Consumer side.
func (r *Ring) Read() (byte, bool) {
	rd, wr := r.rd.Load(), r.wr.Load()
	if rd == wr {
		return 0, false
	}
	b := r.buf[r.slot(rd)]
	r.rd.Store(r.advance(rd, 1))
	return b, true
}

// Peek returns the oldest byte without removing it. Consumer side.
func (r *Ring) Peek() (byte, bool) {
	rd, wr := r.rd.Load(), r.wr.Load()
	if rd == wr {
		return 0, false
	}
	return r.buf[r.slot(rd)], true
}

// Reset discards all content and clears the overflow flag. Storage is
// not zeroed. Both ends must be quiescent.
func (r *Ring) Reset() {
	r.rd.Store(0)
	r.wr.Store(0)
	r.overflow.Store(false)
}

// Unread moves the read index back by up to n bytes, making previously
// consumed bytes readable again. It returns how far the index moved.
// The producer must be quiescent.
func (r *Ring) Unread(n int) int {
	if free := r.Free(); n > free {
		n = free
	}
	if n <= 0 {
		return 0
	}
	r.rd.Store(r.retreat(r.rd.Load(), uint32(n)))
	return n
}

// Behind returns the byte stored k positions before the read index,
// 1 <= k <= Cap(). Consumer side.
func (r *Ring) Behind(k int) byte {
	return r.buf[r.slot(r.retreat(r.rd.Load(), uint32(k)))]
}

// Scrub zeroes the slot k positions before the read index.
// The producer must be quiescent.
func (r *Ring) Scrub(k int) {
	r.buf[r.slot(r.retreat(r.rd.Load(), uint32(k)))] = 0
}

func (r *Ring) used(rd, wr uint32) uint32 {
	if wr >= rd {
		return wr - rd
	}
	return wr + r.wrap - rd
}

func (r *Ring) slot(i uint32) uint32 {
	if n := uint32(len(r.buf)); i >= n {
		return i - n
	}
	return i
}

func (r *Ring) advance(i, n uint32) uint32 {
	if i += n; i >= r.wrap {
		i -= r.wrap
	}
	return i
}

func (r *Ring) retreat(i, n uint32) uint32 {
	n %= r.wrap
	if i >= n {
		return i - n
	}
	return i + r.wrap - n
}
