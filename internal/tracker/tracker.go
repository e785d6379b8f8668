// Package tracker keeps the books on memory an application obtains through
// the ABI table, so that whatever it fails to release can be reclaimed when
// it returns.
//
// It is a per-run arena index, not an allocator: the host heap does the
// allocating, the tracker only remembers address -> layout for live blocks.
// Only one application is ever resident, so a single bounded map suffices.
package tracker

import (
	"fmt"
	"log/slog"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/internal/critical"
)

// DefaultCapacity is the number of simultaneously live allocations tracked.
const DefaultCapacity = 128

// Allocation errors. Alloc turns all of them into a null return.
var (
	ErrAlignment = errors.New(errors.ErrAllocation, "alignment is not a power of two")
	ErrEmpty     = errors.New(errors.ErrAllocation, "zero-sized allocation")
	ErrExhausted = errors.New(errors.ErrAllocation, "host heap exhausted")
	ErrFull      = errors.New(errors.ErrAllocation, "allocation table full")
)

// Layout is the shape of a tracked block.
type Layout struct {
	Size  uint32
	Align uint32
}

// Tracker records live application allocations.
type Tracker struct {
	cs       *critical.Section
	heap     ports.Allocator
	capacity int
	live     map[uint32]Layout
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCapacity bounds the number of live allocations.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// New creates a tracker over heap. cs must be the section every other user
// of heap holds.
func New(cs *critical.Section, heap ports.Allocator, opts ...Option) *Tracker {
	t := &Tracker{
		cs:       cs,
		heap:     heap,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.live = make(map[uint32]Layout, t.capacity)
	return t
}

// Alloc is the ABI entry: it returns the block address, or 0 on any error.
func (t *Tracker) Alloc(size, align uint32) uint32 {
	addr, err := t.TryAlloc(size, align)
	if err != nil {
		slog.Debug("tracker: allocation refused", "size", size, "align", align, "error", err)
		return 0
	}
	return addr
}

// TryAlloc allocates size bytes aligned to align from the host heap and
// records the block. When the table is full the block is released again
// before returning ErrFull, so a failed insert never leaks heap memory.
//
// A heap that hands out an address that is already live breaks the
// allocator's own invariant; that raises a fault.
func (t *Tracker) TryAlloc(size, align uint32) (addr uint32, err error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, ErrAlignment
	}
	if size == 0 {
		return 0, ErrEmpty
	}

	t.cs.Do(func() {
		p, ok := t.heap.Alloc(size, align)
		if !ok {
			err = ErrExhausted
			return
		}
		if _, dup := t.live[p]; dup {
			fault.Raise("allocation collision at 0x%08x", p)
		}
		if len(t.live) >= t.capacity {
			t.heap.Dealloc(p, size, align)
			err = ErrFull
			return
		}
		t.live[p] = Layout{Size: size, Align: align}
		addr = p
	})
	return addr, err
}

// Free releases a tracked block. Unknown addresses (double frees, foreign
// pointers) are ignored and logged; a null pointer is ignored silently.
func (t *Tracker) Free(addr uint32) {
	var known bool
	t.cs.Do(func() {
		l, ok := t.live[addr]
		if !ok {
			return
		}
		delete(t.live, addr)
		t.heap.Dealloc(addr, l.Size, l.Align)
		known = true
	})
	if !known && addr != 0 {
		slog.Warn("tracker: free of untracked pointer", "ptr", fmt.Sprintf("0x%08x", addr))
	}
}

// Sweep releases every block still live and returns the number of bytes
// reclaimed. The table is empty afterwards.
func (t *Tracker) Sweep() uint32 {
	var reclaimed uint32
	t.cs.Do(func() {
		for addr, l := range t.live {
			t.heap.Dealloc(addr, l.Size, l.Align)
			reclaimed += l.Size
		}
		clear(t.live)
	})
	return reclaimed
}

// Len returns the number of live allocations.
func (t *Tracker) Len() (n int) {
	t.cs.Do(func() { n = len(t.live) })
	return n
}

// Lookup returns the layout of a live block.
func (t *Tracker) Lookup(addr uint32) (l Layout, ok bool) {
	t.cs.Do(func() { l, ok = t.live[addr] })
	return l, ok
}
