// Package heap implements the host allocator used for application memory.
//
// FreeList manages an address range, not a Go byte slice: it hands out
// addresses inside [start, start+size) and keeps a sorted list of free
// spans, coalescing neighbours on release. It does no locking; callers hold
// the firmware critical section.
package heap

import (
	"fmt"
	"sort"
)

type span struct {
	addr uint64
	size uint64
}

func (s span) end() uint64 { return s.addr + s.size }

// FreeList is a first-fit allocator over a fixed address window.
type FreeList struct {
	start uint64
	end   uint64
	free  []span
}

// New creates an allocator owning [start, start+size).
func New(start, size uint32) *FreeList {
	h := &FreeList{start: uint64(start), end: uint64(start) + uint64(size)}
	if size > 0 {
		h.free = []span{{addr: uint64(start), size: uint64(size)}}
	}
	return h
}

// Alloc reserves size bytes aligned to align. align must be a power of two.
// ok is false when no span is large enough or the request is empty.
func (h *FreeList) Alloc(size, align uint32) (addr uint32, ok bool) {
	if size == 0 || align == 0 || align&(align-1) != 0 {
		return 0, false
	}
	a := uint64(align)
	n := uint64(size)

	for i, s := range h.free {
		aligned := (s.addr + a - 1) &^ (a - 1)
		if aligned+n > s.end() {
			continue
		}

		var repl []span
		if aligned > s.addr {
			repl = append(repl, span{addr: s.addr, size: aligned - s.addr})
		}
		if tail := s.end() - (aligned + n); tail > 0 {
			repl = append(repl, span{addr: aligned + n, size: tail})
		}
		h.free = append(h.free[:i], append(repl, h.free[i+1:]...)...)
		return uint32(aligned), true //nolint:gosec // G115: bounded by the 32-bit window
	}
	return 0, false
}

// Dealloc returns a block previously obtained from Alloc. Releasing memory
// outside the window or overlapping a free span is a programming error and
// panics.
func (h *FreeList) Dealloc(addr, size, _ uint32) {
	if size == 0 {
		return
	}
	blk := span{addr: uint64(addr), size: uint64(size)}
	if blk.addr < h.start || blk.end() > h.end {
		panic(fmt.Sprintf("heap: release of 0x%08x+%d outside window", addr, size))
	}

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].addr >= blk.addr })
	if i > 0 && h.free[i-1].end() > blk.addr || i < len(h.free) && blk.end() > h.free[i].addr {
		panic(fmt.Sprintf("heap: release of 0x%08x+%d overlaps free memory", addr, size))
	}

	h.free = append(h.free, span{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = blk

	// merge with the following span, then the preceding one
	if i+1 < len(h.free) && h.free[i].end() == h.free[i+1].addr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].end() == h.free[i].addr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

// Available reports the number of free bytes.
func (h *FreeList) Available() uint32 {
	var n uint64
	for _, s := range h.free {
		n += s.size
	}
	return uint32(n) //nolint:gosec // G115: bounded by the 32-bit window
}

// Largest reports the size of the largest free span.
func (h *FreeList) Largest() uint32 {
	var n uint64
	for _, s := range h.free {
		n = max(n, s.size)
	}
	return uint32(n) //nolint:gosec // G115: bounded by the 32-bit window
}
