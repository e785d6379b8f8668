package ports

// Allocator is the host heap. It deals in addresses, not Go memory.
// Implementations are not required to be safe for concurrent use; callers
// hold the firmware critical section.
type Allocator interface {
	// Alloc returns an address of a block of size bytes aligned to align.
	// ok is false when the request cannot be satisfied.
	Alloc(size, align uint32) (addr uint32, ok bool)

	// Dealloc releases a block with the layout it was allocated with.
	Dealloc(addr, size, align uint32)
}
