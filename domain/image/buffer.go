package image

import (
	"fmt"
)

// Buffer is the reserved RAM region an application image is loaded into.
//
// It has a fixed capacity and a fixed base address. The loaded length is
// tracked separately from the capacity; the entry word is always read from
// the start of the region, loaded or not. A loaded image persists until the
// next Reset.
type Buffer struct {
	base uint32
	data []byte
	n    int
}

// NewBuffer creates a zero-filled region of size bytes at base.
func NewBuffer(base, size uint32) *Buffer {
	return &Buffer{base: base, data: make([]byte, size)}
}

// Base returns the address of the first byte of the region.
func (b *Buffer) Base() uint32 { return b.base }

// Cap returns the region size.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of bytes loaded since the last Reset.
func (b *Buffer) Len() int { return b.n }

// Bytes returns the loaded image.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Region returns the whole region, loaded or not. Loaders that fill the
// region directly use it together with SetLen.
func (b *Buffer) Region() []byte { return b.data }

// Reset zero-fills the region and forgets the loaded length.
func (b *Buffer) Reset() {
	clear(b.data)
	b.n = 0
}

// SetLen records that the first n bytes of the region hold an image.
func (b *Buffer) SetLen(n int) error {
	if n < 0 || n > len(b.data) {
		return fmt.Errorf("%w: %d bytes exceeds region of %d", ErrImageTooLarge, n, len(b.data))
	}
	b.n = n
	return nil
}

// WriteByte appends one byte after the loaded image.
func (b *Buffer) WriteByte(c byte) error {
	if b.n >= len(b.data) {
		return fmt.Errorf("%w: region holds %d bytes", ErrImageTooLarge, len(b.data))
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// Write appends p after the loaded image. Nothing is written if p does not
// fit.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > len(b.data)-b.n {
		return 0, fmt.Errorf("%w: region holds %d bytes", ErrImageTooLarge, len(b.data))
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	return len(p), nil
}

// Load replaces the contents of the region with img.
func (b *Buffer) Load(img []byte) error {
	if len(img) > len(b.data) {
		return fmt.Errorf("%w: %d bytes exceeds region of %d", ErrImageTooLarge, len(img), len(b.data))
	}
	b.Reset()
	copy(b.data, img)
	b.n = len(img)
	return nil
}

// Slice returns the bytes in [addr, addr+n) if they lie inside the loaded
// image.
func (b *Buffer) Slice(addr uint32, n int) ([]byte, bool) {
	if addr < b.base || n < 0 {
		return nil, false
	}
	off := uint64(addr - b.base)
	if off+uint64(n) > uint64(b.n) {
		return nil, false
	}
	return b.data[off : off+uint64(n)], true
}
