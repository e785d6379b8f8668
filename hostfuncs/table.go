package hostfuncs

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/reglet-dev/h7-kernel/domain/fault"
)

// Slot names, in table order. Backends export the callbacks under these
// names.
const (
	SlotAlloc = "alloc"
	SlotFree  = "free"
	SlotPanic = "panic"
	SlotGetc  = "getc"
	SlotPutc  = "putc"
	SlotPuts  = "puts"
)

// InvalidPanicMessage replaces panic messages that are not valid UTF-8 or
// that could not be read from application memory.
const InvalidPanicMessage = "User app panicked with invalid message"

// Allocations is the heap capability: the allocation tracker.
type Allocations interface {
	Alloc(size, align uint32) uint32
	Free(addr uint32)
}

// InputQueue is the terminal input capability.
type InputQueue interface {
	Pop() (byte, bool)
}

// Table is the immutable set of host callbacks passed to every application.
// Build it once with NewTable and share it by pointer.
type Table struct {
	allocs Allocations
	input  InputQueue
	output io.Writer
}

// TableOption configures a Table under construction.
type TableOption func(*tableBuilder)

type tableBuilder struct {
	allocs Allocations
	input  InputQueue
	output io.Writer
}

// WithAllocations wires the heap callbacks.
func WithAllocations(a Allocations) TableOption {
	return func(b *tableBuilder) { b.allocs = a }
}

// WithInput wires getc.
func WithInput(q InputQueue) TableOption {
	return func(b *tableBuilder) { b.input = q }
}

// WithOutput wires putc and puts. Writes must not block indefinitely.
func WithOutput(w io.Writer) TableOption {
	return func(b *tableBuilder) { b.output = w }
}

// NewTable builds the table. Every capability is required.
func NewTable(opts ...TableOption) (*Table, error) {
	b := &tableBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	var errs []error
	if b.allocs == nil {
		errs = append(errs, errors.New("hostfuncs: no allocations capability"))
	}
	if b.input == nil {
		errs = append(errs, errors.New("hostfuncs: no input capability"))
	}
	if b.output == nil {
		errs = append(errs, errors.New("hostfuncs: no output capability"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Table{allocs: b.allocs, input: b.input, output: b.output}, nil
}

// Names returns the slot names in table order.
func (t *Table) Names() []string {
	return []string{SlotAlloc, SlotFree, SlotPanic, SlotGetc, SlotPutc, SlotPuts}
}

// Alloc returns a tracked heap block, or 0.
func (t *Table) Alloc(size, align uint32) uint32 {
	return t.allocs.Alloc(size, align)
}

// Free releases a block obtained from Alloc. Unknown addresses are ignored.
func (t *Table) Free(addr uint32) {
	t.allocs.Free(addr)
}

// Panic terminates the firmware with the application's message. A nil
// message, or one that is not valid UTF-8, is replaced with
// InvalidPanicMessage. It never returns.
func (t *Table) Panic(msg []byte) {
	if msg == nil || !utf8.Valid(msg) {
		fault.Raise("%s", InvalidPanicMessage)
	}
	fault.Raise("%s", msg)
}

// Getc dequeues one input byte without blocking, or returns 0.
func (t *Table) Getc() byte {
	b, ok := t.input.Pop()
	if !ok {
		return 0
	}
	return b
}

// Putc writes one byte. It returns 0 on success and -1 on transport failure.
func (t *Table) Putc(c byte) int32 {
	if _, err := t.output.Write([]byte{c}); err != nil {
		return -1
	}
	return 0
}

// Puts writes s, which must be valid UTF-8. It returns 0 on success and -1
// on invalid input or transport failure.
func (t *Table) Puts(s []byte) int32 {
	if !utf8.Valid(s) {
		return -1
	}
	if _, err := t.output.Write(s); err != nil {
		return -1
	}
	return 0
}
