// Package native provides a CPU backend that runs Go functions as
// applications.
//
// Entry points are registered at addresses inside the application region.
// Branching to an address with nothing registered behaves like executing
// garbage on hardware: it raises an illegal-instruction fault. The backend
// exists for development hosts and tests, where the ABI contract matters and
// the instruction set does not.
package native

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
)

// EntryFunc is an application entry point. It receives the ABI table and
// returns the exit code.
type EntryFunc func(api *hostfuncs.Table) int32

// CPU implements ports.CPU.
type CPU struct {
	mu      sync.RWMutex
	entries map[uint32]EntryFunc
}

// New creates a CPU with no code loaded.
func New() *CPU {
	return &CPU{entries: make(map[uint32]EntryFunc)}
}

// Register places fn at addr. The mode bit, if present, is ignored.
func (c *CPU) Register(addr uint32, fn EntryFunc) error {
	if fn == nil {
		return fmt.Errorf("native: nil entry at 0x%08x", addr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[addr&^1] = fn
	return nil
}

// Call runs the function registered at entry.
func (c *CPU) Call(_ context.Context, entry guard.EntryPoint, table *hostfuncs.Table) int32 {
	c.mu.RLock()
	fn, ok := c.entries[entry.Addr()]
	c.mu.RUnlock()
	if !ok {
		fault.Raise("illegal instruction at %s (%s)", entry, entry.Mode())
	}
	return fn(table)
}
