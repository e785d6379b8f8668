package ports

import (
	"context"

	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
)

// CPU transfers control to application code.
type CPU interface {
	// Call branches to entry with the ABI table as the only argument and
	// returns the application's exit code. It does not return until the
	// application does. Exceptions escaping the application are raised as
	// faults, never returned.
	Call(ctx context.Context, entry guard.EntryPoint, table *hostfuncs.Table) int32
}

// CacheController exposes the cache maintenance and barrier primitives the
// execution engine sequences around a call. On targets with hardware-managed
// coherency every method may be a no-op.
type CacheController interface {
	DisableICache()
	InvalidateICache()
	DisableDCache()
	CleanDCache()
	EnableICache()
	EnableDCache()

	// DMB is a data memory barrier.
	DMB()
	// DSB is a data synchronization barrier.
	DSB()
	// ISB is an instruction synchronization barrier.
	ISB()
}
