// Package coherent provides the cache controller for targets whose caches
// are kept coherent by hardware, such as a development host. Every
// operation is a no-op; the controller can optionally record the sequence it
// was asked to perform.
package coherent

import (
	"slices"
	"sync"
)

// Operation names as recorded in a trace.
const (
	OpDisableICache    = "disable-icache"
	OpInvalidateICache = "invalidate-icache"
	OpDisableDCache    = "disable-dcache"
	OpCleanDCache      = "clean-dcache"
	OpEnableICache     = "enable-icache"
	OpEnableDCache     = "enable-dcache"
	OpDMB              = "dmb"
	OpDSB              = "dsb"
	OpISB              = "isb"
)

// Controller implements ports.CacheController.
type Controller struct {
	mu    sync.Mutex
	trace []string
	on    bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTrace records every operation.
func WithTrace() Option {
	return func(c *Controller) { c.on = true }
}

// New creates a controller.
func New(opts ...Option) *Controller {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) record(op string) {
	if !c.on {
		return
	}
	c.mu.Lock()
	c.trace = append(c.trace, op)
	c.mu.Unlock()
}

// Mark appends a caller-defined event to the trace, letting callers place
// their own steps relative to the cache operations.
func (c *Controller) Mark(event string) { c.record(event) }

// Trace returns a copy of the recorded operations.
func (c *Controller) Trace() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.trace)
}

func (c *Controller) DisableICache()    { c.record(OpDisableICache) }
func (c *Controller) InvalidateICache() { c.record(OpInvalidateICache) }
func (c *Controller) DisableDCache()    { c.record(OpDisableDCache) }
func (c *Controller) CleanDCache()      { c.record(OpCleanDCache) }
func (c *Controller) EnableICache()     { c.record(OpEnableICache) }
func (c *Controller) EnableDCache()     { c.record(OpEnableDCache) }
func (c *Controller) DMB()              { c.record(OpDMB) }
func (c *Controller) DSB()              { c.record(OpDSB) }
func (c *Controller) ISB()              { c.record(OpISB) }
