package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
)

const (
	pageSize = 1 << 16

	// EntryExport is the function every application exports.
	EntryExport = "entry_point"
	// MemoryExport is the memory every application exports.
	MemoryExport = "memory"
)

// Config holds configuration for the CPU.
type Config struct {
	// ModuleName is the host module name (default: "h7").
	ModuleName string

	// AppName is the name the application module is instantiated under
	// (default: "app").
	AppName string

	// HeapStart and HeapSize describe the host heap window the allocator
	// hands out addresses from.
	HeapStart uint32
	HeapSize  uint32
}

// Option configures the CPU.
type Option func(*Config)

// WithModuleName sets the host module name.
func WithModuleName(name string) Option {
	return func(c *Config) {
		c.ModuleName = name
	}
}

// WithHeapWindow sets the host heap window mapped into guest memory.
func WithHeapWindow(start, size uint32) Option {
	return func(c *Config) {
		c.HeapStart = start
		c.HeapSize = size
	}
}

func defaultConfig() Config {
	return Config{
		ModuleName: "h7",
		AppName:    "app",
	}
}

// CPU implements ports.CPU on a wazero runtime.
type CPU struct {
	cfg     Config
	buf     *image.Buffer
	runtime wazero.Runtime
}

// New creates a runtime and registers the host module. buf is the image
// buffer code is fetched from.
func New(ctx context.Context, buf *image.Buffer, opts ...Option) (*CPU, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := wazero.NewRuntime(ctx)
	if err := registerHostModule(ctx, rt, cfg.ModuleName); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("wazero: register host module: %w", err)
	}
	return &CPU{cfg: cfg, buf: buf, runtime: rt}, nil
}

// Close releases the runtime.
func (c *CPU) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}

// Call compiles the module at entry and runs its entry_point export.
// Anything that would be a CPU exception on hardware (undecodable code, a
// trap, a missing export) is raised as a fault.
func (c *CPU) Call(ctx context.Context, entry guard.EntryPoint, table *hostfuncs.Table) int32 {
	code, ok := c.code(entry)
	if !ok {
		fault.Raise("illegal instruction at %s: no code before trailer", entry)
	}

	compiled, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		fault.Raise("illegal instruction at %s: %v", entry, err)
	}
	defer compiled.Close(ctx)

	s := &session{table: table, heapStart: c.cfg.HeapStart, heapSize: c.cfg.HeapSize}
	ctx = withSession(ctx, s)

	mod, err := c.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(c.cfg.AppName).WithStartFunctions())
	if err != nil {
		fault.Raise("illegal instruction at %s: %v", entry, err)
	}
	defer mod.Close(ctx)

	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		fault.Raise("application at %s exports no %q", entry, MemoryExport)
	}
	prev, ok := mem.Grow(pages(c.cfg.HeapSize))
	if !ok {
		fault.Raise("application at %s: cannot map %d byte heap", entry, c.cfg.HeapSize)
	}
	s.guestBase = prev * pageSize

	fn := mod.ExportedFunction(EntryExport)
	if fn == nil {
		fault.Raise("application at %s exports no %q", entry, EntryExport)
	}

	slog.DebugContext(ctx, "wazero: calling application", "entry", entry.String(), "code_bytes", len(code))
	results, err := fn.Call(ctx)
	if s.fault != nil {
		panic(s.fault)
	}
	if err != nil {
		fault.Raise("application trapped: %v", err)
	}
	if len(results) != 1 {
		fault.Raise("application at %s returned %d values", entry, len(results))
	}
	return api.DecodeI32(results[0])
}

// code returns the bytes from entry up to the CRC trailer.
func (c *CPU) code(entry guard.EntryPoint) ([]byte, bool) {
	if c.buf.Len() < image.MinSize {
		return nil, false
	}
	end := uint64(c.buf.Base()) + uint64(c.buf.Len()) - image.TrailerSize
	start := uint64(entry.Addr())
	if start >= end {
		return nil, false
	}
	return c.buf.Slice(entry.Addr(), int(end-start))
}

func pages(size uint32) uint32 {
	return uint32((uint64(size) + pageSize - 1) / pageSize)
}
