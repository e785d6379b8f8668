package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainerrors "github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
	"github.com/reglet-dev/h7-kernel/infrastructure/coherent"
)

// CRCPolicy decides whether a trailer mismatch blocks execution.
type CRCPolicy int

const (
	// CRCReport computes and reports the CRC but runs regardless.
	CRCReport CRCPolicy = iota
	// CRCEnforce refuses to run an image whose trailer does not match.
	CRCEnforce
)

func (p CRCPolicy) String() string {
	if p == CRCEnforce {
		return "enforce"
	}
	return "report"
}

// ParseCRCPolicy accepts "report" and "enforce".
func ParseCRCPolicy(s string) (CRCPolicy, error) {
	switch s {
	case "report", "":
		return CRCReport, nil
	case "enforce":
		return CRCEnforce, nil
	}
	return 0, fmt.Errorf("unknown crc policy %q", s)
}

// Sweeper reclaims allocations left behind by a run.
type Sweeper interface {
	Sweep() uint32
}

// Clearer empties a queue.
type Clearer interface {
	Clear()
}

// Result is the outcome of a run that returned.
type Result struct {
	Entry     guard.EntryPoint
	ExitCode  int32
	Reclaimed uint32
}

// OK reports whether the application exited with status zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Engine runs the image held in a buffer.
type Engine struct {
	buf     *image.Buffer
	region  guard.Region
	cpu     ports.CPU
	cache   ports.CacheController
	table   *hostfuncs.Table
	sweeper Sweeper
	input   Clearer
	policy  CRCPolicy
}

// NewEngine creates an engine for buf. table is shared by every run.
func NewEngine(buf *image.Buffer, cpu ports.CPU, table *hostfuncs.Table, sweeper Sweeper, opts ...EngineOption) (*Engine, error) {
	var errs []error
	if buf == nil {
		errs = append(errs, errors.New("host: no image buffer"))
	}
	if cpu == nil {
		errs = append(errs, errors.New("host: no cpu"))
	}
	if table == nil {
		errs = append(errs, errors.New("host: no host function table"))
	}
	if sweeper == nil {
		errs = append(errs, errors.New("host: no sweeper"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	e := &Engine{
		buf:     buf,
		region:  guard.Region{Start: buf.Base(), Size: uint32(buf.Cap())},
		cpu:     cpu,
		cache:   coherent.New(),
		table:   table,
		sweeper: sweeper,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the configured CRC policy.
func (e *Engine) Policy() CRCPolicy { return e.policy }

// Validate decodes and checks the entry point of the current image. It
// consults the buffer every time; nothing is cached from load.
func (e *Engine) Validate() (guard.EntryPoint, error) {
	img := e.buf.Bytes()
	if len(img) < image.MinSize {
		return guard.EntryPoint{}, image.ErrImageTooShort
	}
	raw, err := image.DecodeEntry(img)
	if err != nil {
		return guard.EntryPoint{}, err
	}
	ep, err := guard.Check(e.region, raw)
	if err != nil {
		return guard.EntryPoint{}, fmt.Errorf("entry %s: %w", raw, err)
	}
	if e.policy == CRCEnforce {
		if _, err := image.VerifyCRC(img); err != nil {
			return guard.EntryPoint{}, err
		}
	}
	return ep, nil
}

// Run executes the current image and returns once the application does.
// Validation failures are returned as errors and leave the system usable.
// Application faults are not returned: they propagate as *fault.Fault
// panics to the top-level handler.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	ep, err := e.Validate()
	if err != nil {
		slog.DebugContext(ctx, "engine: refusing to run", "error", err, "kind", domainerrors.KindOf(err))
		return Result{}, err
	}

	e.quiesce()
	e.barrier()
	code := e.cpu.Call(ctx, ep, e.table)
	e.restore()

	reclaimed := e.sweeper.Sweep()
	if e.input != nil {
		e.input.Clear()
	}
	slog.DebugContext(ctx, "engine: application returned", "entry", ep.String(), "exit", code, "reclaimed", reclaimed)

	return Result{Entry: ep, ExitCode: code, Reclaimed: reclaimed}, nil
}

// quiesce stops the caches so the freshly written image is fetched from
// memory rather than from stale lines.
func (e *Engine) quiesce() {
	e.cache.DisableICache()
	e.cache.InvalidateICache()
	e.cache.DisableDCache()
	e.cache.CleanDCache()
}

func (e *Engine) barrier() {
	e.cache.DMB()
	e.cache.DSB()
	e.cache.ISB()
}

func (e *Engine) restore() {
	e.cache.EnableICache()
	e.cache.EnableDCache()
}
