package host_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/host"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
	"github.com/reglet-dev/h7-kernel/infrastructure/coherent"
	"github.com/reglet-dev/h7-kernel/infrastructure/native"
	"github.com/reglet-dev/h7-kernel/internal/critical"
	"github.com/reglet-dev/h7-kernel/internal/fifo"
	"github.com/reglet-dev/h7-kernel/internal/heap"
	"github.com/reglet-dev/h7-kernel/internal/tracker"
)

type rig struct {
	buf     *image.Buffer
	cpu     *native.CPU
	cache   *coherent.Controller
	tracker *tracker.Tracker
	input   *fifo.Queue
	out     *bytes.Buffer
	engine  *host.Engine
}

func newRig(t *testing.T, opts ...host.EngineOption) *rig {
	t.Helper()
	cs := &critical.Section{}
	r := &rig{
		buf:     image.NewBuffer(appStart, appSize),
		cpu:     native.New(),
		cache:   coherent.New(coherent.WithTrace()),
		tracker: tracker.New(cs, heap.New(0x3000_0000, 0x1_0000)),
		input:   fifo.New(cs, 16),
		out:     &bytes.Buffer{},
	}
	table, err := hostfuncs.NewTable(
		hostfuncs.WithAllocations(r.tracker),
		hostfuncs.WithInput(r.input),
		hostfuncs.WithOutput(r.out),
	)
	require.NoError(t, err)

	opts = append([]host.EngineOption{host.WithCache(r.cache)}, opts...)
	r.engine, err = host.NewEngine(r.buf, r.cpu, table, r.tracker, opts...)
	require.NoError(t, err)
	return r
}

func (r *rig) load(t *testing.T, entry image.Entry) {
	t.Helper()
	require.NoError(t, r.buf.Load(image.Build(entry, make([]byte, 16))))
}

func TestNewEngine_MissingDependencies(t *testing.T) {
	_, err := host.NewEngine(nil, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image buffer")
	assert.Contains(t, err.Error(), "no cpu")
	assert.Contains(t, err.Error(), "no host function table")
	assert.Contains(t, err.Error(), "no sweeper")
}

func TestEngine_Run(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0005)
	require.NoError(t, r.cpu.Register(0x2400_0004, func(api *hostfuncs.Table) int32 {
		api.Puts([]byte("hi"))
		return 3
	}))

	res, err := r.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), res.ExitCode)
	assert.False(t, res.OK())
	assert.Equal(t, guard.ModeThumb, res.Entry.Mode())
	assert.Equal(t, uint32(0x2400_0005), res.Entry.Raw())
	assert.Zero(t, res.Reclaimed)
	assert.Equal(t, "hi", r.out.String())
}

func TestEngine_CacheSequence(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0008)
	require.NoError(t, r.cpu.Register(0x2400_0008, func(*hostfuncs.Table) int32 {
		r.cache.Mark("call")
		return 0
	}))

	_, err := r.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		coherent.OpDisableICache,
		coherent.OpInvalidateICache,
		coherent.OpDisableDCache,
		coherent.OpCleanDCache,
		coherent.OpDMB,
		coherent.OpDSB,
		coherent.OpISB,
		"call",
		coherent.OpEnableICache,
		coherent.OpEnableDCache,
	}, r.cache.Trace())
}

func TestEngine_SweepsLeaks(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0005)
	require.NoError(t, r.cpu.Register(0x2400_0005, func(api *hostfuncs.Table) int32 {
		assert.NotZero(t, api.Alloc(64, 8))
		assert.NotZero(t, api.Alloc(64, 8))
		return 0
	}))

	res, err := r.engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, uint32(128), res.Reclaimed)
	assert.Zero(t, r.tracker.Len())
}

func TestEngine_FreedMemoryIsNotReported(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0005)
	require.NoError(t, r.cpu.Register(0x2400_0005, func(api *hostfuncs.Table) int32 {
		p := api.Alloc(32, 4)
		api.Alloc(16, 4)
		api.Free(p)
		return 0
	}))

	res, err := r.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(16), res.Reclaimed)
}

func TestEngine_RejectsBadEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry image.Entry
		want  error
	}{
		{"header", 0x2400_0000, guard.ErrOutOfRange},
		{"past end", 0x2408_0000, guard.ErrOutOfRange},
		{"misaligned arm", 0x2400_0006, guard.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.load(t, tt.entry)

			_, err := r.engine.Run(context.Background())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, errors.KindAddress, errors.KindOf(err))
			assert.Empty(t, r.cache.Trace(), "caches must not be touched")
		})
	}
}

func TestEngine_RejectsShortImage(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.buf.Load([]byte{0x24, 0, 0, 5}))
	_, err := r.engine.Run(context.Background())
	assert.ErrorIs(t, err, image.ErrImageTooShort)
}

func TestEngine_RevalidatesEveryRun(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0005)
	require.NoError(t, r.cpu.Register(0x2400_0005, func(*hostfuncs.Table) int32 { return 0 }))

	_, err := r.engine.Run(context.Background())
	require.NoError(t, err)

	// the application region is writable; corrupt the header in place
	r.buf.Region()[0] = 0x10
	_, err = r.engine.Run(context.Background())
	assert.ErrorIs(t, err, guard.ErrOutOfRange)
}

func TestEngine_CRCPolicy(t *testing.T) {
	corrupt := func(r *rig) {
		img := r.buf.Bytes()
		img[len(img)-1]++
	}

	t.Run("report runs a mismatched image", func(t *testing.T) {
		r := newRig(t)
		r.load(t, 0x2400_0005)
		corrupt(r)
		require.NoError(t, r.cpu.Register(0x2400_0005, func(*hostfuncs.Table) int32 { return 0 }))

		res, err := r.engine.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, res.OK())
	})

	t.Run("enforce refuses", func(t *testing.T) {
		r := newRig(t, host.WithCRCPolicy(host.CRCEnforce))
		r.load(t, 0x2400_0005)
		corrupt(r)

		_, err := r.engine.Run(context.Background())
		require.ErrorIs(t, err, image.ErrCRCMismatch)
		assert.Equal(t, errors.KindFormat, errors.KindOf(err))
		assert.Equal(t, host.CRCEnforce, r.engine.Policy())
	})
}

func TestParseCRCPolicy(t *testing.T) {
	p, err := host.ParseCRCPolicy("enforce")
	require.NoError(t, err)
	assert.Equal(t, host.CRCEnforce, p)
	assert.Equal(t, "enforce", p.String())

	p, err = host.ParseCRCPolicy("report")
	require.NoError(t, err)
	assert.Equal(t, host.CRCReport, p)

	_, err = host.ParseCRCPolicy("ignore")
	assert.Error(t, err)
}

func TestEngine_InputFlush(t *testing.T) {
	r := newRig(t)
	flushing := newRig(t)
	for _, x := range []*rig{r, flushing} {
		x.load(t, 0x2400_0005)
		require.NoError(t, x.cpu.Register(0x2400_0005, func(*hostfuncs.Table) int32 { return 0 }))
		x.input.Push('q')
	}
	var err error
	flushing.engine, err = host.NewEngine(flushing.buf, flushing.cpu, mustTable(t, flushing), flushing.tracker,
		host.WithCache(flushing.cache), host.WithInputFlush(flushing.input))
	require.NoError(t, err)

	_, err = r.engine.Run(context.Background())
	require.NoError(t, err)
	_, err = flushing.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, r.input.Len())
	assert.Zero(t, flushing.input.Len())
}

func mustTable(t *testing.T, r *rig) *hostfuncs.Table {
	t.Helper()
	table, err := hostfuncs.NewTable(
		hostfuncs.WithAllocations(r.tracker),
		hostfuncs.WithInput(r.input),
		hostfuncs.WithOutput(r.out),
	)
	require.NoError(t, err)
	return table
}

func TestEngine_ApplicationPanicIsFatal(t *testing.T) {
	r := newRig(t)
	r.load(t, 0x2400_0005)
	require.NoError(t, r.cpu.Register(0x2400_0005, func(api *hostfuncs.Table) int32 {
		api.Alloc(8, 8)
		api.Panic([]byte("boom"))
		return 0
	}))

	var got *fault.Fault
	func() {
		defer fault.Recover(func(f *fault.Fault) { got = f })
		_, _ = r.engine.Run(context.Background())
	}()
	require.NotNil(t, got)
	assert.Equal(t, "boom", got.Reason)
	// no sweep, no cache restore after a fault
	assert.Equal(t, 1, r.tracker.Len())
	assert.NotContains(t, r.cache.Trace(), coherent.OpEnableICache)
}
