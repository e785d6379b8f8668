package wazero

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
)

var (
	i32  = api.ValueTypeI32
	none = []api.ValueType{}
)

// hostFunc is one slot of the table as seen by the guest.
type hostFunc struct {
	name    string
	fn      func(ctx context.Context, s *session, mod api.Module, stack []uint64)
	params  []api.ValueType
	results []api.ValueType
}

var hostFuncs = []hostFunc{
	{hostfuncs.SlotAlloc, hostAlloc, []api.ValueType{i32, i32}, []api.ValueType{i32}},
	{hostfuncs.SlotFree, hostFree, []api.ValueType{i32}, none},
	{hostfuncs.SlotPanic, hostPanic, []api.ValueType{i32, i32}, none},
	{hostfuncs.SlotGetc, hostGetc, none, []api.ValueType{i32}},
	{hostfuncs.SlotPutc, hostPutc, []api.ValueType{i32}, []api.ValueType{i32}},
	{hostfuncs.SlotPuts, hostPuts, []api.ValueType{i32, i32}, []api.ValueType{i32}},
}

// registerHostModule exports the table under name. The functions look up
// the running session in the call context, so one host module serves every
// run.
func registerHostModule(ctx context.Context, rt wazero.Runtime, name string) error {
	builder := rt.NewHostModuleBuilder(name)
	for _, hf := range hostFuncs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				dispatch(ctx, mod, stack, hf)
			}), hf.params, hf.results).
			Export(hf.name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}

// dispatch runs hf in the session of ctx. A fault raised on the host side is
// remembered before wazero turns the panic into a trap.
func dispatch(ctx context.Context, mod api.Module, stack []uint64, hf hostFunc) {
	s, ok := sessionFromContext(ctx)
	if !ok {
		fault.Raise("host function %q called outside an application run", hf.name)
	}
	defer func() {
		if r := recover(); r != nil {
			s.fault = fault.From(r)
			panic(r)
		}
	}()
	hf.fn(ctx, s, mod, stack)
}

func hostAlloc(_ context.Context, s *session, _ api.Module, stack []uint64) {
	addr := s.table.Alloc(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	stack[0] = api.EncodeU32(s.toGuest(addr))
}

func hostFree(ctx context.Context, s *session, _ api.Module, stack []uint64) {
	ptr := api.DecodeU32(stack[0])
	if ptr == 0 {
		return
	}
	addr, ok := s.toHost(ptr)
	if !ok {
		slog.WarnContext(ctx, "wazero: free of pointer outside heap window", "ptr", ptr)
		return
	}
	s.table.Free(addr)
}

func hostPanic(_ context.Context, s *session, mod api.Module, stack []uint64) {
	msg, _ := mod.Memory().Read(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	s.table.Panic(msg)
}

func hostGetc(_ context.Context, s *session, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeU32(uint32(s.table.Getc()))
}

func hostPutc(_ context.Context, s *session, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(s.table.Putc(byte(api.DecodeU32(stack[0]))))
}

func hostPuts(_ context.Context, s *session, mod api.Module, stack []uint64) {
	buf, ok := mod.Memory().Read(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if !ok {
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(s.table.Puts(buf))
}

// toGuest maps a heap address into guest memory. Null stays null.
func (s *session) toGuest(addr uint32) uint32 {
	if addr == 0 {
		return 0
	}
	return addr - s.heapStart + s.guestBase
}

func (s *session) toHost(ptr uint32) (uint32, bool) {
	if ptr < s.guestBase || uint64(ptr) >= uint64(s.guestBase)+uint64(s.heapSize) {
		return 0, false
	}
	return ptr - s.guestBase + s.heapStart, true
}
