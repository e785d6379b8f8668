package hostfuncs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/domain/fault"
)

type fakeAllocs struct {
	next  uint32
	freed []uint32
}

func (f *fakeAllocs) Alloc(size, _ uint32) uint32 {
	addr := f.next
	f.next += size
	return addr
}

func (f *fakeAllocs) Free(addr uint32) { f.freed = append(f.freed, addr) }

type fakeQueue struct{ data []byte }

func (q *fakeQueue) Pop() (byte, bool) {
	if len(q.data) == 0 {
		return 0, false
	}
	b := q.data[0]
	q.data = q.data[1:]
	return b, true
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("uart overrun") }

func newTable(t *testing.T, out *bytes.Buffer, in string) (*Table, *fakeAllocs) {
	t.Helper()
	allocs := &fakeAllocs{next: 0x3000_0000}
	table, err := NewTable(
		WithAllocations(allocs),
		WithInput(&fakeQueue{data: []byte(in)}),
		WithOutput(out),
	)
	require.NoError(t, err)
	return table, allocs
}

func TestNewTable_RequiresEveryCapability(t *testing.T) {
	_, err := NewTable()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no allocations capability")
	assert.Contains(t, err.Error(), "no input capability")
	assert.Contains(t, err.Error(), "no output capability")

	_, err = NewTable(WithAllocations(&fakeAllocs{}), WithInput(&fakeQueue{}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "allocations")
}

func TestTable_Names(t *testing.T) {
	table, _ := newTable(t, &bytes.Buffer{}, "")
	assert.Equal(t, []string{"alloc", "free", "panic", "getc", "putc", "puts"}, table.Names())
}

func TestTable_AllocFree(t *testing.T) {
	table, allocs := newTable(t, &bytes.Buffer{}, "")

	a := table.Alloc(64, 8)
	b := table.Alloc(64, 8)
	assert.Equal(t, uint32(0x3000_0000), a)
	assert.Equal(t, uint32(0x3000_0040), b)

	table.Free(a)
	assert.Equal(t, []uint32{a}, allocs.freed)
}

func TestTable_Getc(t *testing.T) {
	table, _ := newTable(t, &bytes.Buffer{}, "hi")

	assert.Equal(t, byte('h'), table.Getc())
	assert.Equal(t, byte('i'), table.Getc())
	assert.Equal(t, byte(0), table.Getc(), "empty queue yields 0")
}

func TestTable_PutcPuts(t *testing.T) {
	var out bytes.Buffer
	table, _ := newTable(t, &out, "")

	assert.Equal(t, int32(0), table.Putc('>'))
	assert.Equal(t, int32(0), table.Puts([]byte(" hello, wörld\n")))
	assert.Equal(t, int32(-1), table.Puts([]byte{0xff, 0xfe}), "invalid UTF-8")
	assert.Equal(t, int32(0), table.Puts(nil))

	assert.Equal(t, "> hello, wörld\n", out.String())
}

func TestTable_TransportFailure(t *testing.T) {
	table, err := NewTable(
		WithAllocations(&fakeAllocs{}),
		WithInput(&fakeQueue{}),
		WithOutput(brokenWriter{}),
	)
	require.NoError(t, err)

	assert.Equal(t, int32(-1), table.Putc('x'))
	assert.Equal(t, int32(-1), table.Puts([]byte("x")))
}

func TestTable_Panic(t *testing.T) {
	table, _ := newTable(t, &bytes.Buffer{}, "")

	tests := []struct {
		name string
		msg  []byte
		want string
	}{
		{"utf8 message", []byte("index out of bounds"), "index out of bounds"},
		{"invalid utf8", []byte{0xc3, 0x28}, InvalidPanicMessage},
		{"unreadable", nil, InvalidPanicMessage},
		{"empty", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r, "Panic must not return")
				f, ok := r.(*fault.Fault)
				require.True(t, ok)
				assert.Equal(t, tt.want, f.Reason)
			}()
			table.Panic(tt.msg)
		})
	}
}
