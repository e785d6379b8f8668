package serial

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/internal/critical"
	"github.com/reglet-dev/h7-kernel/internal/fifo"
)

var (
	_ ports.Transport = (*Console)(nil)
	_ ports.Transport = (*Port)(nil)
)

func drain(q *fifo.Queue) string {
	var b strings.Builder
	for {
		c, ok := q.Pop()
		if !ok {
			return b.String()
		}
		b.WriteByte(c)
	}
}

func TestReceive(t *testing.T) {
	q := fifo.New(nil, 64)
	require.NoError(t, Receive(context.Background(), strings.NewReader("ls\r\n"), q))
	assert.Equal(t, "ls\r\n", drain(q))
}

func TestReceive_TranslatesCR(t *testing.T) {
	q := fifo.New(nil, 64)
	require.NoError(t, Receive(context.Background(), strings.NewReader("prun\r"), q, WithCRTranslation()))
	assert.Equal(t, "prun\n", drain(q))
}

func TestReceive_Break(t *testing.T) {
	q := fifo.New(nil, 64)
	breaks := 0
	require.NoError(t, Receive(context.Background(), strings.NewReader("ab\x03c"), q, WithBreak(0x03, func() { breaks++ })))
	assert.Equal(t, "abc", drain(q))
	assert.Equal(t, 1, breaks)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReceive_Errors(t *testing.T) {
	boom := errors.New("line broke")
	assert.ErrorIs(t, Receive(context.Background(), failingReader{boom}, fifo.New(nil, 4)), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Receive(ctx, failingReader{nil}, fifo.New(nil, 4)), context.Canceled)
}

// idleReader returns nothing until cancel has been called.
type idleReader struct {
	calls  int
	cancel context.CancelFunc
}

func (r *idleReader) Read([]byte) (int, error) {
	r.calls++
	if r.calls == 3 {
		r.cancel()
	}
	return 0, nil
}

func TestReceive_RetriesIdleReads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &idleReader{cancel: cancel}
	assert.ErrorIs(t, Receive(ctx, r, fifo.New(nil, 4)), context.Canceled)
	assert.Equal(t, 3, r.calls)
}

func TestWriter(t *testing.T) {
	tests := []struct {
		name string
		opts []WriterOption
		in   string
		want string
	}{
		{"plain", nil, "a\nb\n", "a\nb\n"},
		{"crlf", []WriterOption{WithCRLF()}, "a\nb\n", "a\r\nb\r\n"},
		{"crlf keeps existing", []WriterOption{WithCRLF()}, "a\r\nb", "a\r\nb"},
		{"crlf leading", []WriterOption{WithCRLF()}, "\nx", "\r\nx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			n, err := NewWriter(&out, tt.opts...).Write([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, len(tt.in), n)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

// stallWriter blocks every write until release is closed.
type stallWriter struct {
	entered chan struct{}
	release chan struct{}
}

func newStallWriter() *stallWriter {
	return &stallWriter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *stallWriter) Write(p []byte) (int, error) {
	s.entered <- struct{}{}
	<-s.release
	return len(p), nil
}

func TestWriter_StalledTransportLeavesInputRunning(t *testing.T) {
	cs := &critical.Section{}
	q := fifo.New(cs, 8)
	sw := newStallWriter()
	w := NewWriter(sw)

	done := make(chan struct{})
	go func() {
		_, _ = w.Write([]byte("x"))
		close(done)
	}()
	<-sw.entered

	// the receive path and getc share cs and must not wait on the transport
	q.Push('a')
	c, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, byte('a'), c)

	close(sw.release)
	<-done
}

func TestWriter_SerialisesWrites(t *testing.T) {
	sw := newStallWriter()
	w := NewWriter(sw)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = w.Write([]byte("first")) }()
	<-sw.entered
	go func() { defer wg.Done(); _, _ = w.Write([]byte("second")) }()

	select {
	case <-sw.entered:
		t.Fatal("second write reached the transport while the first was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(sw.release)
	<-sw.entered
	wg.Wait()
}

func TestConsole_NonTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	outPath := filepath.Join(t.TempDir(), "out")
	out, err := os.Create(outPath)
	require.NoError(t, err)
	defer out.Close()

	c, err := OpenConsole(r, out)
	require.NoError(t, err)
	assert.False(t, c.Raw())

	_, err = w.Write([]byte("help\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	q := fifo.New(nil, 16)
	require.NoError(t, Receive(context.Background(), c, q))
	assert.Equal(t, "help\n", drain(q))

	_, err = c.Write([]byte("> "))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "> ", string(got))
}

func TestOpenPort_MissingDevice(t *testing.T) {
	_, err := OpenPort(filepath.Join(t.TempDir(), "ttyUSB9"), WithBaud(9600))
	assert.Error(t, err)
}
