package serial

import (
	"bytes"
	"io"
	"sync"
)

// Writer serialises writes to a transport, so output from the shell, the
// logger and a running application never interleaves within a write.
//
// It has its own lock rather than the firmware critical section: a write
// may wait on the transport, and the receive path and getc must keep
// running meanwhile. The transport is expected to drain (a console or a
// UART at line speed); Writer adds no timeout of its own.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	crlf bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCRLF expands LF to CRLF, as a terminal in raw mode needs.
func WithCRLF() WriterOption {
	return func(w *Writer) { w.crlf = true }
}

// NewWriter wraps w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{w: w}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// Write writes p. The count returned refers to p, not to the expanded
// output.
func (w *Writer) Write(p []byte) (int, error) {
	out := p
	if w.crlf && bytes.IndexByte(p, '\n') >= 0 {
		out = expandNewlines(p)
	}

	w.mu.Lock()
	_, err := w.w.Write(out)
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// expandNewlines turns every LF not already preceded by CR into CRLF.
func expandNewlines(p []byte) []byte {
	out := make([]byte, 0, len(p)+bytes.Count(p, []byte{'\n'}))
	for i, b := range p {
		if b == '\n' && (i == 0 || p[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	return out
}
