package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// ErrMalformedHex is the category of every HexError.
var ErrMalformedHex = errors.New(errors.ErrFormat, "malformed hex")

// ErrNoFilesystem is returned by LoadFile when the loader has no storage.
var ErrNoFilesystem = errors.New(errors.ErrStorage, "no filesystem")

// HexError reports a byte pair that could not be decoded during an upload.
type HexError struct {
	Hi, Lo byte
	// Missing is set when the stream ended after the high digit.
	Missing bool
}

func (e *HexError) Error() string {
	if e.Missing {
		return fmt.Sprintf("Invalid byte: '0x%c None' (half a byte missing)", e.Hi)
	}
	return fmt.Sprintf("Invalid byte: '0x%c 0x%c'", e.Hi, e.Lo)
}

func (e *HexError) Unwrap() error { return ErrMalformedHex }

// ByteSource is polled by ReceiveHex. fifo.Queue satisfies it.
type ByteSource interface {
	Pop() (byte, bool)
}

// Loader owns the application region. It is the only writer of the image
// buffer.
type Loader struct {
	buf    *image.Buffer
	region guard.Region
	files  ports.FileReader
	poll   time.Duration
}

// NewLoader creates a loader over buf. The guard region is the buffer's
// extent.
func NewLoader(buf *image.Buffer, opts ...LoaderOption) *Loader {
	l := &Loader{
		buf:    buf,
		region: guard.Region{Start: buf.Base(), Size: uint32(buf.Cap())},
		poll:   time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Buffer returns the image buffer.
func (l *Loader) Buffer() *image.Buffer { return l.buf }

// Region returns the guard region covering the buffer.
func (l *Loader) Region() guard.Region { return l.region }

// LoadFile reads path into the zero-filled region and returns the number of
// bytes read.
func (l *Loader) LoadFile(path string) (int, error) {
	if l.files == nil {
		return 0, &errors.OpError{Op: "pload", Path: path, Err: ErrNoFilesystem}
	}
	l.buf.Reset()
	n, err := l.files.ReadFile(path, l.buf.Region())
	if err != nil {
		l.buf.Reset()
		return 0, &errors.OpError{Op: "pload", Path: path, Err: err}
	}
	if err := l.buf.SetLen(n); err != nil {
		l.buf.Reset()
		return 0, err
	}
	slog.Debug("loader: file loaded", "path", path, "bytes", n)
	return n, nil
}

// LoadHex decodes s, a string of hex digit pairs, into the region.
func (l *Loader) LoadHex(s string) (int, error) {
	l.buf.Reset()
	for i := 0; i < len(s); i += 2 {
		if i+1 == len(s) {
			l.buf.Reset()
			return 0, &HexError{Hi: s[i], Missing: true}
		}
		if err := l.appendPair(s[i], s[i+1]); err != nil {
			l.buf.Reset()
			return 0, err
		}
	}
	return l.buf.Len(), nil
}

// ReceiveHex reads hex digit pairs from in until a line feed and stores them
// in the region. The source is polled; ctx ends the wait.
func (l *Loader) ReceiveHex(ctx context.Context, in ByteSource) (int, error) {
	l.buf.Reset()
	var (
		hi      byte
		haveHi  bool
		pending = func() (byte, error) {
			for {
				if c, ok := in.Pop(); ok {
					return c, nil
				}
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				case <-time.After(l.poll):
				}
			}
		}
	)
	for {
		c, err := pending()
		if err != nil {
			l.buf.Reset()
			return 0, err
		}
		if c == '\n' {
			if haveHi {
				l.buf.Reset()
				return 0, &HexError{Hi: hi, Missing: true}
			}
			return l.buf.Len(), nil
		}
		if !haveHi {
			hi, haveHi = c, true
			continue
		}
		haveHi = false
		if err := l.appendPair(hi, c); err != nil {
			l.buf.Reset()
			return 0, err
		}
	}
}

func (l *Loader) appendPair(hi, lo byte) error {
	h, ok1 := nibble(hi)
	n, ok2 := nibble(lo)
	if !ok1 || !ok2 {
		return &HexError{Hi: hi, Lo: lo}
	}
	return l.buf.WriteByte(h<<4 | n)
}

func nibble(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Inspect reports on the loaded image.
func (l *Loader) Inspect() (Report, error) {
	return Inspect(l.region, l.buf.Bytes())
}
