package serial

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
)

// Pusher accepts received bytes. fifo.Queue satisfies it.
type Pusher interface {
	Push(b byte)
}

type receiveConfig struct {
	translateCR bool
	bufSize     int
	onBreak     func()
	breakByte   byte
}

// ReceiveOption configures Receive.
type ReceiveOption func(*receiveConfig)

// WithCRTranslation turns carriage returns into line feeds. Terminals in raw
// mode send CR for Enter; the shell ends lines on LF.
func WithCRTranslation() ReceiveOption {
	return func(c *receiveConfig) { c.translateCR = true }
}

// WithBreak calls fn instead of queuing when b arrives. In raw mode the
// terminal delivers Ctrl-C as the byte 0x03 rather than as a signal.
func WithBreak(b byte, fn func()) ReceiveOption {
	return func(c *receiveConfig) {
		c.breakByte = b
		c.onBreak = fn
	}
}

// Receive copies bytes from r into q until ctx is done, r reports EOF or r
// fails. A zero-byte read with no error is a poll timeout and is retried.
func Receive(ctx context.Context, r io.Reader, q Pusher, opts ...ReceiveOption) error {
	cfg := receiveConfig{bufSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	buf := make([]byte, cfg.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if cfg.onBreak != nil && b == cfg.breakByte {
				cfg.onBreak()
				continue
			}
			if cfg.translateCR && b == '\r' {
				b = '\n'
			}
			q.Push(b)
		}
		if stdErrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			slog.ErrorContext(ctx, "serial: receive failed", "error", err)
			return err
		}
	}
}
