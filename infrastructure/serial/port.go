package serial

import (
	stdErrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"
)

// DefaultBaud is the terminal UART speed of the board.
const DefaultBaud = 115_200

// Port is a serial device opened in raw mode.
type Port struct {
	t *term.Term
}

type portConfig struct {
	baud    int
	timeout time.Duration
}

// PortOption configures OpenPort.
type PortOption func(*portConfig)

// WithBaud sets the line speed.
func WithBaud(baud int) PortOption {
	return func(c *portConfig) {
		if baud > 0 {
			c.baud = baud
		}
	}
}

// WithReadTimeout sets how long a read waits for data before returning
// nothing.
func WithReadTimeout(d time.Duration) PortOption {
	return func(c *portConfig) { c.timeout = d }
}

// OpenPort opens dev. Input already pending on the line is discarded.
func OpenPort(dev string, opts ...PortOption) (*Port, error) {
	cfg := portConfig{baud: DefaultBaud, timeout: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	t, err := term.Open(dev, term.Speed(cfg.baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", dev, err)
	}
	if err := t.SetReadTimeout(cfg.timeout); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("serial: set read timeout: %w", err)
	}
	if err := t.Flush(); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("serial: flush: %w", err)
	}
	return &Port{t: t}, nil
}

// Read returns (0, nil) when the read timeout expires with no data.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.t.Read(b)
	if n == 0 && stdErrors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) { return p.t.Write(b) }

// Close restores the line settings and closes the device.
func (p *Port) Close() error {
	_ = p.t.Restore()
	return p.t.Close()
}
