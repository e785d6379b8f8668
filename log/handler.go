// Package log provides a slog handler for the board terminal. Records are
// written one per line as "[LEVEL] message key=value ...".
package log

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// TerminalHandler implements slog.Handler for a line-oriented terminal.
type TerminalHandler struct {
	opts   handlerConfig
	mu     *sync.Mutex
	w      io.Writer
	prefix string // dotted group path for attributes added later
	attrs  string // pre-formatted attributes from WithAttrs
}

// HandlerOption configures the TerminalHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report. Passing a *slog.LevelVar
// allows changing it later.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a new TerminalHandler writing to w. Callers sharing w
// with other output should pass a writer that serialises access, such as a
// serial.Writer.
func NewHandler(w io.Writer, opts ...HandlerOption) *TerminalHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TerminalHandler{opts: cfg, mu: &sync.Mutex{}, w: w}
}

// Install makes a TerminalHandler on w the process default and returns the
// logger.
func Install(w io.Writer, opts ...HandlerOption) *slog.Logger {
	l := slog.New(NewHandler(w, opts...))
	slog.SetDefault(l)
	return l
}

// Enabled reports whether the handler handles records at the given level.
func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle formats r and writes it as a single line.
func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(r.Level.String())
	b.WriteString("] ")
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	if h.opts.addSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		b.WriteString(" (")
		b.WriteString(filepath.Base(f.File))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte(')')
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a new TerminalHandler that includes the given attributes.
func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	for _, a := range attrs {
		appendAttr(&b, h.prefix, a)
	}
	nh := *h
	nh.attrs = h.attrs + b.String()
	return &nh
}

// WithGroup returns a new TerminalHandler with the given group name.
func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}
