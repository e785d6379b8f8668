// Package shell implements the terminal command loop: line editing over the
// input queue, command dispatch and the program commands that drive the
// loader and the execution engine.
package shell

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/host"
)

// LineSize is the capacity of the command line buffer.
const LineSize = 1024

// Prompt is printed whenever the shell is ready for a command.
const Prompt = "> "

// Input is the terminal input queue.
type Input interface {
	Pop() (byte, bool)
	Clear()
}

// Storage is what the file commands need from the devices.
type Storage interface {
	ports.FileReader
	ports.DirLister
	ports.FileWriter
}

// Shell reads command lines from the input queue and runs them.
type Shell struct {
	out    io.Writer
	in     Input
	loader *host.Loader
	engine *host.Engine
	store  Storage
	items  []Item
	level  *slog.LevelVar
	echo   bool
	poll   time.Duration
	line   []byte
}

// Option configures a Shell.
type Option func(*Shell)

// WithEcho writes typed characters back, for terminals in raw mode.
func WithEcho() Option {
	return func(s *Shell) { s.echo = true }
}

// WithStorage enables ls and pstore.
func WithStorage(st Storage) Option {
	return func(s *Shell) { s.store = st }
}

// WithPollInterval sets how long the loop sleeps when the queue is empty.
func WithPollInterval(d time.Duration) Option {
	return func(s *Shell) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogLevel lets "sys loglevel" read and change level.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(s *Shell) { s.level = level }
}

// WithItems replaces the command table.
func WithItems(items []Item) Option {
	return func(s *Shell) { s.items = items }
}

// New creates a shell writing to out and reading from in.
func New(out io.Writer, in Input, loader *host.Loader, engine *host.Engine, opts ...Option) *Shell {
	s := &Shell{
		out:    out,
		in:     in,
		loader: loader,
		engine: engine,
		items:  DefaultItems(),
		poll:   time.Millisecond,
		line:   make([]byte, 0, LineSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Items returns the command table.
func (s *Shell) Items() []Item { return s.items }

// Printf writes formatted output to the terminal.
func (s *Shell) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// Println writes a line to the terminal.
func (s *Shell) Println(args ...any) {
	_, _ = fmt.Fprintln(s.out, args...)
}

// Serve runs the command loop until ctx is done.
func (s *Shell) Serve(ctx context.Context) error {
	s.Printf("%s", Prompt)
	for {
		c, ok := s.in.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.poll):
			}
			continue
		}
		s.feed(ctx, c)
	}
}

// feed handles one input byte.
func (s *Shell) feed(ctx context.Context, c byte) {
	switch c {
	case '\n':
		if s.echo {
			s.Printf("\n")
		}
		s.submit(ctx)
	case '\r':
	case 0x08, 0x7f:
		if len(s.line) > 0 {
			s.line = s.line[:len(s.line)-1]
			if s.echo {
				s.Printf("\b \b")
			}
		}
	default:
		if len(s.line) == cap(s.line) {
			s.Println("Error: Buffer full")
			return
		}
		s.line = append(s.line, c)
		if s.echo {
			_, _ = s.out.Write([]byte{c})
		}
	}
}

func (s *Shell) submit(ctx context.Context) {
	defer func() {
		s.line = s.line[:0]
		s.Printf("%s", Prompt)
	}()
	if !utf8.Valid(s.line) {
		s.Println("Error: invalid utf-8 sequence")
		return
	}
	if err := s.Exec(ctx, string(s.line)); err != nil {
		s.Printf("Error: %v\n", err)
		s.in.Clear()
	}
}

// Exec parses and runs one command line. Blank lines do nothing.
func (s *Shell) Exec(ctx context.Context, line string) error {
	name, args := parseLine(line)
	if name == "" {
		return nil
	}
	err := s.Run(ctx, name, args)
	if err != nil {
		var me *MenuError
		if !stdErrors.As(err, &me) {
			slog.DebugContext(ctx, "shell: command failed", "command", name, "error", err)
		}
	}
	return err
}
