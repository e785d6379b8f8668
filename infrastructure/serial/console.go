package serial

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Console is the process's own terminal used as the transport. When input is
// a terminal it is switched to raw mode, so keystrokes arrive one at a time
// and without local echo; the shell echoes itself.
type Console struct {
	in       *os.File
	out      *os.File
	fd       int
	oldState *term.State
}

// OpenConsole prepares in and out. Non-terminal input (a pipe, a file) is
// used as is.
func OpenConsole(in, out *os.File) (*Console, error) {
	c := &Console{in: in, out: out, fd: int(in.Fd())}
	if !term.IsTerminal(c.fd) {
		return c, nil
	}
	state, err := term.MakeRaw(c.fd)
	if err != nil {
		return nil, fmt.Errorf("serial: set raw mode: %w", err)
	}
	c.oldState = state
	return c, nil
}

// Raw reports whether the console switched its input to raw mode.
func (c *Console) Raw() bool { return c.oldState != nil }

func (c *Console) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *Console) Write(p []byte) (int, error) { return c.out.Write(p) }

// Close restores the terminal. The files stay open.
func (c *Console) Close() error {
	if c.oldState == nil {
		return nil
	}
	err := term.Restore(c.fd, c.oldState)
	c.oldState = nil
	return err
}
