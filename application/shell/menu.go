package shell

import (
	"context"
	"fmt"
	"strings"
)

// MaxArgs is the number of arguments passed to a command. Further words on
// the line are dropped.
const MaxArgs = 16

// labelWidth pads names in command listings.
const labelWidth = 20

// Action runs a command with its arguments.
type Action func(ctx context.Context, s *Shell, args []string) error

// Item is a menu entry: a command, or an alias when AliasOf is set.
type Item struct {
	Name        string
	Help        string
	Description string
	Action      Action
	AliasOf     string
}

// MenuErrorKind distinguishes the menu failures.
type MenuErrorKind int

const (
	ArgCount MenuErrorKind = iota
	NotFound
	CommandFailed
	InvalidArgument
)

// MenuError is a command failure as the terminal prints it.
type MenuError struct {
	Kind     MenuErrorKind
	Expected int
	Actual   int
	Detail   string
}

var (
	ErrCommandNotFound = &MenuError{Kind: NotFound}
	ErrInvalidArgument = &MenuError{Kind: InvalidArgument}
)

func (e *MenuError) Error() string {
	switch e.Kind {
	case ArgCount:
		noun := "arguments"
		if e.Expected == 1 {
			noun = "argument"
		}
		return fmt.Sprintf("Expected %d %s, got %d", e.Expected, noun, e.Actual)
	case NotFound:
		return "Command not found"
	case InvalidArgument:
		return "Invalid argument"
	default:
		if e.Detail == "" {
			return "Command error"
		}
		return "Command error: " + e.Detail
	}
}

// Is matches on kind, so errors.Is(err, ErrCommandNotFound) holds for any
// not-found error.
func (e *MenuError) Is(target error) bool {
	t, ok := target.(*MenuError)
	return ok && t.Kind == e.Kind
}

func commandError(detail string) error {
	return &MenuError{Kind: CommandFailed, Detail: detail}
}

// checkArgs fails unless exactly expected arguments were given.
func checkArgs(expected int, args []string) error {
	if len(args) != expected {
		return &MenuError{Kind: ArgCount, Expected: expected, Actual: len(args)}
	}
	return nil
}

// parseLine splits a line into a command name and its arguments.
func parseLine(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	args := parts[1:]
	if len(args) > MaxArgs {
		args = args[:MaxArgs]
	}
	return parts[0], args
}

func (s *Shell) lookup(name string) (Item, bool) {
	for _, it := range s.items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// Run executes the named command. Aliases resolve to their target.
func (s *Shell) Run(ctx context.Context, name string, args []string) error {
	it, ok := s.lookup(name)
	if !ok {
		return ErrCommandNotFound
	}
	if it.AliasOf != "" {
		return s.Run(ctx, it.AliasOf, args)
	}
	return it.Action(ctx, s, args)
}
