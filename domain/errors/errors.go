// Package errors provides the error taxonomy shared by the loader and runtime.
//
// Every recoverable error produced by the core wraps exactly one of the
// category sentinels below, so callers classify with errors.Is or KindOf
// without knowing which package produced the error. Faults are not part of
// this taxonomy as values: they travel as panics (see package fault).
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/h7-kernel/domain/fault"
)

// Category sentinels.
var (
	// ErrFormat marks image format problems: short images, CRC mismatches,
	// malformed hex uploads. Reported, never fatal.
	ErrFormat = stdErrors.New("format error")

	// ErrAddress marks entry points rejected by the address guard. Fatal to
	// the run, not to the firmware.
	ErrAddress = stdErrors.New("address error")

	// ErrAllocation marks allocation requests that degrade to a null return.
	ErrAllocation = stdErrors.New("allocation error")

	// ErrStorage marks failures of the file collaborators.
	ErrStorage = stdErrors.New("storage error")
)

// Kind is the category of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindFormat
	KindAddress
	KindAllocation
	KindStorage
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindAddress:
		return "address"
	case KindAllocation:
		return "allocation"
	case KindStorage:
		return "storage"
	case KindFault:
		return "fault"
	default:
		return "internal"
	}
}

// KindOf classifies err. A nil error is KindInternal.
func KindOf(err error) Kind {
	var f *fault.Fault
	switch {
	case err == nil:
		return KindInternal
	case stdErrors.Is(err, ErrFormat):
		return KindFormat
	case stdErrors.Is(err, ErrAddress):
		return KindAddress
	case stdErrors.Is(err, ErrAllocation):
		return KindAllocation
	case stdErrors.Is(err, ErrStorage):
		return KindStorage
	case stdErrors.As(err, &f):
		return KindFault
	default:
		return KindInternal
	}
}

// New returns a sentinel in the given category, e.g.
//
//	var ErrImageTooShort = errors.New(errors.ErrFormat, "image too short")
//
// The message is text alone; the category is only visible through Unwrap.
func New(category error, text string) error {
	return &categorized{category: category, text: text}
}

type categorized struct {
	category error
	text     string
}

func (e *categorized) Error() string { return e.text }

func (e *categorized) Unwrap() error { return e.category }

// OpError records the shell-level operation that failed.
type OpError struct {
	Err  error
	Op   string
	Path string
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind returns the category of the wrapped error.
func (e *OpError) Kind() Kind {
	return KindOf(e.Err)
}

// ConfigError reports a board configuration problem.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stdErrors.Is(err, target)
}

// As forwards to the standard library so callers need a single import.
func As(err error, target any) bool {
	return stdErrors.As(err, target)
}
