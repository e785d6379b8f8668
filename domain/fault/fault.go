// Package fault models the firmware's only abnormal-termination path.
//
// A fault is raised when an application panics through the ABI table, when
// an invariant the host cannot continue without is broken, or when the CPU
// backend reports an exception escaping the application. Faults are never
// returned as errors: Raise panics, and the single recovery point is the
// firmware top level, which reports the fault and halts. There is no memory
// protection between host and application, so host state cannot be trusted
// after a fault.
package fault

import (
	"fmt"
)

// Fault describes an unrecoverable condition.
type Fault struct {
	Reason string
}

func (f *Fault) Error() string {
	return "fault: " + f.Reason
}

// Raise panics with a *Fault built from the format arguments.
func Raise(format string, args ...any) {
	panic(&Fault{Reason: fmt.Sprintf(format, args...)})
}

// From converts a recovered panic value into a *Fault. Values that are not
// faults (runtime errors raised while host code ran on behalf of an
// application, for example) are wrapped.
func From(v any) *Fault {
	switch x := v.(type) {
	case *Fault:
		return x
	case error:
		return &Fault{Reason: x.Error()}
	default:
		return &Fault{Reason: fmt.Sprint(x)}
	}
}

// Handler receives a fault at the top level. Implementations must not
// return control to the shell; the firmware halts after calling it.
type Handler func(*Fault)

// Recover is deferred at the firmware top level. On panic it converts the
// value into a *Fault and hands it to h.
//
//	defer fault.Recover(halt)
func Recover(h Handler) {
	r := recover()
	if r == nil {
		return
	}
	h(From(r))
}
