package wazero

import (
	"context"

	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var sessionKey = &contextKey{name: "session"}

// session is the state of one Call, reachable from host functions through
// the context wazero hands them.
type session struct {
	table *hostfuncs.Table

	heapStart uint32
	heapSize  uint32
	// guestBase is where the heap window starts in guest memory.
	guestBase uint32
	// fault is set when a host function raised one, so Call can re-raise it
	// after wazero has unwound the guest.
	fault *fault.Fault
}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func sessionFromContext(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey).(*session)
	return s, ok
}
