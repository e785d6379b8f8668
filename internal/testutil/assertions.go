// Package testutil provides common test helpers for code that faults.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/domain/fault"
)

// CatchFault runs fn and returns the fault it raised. The test fails if fn
// returns normally or panics with something other than a *fault.Fault.
func CatchFault(t *testing.T, fn func()) (f *fault.Fault) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fault")
		var ok bool
		f, ok = r.(*fault.Fault)
		require.True(t, ok, "panic value %T is not a fault", r)
	}()
	fn()
	return nil
}

// RequireFault asserts that fn faults with a reason containing want.
func RequireFault(t *testing.T, fn func(), want string) {
	t.Helper()
	f := CatchFault(t, fn)
	require.Contains(t, f.Reason, want)
}
