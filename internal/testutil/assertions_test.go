package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reglet-dev/h7-kernel/domain/fault"
)

func TestCatchFault(t *testing.T) {
	f := CatchFault(t, func() { fault.Raise("bus error at %#x", 0x10) })
	assert.Equal(t, "bus error at 0x10", f.Reason)
}

func TestRequireFault(t *testing.T) {
	RequireFault(t, func() { fault.Raise("allocation collision") }, "collision")
}
