// Package guard decides whether an entry word is safe to branch to.
//
// The decision is pure and cheap, and must be repeated before every run: the
// image region is mutable and may have changed since it was loaded.
package guard

import (
	"fmt"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/image"
)

const (
	thumbBit   = 0x1
	thumbAlign = 2
	armAlign   = 4
)

// Address errors.
var (
	ErrOutOfRange = errors.New(errors.ErrAddress, "out of range")
	ErrInvalid    = errors.New(errors.ErrAddress, "invalid")
)

// ExecMode is the instruction set the CPU switches to on entry.
type ExecMode uint8

const (
	ModeARM ExecMode = iota
	ModeThumb
)

func (m ExecMode) String() string {
	if m == ModeThumb {
		return "thumb"
	}
	return "arm"
}

// Region is the reserved application RAM.
type Region struct {
	Start uint32
	Size  uint32
}

// Contains reports whether addr lies in [Start+4, Start+Size), the part of the
// region that may hold code. The first word is the image header.
func (r Region) Contains(addr uint32) bool {
	a := uint64(addr)
	return a >= uint64(r.Start)+image.HeaderSize && a < uint64(r.Start)+uint64(r.Size)
}

// EntryPoint is an entry word accepted by Check.
type EntryPoint struct {
	addr uint32
	mode ExecMode
}

// Addr returns the branch target with the mode bit cleared.
func (e EntryPoint) Addr() uint32 { return e.addr }

// Mode returns the execution mode selected by the entry word.
func (e EntryPoint) Mode() ExecMode { return e.mode }

// Raw returns the entry word as it would be loaded into the PC for an
// interworking branch.
func (e EntryPoint) Raw() uint32 {
	if e.mode == ModeThumb {
		return e.addr | thumbBit
	}
	return e.addr
}

func (e EntryPoint) String() string { return fmt.Sprintf("%#x", e.Raw()) }

// Check validates raw against r:
//
//	in range | mode bit | addr%2==0 | addr%4==0 | result
//	yes      | Thumb    | yes       | -         | ModeThumb
//	yes      | ARM      | -         | yes       | ModeARM
//	yes      | either   | misaligned for its mode | ErrInvalid
//	no       | any      | any       | any       | ErrOutOfRange
//
// The mode bit is masked off before the range and alignment checks.
func Check(r Region, raw image.Entry) (EntryPoint, error) {
	addr := uint32(raw) &^ thumbBit
	thumb := raw.Thumb()

	switch {
	case !r.Contains(addr):
		return EntryPoint{}, ErrOutOfRange
	case thumb && addr%thumbAlign == 0:
		return EntryPoint{addr: addr, mode: ModeThumb}, nil
	case !thumb && addr%armAlign == 0:
		return EntryPoint{addr: addr, mode: ModeARM}, nil
	default:
		return EntryPoint{}, ErrInvalid
	}
}

// Describe renders the outcome of Check the way the load report shows it:
// "valid thumb", "valid arm", "invalid" or "out of range".
func Describe(ep EntryPoint, err error) string {
	if err != nil {
		return err.Error()
	}
	return "valid " + ep.Mode().String()
}
