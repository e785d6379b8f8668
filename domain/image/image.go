// Package image implements the application image format.
//
// Layout (all words big-endian):
//
//	offset 0    u32  entry address; bit 0 selects Thumb (1) or ARM (0)
//	offset 4    N    code and data
//	offset 4+N  u32  CRC-32/MPEG-2 over bytes [0, 4+N)
//
// The functions here are pure. They never interpret the entry address; that
// is the address guard's job.
package image

import (
	"encoding/binary"
	"fmt"

	"github.com/reglet-dev/h7-kernel/domain/errors"
)

// Layout constants.
const (
	HeaderSize  = 4
	TrailerSize = 4
	MinSize     = HeaderSize + TrailerSize
)

// Format errors.
var (
	ErrImageTooShort = errors.New(errors.ErrFormat, "image too short")
	ErrCRCMismatch   = errors.New(errors.ErrFormat, "crc mismatch")
	ErrImageTooLarge = errors.New(errors.ErrFormat, "image too large")
)

// Entry is the raw entry word, mode bit included. It has not been validated.
type Entry uint32

// Thumb reports whether the mode bit is set.
func (e Entry) Thumb() bool { return e&1 == 1 }

func (e Entry) String() string { return fmt.Sprintf("%#x", uint32(e)) }

// CRCError reports a trailer that does not match the image contents.
type CRCError struct {
	Computed uint32
	Stored   uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("crc mismatch: computed 0x%08x, trailer 0x%08x", e.Computed, e.Stored)
}

func (e *CRCError) Unwrap() error { return ErrCRCMismatch }

// DecodeEntry reads the entry word from the first four bytes of img.
func DecodeEntry(img []byte) (Entry, error) {
	if len(img) < HeaderSize {
		return 0, ErrImageTooShort
	}
	return Entry(binary.BigEndian.Uint32(img)), nil
}

// VerifyCRC recomputes the checksum over img[:len-4] and compares it with the
// trailer. The computed value is returned in both cases; on mismatch the
// error is a *CRCError.
func VerifyCRC(img []byte) (uint32, error) {
	if len(img) < MinSize {
		return 0, ErrImageTooShort
	}
	body := len(img) - TrailerSize
	crc := Checksum(img[:body])
	if stored := binary.BigEndian.Uint32(img[body:]); stored != crc {
		return crc, &CRCError{Computed: crc, Stored: stored}
	}
	return crc, nil
}

// Stamp writes the checksum of img[:len-4] into the trailer and returns it.
func Stamp(img []byte) (uint32, error) {
	if len(img) < MinSize {
		return 0, ErrImageTooShort
	}
	body := len(img) - TrailerSize
	crc := Checksum(img[:body])
	binary.BigEndian.PutUint32(img[body:], crc)
	return crc, nil
}

// Package turns a linker output into an image. raw starts with the entry
// address in little-endian order (as emitted by the toolchain); the result
// carries it big-endian, followed by the rest of raw and a CRC trailer.
func Package(raw []byte) ([]byte, Entry, uint32, error) {
	if len(raw) < HeaderSize {
		return nil, 0, 0, ErrImageTooShort
	}
	entry := Entry(binary.LittleEndian.Uint32(raw))

	out := make([]byte, len(raw)+TrailerSize)
	binary.BigEndian.PutUint32(out, uint32(entry))
	copy(out[HeaderSize:], raw[HeaderSize:])

	crc, err := Stamp(out)
	if err != nil {
		return nil, 0, 0, err
	}
	return out, entry, crc, nil
}

// Build assembles an image from an entry word and a code section. Mostly
// useful to tests and tooling.
func Build(entry Entry, code []byte) []byte {
	out := make([]byte, HeaderSize+len(code)+TrailerSize)
	binary.BigEndian.PutUint32(out, uint32(entry))
	copy(out[HeaderSize:], code)
	_, _ = Stamp(out)
	return out
}
