package host

import (
	"fmt"

	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
)

// Report describes a loaded image: where it would enter, whether the
// trailer matches, and how large it is. A report never gates execution by
// itself.
type Report struct {
	Entry      image.Entry
	EntryPoint guard.EntryPoint
	AddrErr    error
	CRC        uint32
	CRCErr     error
	Size       int
}

// Inspect builds a report for img against region. Images shorter than
// image.MinSize are rejected.
func Inspect(region guard.Region, img []byte) (Report, error) {
	if len(img) < image.MinSize {
		return Report{}, image.ErrImageTooShort
	}
	entry, err := image.DecodeEntry(img)
	if err != nil {
		return Report{}, err
	}
	ep, addrErr := guard.Check(region, entry)
	crc, crcErr := image.VerifyCRC(img)

	return Report{
		Entry:      entry,
		EntryPoint: ep,
		AddrErr:    addrErr,
		CRC:        crc,
		CRCErr:     crcErr,
		Size:       len(img),
	}, nil
}

// CRCPassed reports whether the trailer matched.
func (r Report) CRCPassed() bool { return r.CRCErr == nil }

// String renders the report line:
//
//	Address: 0x24000005 (valid thumb), CRC: 0x1a2b3c4d (passed), Size: 0xc
func (r Report) String() string {
	crcCheck := "passed"
	if !r.CRCPassed() {
		crcCheck = "failed"
	}
	return fmt.Sprintf("Address: %#x (%s), CRC: 0x%08x (%s), Size: %#x",
		uint32(r.Entry), guard.Describe(r.EntryPoint, r.AddrErr), r.CRC, crcCheck, r.Size)
}
