package image

// CRC-32/MPEG-2: polynomial 0x04C11DB7, init 0xFFFFFFFF, input and output not
// reflected, no final XOR. Check value for "123456789" is 0x0376E6E7.
const (
	crcPoly = 0x04C11DB7
	crcInit = 0xFFFFFFFF
)

var crcTable = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24 //nolint:gosec // G115: i < 256
		for range 8 {
			if c&0x8000_0000 != 0 {
				c = c<<1 ^ crcPoly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// Checksum returns the CRC-32/MPEG-2 of data.
func Checksum(data []byte) uint32 {
	return updateChecksum(crcInit, data)
}

func updateChecksum(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
