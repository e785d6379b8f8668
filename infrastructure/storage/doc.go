// Package storage implements the filesystem collaborators behind device
// paths such as "sdcard:/apps/hello.h7".
//
// The sdcard device is a directory on the host. The nor device (alias flash)
// is a bbolt database standing in for the board's QSPI NOR chip; every record
// is stored compressed with a BLAKE3 digest of its payload.
package storage
