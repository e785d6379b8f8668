package storage

import (
	"strings"
	"unicode"
)

// Path is a parsed device path. Leading and trailing whitespace is ignored,
// as are repeated and trailing slashes.
//
//	"  sdcard: //apps/hello.h7/ " -> device "sdcard", parts [apps hello.h7]
type Path struct {
	device    string
	hasDevice bool
	path      string
	absolute  bool
}

// ParsePath parses raw. It never fails; a path without a device is still a
// Path, it just cannot be opened.
func ParsePath(raw string) Path {
	raw = strings.TrimSpace(raw)

	var p Path
	rawPath := raw
	if n := strings.IndexByte(raw, ':'); n >= 0 {
		p.device = strings.TrimSpace(raw[:n])
		p.hasDevice = true
		rawPath = strings.TrimSpace(raw[n+1:])
	}

	isSep := func(r rune) bool { return r == '/' || unicode.IsSpace(r) }
	switch rawPath {
	case "", "/":
		p.path = rawPath
	default:
		n := strings.IndexFunc(rawPath, func(r rune) bool { return !isSep(r) })
		if n < 0 {
			p.path = "/"
		} else {
			p.path = strings.TrimRightFunc(rawPath[max(n-1, 0):], isSep)
		}
	}
	p.absolute = strings.HasPrefix(p.path, "/") || p.hasDevice
	return p
}

// Device returns the device name and whether one was given.
func (p Path) Device() (string, bool) { return p.device, p.hasDevice }

// IsAbsolute reports whether the path is rooted. Paths with a device always
// are.
func (p Path) IsAbsolute() bool { return p.absolute }

// Parts returns the non-empty path components.
func (p Path) Parts() []string {
	var parts []string
	for _, s := range strings.Split(p.path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// Rel returns the components joined with '/', without a leading slash.
func (p Path) Rel() string { return strings.Join(p.Parts(), "/") }

func (p Path) String() string {
	var b strings.Builder
	if p.hasDevice {
		b.WriteString(p.device)
		b.WriteByte(':')
	}
	if p.absolute {
		b.WriteByte('/')
	}
	b.WriteString(p.Rel())
	return b.String()
}
