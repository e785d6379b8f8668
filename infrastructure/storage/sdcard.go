package storage

import (
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// Storage errors.
var (
	ErrUnknownDevice = errors.New(errors.ErrStorage, "unknown device")
	ErrNoDevice      = errors.New(errors.ErrStorage, "no device selected")
	ErrNotMounted    = errors.New(errors.ErrStorage, "device not available")
	ErrNotFound      = errors.New(errors.ErrStorage, "file not found")
	ErrIsDir         = errors.New(errors.ErrStorage, "is a directory")
	ErrFileTooLarge  = errors.New(errors.ErrStorage, "file too large")
	ErrReadOnly      = errors.New(errors.ErrStorage, "device is read-only")
	ErrCorrupt       = errors.New(errors.ErrStorage, "record corrupt")
	ErrInvalidName   = errors.New(errors.ErrStorage, "invalid name")
)

// SDCard serves a host directory as the sdcard device. Lookups cannot
// escape the directory.
type SDCard struct {
	root *os.Root
}

// OpenSDCard opens dir as the card root.
func OpenSDCard(dir string) (*SDCard, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open sdcard root: %w", err)
	}
	return &SDCard{root: root}, nil
}

// Close releases the root directory.
func (s *SDCard) Close() error { return s.root.Close() }

func (s *SDCard) open(p Path) (*os.File, error) {
	name := p.Rel()
	if name == "" {
		name = "."
	}
	f, err := s.root.Open(name)
	if stdErrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return f, err
}

// ReadFile copies the file at p into dst.
func (s *SDCard) ReadFile(p Path, dst []byte) (int, error) {
	f, err := s.open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrIsDir, p)
	}
	if info.Size() > int64(len(dst)) {
		return 0, fmt.Errorf("%w: %s is %d bytes, room for %d", ErrFileTooLarge, p, info.Size(), len(dst))
	}
	return io.ReadFull(f, dst[:info.Size()])
}

// List returns the visible entries of the directory at p, sorted by name.
func (s *SDCard) List(p Path) ([]ports.DirEntry, error) {
	f, err := s.open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	des, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	entries := make([]ports.DirEntry, 0, len(des))
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e := ports.DirEntry{Name: de.Name(), Dir: de.IsDir()}
		if !e.Dir {
			if info, err := de.Info(); err == nil {
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b ports.DirEntry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}
