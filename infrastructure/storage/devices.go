package storage

import (
	"fmt"

	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// Device names.
const (
	DeviceSDCard = "sdcard"
	DeviceNOR    = "nor"
	DeviceFlash  = "flash"
)

// Devices routes device paths to the mounted devices. It implements
// ports.FileReader, ports.DirLister and ports.FileWriter.
type Devices struct {
	sdcard *SDCard
	nor    *Flash
}

// DevicesOption mounts a device.
type DevicesOption func(*Devices)

// WithSDCard mounts the sdcard device.
func WithSDCard(sd *SDCard) DevicesOption {
	return func(d *Devices) { d.sdcard = sd }
}

// WithNOR mounts the nor device, also reachable as flash.
func WithNOR(f *Flash) DevicesOption {
	return func(d *Devices) { d.nor = f }
}

// NewDevices creates a router. Devices not mounted report ErrNotMounted.
func NewDevices(opts ...DevicesOption) *Devices {
	d := &Devices{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type device interface {
	ReadFile(p Path, dst []byte) (int, error)
	List(p Path) ([]ports.DirEntry, error)
}

func (d *Devices) resolve(raw string) (device, Path, error) {
	p := ParsePath(raw)
	name, ok := p.Device()
	if !ok {
		return nil, p, ErrNoDevice
	}
	switch name {
	case DeviceSDCard:
		if d.sdcard == nil {
			return nil, p, fmt.Errorf("%w: %s", ErrNotMounted, name)
		}
		return d.sdcard, p, nil
	case DeviceNOR, DeviceFlash:
		if d.nor == nil {
			return nil, p, fmt.Errorf("%w: %s", ErrNotMounted, name)
		}
		return d.nor, p, nil
	}
	return nil, p, fmt.Errorf("%w '%s'", ErrUnknownDevice, name)
}

// ReadFile copies the file at path into dst.
func (d *Devices) ReadFile(path string, dst []byte) (int, error) {
	dev, p, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	return dev.ReadFile(p, dst)
}

// List lists the directory at path.
func (d *Devices) List(path string) ([]ports.DirEntry, error) {
	dev, p, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	return dev.List(p)
}

// WriteFile stores data at path. Only the nor device is writable.
func (d *Devices) WriteFile(path string, data []byte) error {
	dev, p, err := d.resolve(path)
	if err != nil {
		return err
	}
	f, ok := dev.(*Flash)
	if !ok {
		name, _ := p.Device()
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return f.Put(p.Rel(), data)
}
