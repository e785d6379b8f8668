package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"

	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// Bucket names for the flash database.
var (
	bucketImages = []byte("images")
	bucketSizes  = []byte("sizes")
)

const digestSize = 32

// flashConfig holds configuration for the Flash store.
type flashConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
	timeout  time.Duration
}

func defaultFlashConfig() flashConfig {
	return flashConfig{
		path:     "nor.db",
		dirPerm:  0o755,
		filePerm: 0o600,
		timeout:  5 * time.Second,
	}
}

// FlashOption configures a Flash store.
type FlashOption func(*flashConfig)

// WithFlashPath sets the database file.
func WithFlashPath(path string) FlashOption {
	return func(c *flashConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the permissions of a newly created database.
// Default is 0o600.
func WithFilePermissions(perm os.FileMode) FlashOption {
	return func(c *flashConfig) {
		c.filePerm = perm
	}
}

// WithLockTimeout bounds how long Open waits for another process holding
// the database.
func WithLockTimeout(d time.Duration) FlashOption {
	return func(c *flashConfig) {
		c.timeout = d
	}
}

// Flash is the nor device: a flat namespace of named images.
type Flash struct {
	db  *bolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenFlash creates or opens the store.
func OpenFlash(opts ...FlashOption) (*Flash, error) {
	cfg := defaultFlashConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.path), cfg.dirPerm); err != nil {
		return nil, fmt.Errorf("create flash directory: %w", err)
	}
	db, err := bolt.Open(cfg.path, cfg.filePerm, &bolt.Options{Timeout: cfg.timeout})
	if err != nil {
		return nil, fmt.Errorf("open flash database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketImages, bucketSizes} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}
	return &Flash{db: db, enc: enc, dec: dec}, nil
}

// Close flushes and closes the database.
func (f *Flash) Close() error {
	f.enc.Close()
	f.dec.Close()
	return f.db.Close()
}

// Put stores payload under name, replacing any previous record.
func (f *Flash) Put(name string, payload []byte) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	sum := blake3.Sum256(payload)
	record := f.enc.EncodeAll(payload, sum[:])

	size := make([]byte, 8)
	binary.BigEndian.PutUint64(size, uint64(len(payload)))

	return f.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketImages).Put([]byte(name), record); err != nil {
			return err
		}
		return tx.Bucket(bucketSizes).Put([]byte(name), size)
	})
}

// Get returns the payload stored under name after checking its digest.
func (f *Flash) Get(name string) ([]byte, error) {
	var record []byte
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketImages).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: nor:/%s", ErrNotFound, name)
		}
		record = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(record) < digestSize {
		return nil, fmt.Errorf("%w: %s: short record", ErrCorrupt, name)
	}
	payload, err := f.dec.DecodeAll(record[digestSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if sum := blake3.Sum256(payload); !bytes.Equal(sum[:], record[:digestSize]) {
		return nil, fmt.Errorf("%w: %s: digest mismatch", ErrCorrupt, name)
	}
	return payload, nil
}

// Delete removes name. Deleting a missing record is not an error.
func (f *Flash) Delete(name string) error {
	return f.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketImages).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketSizes).Delete([]byte(name))
	})
}

// ReadFile copies the record at p into dst.
func (f *Flash) ReadFile(p Path, dst []byte) (int, error) {
	payload, err := f.Get(p.Rel())
	if err != nil {
		return 0, err
	}
	if len(payload) > len(dst) {
		return 0, fmt.Errorf("%w: %s is %d bytes, room for %d", ErrFileTooLarge, p, len(payload), len(dst))
	}
	return copy(dst, payload), nil
}

// List returns the records whose names start with p's components, in key
// order. The store is flat, so there are no directory entries.
func (f *Flash) List(p Path) ([]ports.DirEntry, error) {
	prefix := []byte(p.Rel())
	if len(prefix) > 0 {
		prefix = append(prefix, '/')
	}

	var entries []ports.DirEntry
	err := f.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSizes).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var size int64
			if len(v) == 8 {
				size = int64(binary.BigEndian.Uint64(v))
			}
			entries = append(entries, ports.DirEntry{Name: string(k[len(prefix):]), Size: size})
		}
		return nil
	})
	return entries, err
}
