package ports

// FileReader is the filesystem collaborator. Paths use the device syntax
// "device:/path/to/file".
type FileReader interface {
	// ReadFile copies the file at path into dst and returns the number of
	// bytes read. A file larger than dst is an error, not a short read.
	ReadFile(path string, dst []byte) (int, error)
}

// DirEntry describes one item of a directory listing.
type DirEntry struct {
	Name string
	Size int64
	Dir  bool
}

// DirLister lists directories on a device.
type DirLister interface {
	List(path string) ([]DirEntry, error)
}

// FileWriter stores a file on a writable device.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}
