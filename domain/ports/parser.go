package ports

// ConfigParser decodes a raw configuration document into v.
type ConfigParser interface {
	// Parse unmarshals data into v, which must be a pointer.
	Parse(data []byte, v any) error
}
