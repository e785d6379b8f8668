package ports

import "io"

// Transport is the terminal link: the board's UART, or the host console.
// Reads may return (0, nil) when no data arrived within the transport's poll
// interval.
type Transport interface {
	io.ReadWriteCloser
}
