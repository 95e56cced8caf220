// Package transport wraps the two UDP endpoints used by the bridge: a bound
// receive endpoint for controller commands and a connected send endpoint for
// state packets. Both are non-blocking; the only wait is the bounded
// readiness poll inside Receive.
package transport

import (
	"errors"
	"net"
	"time"
)

// ErrTimeout is returned by Receive when no datagram became ready within the
// timeout. It is distinct from genuine socket faults.
var ErrTimeout = errors.New("transport: receive timeout")

// Endpoint defines the datagram operations the bridge relies on.
// This abstraction enables unit testing without real network connections.
type Endpoint interface {
	// Receive waits up to timeout for one datagram and copies it into buf.
	// A zero timeout polls once. Returns ErrTimeout when nothing is ready.
	Receive(buf []byte, timeout time.Duration) (int, error)

	// Send writes b as a single datagram without blocking or retrying.
	Send(b []byte) (int, error)

	// Close releases the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// Factory creates endpoints. The bridge takes one so tests can inject mocks.
type Factory interface {
	// Bind opens a receive endpoint on address:port with address reuse.
	Bind(address string, port int) (Endpoint, error)

	// Connect opens a send endpoint associated with address:port.
	Connect(address string, port int) (Endpoint, error)
}

// UDPFactory implements Factory with real UDP sockets.
type UDPFactory struct{}

// NewUDPFactory creates a new UDPFactory.
func NewUDPFactory() *UDPFactory {
	return &UDPFactory{}
}

// Bind creates a bound receive endpoint.
func (UDPFactory) Bind(address string, port int) (Endpoint, error) {
	ep, err := Bind(address, port)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// Connect creates a connected send endpoint.
func (UDPFactory) Connect(address string, port int) (Endpoint, error) {
	ep, err := Connect(address, port)
	if err != nil {
		return nil, err
	}
	return ep, nil
}
