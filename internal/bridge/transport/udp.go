package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
)

// UDPEndpoint is a non-blocking UDP socket. Receive endpoints are created
// with Bind and send endpoints with Connect.
type UDPEndpoint struct {
	conn *net.UDPConn
	raw  syscall.RawConn
}

// Bind opens a receive endpoint on address:port. SO_REUSEADDR is set before
// the bind so a restarted simulator can reclaim the port immediately.
func Bind(address string, port int) (*UDPEndpoint, error) {
	hostport := net.JoinHostPort(address, strconv.Itoa(port))
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp", hostport)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to bind %s: %v", fault.ErrTransportSetup, hostport, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("%w: unexpected packet conn %T", fault.ErrTransportSetup, pc)
	}
	return newUDPEndpoint(conn)
}

// Connect opens a send endpoint associated with address:port.
func Connect(address string, port int) (*UDPEndpoint, error) {
	hostport := net.JoinHostPort(address, strconv.Itoa(port))
	d := net.Dialer{Control: reuseAddrControl}
	c, err := d.DialContext(context.Background(), "udp", hostport)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect %s: %v", fault.ErrTransportSetup, hostport, err)
	}
	conn, ok := c.(*net.UDPConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("%w: unexpected conn %T", fault.ErrTransportSetup, c)
	}
	return newUDPEndpoint(conn)
}

func newUDPEndpoint(conn *net.UDPConn) (*UDPEndpoint, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: raw socket access: %v", fault.ErrTransportSetup, err)
	}
	return &UDPEndpoint{conn: conn, raw: raw}, nil
}

// Receive waits up to timeout for a datagram. See pollReceive for the
// platform-specific readiness wait.
func (e *UDPEndpoint) Receive(buf []byte, timeout time.Duration) (int, error) {
	if timeout < 0 {
		timeout = 0
	}
	return e.pollReceive(buf, timeout)
}

// Send writes b once. A full socket buffer is reported as an error rather
// than waited out.
func (e *UDPEndpoint) Send(b []byte) (int, error) {
	return e.writeOnce(b)
}

// Close closes the socket. Closing twice is not an error.
func (e *UDPEndpoint) Close() error {
	if err := e.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// LocalAddr returns the local network address.
func (e *UDPEndpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Port returns the bound local port, useful when binding to port 0.
func (e *UDPEndpoint) Port() int {
	if addr, ok := e.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}
