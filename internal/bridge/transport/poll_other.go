//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Platforms without poll(2) in x/sys/unix fall back to read deadlines.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}

func (e *UDPEndpoint) pollReceive(buf []byte, timeout time.Duration) (int, error) {
	if timeout == 0 {
		timeout = time.Microsecond
	}
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := e.conn.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, ErrTimeout
	}
	return n, err
}

func (e *UDPEndpoint) writeOnce(b []byte) (int, error) {
	if err := e.conn.SetWriteDeadline(time.Now().Add(time.Microsecond)); err != nil {
		return 0, err
	}
	return e.conn.Write(b)
}
