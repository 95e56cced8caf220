//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// pollReceive runs poll(2) on the raw descriptor and then a single read. The
// callback always returns true so the goroutine is never parked on the
// runtime netpoller and the caller's timeout budget is exact.
func (e *UDPEndpoint) pollReceive(buf []byte, timeout time.Duration) (int, error) {
	var (
		n       int
		recvErr error
	)
	err := e.raw.Read(func(fd uintptr) bool {
		n, recvErr = pollAndRead(int(fd), buf, timeout)
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, recvErr
}

func pollAndRead(fd int, buf []byte, timeout time.Duration) (int, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)
	for {
		ready, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, ErrTimeout
			}
			ms = int(remaining / time.Millisecond)
			continue
		}
		if err != nil {
			return 0, err
		}
		if ready == 0 {
			return 0, ErrTimeout
		}
		break
	}

	n, err := unix.Read(fd, buf)
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
		return 0, ErrTimeout
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (e *UDPEndpoint) writeOnce(b []byte) (int, error) {
	var (
		n       int
		sendErr error
	)
	err := e.raw.Write(func(fd uintptr) bool {
		n, sendErr = unix.Write(int(fd), b)
		return true
	})
	if err != nil {
		return 0, err
	}
	if sendErr != nil {
		return 0, sendErr
	}
	return n, nil
}
