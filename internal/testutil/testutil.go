// Package testutil provides shared test helpers: assertions, loopback HTTP
// requests for the tsweb debug routes and loopback UDP peers.
package testutil

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewDebugRequest creates a request that tsweb.Debugger accepts: the remote
// address is loopback.
func NewDebugRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// ServeDebug runs a debug request through h and returns the recorder.
func ServeDebug(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, NewDebugRequest(method, path))
	return w
}

// UDPPeer is a loopback UDP socket standing in for the far end of a link.
type UDPPeer struct {
	Conn *net.UDPConn
}

// ListenUDP opens a UDPPeer on an ephemeral loopback port. It is closed
// when the test ends.
func ListenUDP(t testing.TB) *UDPPeer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &UDPPeer{Conn: conn}
}

// Port returns the peer's local port.
func (p *UDPPeer) Port() int {
	return p.Conn.LocalAddr().(*net.UDPAddr).Port
}

// SendTo writes b to 127.0.0.1:port.
func (p *UDPPeer) SendTo(t testing.TB, port int, b []byte) {
	t.Helper()
	if _, err := p.Conn.WriteToUDP(b, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}); err != nil {
		t.Fatalf("send to port %d: %v", port, err)
	}
}

// Read waits up to timeout for one datagram. ok is false on timeout.
func (p *UDPPeer) Read(t testing.TB, timeout time.Duration) (b []byte, ok bool) {
	t.Helper()
	buf := make([]byte, 64*1024)
	if err := p.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	n, _, err := p.Conn.ReadFromUDP(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, false
	}
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}
	return buf[:n], true
}

// FreeUDPPort returns a loopback port that was free at the time of the call.
func FreeUDPPort(t testing.TB) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
