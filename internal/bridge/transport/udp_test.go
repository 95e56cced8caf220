package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
)

func loopbackPair(t *testing.T) (*UDPEndpoint, *UDPEndpoint) {
	t.Helper()
	in, err := Bind("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	t.Cleanup(func() { in.Close() })

	out, err := Connect("127.0.0.1", in.Port())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { out.Close() })
	return in, out
}

func TestBindConnect_RoundTrip(t *testing.T) {
	in, out := loopbackPair(t)

	n, err := out.Send([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Send wrote %d bytes, want 4", n)
	}

	buf := make([]byte, 64)
	n, err = in.Receive(buf, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if n != 4 || buf[0] != 1 || buf[3] != 4 {
		t.Errorf("Receive got %v (n=%d)", buf[:n], n)
	}
}

func TestReceive_ZeroTimeoutReturnsImmediately(t *testing.T) {
	in, _ := loopbackPair(t)

	start := time.Now()
	_, err := in.Receive(make([]byte, 16), 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero-timeout receive took %v", elapsed)
	}
}

func TestReceive_TimeoutHonoured(t *testing.T) {
	in, _ := loopbackPair(t)

	start := time.Now()
	_, err := in.Receive(make([]byte, 16), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("receive returned after %v, expected to wait ~20ms", elapsed)
	}
}

func TestReceive_DrainQueued(t *testing.T) {
	in, out := loopbackPair(t)

	for i := byte(0); i < 5; i++ {
		if _, err := out.Send([]byte{i}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	buf := make([]byte, 8)
	var got []byte
	if n, err := in.Receive(buf, 500*time.Millisecond); err == nil && n == 1 {
		got = append(got, buf[0])
	}
	for {
		n, err := in.Receive(buf, 0)
		if err != nil {
			if !errors.Is(err, ErrTimeout) {
				t.Fatalf("unexpected error while draining: %v", err)
			}
			break
		}
		got = append(got, buf[:n]...)
	}
	if len(got) != 5 || got[4] != 4 {
		t.Errorf("drained %v, want [0 1 2 3 4]", got)
	}
}

func TestBind_InvalidAddress(t *testing.T) {
	// TEST-NET-3 is never assigned to a local interface.
	_, err := Bind("203.0.113.1", 0)
	if err == nil {
		t.Fatal("expected bind error")
	}
	if !errors.Is(err, fault.ErrTransportSetup) {
		t.Errorf("expected ErrTransportSetup, got %v", err)
	}
}

func TestClose_Twice(t *testing.T) {
	in, err := Bind("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := in.Receive(make([]byte, 4), 0); err == nil {
		t.Error("expected error receiving on closed endpoint")
	}
}

func TestUDPFactory(t *testing.T) {
	f := NewUDPFactory()
	in, err := f.Bind("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	defer in.Close()
	if in.LocalAddr() == nil {
		t.Error("expected non-nil local address")
	}

	port := in.(*UDPEndpoint).Port()
	out, err := f.Connect("127.0.0.1", port)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer out.Close()
}
