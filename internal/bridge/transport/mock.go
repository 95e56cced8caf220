package transport

import (
	"net"
	"sync"
	"time"
)

// MockEndpoint implements Endpoint for testing. Queued datagrams are returned
// by Receive in order; an empty queue reports ErrTimeout.
type MockEndpoint struct {
	mu sync.Mutex
	// Queue holds the datagrams to return from Receive.
	Queue [][]byte
	// Sent records every datagram passed to Send.
	Sent [][]byte
	// Timeouts records the timeout of every Receive call.
	Timeouts []time.Duration
	// ReceiveError is returned on the next Receive call if set.
	ReceiveError error
	// SendError is returned by every Send call while set.
	SendError error
	// Closed indicates whether Close was called.
	Closed bool
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// Gate, when set, holds every Receive until it is closed. The call is
	// recorded in Timeouts before it waits.
	Gate chan struct{}
}

// NewMockEndpoint creates a MockEndpoint with the given queued datagrams.
func NewMockEndpoint(queue ...[]byte) *MockEndpoint {
	return &MockEndpoint{
		Queue: queue,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 9002,
		},
	}
}

// Push queues a datagram for a later Receive.
func (m *MockEndpoint) Push(datagrams ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range datagrams {
		cp := make([]byte, len(d))
		copy(cp, d)
		m.Queue = append(m.Queue, cp)
	}
}

// Pending returns the number of queued datagrams.
func (m *MockEndpoint) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queue)
}

// Receive pops the next queued datagram.
func (m *MockEndpoint) Receive(buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	m.Timeouts = append(m.Timeouts, timeout)
	gate := m.Gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.ReceiveError != nil {
		err := m.ReceiveError
		m.ReceiveError = nil
		return 0, err
	}
	if len(m.Queue) == 0 {
		return 0, ErrTimeout
	}
	d := m.Queue[0]
	m.Queue = m.Queue[1:]
	return copy(buf, d), nil
}

// ReceiveCalls returns the number of Receive calls so far, including one
// still held by Gate.
func (m *MockEndpoint) ReceiveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Timeouts)
}

// Send records the datagram.
func (m *MockEndpoint) Send(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.SendError != nil {
		return 0, m.SendError
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	m.Sent = append(m.Sent, cp)
	return len(b), nil
}

// SentCount returns the number of datagrams sent so far.
func (m *MockEndpoint) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// LastSent returns the most recently sent datagram, or nil.
func (m *MockEndpoint) LastSent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}

// Close marks the endpoint as closed.
func (m *MockEndpoint) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LocalAddr returns the mock local address.
func (m *MockEndpoint) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockFactory implements Factory for testing.
type MockFactory struct {
	// In is returned from Bind.
	In *MockEndpoint
	// Out is returned from Connect.
	Out *MockEndpoint
	// BindError is returned by Bind if set.
	BindError error
	// ConnectError is returned by Connect if set.
	ConnectError error
	// Calls records every Bind and Connect call.
	Calls []MockCall
}

// MockCall records a call to Bind or Connect.
type MockCall struct {
	Op      string
	Address string
	Port    int
}

// NewMockFactory creates a MockFactory with fresh endpoints.
func NewMockFactory() *MockFactory {
	out := NewMockEndpoint()
	out.LocalAddress = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40000}
	return &MockFactory{In: NewMockEndpoint(), Out: out}
}

// Bind returns the In endpoint.
func (f *MockFactory) Bind(address string, port int) (Endpoint, error) {
	f.Calls = append(f.Calls, MockCall{Op: "bind", Address: address, Port: port})
	if f.BindError != nil {
		return nil, f.BindError
	}
	return f.In, nil
}

// Connect returns the Out endpoint.
func (f *MockFactory) Connect(address string, port int) (Endpoint, error) {
	f.Calls = append(f.Calls, MockCall{Op: "connect", Address: address, Port: port})
	if f.ConnectError != nil {
		return nil, f.ConnectError
	}
	return f.Out, nil
}
