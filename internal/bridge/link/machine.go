// Package link classifies the inbound command stream into Offline and Online
// and decodes the freshest datagram into rotor commands.
package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/rotor"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
)

// Transition reports a state change made by Step.
type Transition int

const (
	NoTransition Transition = iota
	WentOnline
	WentOffline
)

func (t Transition) String() string {
	switch t {
	case WentOnline:
		return "online"
	case WentOffline:
		return "offline"
	default:
		return "none"
	}
}

// Options configures a Machine. Zero values select the defaults.
type Options struct {
	Name                 string
	TimeoutMaxCount      int
	OfflineWait          time.Duration
	OnlineWait           time.Duration
	ResetPIDOnDisconnect bool
	Codec                wire.Codec
}

// Stats are cumulative counters.
type Stats struct {
	Received      uint64 `json:"received"`       // datagrams read, including drained ones
	Drained       uint64 `json:"drained"`        // datagrams discarded in favour of a newer one
	Rejected      uint64 `json:"rejected"`       // undersized datagrams
	ChannelFaults uint64 `json:"channel_faults"` // rotor channels a datagram could not serve
	RuntimeErrors uint64 `json:"runtime_errors"`
	Transitions   uint64 `json:"transitions"`
}

// Result describes one Step.
type Result struct {
	Received   bool  // a usable datagram was decoded
	Drained    int   // older datagrams discarded this step
	Rejected   error // protocol error for the newest datagram, if any
	Err        error // transport runtime error, if any
	Transition Transition
}

// Machine is the connection state machine. It owns its state; callers pass
// the rotor slice into each Step.
type Machine struct {
	ep    transport.Endpoint
	codec wire.Codec
	opts  Options

	online       bool
	timeoutCount int
	stats        Stats

	// channelFaults counts per rotor ID so each rotor logs on its first
	// fault and every channelLogEvery after that.
	channelFaults map[int]uint64

	buf    [wire.CommandSize]byte
	latest [wire.CommandSize]byte
	pkt    wire.CommandPacket
}

// NewMachine creates a Machine in the Offline state reading from ep.
func NewMachine(ep transport.Endpoint, opts Options) *Machine {
	if opts.OfflineWait == 0 {
		opts.OfflineWait = time.Millisecond
	}
	if opts.OnlineWait == 0 {
		opts.OnlineWait = time.Second
	}
	if opts.Name == "" {
		opts.Name = "bridge"
	}
	return &Machine{ep: ep, codec: opts.Codec, opts: opts, channelFaults: make(map[int]uint64)}
}

const channelLogEvery = 1000

// Online reports whether a controller is believed present.
func (m *Machine) Online() bool { return m.online }

// TimeoutCount returns the consecutive missed updates.
func (m *Machine) TimeoutCount() int { return m.timeoutCount }

// TimeoutMaxCount returns the configured miss tolerance.
func (m *Machine) TimeoutMaxCount() int { return m.opts.TimeoutMaxCount }

// Stats returns the cumulative counters.
func (m *Machine) Stats() Stats { return m.stats }

// Wait returns the receive timeout for the current state.
func (m *Machine) Wait() time.Duration {
	if m.online {
		return m.opts.OnlineWait
	}
	return m.opts.OfflineWait
}

// Step receives, drains, classifies and decodes once.
func (m *Machine) Step(rotors []*rotor.Rotor) Result {
	var res Result

	size, err := m.receiveLatest(&res)
	if err != nil {
		res.Err = err
		m.stats.RuntimeErrors++
		monitoring.Logf("[%s] %s fault: %v", m.opts.Name, fault.Kind(err), err)
	}

	if size >= 0 {
		if rerr := m.decode(size, rotors); rerr != nil {
			res.Rejected = rerr
			m.stats.Rejected++
			monitoring.Logf("[%s] rejected datagram (%s fault): %v", m.opts.Name, fault.Kind(rerr), rerr)
		} else {
			res.Received = true
		}
	}

	if !res.Received {
		m.timeoutCount++
		if m.online {
			monitoring.Logf("[%s] broken connection count [%d/%d]", m.opts.Name, m.timeoutCount, m.opts.TimeoutMaxCount)
			if m.timeoutCount > m.opts.TimeoutMaxCount {
				m.online = false
				m.timeoutCount = 0
				rotor.ResetCommands(rotors, m.opts.ResetPIDOnDisconnect)
				res.Transition = WentOffline
				m.stats.Transitions++
				monitoring.Logf("[%s] controller lost, actuators zeroed", m.opts.Name)
			}
		}
		return res
	}

	m.timeoutCount = 0
	if !m.online {
		m.online = true
		res.Transition = WentOnline
		m.stats.Transitions++
		monitoring.Logf("[%s] controller connected", m.opts.Name)
	}
	m.apply(rotors, size)
	return res
}

// receiveLatest waits once, then drains with zero-timeout receives, keeping
// the newest datagram in m.latest. Returns its size, or -1 when nothing
// arrived.
func (m *Machine) receiveLatest(res *Result) (int, error) {
	n, err := m.ep.Receive(m.buf[:], m.Wait())
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return -1, nil
		}
		return -1, fmt.Errorf("%w: receive: %v", fault.ErrTransportRuntime, err)
	}
	m.stats.Received++
	size := copy(m.latest[:], m.buf[:n])

	for {
		n, err = m.ep.Receive(m.buf[:], 0)
		if err != nil {
			break
		}
		m.stats.Received++
		res.Drained++
		size = copy(m.latest[:], m.buf[:n])
	}
	if res.Drained > 0 {
		m.stats.Drained += uint64(res.Drained)
		monitoring.Debugf("[%s] Drained %d packets", m.opts.Name, res.Drained)
	}
	if !errors.Is(err, transport.ErrTimeout) {
		return size, fmt.Errorf("%w: drain: %v", fault.ErrTransportRuntime, err)
	}
	return size, nil
}

// decode checks the size against the configured rotor count and fills
// m.pkt with every slot the datagram carries.
func (m *Machine) decode(size int, rotors []*rotor.Rotor) error {
	if size < wire.MinCommandLen(len(rotors)) {
		return fmt.Errorf("%w: got %d bytes, need %d for %d actuators",
			wire.ErrUndersized, size, wire.MinCommandLen(len(rotors)), len(rotors))
	}
	slots := min(size/4, wire.MaxActuators)
	return m.codec.DecodeCommand(m.latest[:size], slots, &m.pkt)
}

func (m *Machine) apply(rotors []*rotor.Rotor, size int) {
	slots := min(size/4, wire.MaxActuators)
	for _, r := range rotors {
		switch {
		case r.Channel >= wire.MaxActuators:
			m.channelFault(r, fmt.Errorf("%w: rotor %d channel %d exceeds packet capacity %d",
				fault.ErrProtocol, r.ID, r.Channel, wire.MaxActuators))
		case r.Channel >= slots:
			m.channelFault(r, fmt.Errorf("%w: rotor %d channel %d beyond %d-slot datagram",
				fault.ErrProtocol, r.ID, r.Channel, slots))
		default:
			r.SetCommand(float64(m.pkt.MotorSpeed[r.Channel]))
		}
	}
}

// channelFault counts a rotor the datagram could not serve. The rotor keeps
// its previous command.
func (m *Machine) channelFault(r *rotor.Rotor, err error) {
	m.stats.ChannelFaults++
	n := m.channelFaults[r.ID] + 1
	m.channelFaults[r.ID] = n
	if n == 1 || n%channelLogEvery == 0 {
		monitoring.Logf("[%s] %s fault: %v (%d times)", m.opts.Name, fault.Kind(err), err, n)
	}
}
