// Package bridge couples a simulated multirotor to an external flight
// controller. One Bridge owns two UDP endpoints, the rotor set, the link
// state machine and the telemetry encoder, and does all of its work inside
// Tick on the caller's goroutine.
package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/control"
	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/link"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"github.com/banshee-data/flight.bridge/internal/bridge/rotor"
	"github.com/banshee-data/flight.bridge/internal/bridge/telemetry"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/timeutil"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is one online tick as seen by a Recorder.
type Sample struct {
	SimTime   time.Duration
	Telemetry wire.TelemetryPacket
	Commands  []float64 // commanded rate per rotor
	Forces    []float64 // applied force per rotor
}

// Recorder receives every sent telemetry sample and every link transition.
type Recorder interface {
	Record(s Sample) error
	RecordTransition(simTime time.Duration, t link.Transition) error
}

// Options supplies the collaborators resolved by the host.
type Options struct {
	Model physics.Model
	IMU   physics.IMU
	// Factory defaults to real UDP sockets.
	Factory  transport.Factory
	Recorder Recorder
	// Clock is used for log rate limiting. Defaults to the wall clock.
	Clock timeutil.Clock
}

// TickResult describes one call to Tick.
type TickResult struct {
	Ran  bool // false when simTime did not advance
	Link link.Result
	Sent bool
}

// Bridge is one bridge instance.
type Bridge struct {
	// mu is held for a whole Tick, including the link receive wait.
	mu sync.Mutex

	// statusMu guards status, the snapshot published at the end of every
	// Tick. Readers never wait on mu.
	statusMu sync.RWMutex
	status   Status

	id   uuid.UUID
	name string
	cfg  *config.BridgeConfig

	in, out transport.Endpoint
	rotors  []*rotor.Rotor
	link    *link.Machine
	enc     *telemetry.Encoder
	rec     Recorder

	lastUpdate time.Duration
	ticks      uint64
	recErrors  uint64
	closed     bool
}

// New validates cfg, resolves joints and opens both endpoints. Any failure
// releases what was opened and returns an error wrapping a fault kind; the
// host keeps running.
func New(cfg *config.BridgeConfig, opts Options) (*Bridge, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", fault.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.IMU == nil {
		return nil, fmt.Errorf("%w: couldn't find imu sensor %q", fault.ErrConfiguration, cfg.GetIMUName())
	}
	rotors, err := rotor.Build(cfg.Rotors, opts.Model)
	if err != nil {
		return nil, err
	}

	factory := opts.Factory
	if factory == nil {
		factory = transport.NewUDPFactory()
	}
	in, err := factory.Bind(cfg.GetListenAddr(), cfg.GetListenPort())
	if err != nil {
		return nil, setupError(err)
	}
	out, err := factory.Connect(cfg.GetFDMAddr(), cfg.GetFDMPort())
	if err != nil {
		in.Close()
		return nil, setupError(err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	codec := wire.NewCodec(cfg.GetByteOrder())
	b := &Bridge{
		id:     uuid.New(),
		name:   cfg.GetName(),
		cfg:    cfg,
		in:     in,
		out:    out,
		rotors: rotors,
		rec:    opts.Recorder,
		link: link.NewMachine(in, link.Options{
			Name:                 cfg.GetName(),
			TimeoutMaxCount:      cfg.GetConnectionTimeoutMaxCount(),
			OfflineWait:          cfg.GetOfflineReceiveTimeout(),
			OnlineWait:           cfg.GetOnlineReceiveTimeout(),
			ResetPIDOnDisconnect: cfg.GetResetPIDOnDisconnect(),
			Codec:                codec,
		}),
		enc: &telemetry.Encoder{
			Name:  cfg.GetName(),
			Model: opts.Model,
			IMU:   opts.IMU,
			NED: frame.NED{
				Reference:  poseFromConfig(cfg.GetGazeboToNED()),
				BodyOffset: poseFromConfig(cfg.GetModelToAirplane()),
			},
			Codec: codec,
			Out:   out,
			Clock: clock,
		},
	}
	b.publish()
	monitoring.Logf("[%s] bridge %s: %d rotors, listening on %s, sending to %s:%d",
		b.name, b.id, len(rotors), in.LocalAddr(), cfg.GetFDMAddr(), cfg.GetFDMPort())
	return b, nil
}

func setupError(err error) error {
	if errors.Is(err, fault.ErrTransportSetup) {
		return err
	}
	return fmt.Errorf("%w: %v", fault.ErrTransportSetup, err)
}

func poseFromConfig(p config.PoseConfig) frame.Pose {
	return frame.NewPose(r3.Vec{X: p.XYZ[0], Y: p.XYZ[1], Z: p.XYZ[2]}, p.RPY[0], p.RPY[1], p.RPY[2])
}

// Tick runs one bridge step at simulation time simTime. Work happens only
// when simTime is strictly after the previous call; the stored time is
// replaced on every call so a world reset re-arms the gate.
func (b *Bridge) Tick(simTime time.Duration) TickResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.publish()

	var res TickResult
	if b.closed {
		return res
	}
	last := b.lastUpdate
	b.lastUpdate = simTime
	if simTime <= last {
		return res
	}
	res.Ran = true
	b.ticks++

	res.Link = b.link.Step(b.rotors)
	if res.Link.Transition != link.NoTransition {
		b.record(func() error { return b.rec.RecordTransition(simTime, res.Link.Transition) })
	}
	if !b.link.Online() {
		return res
	}

	control.Apply(b.rotors, (simTime - last).Seconds())

	pkt := b.enc.Build(simTime)
	res.Sent = b.enc.Send(&pkt) == nil
	if res.Sent {
		b.record(func() error { return b.rec.Record(b.sample(simTime, pkt)) })
	}
	return res
}

func (b *Bridge) sample(simTime time.Duration, pkt wire.TelemetryPacket) Sample {
	s := Sample{
		SimTime:   simTime,
		Telemetry: pkt,
		Commands:  make([]float64, len(b.rotors)),
		Forces:    make([]float64, len(b.rotors)),
	}
	for i, r := range b.rotors {
		s.Commands[i] = r.CommandedRate
		s.Forces[i] = r.Force
	}
	return s
}

func (b *Bridge) record(f func() error) {
	if b.rec == nil {
		return
	}
	if err := f(); err != nil {
		b.recErrors++
		if b.recErrors == 1 || b.recErrors%1000 == 0 {
			monitoring.Logf("[%s] recorder: %v (%d errors)", b.name, err, b.recErrors)
		}
	}
}

// ID returns the instance id.
func (b *Bridge) ID() uuid.UUID { return b.id }

// Name returns the instance name.
func (b *Bridge) Name() string { return b.name }

// Close closes both endpoints. Closing twice is not an error.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.publish()
	monitoring.Logf("[%s] bridge %s closed", b.name, b.id)
	return errors.Join(b.in.Close(), b.out.Close())
}
