// Package wire defines the two fixed-layout datagrams exchanged with the
// flight controller and their explicit byte-order codecs.
//
// CommandPacket (controller -> bridge) is 255 float32 slots with no padding.
// TelemetryPacket (bridge -> controller) is 17 float64 values, 136 bytes:
//
//	offset  field
//	0       timestamp
//	8       imu angular velocity (x, y, z)
//	32      imu linear acceleration (x, y, z)
//	56      orientation quaternion (w, x, y, z)
//	88      velocity NED
//	112     position NED
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
)

const (
	// MaxActuators is the fixed capacity of a CommandPacket.
	MaxActuators = 255

	// CommandSize is the byte length of a full CommandPacket.
	CommandSize = MaxActuators * 4

	// TelemetrySize is the byte length of a TelemetryPacket.
	TelemetrySize = 17 * 8
)

// ErrUndersized reports a datagram too short for the configured actuators.
var ErrUndersized = fmt.Errorf("%w: undersized datagram", fault.ErrProtocol)

// CommandPacket holds one normalized speed value per actuator slot.
type CommandPacket struct {
	MotorSpeed [MaxActuators]float32
}

// TelemetryPacket is the state sent to the controller every online tick.
type TelemetryPacket struct {
	Timestamp          float64
	AngularVelocity    [3]float64
	LinearAcceleration [3]float64
	Orientation        [4]float64 // w, x, y, z
	Velocity           [3]float64
	Position           [3]float64
}

// Codec encodes and decodes packets in a fixed byte order.
type Codec struct {
	Order binary.ByteOrder
}

// NewCodec returns a codec for order. A nil order selects the host order.
func NewCodec(order binary.ByteOrder) Codec {
	if order == nil {
		order = binary.NativeEndian
	}
	return Codec{Order: order}
}

// ParseByteOrder maps the configuration names native, little and big.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "", "native":
		return binary.NativeEndian, nil
	case "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: unknown byte order %q", fault.ErrConfiguration, name)
	}
}

func (c Codec) order() binary.ByteOrder {
	if c.Order == nil {
		return binary.NativeEndian
	}
	return c.Order
}

// MinCommandLen is the shortest datagram accepted for n actuators.
func MinCommandLen(n int) int {
	return 4 * n
}

// DecodeCommand decodes the first n slots of b into p. Slots beyond the
// datagram are left untouched. Returns ErrUndersized when b is shorter than
// MinCommandLen(n), and a protocol error when n exceeds MaxActuators.
func (c Codec) DecodeCommand(b []byte, n int, p *CommandPacket) error {
	if n > MaxActuators {
		return fmt.Errorf("%w: %d actuators exceeds packet capacity %d", fault.ErrProtocol, n, MaxActuators)
	}
	if len(b) < MinCommandLen(n) {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrUndersized, len(b), MinCommandLen(n))
	}
	o := c.order()
	for i := 0; i < n; i++ {
		p.MotorSpeed[i] = math.Float32frombits(o.Uint32(b[4*i:]))
	}
	return nil
}

// EncodeCommand writes all slots of p. Used by harness controllers.
func (c Codec) EncodeCommand(p *CommandPacket) []byte {
	o := c.order()
	b := make([]byte, CommandSize)
	for i, v := range p.MotorSpeed {
		o.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// EncodeTelemetry appends the 136-byte packet to dst and returns it.
func (c Codec) EncodeTelemetry(dst []byte, p *TelemetryPacket) []byte {
	o := c.order()
	var b [TelemetrySize]byte
	off := 0
	put := func(v float64) {
		o.PutUint64(b[off:], math.Float64bits(v))
		off += 8
	}
	put(p.Timestamp)
	for _, v := range p.AngularVelocity {
		put(v)
	}
	for _, v := range p.LinearAcceleration {
		put(v)
	}
	for _, v := range p.Orientation {
		put(v)
	}
	for _, v := range p.Velocity {
		put(v)
	}
	for _, v := range p.Position {
		put(v)
	}
	return append(dst, b[:]...)
}

// DecodeTelemetry parses a packet produced by EncodeTelemetry.
func (c Codec) DecodeTelemetry(b []byte) (TelemetryPacket, error) {
	var p TelemetryPacket
	if len(b) < TelemetrySize {
		return p, fmt.Errorf("%w: telemetry got %d bytes, need %d", ErrUndersized, len(b), TelemetrySize)
	}
	o := c.order()
	off := 0
	next := func() float64 {
		v := math.Float64frombits(o.Uint64(b[off:]))
		off += 8
		return v
	}
	p.Timestamp = next()
	for i := range p.AngularVelocity {
		p.AngularVelocity[i] = next()
	}
	for i := range p.LinearAcceleration {
		p.LinearAcceleration[i] = next()
	}
	for i := range p.Orientation {
		p.Orientation[i] = next()
	}
	for i := range p.Velocity {
		p.Velocity[i] = next()
	}
	for i := range p.Position {
		p.Position[i] = next()
	}
	return p, nil
}
