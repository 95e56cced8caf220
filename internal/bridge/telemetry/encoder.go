// Package telemetry reads vehicle state from the simulator, converts it to
// NED and sends it to the controller.
package telemetry

import (
	"fmt"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/timeutil"
)

// Encoder builds TelemetryPacket values. It is not safe for concurrent use.
type Encoder struct {
	Name  string
	Model physics.Model
	IMU   physics.IMU
	NED   frame.NED
	Codec wire.Codec
	Out   transport.Endpoint
	Clock timeutil.Clock

	buf []byte

	sent       uint64
	sendErrors uint64
	lastErrLog time.Time
	lastErr    error
}

// Build samples the simulator at simTime.
func (e *Encoder) Build(simTime time.Duration) wire.TelemetryPacket {
	vehicle := e.NED.VehiclePose(e.Model.WorldPose())
	vel := e.NED.Velocity(e.Model.WorldLinearVelocity())
	gyro := e.IMU.AngularVelocity()
	accel := e.IMU.LinearAcceleration()

	return wire.TelemetryPacket{
		Timestamp:          simTime.Seconds(),
		AngularVelocity:    [3]float64{gyro.X, gyro.Y, gyro.Z},
		LinearAcceleration: [3]float64{accel.X, accel.Y, accel.Z},
		Orientation:        vehicle.WXYZ(),
		Velocity:           [3]float64{vel.X, vel.Y, vel.Z},
		Position:           [3]float64{vehicle.Pos.X, vehicle.Pos.Y, vehicle.Pos.Z},
	}
}

// Send encodes p and writes it once. Failures are counted and logged at
// most once per second; they are never retried.
func (e *Encoder) Send(p *wire.TelemetryPacket) error {
	e.buf = e.Codec.EncodeTelemetry(e.buf[:0], p)
	if _, err := e.Out.Send(e.buf); err != nil {
		e.sendErrors++
		e.lastErr = fmt.Errorf("%w: send: %v", fault.ErrTransportRuntime, err)
		now := e.now()
		if now.Sub(e.lastErrLog) >= time.Second {
			e.lastErrLog = now
			monitoring.Logf("[%s] %s fault: %v (%d send errors)", e.Name, fault.Kind(e.lastErr), e.lastErr, e.sendErrors)
		}
		return e.lastErr
	}
	e.sent++
	return nil
}

// Counters returns the number of sent packets and send failures.
func (e *Encoder) Counters() (sent, failed uint64) {
	return e.sent, e.sendErrors
}

func (e *Encoder) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}
