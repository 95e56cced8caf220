package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newEncoder() (*Encoder, *physics.MockModel, *transport.MockEndpoint, *timeutil.MockClock) {
	model := physics.NewMockModel()
	out := transport.NewMockEndpoint()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	e := &Encoder{
		Name:  "test",
		Model: model,
		IMU:   &physics.MockIMU{Accel: r3.Vec{Z: -9.81}, Gyro: r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}},
		NED:   frame.DefaultNED(),
		Codec: wire.NewCodec(binary.LittleEndian),
		Out:   out,
		Clock: clock,
	}
	return e, model, out, clock
}

func TestBuild_IdentityPose(t *testing.T) {
	e, _, _, _ := newEncoder()
	p := e.Build(1500 * time.Millisecond)

	assert.Equal(t, 1.5, p.Timestamp)
	assert.Equal(t, [3]float64{0, 0, 0}, p.Position)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, p.Orientation[:], 1e-12)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, p.AngularVelocity)
	assert.Equal(t, [3]float64{0, 0, -9.81}, p.LinearAcceleration)
}

func TestBuild_FrameConversion(t *testing.T) {
	e, model, _, _ := newEncoder()
	model.Pose = frame.NewPose(r3.Vec{X: 1, Y: 2, Z: 3}, 0, 0, math.Pi/2)
	model.Velocity = r3.Vec{X: 4, Y: 5, Z: 6}

	p := e.Build(0)
	c := math.Cos(math.Pi / 4)
	assert.InDeltaSlice(t, []float64{1, -2, -3}, p.Position[:], 1e-12)
	assert.InDeltaSlice(t, []float64{4, -5, -6}, p.Velocity[:], 1e-12)
	assert.InDeltaSlice(t, []float64{c, 0, 0, -c}, p.Orientation[:], 1e-12)
}

func TestSend(t *testing.T) {
	e, _, out, _ := newEncoder()
	p := e.Build(2 * time.Second)
	require.NoError(t, e.Send(&p))

	sent := out.LastSent()
	require.Len(t, sent, wire.TelemetrySize)
	back, err := e.Codec.DecodeTelemetry(sent)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	n, failed := e.Counters()
	assert.Equal(t, uint64(1), n)
	assert.Zero(t, failed)
}

func TestSend_FailuresRateLimited(t *testing.T) {
	var logs int
	var last string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs++
		last = fmt.Sprintf(format, v...)
	})
	defer monitoring.SetLogger(nil)

	e, _, out, clock := newEncoder()
	out.SendError = errors.New("connection refused")
	p := e.Build(0)

	for i := 0; i < 5; i++ {
		err := e.Send(&p)
		assert.ErrorIs(t, err, fault.ErrTransportRuntime)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, logs, "one log within the first second")
	assert.Contains(t, last, "transport-runtime fault")

	clock.Advance(time.Second)
	_ = e.Send(&p)
	assert.Equal(t, 2, logs)

	_, failed := e.Counters()
	assert.Equal(t, uint64(6), failed)
	assert.Zero(t, out.SentCount())
}
