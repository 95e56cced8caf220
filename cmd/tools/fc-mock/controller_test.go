package main

import (
	"encoding/binary"
	"testing"

	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(timestamp, alt float64) wire.TelemetryPacket {
	return wire.TelemetryPacket{
		Timestamp:   timestamp,
		Orientation: [4]float64{1, 0, 0, 0},
		Position:    [3]float64{0, 0, -alt},
	}
}

func withRPY(p wire.TelemetryPacket, roll, pitch float64) wire.TelemetryPacket {
	q := frame.FromRPY(roll, pitch, 0)
	p.Orientation = [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
	return p
}

func TestController_OnTargetHovers(t *testing.T) {
	c := newController(4, 2, 0.57)
	out := c.update(level(0.001, 2))
	require.Len(t, out, 4)
	for i, v := range out {
		assert.InDelta(t, 0.57, v, 1e-6, "motor %d", i)
	}
}

func TestController_BelowTargetClimbs(t *testing.T) {
	c := newController(4, 2, 0.57)
	out := c.update(level(0.001, 0))
	for _, v := range out {
		assert.Greater(t, v, float32(0.57))
		assert.LessOrEqual(t, v, float32(0.57+0.25+1e-6))
	}
}

func TestController_RollRightRaisesRightSide(t *testing.T) {
	c := newController(4, 2, 0.57)
	out := c.update(withRPY(level(0.001, 2), 0.2, 0))
	// 0 and 3 are on the right.
	assert.Greater(t, out[0], out[1])
	assert.Greater(t, out[3], out[2])
}

func TestController_NoseUpRaisesRear(t *testing.T) {
	c := newController(4, 2, 0.57)
	out := c.update(withRPY(level(0.001, 2), 0, 0.2))
	// 1 and 3 are at the rear.
	assert.Greater(t, out[1], out[0])
	assert.Greater(t, out[3], out[2])
}

func TestController_TimeReversalResets(t *testing.T) {
	c := newController(4, 2, 0.57)
	for i := 1; i <= 100; i++ {
		c.update(level(float64(i)*0.001, 0))
	}
	require.NotZero(t, c.altitude.State.ControlErrorIntegral)

	c.update(level(0.001, 2))
	assert.InDelta(t, 0, c.altitude.State.ControlErrorIntegral, 1e-9)
	assert.Equal(t, 0.001, c.last)
}

func TestController_OutputsClamped(t *testing.T) {
	c := newController(6, 100, 0.95)
	out := c.update(level(0.001, 0))
	require.Len(t, out, 6)
	for _, v := range out {
		assert.LessOrEqual(t, v, float32(1))
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func newTestFC(t *testing.T) (*flightController, *transport.MockEndpoint, *transport.MockEndpoint) {
	t.Helper()
	in, out := transport.NewMockEndpoint(), transport.NewMockEndpoint()
	return &flightController{
		in:    in,
		out:   out,
		codec: wire.NewCodec(binary.LittleEndian),
		ctl:   newController(4, 2, 0.57),
	}, in, out
}

func TestFlightController_AnswersTelemetry(t *testing.T) {
	fc, in, out := newTestFC(t)
	p := level(0.004, 2)
	in.Push(fc.codec.EncodeTelemetry(nil, &p))

	require.NoError(t, fc.step())
	assert.True(t, fc.online)
	assert.Equal(t, uint64(1), fc.received)
	require.Equal(t, 1, out.SentCount())

	var cmd wire.CommandPacket
	require.NoError(t, fc.codec.DecodeCommand(out.LastSent(), 4, &cmd))
	assert.InDelta(t, 0.57, cmd.MotorSpeed[0], 1e-6)
	assert.Zero(t, cmd.MotorSpeed[4])
}

func TestFlightController_IdleResendsLastCommand(t *testing.T) {
	fc, _, out := newTestFC(t)
	require.NoError(t, fc.step())
	assert.False(t, fc.online)
	require.Equal(t, 1, out.SentCount())
	assert.Len(t, out.LastSent(), wire.CommandSize)
}

func TestFlightController_RejectsShortTelemetry(t *testing.T) {
	fc, in, out := newTestFC(t)
	in.Push(make([]byte, 10))

	assert.ErrorIs(t, fc.step(), wire.ErrUndersized)
	assert.Equal(t, uint64(1), fc.invalid)
	assert.Equal(t, 0, out.SentCount())
}
