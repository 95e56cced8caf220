package main

import (
	"math"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"go.einride.tech/pid"
	"gonum.org/v1/gonum/num/quat"
)

// mixer maps collective, roll and pitch efforts onto one motor.
type mixer struct{ roll, pitch float64 }

// quadX matches the iris layout: 0 front right, 1 back left, 2 front left,
// 3 back right.
var quadX = []mixer{
	{roll: -1, pitch: +1},
	{roll: +1, pitch: -1},
	{roll: +1, pitch: +1},
	{roll: -1, pitch: -1},
}

// controller is a deliberately small flight controller: altitude hold on
// collective thrust plus level hold on roll and pitch. Yaw is left free.
type controller struct {
	actuators int
	hover     float64 // normalized command that roughly balances gravity
	target    float64 // altitude, m, positive up

	altitude pid.Controller
	roll     pid.Controller
	pitch    pid.Controller

	last    float64 // previous telemetry timestamp
	started bool
}

func newController(actuators int, target, hover float64) *controller {
	return &controller{
		actuators: actuators,
		hover:     hover,
		target:    target,
		altitude: pid.Controller{Config: pid.ControllerConfig{
			ProportionalGain: 0.08,
			IntegralGain:     0.02,
			DerivativeGain:   0.06,
		}},
		roll: pid.Controller{Config: pid.ControllerConfig{
			ProportionalGain: 0.05,
			DerivativeGain:   0.01,
		}},
		pitch: pid.Controller{Config: pid.ControllerConfig{
			ProportionalGain: 0.05,
			DerivativeGain:   0.01,
		}},
	}
}

func (c *controller) reset() {
	c.altitude.Reset()
	c.roll.Reset()
	c.pitch.Reset()
	c.started = false
}

// update computes normalized motor commands in [0, 1] for one telemetry
// packet. Time going backwards means the simulator was reset.
func (c *controller) update(t wire.TelemetryPacket) []float32 {
	if c.started && t.Timestamp < c.last {
		c.reset()
	}
	dt := time.Millisecond
	if c.started && t.Timestamp > c.last {
		dt = time.Duration((t.Timestamp - c.last) * float64(time.Second))
	}
	c.last, c.started = t.Timestamp, true

	q := quat.Number{Real: t.Orientation[0], Imag: t.Orientation[1], Jmag: t.Orientation[2], Kmag: t.Orientation[3]}
	roll, pitch, _ := frame.Euler(q)

	c.altitude.Update(pid.ControllerInput{
		ReferenceSignal:  c.target,
		ActualSignal:     -t.Position[2],
		SamplingInterval: dt,
	})
	c.roll.Update(pid.ControllerInput{ActualSignal: roll, SamplingInterval: dt})
	c.pitch.Update(pid.ControllerInput{ActualSignal: pitch, SamplingInterval: dt})

	collective := c.hover + clamp(c.altitude.State.ControlSignal, -0.25, 0.25)
	rollEffort := clamp(c.roll.State.ControlSignal, -0.1, 0.1)
	pitchEffort := clamp(c.pitch.State.ControlSignal, -0.1, 0.1)

	out := make([]float32, c.actuators)
	for i := range out {
		v := collective
		if i < len(quadX) {
			v += quadX[i].roll*rollEffort + quadX[i].pitch*pitchEffort
		}
		out[i] = float32(clamp(v, 0, 1))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
