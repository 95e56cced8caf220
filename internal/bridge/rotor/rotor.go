// Package rotor holds per-actuator state: identity, joint binding, command,
// velocity filter and PID controller.
package rotor

import (
	"fmt"
	"strings"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
)

// ControlType selects how the command drives the joint.
type ControlType int

const (
	Velocity ControlType = iota
	Position
	Effort
)

func (c ControlType) String() string {
	switch c {
	case Velocity:
		return config.ControlVelocity
	case Position:
		return config.ControlPosition
	case Effort:
		return config.ControlEffort
	default:
		return fmt.Sprintf("ControlType(%d)", int(c))
	}
}

// ParseControlType maps a config type name.
func ParseControlType(s string) (ControlType, error) {
	switch strings.ToLower(s) {
	case "", config.ControlVelocity:
		return Velocity, nil
	case config.ControlPosition:
		return Position, nil
	case config.ControlEffort:
		return Effort, nil
	}
	return 0, fmt.Errorf("%w: unknown control type %q", fault.ErrConfiguration, s)
}

// Rotor is one actuator. Joint is owned by the simulator.
type Rotor struct {
	ID        int
	Channel   int
	JointName string
	Joint     physics.Joint

	Type     ControlType
	UseForce bool

	Multiplier     float64
	Offset         float64
	MaxAngularRate float64
	SlowdownFactor float64

	// CommandedRate is written by the link decoder and read by the control
	// loop.
	CommandedRate float64

	Filter *OnePole
	PID    *PID

	// Last control step, for status reporting.
	Measured float64
	Filtered float64
	Force    float64
}

// SetCommand scales a normalized command value into CommandedRate.
func (r *Rotor) SetCommand(normalized float64) {
	r.CommandedRate = r.MaxAngularRate * (r.Offset + normalized)
}

// Target returns the joint-space setpoint for the current command.
func (r *Rotor) Target() float64 {
	return r.Multiplier * r.CommandedRate / r.SlowdownFactor
}

// Build creates one Rotor per config entry and resolves every joint from
// model. All failures wrap fault.ErrConfiguration.
func Build(cfgs []config.RotorConfig, model physics.Model) ([]*Rotor, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model to resolve joints from", fault.ErrConfiguration)
	}
	rotors := make([]*Rotor, 0, len(cfgs))
	for i := range cfgs {
		c := &cfgs[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("rotor %d: %w", i, err)
		}
		joint, ok := model.Joint(c.JointName)
		if !ok {
			return nil, fmt.Errorf("%w: rotor %d: couldn't find joint %q", fault.ErrConfiguration, i, c.JointName)
		}
		ct, err := ParseControlType(c.GetType())
		if err != nil {
			return nil, fmt.Errorf("rotor %d: %w", i, err)
		}
		if !c.HasDirection() {
			monitoring.Logf("rotor %d (%s): no turning_direction given, defaulting to 1", i, c.JointName)
		}

		r := &Rotor{
			ID:             c.GetID(i),
			Channel:        c.GetChannel(i),
			JointName:      c.JointName,
			Joint:          joint,
			Type:           ct,
			UseForce:       c.GetUseForce(),
			Multiplier:     c.GetMultiplier(),
			Offset:         c.GetOffset(),
			MaxAngularRate: c.GetMaxAngularRate(),
			SlowdownFactor: c.GetSlowdown(),
			Filter:         NewOnePole(c.GetFrequencyCutoff(), c.GetSamplingRate()),
			PID:            NewPID(c.GetPIDGains()),
		}
		rotors = append(rotors, r)
	}
	return rotors, nil
}

// ResetCommands zeroes every commanded rate. Integrators are reset too when
// resetPID is set.
func ResetCommands(rotors []*Rotor, resetPID bool) {
	for _, r := range rotors {
		r.CommandedRate = 0
		if resetPID {
			r.PID.Reset()
		}
	}
}
