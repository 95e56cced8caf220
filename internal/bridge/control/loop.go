// Package control drives each rotor's joint toward its commanded rate.
package control

import (
	"github.com/banshee-data/flight.bridge/internal/bridge/rotor"
)

const axis = 0

// Apply runs one control step of dt seconds over every rotor. Callers only
// invoke it while the link is online.
//
// For velocity rotors the error is measured minus target and the PID output
// is applied as a force; PID gains are tuned against that sign.
func Apply(rotors []*rotor.Rotor, dt float64) {
	for _, r := range rotors {
		step(r, dt)
	}
}

func step(r *rotor.Rotor, dt float64) {
	target := r.Target()

	r.Measured = r.Joint.Velocity(axis)
	r.Filtered = r.Filter.Process(r.Measured)

	switch r.Type {
	case rotor.Velocity:
		if !r.UseForce {
			r.Joint.SetVelocity(axis, target)
			r.Force = 0
			return
		}
		r.Force = r.PID.Update(r.Measured-target, dt)
		r.Joint.SetForce(axis, r.Force)

	case rotor.Position:
		if !r.UseForce {
			r.Joint.SetPosition(axis, target)
			r.Force = 0
			return
		}
		r.Force = r.PID.Update(r.Joint.Position(axis)-target, dt)
		r.Joint.SetForce(axis, r.Force)

	case rotor.Effort:
		r.Force = target
		r.Joint.SetForce(axis, r.Force)
	}
}
