package rotor

import (
	"math"

	"github.com/banshee-data/flight.bridge/internal/config"
)

// PID is a position-form PID controller acting on a measured-minus-target
// error. The output is the negated sum of the three terms.
type PID struct {
	PGain, IGain, DGain float64
	IMax, IMin          float64
	CmdMax, CmdMin      float64

	pErr, iErr, dErr float64
	errLast          float64
	cmd              float64
}

// NewPID creates a controller from a resolved gain set.
func NewPID(g config.PIDGains) *PID {
	return &PID{
		PGain: g.P, IGain: g.I, DGain: g.D,
		IMax: g.IMax, IMin: g.IMin,
		CmdMax: g.CmdMax, CmdMin: g.CmdMin,
	}
}

// Update advances the controller by dt seconds and returns the command.
// A zero dt or non-finite error yields 0 and leaves the state untouched.
// The integrator is clamped only when IMax >= IMin, and likewise the output
// only when CmdMax >= CmdMin.
func (p *PID) Update(err, dt float64) float64 {
	if dt == 0 || math.IsNaN(err) || math.IsInf(err, 0) {
		return 0
	}

	p.pErr = err

	p.iErr += p.IGain * dt * err
	if p.IMax >= p.IMin {
		p.iErr = math.Max(p.IMin, math.Min(p.IMax, p.iErr))
	}

	p.dErr = (err - p.errLast) / dt
	p.errLast = err

	cmd := -p.PGain*p.pErr - p.iErr - p.DGain*p.dErr
	if p.CmdMax >= p.CmdMin {
		cmd = math.Max(p.CmdMin, math.Min(p.CmdMax, cmd))
	}
	p.cmd = cmd
	return cmd
}

// Reset clears the accumulated state. Gains and limits are kept.
func (p *PID) Reset() {
	p.pErr, p.iErr, p.dErr, p.errLast, p.cmd = 0, 0, 0, 0, 0
}

// Integral returns the accumulated integral term.
func (p *PID) Integral() float64 { return p.iErr }

// Command returns the last output.
func (p *PID) Command() float64 { return p.cmd }
