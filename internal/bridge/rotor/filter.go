package rotor

import "math"

// OnePole is a first-order low-pass filter.
type OnePole struct {
	a0, b1 float64
	y      float64
}

// NewOnePole creates a filter with cutoff fc and sampling rate fs (Hz).
func NewOnePole(fc, fs float64) *OnePole {
	f := &OnePole{}
	f.SetCutoff(fc, fs)
	return f
}

// SetCutoff recomputes the coefficients. State is kept.
func (f *OnePole) SetCutoff(fc, fs float64) {
	f.b1 = math.Exp(-2 * math.Pi * fc / fs)
	f.a0 = 1 - f.b1
}

// Process feeds x and returns the new output.
func (f *OnePole) Process(x float64) float64 {
	f.y = f.a0*x + f.b1*f.y
	return f.y
}

// Set overrides the filter state.
func (f *OnePole) Set(v float64) { f.y = v }

// Value returns the current output.
func (f *OnePole) Value() float64 { return f.y }
