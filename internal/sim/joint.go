package sim

import "sync"

// Joint is a propeller hinge. A force set with SetForce acts for the next
// Step only.
type Joint struct {
	mu sync.Mutex

	name    string
	inertia float64 // kg·m²
	damping float64 // N·m·s/rad

	rate  float64
	angle float64
	force float64
}

func newJoint(name string, inertia, damping float64) *Joint {
	return &Joint{name: name, inertia: inertia, damping: damping}
}

func (j *Joint) Name() string { return j.name }

func (j *Joint) Velocity(axis int) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rate
}

func (j *Joint) Position(axis int) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.angle
}

func (j *Joint) SetForce(axis int, force float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.force = force
}

func (j *Joint) SetVelocity(axis int, rate float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rate = rate
}

func (j *Joint) SetPosition(axis int, angle float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.angle = angle
}

// step integrates the applied torque against viscous damping and returns
// the new rate.
func (j *Joint) step(dt float64) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rate += (j.force - j.damping*j.rate) / j.inertia * dt
	j.angle += j.rate * dt
	j.force = 0
	return j.rate
}

func (j *Joint) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rate, j.angle, j.force = 0, 0, 0
}
