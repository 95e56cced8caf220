// Package sim is a minimal rigid-body multirotor used to exercise the bridge
// without an external simulator. Axes follow the simulator convention: x
// forward, y left, z up.
package sim

import (
	"math"
	"sync"

	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const gravity = 9.81

// Prop places one propeller joint on the airframe.
type Prop struct {
	Joint string
	Arm   r3.Vec // position relative to the centre of mass
}

// Airframe holds the vehicle parameters.
type Airframe struct {
	Mass    float64 // kg
	Inertia r3.Vec  // principal moments, kg·m²
	Drag    float64 // linear drag, N·s/m

	// ThrustCoeff and TorqueCoeff scale joint rate squared into thrust
	// along body z and reaction torque about body z.
	ThrustCoeff float64
	TorqueCoeff float64

	PropInertia float64
	PropDamping float64

	Props []Prop
}

// Iris returns a 1.5 kg quadcopter in X configuration. Props 0 and 1 are
// expected to spin counter-clockwise and 2 and 3 clockwise.
func Iris() Airframe {
	return Airframe{
		Mass:        1.5,
		Inertia:     r3.Vec{X: 0.0347, Y: 0.0458, Z: 0.0977},
		Drag:        0.2,
		ThrustCoeff: 1.6e-3,
		TorqueCoeff: 2.5e-5,
		PropInertia: 5e-5,
		PropDamping: 1e-5,
		Props: []Prop{
			{Joint: "rotor_0", Arm: r3.Vec{X: 0.13, Y: -0.22}},
			{Joint: "rotor_1", Arm: r3.Vec{X: -0.13, Y: 0.20}},
			{Joint: "rotor_2", Arm: r3.Vec{X: 0.13, Y: 0.22}},
			{Joint: "rotor_3", Arm: r3.Vec{X: -0.13, Y: -0.20}},
		},
	}
}

// World is a single vehicle over flat ground at z = 0. It implements
// physics.Model and its IMU implements physics.IMU.
type World struct {
	mu sync.Mutex

	frame  Airframe
	joints []*Joint
	byName map[string]*Joint

	pos    r3.Vec
	vel    r3.Vec
	rot    quat.Number
	omega  r3.Vec // body rates
	accel  r3.Vec // last world acceleration
	ground bool
}

// NewWorld creates a world with the vehicle resting at the origin.
func NewWorld(a Airframe) *World {
	w := &World{frame: a, byName: make(map[string]*Joint)}
	for _, p := range a.Props {
		j := newJoint(p.Joint, a.PropInertia, a.PropDamping)
		w.joints = append(w.joints, j)
		w.byName[p.Joint] = j
	}
	w.Reset()
	return w
}

// Reset puts the vehicle back at rest on the ground.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos, w.vel, w.omega, w.accel = r3.Vec{}, r3.Vec{}, r3.Vec{}, r3.Vec{}
	w.rot = quat.Number{Real: 1}
	w.ground = true
	for _, j := range w.joints {
		j.reset()
	}
}

// Step integrates dt seconds with semi-implicit Euler.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var thrust float64
	var torque r3.Vec
	for i, j := range w.joints {
		rate := j.step(dt)
		t := w.frame.ThrustCoeff * rate * rate
		thrust += t
		arm := w.frame.Props[i].Arm
		torque = r3.Add(torque, r3.Cross(arm, r3.Vec{Z: t}))
		torque.Z -= math.Copysign(w.frame.TorqueCoeff*rate*rate, rate)
	}

	force := frame.RotateVector(w.rot, r3.Vec{Z: thrust})
	force = r3.Add(force, r3.Scale(-w.frame.Drag, w.vel))
	force.Z -= w.frame.Mass * gravity
	w.accel = r3.Scale(1/w.frame.Mass, force)

	w.vel = r3.Add(w.vel, r3.Scale(dt, w.accel))
	w.pos = r3.Add(w.pos, r3.Scale(dt, w.vel))

	in := w.frame.Inertia
	gyro := r3.Cross(w.omega, r3.Vec{X: in.X * w.omega.X, Y: in.Y * w.omega.Y, Z: in.Z * w.omega.Z})
	w.omega.X += (torque.X - gyro.X) / in.X * dt
	w.omega.Y += (torque.Y - gyro.Y) / in.Y * dt
	w.omega.Z += (torque.Z - gyro.Z) / in.Z * dt

	dq := quat.Mul(w.rot, quat.Number{Imag: w.omega.X, Jmag: w.omega.Y, Kmag: w.omega.Z})
	w.rot = frame.Normalize(quat.Add(w.rot, quat.Scale(0.5*dt, dq)))

	w.ground = false
	if w.pos.Z <= 0 {
		w.pos.Z = 0
		w.ground = true
		if w.vel.Z < 0 {
			w.vel.Z = 0
		}
		if w.accel.Z < 0 {
			w.accel.Z = 0
		}
		w.vel.X *= 0.8
		w.vel.Y *= 0.8
		w.omega = r3.Vec{}
	}
}

// Joint implements physics.Model.
func (w *World) Joint(name string) (physics.Joint, bool) {
	j, ok := w.byName[name]
	if !ok {
		return nil, false
	}
	return j, true
}

func (w *World) WorldPose() frame.Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return frame.Pose{Pos: w.pos, Rot: w.rot}
}

func (w *World) WorldLinearVelocity() r3.Vec {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vel
}

// OnGround reports whether the vehicle is resting on the ground.
func (w *World) OnGround() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ground
}

// IMU returns the vehicle's inertial sensor.
func (w *World) IMU() *IMU { return &IMU{w: w} }

// IMU reports specific force and body rates in x forward, y right, z down.
type IMU struct{ w *World }

func (i *IMU) LinearAcceleration() r3.Vec {
	i.w.mu.Lock()
	defer i.w.mu.Unlock()
	specific := r3.Add(i.w.accel, r3.Vec{Z: gravity})
	b := frame.RotateVectorReverse(i.w.rot, specific)
	return r3.Vec{X: b.X, Y: -b.Y, Z: -b.Z}
}

func (i *IMU) AngularVelocity() r3.Vec {
	i.w.mu.Lock()
	defer i.w.mu.Unlock()
	o := i.w.omega
	return r3.Vec{X: o.X, Y: -o.Y, Z: -o.Z}
}
