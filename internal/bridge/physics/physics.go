// Package physics declares the simulator collaborators the bridge drives.
// The simulator owns every joint and sensor; the bridge holds non-owning
// handles resolved once at construction.
package physics

import (
	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"gonum.org/v1/gonum/spatial/r3"
)

// Joint is a single rotational degree of freedom.
type Joint interface {
	Name() string
	// Velocity returns the angular rate about axis in rad/s.
	Velocity(axis int) float64
	// Position returns the joint angle about axis in radians.
	Position(axis int) float64
	SetForce(axis int, force float64)
	SetVelocity(axis int, rate float64)
	SetPosition(axis int, angle float64)
}

// Model is the simulated vehicle.
type Model interface {
	// Joint resolves a joint by name. ok is false when no such joint exists.
	Joint(name string) (j Joint, ok bool)
	WorldPose() frame.Pose
	WorldLinearVelocity() r3.Vec
}

// IMU reports body-frame inertial measurements, x forward, y right, z down.
type IMU interface {
	LinearAcceleration() r3.Vec
	AngularVelocity() r3.Vec
}
