package frame

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// NED converts simulator world state to the NED values sent to the
// controller. BodyOffset is composed with the world pose before the
// reference frame is removed.
type NED struct {
	Reference  Pose
	BodyOffset Pose
}

// DefaultNED uses GazeboToNED as both the reference and the body offset.
func DefaultNED() NED {
	g := GazeboToNED()
	return NED{Reference: g, BodyOffset: g}
}

// VehiclePose returns (BodyOffset ⊕ world) ⊖ Reference.
func (n NED) VehiclePose(world Pose) Pose {
	return Sub(Compose(n.BodyOffset, world), n.Reference)
}

// Velocity rotates a world-frame velocity into NED.
func (n NED) Velocity(v r3.Vec) r3.Vec {
	return RotateVectorReverse(n.Reference.Rot, v)
}
