// Package frame implements the pose algebra used to express simulator state
// in the aerospace NED convention.
package frame

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a position and unit-quaternion orientation.
type Pose struct {
	Pos r3.Vec
	Rot quat.Number
}

// Identity is the zero pose.
var Identity = Pose{Rot: quat.Number{Real: 1}}

// NewPose builds a pose from a position and roll/pitch/yaw in radians.
func NewPose(pos r3.Vec, roll, pitch, yaw float64) Pose {
	return Pose{Pos: pos, Rot: FromRPY(roll, pitch, yaw)}
}

// GazeboToNED is the 180 degree rotation about the forward axis that maps
// the simulator's body convention to NED.
func GazeboToNED() Pose {
	return NewPose(r3.Vec{}, math.Pi, 0, 0)
}

// FromRPY returns the normalized quaternion for fixed-axis roll, pitch, yaw.
func FromRPY(roll, pitch, yaw float64) quat.Number {
	sr, cr := math.Sincos(roll / 2)
	sp, cp := math.Sincos(pitch / 2)
	sy, cy := math.Sincos(yaw / 2)
	return Normalize(quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	})
}

// Euler returns roll, pitch and yaw in radians.
func Euler(q quat.Number) (roll, pitch, yaw float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	s := 2 * (w*y - z*x)
	s = math.Max(-1, math.Min(1, s))
	pitch = math.Asin(s)
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// Normalize scales q to unit length. A zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// RotateVector applies q to v.
func RotateVector(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Inv(q))
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// RotateVectorReverse applies the inverse of q to v.
func RotateVectorReverse(q quat.Number, v r3.Vec) r3.Vec {
	return RotateVector(quat.Inv(q), v)
}

// Compose returns a ⊕ b: a expressed in the frame b is relative to.
func Compose(a, b Pose) Pose {
	return Pose{
		Pos: r3.Add(RotateVector(b.Rot, a.Pos), b.Pos),
		Rot: quat.Mul(b.Rot, a.Rot),
	}
}

// Sub returns a ⊖ b, the inverse of Compose: Compose(Sub(a, b), b) == a.
func Sub(a, b Pose) Pose {
	inv := quat.Inv(b.Rot)
	return Pose{
		Pos: RotateVector(inv, r3.Sub(a.Pos, b.Pos)),
		Rot: Normalize(quat.Mul(inv, a.Rot)),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	inv := quat.Inv(p.Rot)
	return Pose{Pos: r3.Scale(-1, RotateVector(inv, p.Pos)), Rot: inv}
}

// WXYZ returns the orientation in wire order.
func (p Pose) WXYZ() [4]float64 {
	return [4]float64{p.Rot.Real, p.Rot.Imag, p.Rot.Jmag, p.Rot.Kmag}
}
