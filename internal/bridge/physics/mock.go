package physics

import (
	"github.com/banshee-data/flight.bridge/internal/bridge/frame"
	"gonum.org/v1/gonum/spatial/r3"
)

// MockJoint records every command and reports configurable readings.
type MockJoint struct {
	JointName string
	Rate      float64
	Angle     float64

	Forces     []float64
	Velocities []float64
	Positions  []float64
}

func (j *MockJoint) Name() string              { return j.JointName }
func (j *MockJoint) Velocity(axis int) float64 { return j.Rate }
func (j *MockJoint) Position(axis int) float64 { return j.Angle }

func (j *MockJoint) SetForce(axis int, force float64) {
	j.Forces = append(j.Forces, force)
}

func (j *MockJoint) SetVelocity(axis int, rate float64) {
	j.Velocities = append(j.Velocities, rate)
	j.Rate = rate
}

func (j *MockJoint) SetPosition(axis int, angle float64) {
	j.Positions = append(j.Positions, angle)
	j.Angle = angle
}

// LastForce returns the most recent force, or 0 when none was applied.
func (j *MockJoint) LastForce() float64 {
	if len(j.Forces) == 0 {
		return 0
	}
	return j.Forces[len(j.Forces)-1]
}

// MockModel is a static vehicle with named joints.
type MockModel struct {
	Joints   map[string]*MockJoint
	Pose     frame.Pose
	Velocity r3.Vec
}

// NewMockModel creates a model at the identity pose with one MockJoint per
// name.
func NewMockModel(names ...string) *MockModel {
	m := &MockModel{Joints: make(map[string]*MockJoint), Pose: frame.Identity}
	for _, n := range names {
		m.Joints[n] = &MockJoint{JointName: n}
	}
	return m
}

func (m *MockModel) Joint(name string) (Joint, bool) {
	j, ok := m.Joints[name]
	if !ok {
		return nil, false
	}
	return j, true
}

func (m *MockModel) WorldPose() frame.Pose       { return m.Pose }
func (m *MockModel) WorldLinearVelocity() r3.Vec { return m.Velocity }

// MockIMU returns fixed readings.
type MockIMU struct {
	Accel r3.Vec
	Gyro  r3.Vec
}

func (i *MockIMU) LinearAcceleration() r3.Vec { return i.Accel }
func (i *MockIMU) AngularVelocity() r3.Vec    { return i.Gyro }
