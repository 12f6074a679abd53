// pkg/core/state.go
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the vertical axis. Yaw rotates about it.
var Up = mgl64.Vec3{0, 1, 0}

// Forward is the body-local forward axis.
var Forward = mgl64.Vec3{0, 0, 1}

// Pose is a position and orientation in world space.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// AgentState is the kinematic state of the car at a tick boundary.
// CurrentSpeed is the motion model's own signed speed estimate and is
// distinct from the measured LinearVelocity.
type AgentState struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	CurrentSpeed    float64
}

// Pose returns the state's position and orientation.
func (s AgentState) Pose() Pose {
	return Pose{Position: s.Position, Rotation: s.Rotation}
}

// ForwardDir returns the world-space forward direction of the agent.
func (s AgentState) ForwardDir() mgl64.Vec3 {
	return NormalizeRotation(s.Rotation).Rotate(Forward)
}

// AtRest returns a state at the given pose with every velocity zeroed.
func AtRest(p Pose) AgentState {
	return AgentState{
		Position: p.Position,
		Rotation: NormalizeRotation(p.Rotation),
	}
}

// NormalizeRotation returns q as a unit quaternion. The zero Quat, which
// has no meaningful orientation, becomes the identity.
func NormalizeRotation(q mgl64.Quat) mgl64.Quat {
	if q.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// Yaw returns the heading in degrees about the vertical axis, measured from +Z toward +X.
func Yaw(q mgl64.Quat) float64 {
	f := NormalizeRotation(q).Rotate(Forward)
	return mgl64.RadToDeg(math.Atan2(f.X(), f.Z()))
}

// SpawnConfig selects the pose an episode starts from. When Explicit is nil
// the pose recorded at initialization is used.
type SpawnConfig struct {
	Explicit *Pose
	Initial  Pose
}

// Resolve returns the pose the next episode starts from.
func (c SpawnConfig) Resolve() Pose {
	if c.Explicit != nil {
		return *c.Explicit
	}
	return c.Initial
}
