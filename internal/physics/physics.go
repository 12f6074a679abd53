// Package physics provides the body the environment moves each tick.
package physics

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/pkg/core"
)

// Body is the rigid body the motion model drives.
type Body interface {
	Pose() core.Pose
	SetPose(p core.Pose)
	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(w mgl64.Vec3)
	// ApplyRotation composes delta onto the body's orientation at the next Integrate.
	ApplyRotation(delta mgl64.Quat)
	// Integrate advances the body by dt seconds.
	Integrate(dt float64)
}

// KinematicBody integrates velocity and queued rotations without forces or collisions.
type KinematicBody struct {
	mu       sync.Mutex
	pose     core.Pose
	linear   mgl64.Vec3
	angular  mgl64.Vec3
	rotation mgl64.Quat
}

// NewKinematicBody returns a body at rest at p.
func NewKinematicBody(p core.Pose) *KinematicBody {
	return &KinematicBody{
		pose:     core.Pose{Position: p.Position, Rotation: core.NormalizeRotation(p.Rotation)},
		rotation: mgl64.QuatIdent(),
	}
}

func (b *KinematicBody) Pose() core.Pose {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose
}

// SetPose teleports the body and discards any pending rotation.
func (b *KinematicBody) SetPose(p core.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pose = core.Pose{Position: p.Position, Rotation: core.NormalizeRotation(p.Rotation)}
	b.rotation = mgl64.QuatIdent()
}

func (b *KinematicBody) LinearVelocity() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linear
}

func (b *KinematicBody) SetLinearVelocity(v mgl64.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.linear = v
}

func (b *KinematicBody) AngularVelocity() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angular
}

func (b *KinematicBody) SetAngularVelocity(w mgl64.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.angular = w
}

func (b *KinematicBody) ApplyRotation(delta mgl64.Quat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotation = b.rotation.Mul(core.NormalizeRotation(delta)).Normalize()
}

// Integrate moves the body along its linear velocity and applies the queued
// rotation. The angular velocity becomes the queued rotation spread over dt.
func (b *KinematicBody) Integrate(dt float64) {
	if dt <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pose.Position = b.pose.Position.Add(b.linear.Mul(dt))
	b.pose.Rotation = b.pose.Rotation.Mul(b.rotation).Normalize()
	b.angular = angularVelocity(b.rotation, dt)
	b.rotation = mgl64.QuatIdent()
}

// angularVelocity converts a rotation applied over dt seconds to rad/s about its axis.
func angularVelocity(q mgl64.Quat, dt float64) mgl64.Vec3 {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	sinHalf := q.V.Len()
	if sinHalf < 1e-12 {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Atan2(sinHalf, q.W)
	return q.V.Mul(angle / (sinHalf * dt))
}
