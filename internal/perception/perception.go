// Package perception builds the observation vector from the agent's own
// kinematics and a symmetric fan of distance rays.
package perception

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/pkg/core"
)

var (
	// ErrInvalidRayCount is returned when fewer than two rays are configured.
	ErrInvalidRayCount = errors.New("perception needs at least 2 rays")
	// ErrInvalidConfig is returned for non-positive ranges or reference rates.
	ErrInvalidConfig = errors.New("invalid sensor config")
	// ErrNoSensor is returned by New when no spatial query service is supplied.
	ErrNoSensor = errors.New("no raycaster configured")
	// ErrNoSensorContext is returned by Observe when the module has no usable sensing backend.
	ErrNoSensorContext = errors.New("observation requested without a sensor context")
)

// Raycaster is the spatial query service the rays are cast against.
type Raycaster interface {
	// Raycast reports whether a ray from origin along the unit vector dir hits
	// an obstacle on a layer in mask within maxDistance, and the hit distance.
	Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (hit bool, distance float64)
}

// RaycasterFunc adapts a function to Raycaster.
type RaycasterFunc func(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (bool, float64)

// Raycast calls f.
func (f RaycasterFunc) Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (bool, float64) {
	return f(origin, dir, maxDistance, mask)
}

// Config describes the sensor fan and the kinematic normalizers.
type Config struct {
	NumRays          int     `json:"numRays" mapstructure:"numRays"`
	RayAngleSpread   float64 `json:"rayAngleSpread" mapstructure:"rayAngleSpread"` // degrees
	MaxRayDistance   float64 `json:"maxRayDistance" mapstructure:"maxRayDistance"`
	LayerMask        uint32  `json:"layerMask" mapstructure:"layerMask"`
	ReferenceSpeed   float64 `json:"referenceSpeed" mapstructure:"referenceSpeed"`     // m/s mapped to 1.0
	ReferenceYawRate float64 `json:"referenceYawRate" mapstructure:"referenceYawRate"` // rad/s mapped to 1.0
}

// DefaultConfig returns five rays over 120 degrees reaching 15 m.
func DefaultConfig() Config {
	return Config{
		NumRays:          5,
		RayAngleSpread:   120,
		MaxRayDistance:   15,
		LayerMask:        ^uint32(0),
		ReferenceSpeed:   10,
		ReferenceYawRate: 3.14 / 2,
	}
}

// Validate checks the precondition the ray-angle formula depends on.
func (c Config) Validate() error {
	if c.NumRays < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidRayCount, c.NumRays)
	}
	if !(c.MaxRayDistance > 0) {
		return fmt.Errorf("%w: maxRayDistance must be positive", ErrInvalidConfig)
	}
	if !(c.ReferenceSpeed > 0) || !(c.ReferenceYawRate > 0) {
		return fmt.Errorf("%w: reference speed and yaw rate must be positive", ErrInvalidConfig)
	}
	return nil
}

// Size is the length of the observation vector.
func (c Config) Size() int {
	return c.NumRays + core.ObsFirstRay
}

// RayAngle returns the yaw offset in degrees of ray i from the forward axis.
func (c Config) RayAngle(i int) float64 {
	return -c.RayAngleSpread/2 + (c.RayAngleSpread/float64(c.NumRays-1))*float64(i)
}

// Module computes observations. It is safe to reuse across episodes.
type Module struct {
	cfg    Config
	caster Raycaster
	turns  []mgl64.Quat
}

// New validates cfg and binds the module to its raycaster.
func New(cfg Config, caster Raycaster) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if caster == nil {
		return nil, ErrNoSensor
	}

	turns := make([]mgl64.Quat, cfg.NumRays)
	for i := range turns {
		turns[i] = mgl64.QuatRotate(mgl64.DegToRad(cfg.RayAngle(i)), core.Up)
	}

	return &Module{cfg: cfg, caster: caster, turns: turns}, nil
}

// Config returns the sensor configuration.
func (m *Module) Config() Config {
	return m.cfg
}

// Observe returns a freshly allocated observation for state. On error no
// observation is produced.
func (m *Module) Observe(state core.AgentState) (core.Observation, error) {
	if m == nil || m.caster == nil {
		return nil, ErrNoSensorContext
	}

	obs := make(core.Observation, m.cfg.Size())

	rot := core.NormalizeRotation(state.Rotation)
	forward := rot.Rotate(core.Forward)

	obs[core.ObsForwardSpeed] = core.ClampUnit(state.LinearVelocity.Dot(forward) / m.cfg.ReferenceSpeed)
	obs[core.ObsYawRate] = core.ClampUnit(state.AngularVelocity.Y() / m.cfg.ReferenceYawRate)

	for i, dir := range m.RayDirections(rot) {
		obs[core.ObsFirstRay+i] = m.castRay(state.Position, dir)
	}

	return obs, nil
}

// RayDirections returns the world-space unit direction of every ray for an
// agent with orientation rot.
func (m *Module) RayDirections(rot mgl64.Quat) []mgl64.Vec3 {
	forward := core.NormalizeRotation(rot).Rotate(core.Forward)
	dirs := make([]mgl64.Vec3, len(m.turns))
	for i, t := range m.turns {
		dirs[i] = t.Rotate(forward).Normalize()
	}
	return dirs
}

func (m *Module) castRay(origin, dir mgl64.Vec3) float64 {
	hit, dist := m.caster.Raycast(origin, dir, m.cfg.MaxRayDistance, m.cfg.LayerMask)
	if !hit || math.IsNaN(dist) || dist > m.cfg.MaxRayDistance {
		return 1
	}
	return math.Max(0, dist/m.cfg.MaxRayDistance)
}
