// Package motion turns a normalized action into the car's next speed,
// velocity intent and heading.
//
// Speed is tracked separately from the measured body velocity: every tick the
// model blends its own CurrentSpeed toward throttle*MaxSpeed, then writes a
// horizontal velocity intent along the current forward axis. Vertical motion
// is left to the physics integrator.
package motion

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/pkg/core"
)

// ErrInvalidConfig is returned by New when a tuning value is out of range.
var ErrInvalidConfig = errors.New("invalid motion config")

// Config holds the hand-tuned driving parameters.
type Config struct {
	MaxSpeed         float64 `json:"maxSpeed" mapstructure:"maxSpeed"`         // m/s
	Acceleration     float64 `json:"acceleration" mapstructure:"acceleration"` // blend rate, 1/s
	Deceleration     float64 `json:"deceleration" mapstructure:"deceleration"` // blend rate, 1/s
	TurnSpeed        float64 `json:"turnSpeed" mapstructure:"turnSpeed"`       // deg/s at standstill
	MinSteerSpeed    float64 `json:"minSteerSpeed" mapstructure:"minSteerSpeed"`
	StoppedThreshold float64 `json:"stoppedThreshold" mapstructure:"stoppedThreshold"`
	ThrottleDeadzone float64 `json:"throttleDeadzone" mapstructure:"throttleDeadzone"`
	MinSpeedFactor   float64 `json:"minSpeedFactor" mapstructure:"minSpeedFactor"` // steering factor at MaxSpeed
}

// DefaultConfig returns the tuning the racing agent was trained with.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:         10,
		Acceleration:     5,
		Deceleration:     8,
		TurnSpeed:        100,
		MinSteerSpeed:    1.5,
		StoppedThreshold: 0.1,
		ThrottleDeadzone: 0.01,
		MinSpeedFactor:   0.4,
	}
}

// Validate checks the config for values the model cannot work with.
func (c Config) Validate() error {
	switch {
	case !(c.MaxSpeed > 0):
		return fmt.Errorf("%w: maxSpeed must be positive, got %v", ErrInvalidConfig, c.MaxSpeed)
	case c.Acceleration < 0 || c.Deceleration < 0:
		return fmt.Errorf("%w: acceleration and deceleration must not be negative", ErrInvalidConfig)
	case c.TurnSpeed < 0:
		return fmt.Errorf("%w: turnSpeed must not be negative", ErrInvalidConfig)
	case c.MinSteerSpeed < 0 || c.StoppedThreshold < 0 || c.ThrottleDeadzone < 0:
		return fmt.Errorf("%w: thresholds must not be negative", ErrInvalidConfig)
	case c.MinSpeedFactor < 0 || c.MinSpeedFactor > 1:
		return fmt.Errorf("%w: minSpeedFactor must be within [0,1], got %v", ErrInvalidConfig, c.MinSpeedFactor)
	}
	return nil
}

// Result is the outcome of one Step.
type Result struct {
	State core.AgentState
	// Applied is the clamped action after steering was gated by speed.
	Applied core.Action
	// YawDelta is the heading change of this tick in degrees.
	YawDelta float64
	// Turn is the incremental rotation composed onto the previous orientation.
	Turn mgl64.Quat
}

// Model is the kinematic motion model. It holds no per-tick state.
type Model struct {
	cfg Config
}

// New validates cfg and returns a Model.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// Config returns the model's tuning.
func (m *Model) Config() Config {
	return m.cfg
}

// Step advances state by dt seconds under action.
// A non-positive dt leaves the state untouched.
func (m *Model) Step(action core.Action, state core.AgentState, dt float64) Result {
	a := action.Clamp()
	if !(dt > 0) {
		return Result{State: state, Applied: core.Action{Throttle: a.Throttle}, Turn: mgl64.QuatIdent()}
	}

	speed := m.nextSpeed(a.Throttle, state.CurrentSpeed, dt)

	next := state
	next.CurrentSpeed = speed

	rot := core.NormalizeRotation(state.Rotation)
	v := rot.Rotate(core.Forward).Mul(speed)
	next.LinearVelocity = mgl64.Vec3{v.X(), state.LinearVelocity.Y(), v.Z()}

	steer := a.Steer
	if math.Abs(speed) < m.cfg.MinSteerSpeed {
		steer = 0
	}
	yaw := steer * m.cfg.TurnSpeed * m.SpeedFactor(speed) * dt
	turn := mgl64.QuatRotate(mgl64.DegToRad(yaw), core.Up)
	next.Rotation = rot.Mul(turn).Normalize()

	return Result{
		State:    next,
		Applied:  core.Action{Throttle: a.Throttle, Steer: steer},
		YawDelta: yaw,
		Turn:     turn,
	}
}

func (m *Model) nextSpeed(throttle, speed, dt float64) float64 {
	limit := m.cfg.MaxSpeed
	if math.Abs(throttle) <= m.cfg.ThrottleDeadzone {
		return clamp(approach(speed, 0, m.cfg.Deceleration, dt), -limit, limit)
	}

	rate := m.cfg.Acceleration
	if sign(throttle) != sign(speed) && math.Abs(speed) >= m.cfg.StoppedThreshold {
		// countering current motion
		rate = 2 * m.cfg.Deceleration
	}
	return clamp(approach(speed, throttle*limit, rate, dt), -limit, limit)
}

// SpeedFactor scales steering authority from 1 at standstill down to
// MinSpeedFactor at MaxSpeed along a smoothstep curve.
func (m *Model) SpeedFactor(speed float64) float64 {
	return SmoothStep(1, m.cfg.MinSpeedFactor, math.Abs(speed)/m.cfg.MaxSpeed)
}

// SmoothStep interpolates from..to with a cubic Hermite ease on t clamped to [0,1].
func SmoothStep(from, to, t float64) float64 {
	t = clamp(t, 0, 1)
	t = -2*t*t*t + 3*t*t
	return to*t + from*(1-t)
}

// approach blends v toward target by min(1, rate*dt).
func approach(v, target, rate, dt float64) float64 {
	return v + (target-v)*math.Min(1, rate*dt)
}

// sign treats zero as positive.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
