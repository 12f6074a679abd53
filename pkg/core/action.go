// pkg/core/action.go
package core

import "math"

// Action is the normalized two-axis control command produced by a policy.
type Action struct {
	Throttle float64 `json:"throttle"`
	Steer    float64 `json:"steer"`
}

// Clamp returns the action with both axes limited to [-1, 1].
func (a Action) Clamp() Action {
	return Action{
		Throttle: ClampUnit(a.Throttle),
		Steer:    ClampUnit(a.Steer),
	}
}

// InputState is a snapshot of the directional controls and the reset key.
type InputState struct {
	Forward bool `json:"forward"`
	Reverse bool `json:"reverse"`
	Left    bool `json:"left"`
	Right   bool `json:"right"`
	Reset   bool `json:"reset"`
}

// ClampUnit limits v to [-1, 1]. NaN maps to 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
