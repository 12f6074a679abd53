// Package policy defines the action producers that drive the car.
package policy

import "github.com/racerl/racecore/pkg/core"

// Policy maps an observation and the current input state to an action.
// Implementations must tolerate a nil observation.
type Policy interface {
	Act(obs core.Observation, input core.InputState) core.Action
}

// Func adapts an ordinary function to the Policy interface.
type Func func(obs core.Observation, input core.InputState) core.Action

// Act calls f.
func (f Func) Act(obs core.Observation, input core.InputState) core.Action {
	return f(obs, input)
}

// Manual turns the discrete controls into an action. It is the heuristic
// override used for debugging and human play.
type Manual struct{}

// Poll maps the controls to axis values. Forward wins over Reverse and
// Right wins over Left when both are held.
func (Manual) Poll(input core.InputState) core.Action {
	var a core.Action
	switch {
	case input.Forward:
		a.Throttle = 1
	case input.Reverse:
		a.Throttle = -1
	}
	switch {
	case input.Right:
		a.Steer = 1
	case input.Left:
		a.Steer = -1
	}
	return a
}

// Act ignores the observation and polls the input.
func (m Manual) Act(_ core.Observation, input core.InputState) core.Action {
	return m.Poll(input)
}

// Neutral always coasts straight ahead.
var Neutral = Func(func(core.Observation, core.InputState) core.Action {
	return core.Action{}
})
