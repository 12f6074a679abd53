// Package reward shapes the per-tick scalar reward.
package reward

import (
	"math"

	"github.com/racerl/racecore/pkg/core"
)

// Config holds the reward weights.
type Config struct {
	SteerPenaltyFactor  float64 `json:"steerPenaltyFactor" mapstructure:"steerPenaltyFactor"`
	ForwardRewardFactor float64 `json:"forwardRewardFactor" mapstructure:"forwardRewardFactor"`
	CheckpointReward    float64 `json:"checkpointReward" mapstructure:"checkpointReward"`
	WallPenalty         float64 `json:"wallPenalty" mapstructure:"wallPenalty"`
}

// DefaultConfig returns the weights the agent was trained with.
func DefaultConfig() Config {
	return Config{
		SteerPenaltyFactor:  0.001,
		ForwardRewardFactor: 0.0001,
		CheckpointReward:    0.1,
		WallPenalty:         -1,
	}
}

// Shaper computes reward terms. It keeps no state; accumulation belongs to
// the episode record.
type Shaper struct {
	cfg Config
}

// New returns a Shaper for cfg.
func New(cfg Config) *Shaper {
	return &Shaper{cfg: cfg}
}

// Continuous returns the smoothness penalty plus the signed progress term.
// applied must be the action after speed gating.
func (s *Shaper) Continuous(state core.AgentState, applied core.Action) float64 {
	return -math.Abs(applied.Steer)*s.cfg.SteerPenaltyFactor + state.CurrentSpeed*s.cfg.ForwardRewardFactor
}

// EventReward returns the discrete term attached to an event kind.
func (s *Shaper) EventReward(kind core.EventKind) float64 {
	switch kind {
	case core.EventCheckpoint:
		return s.cfg.CheckpointReward
	case core.EventWall:
		return s.cfg.WallPenalty
	}
	return 0
}

// Shape sums the continuous terms and one discrete term per applied event.
func (s *Shaper) Shape(state core.AgentState, applied core.Action, events []core.EventKind) float64 {
	r := s.Continuous(state, applied)
	for _, k := range events {
		r += s.EventReward(k)
	}
	return r
}
