package env

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/episode"
	"github.com/racerl/racecore/internal/motion"
	"github.com/racerl/racecore/internal/reward"
	"github.com/racerl/racecore/pkg/core"
)

// EventResult is the outcome of feeding one tick's world events to the lifecycle.
type EventResult struct {
	State  core.AgentState
	Reward float64
	// Transitions holds every event that changed the lifecycle, in order.
	Transitions []episode.Transition
}

// TickResult is the outcome of one simulation tick.
type TickResult struct {
	State    core.AgentState
	Applied  core.Action
	Turn     mgl64.Quat
	Reward   float64
	Terminal bool
	Reason   core.TerminalReason
	// Transitions holds the lifecycle changes caused by events and by Advance.
	Transitions []episode.Transition
}

// Core is the engine-independent tick: lifecycle, motion and reward with no
// sensing, physics body or recording attached.
type Core struct {
	motion    *motion.Model
	shaper    *reward.Shaper
	lifecycle *episode.Lifecycle
}

// NewCore binds the components of one tick.
func NewCore(m *motion.Model, s *reward.Shaper, l *episode.Lifecycle) *Core {
	return &Core{motion: m, shaper: s, lifecycle: l}
}

// Lifecycle returns the episode state machine.
func (c *Core) Lifecycle() *episode.Lifecycle {
	return c.lifecycle
}

// Running reports whether an episode is in progress.
func (c *Core) Running() bool {
	return c.lifecycle.Running()
}

// ApplyEvents feeds the events drained at a tick boundary to the lifecycle.
// A manual reset replaces state with the spawn state; events that follow it
// in the same batch belong to the finished episode and are dropped.
func (c *Core) ApplyEvents(state core.AgentState, events []core.WorldEvent) EventResult {
	res := EventResult{State: state}
	restarted := false
	for _, ev := range events {
		if restarted && ev.Kind != core.EventManualReset {
			continue
		}
		t := c.lifecycle.Apply(ev)
		if !t.Applied {
			continue
		}
		res.Reward += t.Reward
		res.Transitions = append(res.Transitions, t)
		if t.Restarted {
			restarted = true
			res.State = t.Spawn
			res.Reward = 0
		}
	}
	return res
}

// Advance moves state by dt under action and accounts the continuous reward.
// The returned state carries the new velocity, heading and speed; position
// integration is left to the caller's physics body.
func (c *Core) Advance(state core.AgentState, action core.Action, dt float64) TickResult {
	m := c.motion.Step(action, state, dt)
	r := c.shaper.Continuous(m.State, m.Applied)

	res := TickResult{
		State:   m.State,
		Applied: m.Applied,
		Turn:    m.Turn,
		Reward:  r,
	}
	t := c.lifecycle.Advance(r)
	if t.Terminal {
		res.Terminal = true
		res.Reason = t.Reason
		res.Transitions = append(res.Transitions, t)
	}
	return res
}

// Tick runs one full tick without a physics engine: events, motion, reward
// and the terminal check, with position integrated by explicit Euler. Before
// the first episode starts it is a non-terminal no-op.
func (c *Core) Tick(state core.AgentState, action core.Action, events []core.WorldEvent, dt float64) TickResult {
	ev := c.ApplyEvents(state, events)
	if !c.lifecycle.Running() {
		res := TickResult{
			State:       ev.State,
			Reward:      ev.Reward,
			Transitions: ev.Transitions,
		}
		if c.lifecycle.State() == episode.Terminated {
			res.Terminal = true
			res.Reason = c.lifecycle.Record().Reason
		}
		return res
	}

	res := c.Advance(ev.State, action, dt)
	if dt > 0 {
		res.State.Position = ev.State.Position.Add(res.State.LinearVelocity.Mul(dt))
	}
	res.Reward += ev.Reward
	res.Transitions = append(ev.Transitions, res.Transitions...)
	return res
}
