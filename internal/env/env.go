// Package env runs the racing environment: it drains world events at the
// tick boundary, observes, asks the policy for an action, moves the body and
// hands every episode transition to the recording dispatcher.
package env

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/dispatcher"
	"github.com/racerl/racecore/internal/episode"
	"github.com/racerl/racecore/internal/events"
	"github.com/racerl/racecore/internal/logging"
	"github.com/racerl/racecore/internal/motion"
	"github.com/racerl/racecore/internal/perception"
	"github.com/racerl/racecore/internal/physics"
	"github.com/racerl/racecore/internal/policy"
	"github.com/racerl/racecore/internal/reward"
	"github.com/racerl/racecore/pkg/core"
)

const defaultDeltaTime = 20 * time.Millisecond

var (
	// ErrNoBody is returned by New without a physics body.
	ErrNoBody = errors.New("environment needs a physics body")
	// ErrNotStarted is returned by Step before the first episode began.
	ErrNotStarted = errors.New("no episode started")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("environment closed")
)

// World is the source of contacts and the owner of checkpoint visibility.
// *track.Track implements it.
type World interface {
	Contacts(prev, next mgl64.Vec3, radius float64) []core.WorldEvent
	SetCheckpointActive(id string, active bool)
	Reset()
}

// Config holds the tuning of every component.
type Config struct {
	Motion      motion.Config
	Sensors     perception.Config
	Reward      reward.Config
	Checkpoints []string
	// Spawn overrides the pose the body has when New is called.
	Spawn          *core.Pose
	MaxTicks       uint64
	FixedDeltaTime time.Duration
	CarRadius      float64
}

// Dependencies are the collaborators the environment drives.
type Dependencies struct {
	Body      physics.Body
	Raycaster perception.Raycaster
	// World is optional; without it events only arrive through Enqueue.
	World World
	// Policy defaults to policy.Manual.
	Policy policy.Policy
	// Dispatcher is optional; without it nothing is recorded.
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	Context    *logging.EpisodeContext
}

// Environment is one car on one track. Its methods are safe for concurrent
// use; ticks are serialized.
type Environment struct {
	cfg  Config
	deps Dependencies

	core       *Core
	perception *perception.Module
	events     *events.Queue
	metrics    *metrics
	logger     *slog.Logger

	mu     sync.Mutex
	state  core.AgentState
	obs    core.Observation
	closed bool
}

// New validates the configuration and wires the components. The body's
// current pose is recorded as the spawn unless cfg.Spawn is set. The
// environment starts idle; call Reset to begin the first episode.
func New(cfg Config, deps Dependencies) (*Environment, error) {
	if deps.Body == nil {
		return nil, ErrNoBody
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Policy == nil {
		deps.Policy = policy.Manual{}
	}
	if cfg.FixedDeltaTime <= 0 {
		cfg.FixedDeltaTime = defaultDeltaTime
	}

	mm, err := motion.New(cfg.Motion)
	if err != nil {
		return nil, fmt.Errorf("motion: %w", err)
	}
	pm, err := perception.New(cfg.Sensors, deps.Raycaster)
	if err != nil {
		return nil, fmt.Errorf("perception: %w", err)
	}
	met, err := newMetrics()
	if err != nil {
		return nil, err
	}

	shaper := reward.New(cfg.Reward)
	lc := episode.New(episode.Config{
		Checkpoints: cfg.Checkpoints,
		Spawn:       core.SpawnConfig{Explicit: cfg.Spawn, Initial: deps.Body.Pose()},
		MaxTicks:    cfg.MaxTicks,
	}, shaper, deps.Logger)

	e := &Environment{
		cfg:        cfg,
		deps:       deps,
		core:       NewCore(mm, shaper, lc),
		perception: pm,
		events:     events.NewQueue(),
		metrics:    met,
		logger:     deps.Logger,
		state:      core.AtRest(deps.Body.Pose()),
	}
	return e, nil
}

// Enqueue hands a world event to the next tick. It reports whether the
// event was accepted.
func (e *Environment) Enqueue(ev core.WorldEvent) bool {
	return e.events.Push(ev)
}

// State returns the agent state at the last tick boundary.
func (e *Environment) State() core.AgentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Record returns the current or last episode record.
func (e *Environment) Record() core.EpisodeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.core.Lifecycle().Record()
}

// Running reports whether an episode is in progress.
func (e *Environment) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.core.Running()
}

// Reset ends the running episode, if any, with a manual reset and starts a
// new one at the spawn. The result carries the first observation.
func (e *Environment) Reset() (core.StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return core.StepResult{}, ErrClosed
	}

	e.events.Drain()
	t := e.core.Lifecycle().Apply(core.WorldEvent{Kind: core.EventManualReset})
	e.handle(t)

	obs := e.observe()
	rec := e.core.Lifecycle().Record()
	return core.StepResult{EpisodeID: rec.ID, Observation: obs, Reason: core.ReasonNone}, nil
}

// Step runs one tick with the configured policy. A non-positive dt uses
// the fixed delta time. input.Reset requests a manual reset.
func (e *Environment) Step(input core.InputState, dt float64) (core.StepResult, error) {
	return e.tick(input, nil, dt)
}

// StepAction runs one tick with an action chosen outside the environment.
func (e *Environment) StepAction(action core.Action, dt float64) (core.StepResult, error) {
	return e.tick(core.InputState{}, &action, dt)
}

// Close stops the environment, ending a running episode as interrupted.
// Recording sinks are owned by the caller.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.handle(e.core.Lifecycle().Interrupt())
	return nil
}

func (e *Environment) tick(input core.InputState, external *core.Action, dt float64) (core.StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return core.StepResult{}, ErrClosed
	}
	if !(dt > 0) {
		dt = e.cfg.FixedDeltaTime.Seconds()
	}

	pending := e.events.Drain()
	if input.Reset {
		pending = append(pending, core.WorldEvent{Kind: core.EventManualReset})
	}
	ev := e.core.ApplyEvents(e.state, pending)
	for _, t := range ev.Transitions {
		e.handle(t)
	}

	lc := e.core.Lifecycle()
	if !lc.Running() {
		rec := lc.Record()
		if lc.State() == episode.Idle {
			return core.StepResult{}, ErrNotStarted
		}
		return core.StepResult{
			EpisodeID:   rec.ID,
			Tick:        rec.Ticks,
			Observation: e.obs,
			Reward:      ev.Reward,
			Done:        true,
			Reason:      rec.Reason,
		}, nil
	}

	obs, err := e.perception.Observe(e.state)
	action := core.Action{}
	switch {
	case err != nil:
		e.logger.Error("Observation failed, applying neutral action", "error", err)
		obs = nil
	case external != nil:
		action = *external
	default:
		action = e.deps.Policy.Act(obs, input)
	}

	res := e.core.Advance(e.state, action, dt)
	prev := e.state.Position
	e.state = e.integrate(res, dt)
	e.obs = obs

	if e.deps.World != nil {
		for _, c := range e.deps.World.Contacts(prev, e.state.Position, e.cfg.CarRadius) {
			e.events.Push(c)
		}
	}

	rec := lc.Record()
	if e.deps.Context != nil {
		e.deps.Context.Set(rec.ID, rec.Ticks)
	}
	e.metrics.tick()
	e.dispatch(dispatcher.TopicStep, core.StepRecord{
		EpisodeID:        rec.ID,
		Tick:             rec.Ticks,
		Time:             time.Now(),
		Position:         e.state.Position,
		Yaw:              core.Yaw(e.state.Rotation),
		CurrentSpeed:     e.state.CurrentSpeed,
		Action:           res.Applied,
		Reward:           res.Reward,
		CumulativeReward: rec.CumulativeReward,
		Observation:      obs,
	})
	for _, t := range res.Transitions {
		e.handle(t)
	}

	return core.StepResult{
		EpisodeID:   rec.ID,
		Tick:        rec.Ticks,
		Observation: obs,
		Action:      res.Applied,
		Reward:      ev.Reward + res.Reward,
		Done:        res.Terminal,
		Reason:      rec.Reason,
	}, nil
}

// integrate pushes the motion result through the physics body and reads the
// resulting state back.
func (e *Environment) integrate(res TickResult, dt float64) core.AgentState {
	body := e.deps.Body
	body.SetLinearVelocity(res.State.LinearVelocity)
	body.ApplyRotation(res.Turn)
	body.Integrate(dt)

	pose := body.Pose()
	return core.AgentState{
		Position:        pose.Position,
		Rotation:        pose.Rotation,
		LinearVelocity:  body.LinearVelocity(),
		AngularVelocity: body.AngularVelocity(),
		CurrentSpeed:    res.State.CurrentSpeed,
	}
}

// handle applies the side effects of one lifecycle transition.
func (e *Environment) handle(t episode.Transition) {
	if t.Applied && t.Event.Kind == core.EventCheckpoint && e.deps.World != nil {
		e.deps.World.SetCheckpointActive(t.Event.Tag, false)
	}
	if t.Finished != nil {
		e.metrics.terminated(t.Finished)
		e.dispatch(dispatcher.TopicEpisodeEnd, *t.Finished)
	}
	if t.Restarted {
		e.restore(t.Spawn)
		rec := e.core.Lifecycle().Record()
		if e.deps.Context != nil {
			e.deps.Context.Set(rec.ID, 0)
		}
		e.metrics.started()
		e.dispatch(dispatcher.TopicEpisodeStart, rec)
	}
}

// restore puts the body at the spawn with all velocities zeroed and clears
// the contacts of the previous episode.
func (e *Environment) restore(spawn core.AgentState) {
	body := e.deps.Body
	body.SetPose(spawn.Pose())
	body.SetLinearVelocity(mgl64.Vec3{})
	body.SetAngularVelocity(mgl64.Vec3{})
	e.state = spawn
	e.obs = nil
	e.events.Reset()
	if e.deps.World != nil {
		e.deps.World.Reset()
	}
}

func (e *Environment) observe() core.Observation {
	obs, err := e.perception.Observe(e.state)
	if err != nil {
		e.logger.Error("Observation failed", "error", err)
		return nil
	}
	e.obs = obs
	return obs
}

func (e *Environment) dispatch(topic dispatcher.Topic, payload any) {
	if e.deps.Dispatcher == nil {
		return
	}
	if err := e.deps.Dispatcher.Dispatch(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		if topic == dispatcher.TopicStep {
			e.logger.Debug("Step not recorded", "error", err)
			return
		}
		e.logger.Warn("Episode event not recorded", "topic", string(topic), "error", err)
	}
}
