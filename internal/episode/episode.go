// Package episode implements the episode state machine: spawn restore,
// checkpoint activation and terminal transitions driven by world events.
package episode

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/racerl/racecore/pkg/core"
)

// ErrAlreadyRunning is returned by Start while an episode is in progress.
var ErrAlreadyRunning = errors.New("episode already running")

// State is the lifecycle phase.
type State int

const (
	Idle State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventRewarder supplies the discrete reward term for an event kind.
type EventRewarder interface {
	EventReward(kind core.EventKind) float64
}

// Config describes the checkpoints and spawn of a track.
type Config struct {
	Checkpoints []string
	Spawn       core.SpawnConfig
	// MaxTicks ends an episode with ReasonTimeLimit after that many ticks. Zero disables it.
	MaxTicks uint64
}

// Transition reports the effect of one Apply or Advance call.
type Transition struct {
	Event    core.WorldEvent
	Applied  bool
	Reward   float64
	Terminal bool
	Reason   core.TerminalReason
	// Finished is the finalized record when this call ended a running episode.
	Finished *core.EpisodeRecord
	// Restarted is set when a manual reset began a new episode; Spawn is its start state.
	Restarted bool
	Spawn     core.AgentState
}

// Lifecycle owns the checkpoint set and the active EpisodeRecord.
// It is not safe for concurrent use; events are fed to it at tick boundaries.
type Lifecycle struct {
	state    State
	cfg      Config
	rewarder EventRewarder
	logger   *slog.Logger

	checkpoints map[string]*core.Checkpoint
	record      *core.EpisodeRecord
	sequence    uint64

	now   func() time.Time
	newID func() string
}

// New returns an Idle lifecycle.
func New(cfg Config, rewarder EventRewarder, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lifecycle{
		state:       Idle,
		cfg:         cfg,
		rewarder:    rewarder,
		logger:      logger,
		checkpoints: make(map[string]*core.Checkpoint, len(cfg.Checkpoints)),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, id := range cfg.Checkpoints {
		l.checkpoints[id] = &core.Checkpoint{ID: id, Active: true}
	}
	return l
}

// State returns the current phase.
func (l *Lifecycle) State() State {
	return l.state
}

// Running reports whether an episode is in progress.
func (l *Lifecycle) Running() bool {
	return l.state == Running
}

// Record returns a copy of the current (or last) episode record.
// The zero record is returned before the first Start.
func (l *Lifecycle) Record() core.EpisodeRecord {
	if l.record == nil {
		return core.EpisodeRecord{Reason: core.ReasonNone}
	}
	return *l.record
}

// Checkpoints returns the checkpoint states in configuration order.
func (l *Lifecycle) Checkpoints() []core.Checkpoint {
	out := make([]core.Checkpoint, 0, len(l.cfg.Checkpoints))
	for _, id := range l.cfg.Checkpoints {
		out = append(out, *l.checkpoints[id])
	}
	return out
}

// Start begins a new episode from Idle or Terminated. It reactivates every
// checkpoint and returns the spawn state with all velocities zeroed.
func (l *Lifecycle) Start() (core.AgentState, error) {
	if l.state == Running {
		return core.AgentState{}, ErrAlreadyRunning
	}
	return l.begin(), nil
}

func (l *Lifecycle) begin() core.AgentState {
	for _, cp := range l.checkpoints {
		cp.Active = true
	}

	l.sequence++
	l.record = &core.EpisodeRecord{
		ID:               l.newID(),
		Sequence:         l.sequence,
		StartTime:        l.now(),
		Reason:           core.ReasonNone,
		CheckpointsTotal: len(l.checkpoints),
	}
	l.state = Running

	l.logger.Info("Episode started", "episode", l.record.ID, "sequence", l.sequence)
	return core.AtRest(l.cfg.Spawn.Resolve())
}

// Apply feeds one world event to the state machine. Events other than a
// manual reset are ignored unless an episode is running.
func (l *Lifecycle) Apply(ev core.WorldEvent) Transition {
	t := Transition{Event: ev}

	if ev.Kind == core.EventManualReset {
		return l.manualReset(t)
	}
	if l.state != Running {
		l.logger.Debug("Ignoring event outside a running episode", "event", ev.String(), "state", l.state.String())
		return t
	}

	switch ev.Kind {
	case core.EventCheckpoint:
		cp, ok := l.checkpoints[ev.Tag]
		if !ok {
			l.logger.Debug("Ignoring unknown checkpoint", "tag", ev.Tag)
			return t
		}
		if !cp.Active {
			return t
		}
		cp.Active = false
		l.record.CheckpointsPassed++
		t.Applied = true
		t.Reward = l.addEventReward(ev.Kind)
		l.logger.Debug("Checkpoint", "episode", l.record.ID, "tag", ev.Tag)

	case core.EventEndLap:
		t.Applied = true
		l.terminate(&t, core.ReasonLapComplete)

	case core.EventWall:
		t.Applied = true
		t.Reward = l.addEventReward(ev.Kind)
		l.terminate(&t, core.ReasonWallCollision)

	default:
		l.logger.Warn("Unknown world event", "kind", string(ev.Kind))
	}

	return t
}

// Advance accounts one completed tick: it adds reward to the running record
// and enforces MaxTicks. It is a no-op outside a running episode.
func (l *Lifecycle) Advance(reward float64) Transition {
	var t Transition
	if l.state != Running {
		return t
	}
	l.record.Ticks++
	l.record.CumulativeReward += reward
	t.Reward = reward

	if l.cfg.MaxTicks > 0 && l.record.Ticks >= l.cfg.MaxTicks {
		l.terminate(&t, core.ReasonTimeLimit)
	}
	return t
}

// Interrupt ends the running episode because the environment is shutting
// down. It is a no-op outside a running episode.
func (l *Lifecycle) Interrupt() Transition {
	var t Transition
	if l.state == Running {
		l.terminate(&t, core.ReasonInterrupted)
	}
	return t
}

func (l *Lifecycle) manualReset(t Transition) Transition {
	t.Applied = true
	if l.state == Running {
		l.terminate(&t, core.ReasonManualReset)
	}
	l.logger.Info("Manual episode reset")

	t.Restarted = true
	t.Spawn = l.begin()
	return t
}

func (l *Lifecycle) addEventReward(kind core.EventKind) float64 {
	if l.rewarder == nil {
		return 0
	}
	r := l.rewarder.EventReward(kind)
	l.record.CumulativeReward += r
	return r
}

func (l *Lifecycle) terminate(t *Transition, reason core.TerminalReason) {
	l.record.Reason = reason
	l.record.EndTime = l.now()
	l.state = Terminated

	finished := *l.record
	t.Terminal = true
	t.Reason = reason
	t.Finished = &finished

	l.logger.Info("Episode terminated",
		"episode", finished.ID,
		"reason", string(reason),
		"reward", finished.CumulativeReward,
		"ticks", finished.Ticks,
	)
}
