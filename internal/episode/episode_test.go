package episode

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/reward"
	"github.com/racerl/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle(t *testing.T, cfg Config) *Lifecycle {
	t.Helper()
	shaper := reward.New(reward.DefaultConfig())
	l := New(cfg, shaper, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ids := 0
	l.newID = func() string {
		ids++
		return fmt.Sprintf("ep-%d", ids)
	}
	return l
}

func started(t *testing.T, cfg Config) *Lifecycle {
	t.Helper()
	l := newTestLifecycle(t, cfg)
	_, err := l.Start()
	require.NoError(t, err)
	return l
}

func TestStart_FromIdle(t *testing.T) {
	l := newTestLifecycle(t, Config{Checkpoints: []string{"a", "b"}})
	assert.Equal(t, Idle, l.State())

	state, err := l.Start()
	require.NoError(t, err)
	assert.Equal(t, Running, l.State())
	assert.Equal(t, mgl64.Vec3{}, state.LinearVelocity)
	assert.Equal(t, mgl64.Vec3{}, state.AngularVelocity)
	assert.Zero(t, state.CurrentSpeed)

	rec := l.Record()
	assert.Equal(t, "ep-1", rec.ID)
	assert.Equal(t, uint64(1), rec.Sequence)
	assert.Equal(t, core.ReasonNone, rec.Reason)
	assert.Equal(t, 2, rec.CheckpointsTotal)
	assert.False(t, rec.Finished())
}

func TestStart_WhileRunningFails(t *testing.T) {
	l := started(t, Config{})
	_, err := l.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, "ep-1", l.Record().ID)
}

func TestStart_UsesExplicitSpawn(t *testing.T) {
	explicit := core.Pose{
		Position: mgl64.Vec3{3, 0, 4},
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(90), core.Up),
	}
	l := newTestLifecycle(t, Config{Spawn: core.SpawnConfig{
		Explicit: &explicit,
		Initial:  core.Pose{Position: mgl64.Vec3{1, 1, 1}},
	}})

	state, err := l.Start()
	require.NoError(t, err)
	assert.Equal(t, explicit.Position, state.Position)
	assert.InDelta(t, 90, core.Yaw(state.Rotation), 1e-9)
}

func TestStart_FallsBackToInitialPose(t *testing.T) {
	l := newTestLifecycle(t, Config{Spawn: core.SpawnConfig{
		Initial: core.Pose{Position: mgl64.Vec3{1, 0, 2}},
	}})

	state, err := l.Start()
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 0, 2}, state.Position)
	assert.True(t, state.Rotation.ApproxEqual(mgl64.QuatIdent()))
}

func TestApply_CheckpointIsOneShot(t *testing.T) {
	l := started(t, Config{Checkpoints: []string{"cp1", "cp2"}})

	tr := l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	assert.True(t, tr.Applied)
	assert.InDelta(t, 0.1, tr.Reward, 1e-12)
	assert.False(t, tr.Terminal)

	tr = l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	assert.False(t, tr.Applied)
	assert.Zero(t, tr.Reward)

	rec := l.Record()
	assert.InDelta(t, 0.1, rec.CumulativeReward, 1e-12)
	assert.Equal(t, 1, rec.CheckpointsPassed)
	assert.Equal(t, []core.Checkpoint{{ID: "cp1", Active: false}, {ID: "cp2", Active: true}}, l.Checkpoints())
}

func TestApply_UnknownCheckpointIgnored(t *testing.T) {
	l := started(t, Config{Checkpoints: []string{"cp1"}})

	tr := l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "elsewhere"})
	assert.False(t, tr.Applied)
	assert.Zero(t, l.Record().CumulativeReward)
	assert.Equal(t, Running, l.State())
}

func TestApply_WallTerminates(t *testing.T) {
	l := started(t, Config{})

	tr := l.Apply(core.WorldEvent{Kind: core.EventWall})
	assert.True(t, tr.Terminal)
	assert.Equal(t, core.ReasonWallCollision, tr.Reason)
	assert.InDelta(t, -1, tr.Reward, 1e-12)
	require.NotNil(t, tr.Finished)
	assert.InDelta(t, -1, tr.Finished.CumulativeReward, 1e-12)
	assert.True(t, tr.Finished.Finished())
	assert.False(t, tr.Finished.EndTime.IsZero())
	assert.Equal(t, Terminated, l.State())
}

func TestApply_EndLapTerminatesWithoutReward(t *testing.T) {
	l := started(t, Config{Checkpoints: []string{"cp1"}})
	l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})

	tr := l.Apply(core.WorldEvent{Kind: core.EventEndLap})
	assert.True(t, tr.Terminal)
	assert.Equal(t, core.ReasonLapComplete, tr.Reason)
	assert.Zero(t, tr.Reward)
	assert.InDelta(t, 0.1, tr.Finished.CumulativeReward, 1e-12)
}

func TestApply_IgnoredWhenNotRunning(t *testing.T) {
	l := newTestLifecycle(t, Config{Checkpoints: []string{"cp1"}})

	for _, ev := range []core.WorldEvent{
		{Kind: core.EventCheckpoint, Tag: "cp1"},
		{Kind: core.EventWall},
		{Kind: core.EventEndLap},
	} {
		tr := l.Apply(ev)
		assert.False(t, tr.Applied, ev.String())
		assert.False(t, tr.Terminal, ev.String())
	}
	assert.Equal(t, Idle, l.State())

	_, err := l.Start()
	require.NoError(t, err)
	l.Apply(core.WorldEvent{Kind: core.EventWall})
	require.Equal(t, Terminated, l.State())

	finished := l.Record()
	tr := l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	assert.False(t, tr.Applied)
	assert.Equal(t, finished, l.Record())
}

func TestApply_ManualResetRestarts(t *testing.T) {
	l := started(t, Config{Checkpoints: []string{"cp1"}})
	l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	l.Advance(0.5)

	tr := l.Apply(core.WorldEvent{Kind: core.EventManualReset})
	assert.True(t, tr.Applied)
	assert.True(t, tr.Terminal)
	assert.Equal(t, core.ReasonManualReset, tr.Reason)
	require.NotNil(t, tr.Finished)
	assert.Equal(t, "ep-1", tr.Finished.ID)
	assert.InDelta(t, 0.6, tr.Finished.CumulativeReward, 1e-12)

	assert.True(t, tr.Restarted)
	assert.Equal(t, Running, l.State())
	rec := l.Record()
	assert.Equal(t, "ep-2", rec.ID)
	assert.Equal(t, uint64(2), rec.Sequence)
	assert.Zero(t, rec.CumulativeReward)
	assert.Zero(t, rec.Ticks)
	assert.Equal(t, []core.Checkpoint{{ID: "cp1", Active: true}}, l.Checkpoints())
}

func TestApply_ManualResetFromIdle(t *testing.T) {
	l := newTestLifecycle(t, Config{})

	tr := l.Apply(core.WorldEvent{Kind: core.EventManualReset})
	assert.True(t, tr.Restarted)
	assert.False(t, tr.Terminal)
	assert.Nil(t, tr.Finished)
	assert.Equal(t, Running, l.State())
}

func TestStart_ReactivatesCheckpoints(t *testing.T) {
	l := started(t, Config{Checkpoints: []string{"cp1", "cp2"}})
	l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp2"})
	l.Apply(core.WorldEvent{Kind: core.EventEndLap})

	_, err := l.Start()
	require.NoError(t, err)
	for _, cp := range l.Checkpoints() {
		assert.True(t, cp.Active, cp.ID)
	}

	tr := l.Apply(core.WorldEvent{Kind: core.EventCheckpoint, Tag: "cp1"})
	assert.True(t, tr.Applied)
}

func TestAdvance_AccumulatesAndLimits(t *testing.T) {
	l := started(t, Config{MaxTicks: 3})

	assert.False(t, l.Advance(0.25).Terminal)
	assert.False(t, l.Advance(0.25).Terminal)
	tr := l.Advance(0.25)
	assert.True(t, tr.Terminal)
	assert.Equal(t, core.ReasonTimeLimit, tr.Reason)
	assert.Equal(t, uint64(3), tr.Finished.Ticks)
	assert.InDelta(t, 0.75, tr.Finished.CumulativeReward, 1e-12)

	assert.Zero(t, l.Advance(1).Reward)
	assert.Equal(t, uint64(3), l.Record().Ticks)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestInterrupt(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		l := started(t, Config{})
		tr := l.Interrupt()
		assert.True(t, tr.Terminal)
		assert.Equal(t, core.ReasonInterrupted, tr.Reason)
		require.NotNil(t, tr.Finished)
		assert.Equal(t, core.ReasonInterrupted, tr.Finished.Reason)
		assert.False(t, tr.Finished.EndTime.IsZero())
		assert.Equal(t, Terminated, l.State())

		again := l.Interrupt()
		assert.Nil(t, again.Finished)
	})

	t.Run("idle", func(t *testing.T) {
		l := newTestLifecycle(t, Config{})
		tr := l.Interrupt()
		assert.False(t, tr.Terminal)
		assert.Nil(t, tr.Finished)
		assert.Equal(t, Idle, l.State())
	})
}
