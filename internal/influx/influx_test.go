package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(t *testing.T) config.InfluxConfig {
	return config.InfluxConfig{
		Host:      "127.0.0.1",
		Port:      "1",
		Protocol:  "http",
		Token:     "token",
		Org:       "racecore",
		Bucket:    "episodes",
		BackupDir: t.TempDir(),
	}
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestManager_URL(t *testing.T) {
	m := NewManager(config.InfluxConfig{Protocol: "https", Host: "influx", Port: "8086"}, zerolog.Nop())
	assert.Equal(t, "https://influx:8086", m.URL())
}

func TestManager_WriteBeforeConnect(t *testing.T) {
	m := NewManager(unreachable(t), zerolog.Nop())
	err := m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddTag("a", "b").AddField("v", 1))
	assert.ErrorContains(t, err, "backup writer not available")
}

func TestManager_FallsBackToBackup(t *testing.T) {
	cfg := unreachable(t)
	m := NewManager(cfg, zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.Valid())

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &core.EpisodeRecord{ID: "ep-1", Sequence: 1, StartTime: ts}
	require.NoError(t, m.WritePoint(EpisodePoint(rec, "s-1", "corridor", "start")))
	require.NoError(t, m.WritePoint(StepPoint(&core.StepRecord{EpisodeID: "ep-1", Tick: 1, Time: ts}, "s-1")))
	require.NoError(t, m.Close())

	lines := readBackup(t, m.BackupPath())
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "episode,"), lines[0])
	assert.Contains(t, lines[0], "phase=start")
	assert.Contains(t, lines[0], "sequence=1u")
	assert.True(t, strings.HasPrefix(lines[1], "step,"), lines[1])
	assert.Contains(t, lines[1], "tick=1u")
	assert.True(t, strings.HasSuffix(lines[1], "1714564800000000000"))
}

func TestManager_CloseTwice(t *testing.T) {
	m := NewManager(unreachable(t), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestEpisodePoint_End(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &core.EpisodeRecord{
		ID:                "ep-1",
		StartTime:         start,
		EndTime:           start.Add(12 * time.Second),
		Reason:            core.ReasonWallCollision,
		Ticks:             600,
		CumulativeReward:  -0.9,
		CheckpointsPassed: 1,
		CheckpointsTotal:  4,
	}
	line := influxdb2_write.PointToLineProtocol(EpisodePoint(rec, "s-1", "corridor", "end"), time.Nanosecond)

	assert.Contains(t, line, "reason=wall-collision")
	assert.Contains(t, line, "ticks=600u")
	assert.Contains(t, line, "checkpoints_total=4i")
	assert.Contains(t, line, "duration_s=12")
	assert.Contains(t, line, "1714564812000000000")
}

func TestStepPoint_Fields(t *testing.T) {
	p := StepPoint(&core.StepRecord{
		EpisodeID: "ep-2",
		Position:  mgl64.Vec3{1.5, 0, -2},
		Action:    core.Action{Throttle: 1, Steer: -0.5},
	}, "s-1")

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "episode=ep-2")
	assert.Contains(t, line, "x=1.5")
	assert.Contains(t, line, "z=-2")
	assert.Contains(t, line, "steer=-0.5")
	assert.False(t, p.Time().IsZero())
}
