package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/racerl/racecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	n uint64
	d time.Duration
}

func (f fakeRecorder) Recorded() uint64                   { return f.n }
func (f fakeRecorder) GetLastWriteDuration() time.Duration { return f.d }

type fakeEpisodes struct {
	rec     core.EpisodeRecord
	running bool
}

func (f fakeEpisodes) Record() core.EpisodeRecord { return f.rec }
func (f fakeEpisodes) Running() bool              { return f.running }

func newService(t *testing.T, path string) *Service {
	t.Helper()
	return NewService(Dependencies{
		Recorder:   fakeRecorder{n: 42, d: 1500 * time.Microsecond},
		Episodes:   fakeEpisodes{rec: core.EpisodeRecord{ID: "ep-1", Sequence: 3, Ticks: 120}, running: true},
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})
}

func TestGetStatus(t *testing.T) {
	s := newService(t, "")

	st := s.GetStatus()
	assert.True(t, st.Running)
	assert.Equal(t, "ep-1", st.Episode.ID)
	assert.Equal(t, uint64(120), st.Episode.Ticks)
	assert.Equal(t, uint64(42), st.RecordedEvents)
	assert.InDelta(t, 1.5, st.LastWriteDurationMs, 1e-6)
}

func TestGetStatus_NoDependencies(t *testing.T) {
	s := NewService(Dependencies{})
	st := s.GetStatus()
	assert.False(t, st.Running)
	assert.Zero(t, st.RecordedEvents)
}

func TestWriteStatus_NoPath(t *testing.T) {
	assert.NoError(t, newService(t, "").WriteStatus())
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := newService(t, path)

	s.Start(context.Background())
	assert.True(t, s.IsRunning())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(b, &st))
	assert.Equal(t, uint64(3), st.Episode.Sequence)
	assert.Equal(t, uint64(42), st.RecordedEvents)
}

func TestStart_StopsWithContext(t *testing.T) {
	s := newService(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)
}
