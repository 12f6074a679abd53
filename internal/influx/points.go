package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/racerl/racecore/pkg/core"
)

// Measurement names.
const (
	MeasurementEpisode = "episode"
	MeasurementStep    = "step"
)

// EpisodePoint describes an episode boundary. phase is "start" or "end";
// the end point carries the final tallies.
func EpisodePoint(e *core.EpisodeRecord, session, track, phase string) *influxdb2_write.Point {
	ts := e.StartTime
	if phase == "end" && !e.EndTime.IsZero() {
		ts = e.EndTime
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	p := influxdb2_write.NewPointWithMeasurement(MeasurementEpisode).
		AddTag("episode", e.ID).
		AddTag("session", session).
		AddTag("track", track).
		AddTag("phase", phase).
		AddField("sequence", e.Sequence).
		SetTime(ts)

	if phase == "end" {
		p.AddTag("reason", string(e.Reason)).
			AddField("ticks", e.Ticks).
			AddField("reward", e.CumulativeReward).
			AddField("checkpoints_passed", e.CheckpointsPassed).
			AddField("checkpoints_total", e.CheckpointsTotal)
		if !e.EndTime.IsZero() && !e.StartTime.IsZero() {
			p.AddField("duration_s", e.EndTime.Sub(e.StartTime).Seconds())
		}
	}
	return p
}

// StepPoint describes one tick.
func StepPoint(s *core.StepRecord, session string) *influxdb2_write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2_write.NewPointWithMeasurement(MeasurementStep).
		AddTag("episode", s.EpisodeID).
		AddTag("session", session).
		AddField("tick", s.Tick).
		AddField("x", s.Position.X()).
		AddField("y", s.Position.Y()).
		AddField("z", s.Position.Z()).
		AddField("yaw", s.Yaw).
		AddField("speed", s.CurrentSpeed).
		AddField("throttle", s.Action.Throttle).
		AddField("steer", s.Action.Steer).
		AddField("reward", s.Reward).
		AddField("cumulative_reward", s.CumulativeReward).
		SetTime(ts)
}
