// Package convert maps between the recording types in pkg/core and the GORM
// models persisted by the database backends.
package convert

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/racerl/racecore/internal/model"
	"github.com/racerl/racecore/pkg/core"
)

// EpisodeToCore converts a GORM Episode to a core.EpisodeRecord.
func EpisodeToCore(e model.Episode) core.EpisodeRecord {
	r := core.EpisodeRecord{
		ID:                e.EpisodeID,
		Sequence:          e.Sequence,
		StartTime:         e.StartTime,
		CumulativeReward:  e.CumulativeReward,
		Reason:            core.TerminalReason(e.Reason),
		Ticks:             e.Ticks,
		CheckpointsPassed: e.CheckpointsPassed,
		CheckpointsTotal:  e.CheckpointsTotal,
	}
	if e.EndTime.Valid {
		r.EndTime = e.EndTime.Time
	}
	return r
}

// StepToCore converts a GORM Step to a core.StepRecord. An observation
// column that does not decode is left empty.
func StepToCore(s model.Step) core.StepRecord {
	r := core.StepRecord{
		EpisodeID:        s.EpisodeID,
		Tick:             s.Tick,
		Time:             s.Time,
		Position:         mgl64.Vec3{s.PositionX, s.PositionY, s.PositionZ},
		Yaw:              s.Yaw,
		CurrentSpeed:     s.CurrentSpeed,
		Action:           core.Action{Throttle: s.Throttle, Steer: s.Steer},
		Reward:           s.Reward,
		CumulativeReward: s.CumulativeReward,
	}
	if len(s.Observation) > 0 {
		var obs []float64
		if err := json.Unmarshal(s.Observation, &obs); err == nil {
			r.Observation = obs
		}
	}
	return r
}
