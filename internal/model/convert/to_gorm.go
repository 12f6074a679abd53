package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/racerl/racecore/internal/model"
	"github.com/racerl/racecore/pkg/core"
	"gorm.io/datatypes"
)

// CoreToEpisode converts a core.EpisodeRecord to a GORM Episode.
// The end time is only set once the record is finished.
func CoreToEpisode(r core.EpisodeRecord, sessionID string, trackID uint) model.Episode {
	reason := r.Reason
	if reason == "" {
		reason = core.ReasonNone
	}
	ep := model.Episode{
		EpisodeID:         r.ID,
		SessionID:         sessionID,
		TrackID:           trackID,
		Sequence:          r.Sequence,
		StartTime:         r.StartTime,
		Reason:            string(reason),
		Ticks:             r.Ticks,
		CumulativeReward:  r.CumulativeReward,
		CheckpointsPassed: r.CheckpointsPassed,
		CheckpointsTotal:  r.CheckpointsTotal,
	}
	if r.Finished() && !r.EndTime.IsZero() {
		ep.EndTime = sql.NullTime{Time: r.EndTime, Valid: true}
	}
	return ep
}

// EpisodeUpdates returns the columns a terminal transition changes.
func EpisodeUpdates(r core.EpisodeRecord) map[string]any {
	ep := CoreToEpisode(r, "", 0)
	return map[string]any{
		"end_time":           ep.EndTime,
		"reason":             ep.Reason,
		"ticks":              ep.Ticks,
		"cumulative_reward":  ep.CumulativeReward,
		"checkpoints_passed": ep.CheckpointsPassed,
		"checkpoints_total":  ep.CheckpointsTotal,
	}
}

// CoreToStep converts a core.StepRecord to a GORM Step.
func CoreToStep(s core.StepRecord) model.Step {
	step := model.Step{
		Time:             s.Time,
		EpisodeID:        s.EpisodeID,
		Tick:             s.Tick,
		PositionX:        s.Position.X(),
		PositionY:        s.Position.Y(),
		PositionZ:        s.Position.Z(),
		Yaw:              s.Yaw,
		CurrentSpeed:     s.CurrentSpeed,
		Throttle:         s.Action.Throttle,
		Steer:            s.Action.Steer,
		Reward:           s.Reward,
		CumulativeReward: s.CumulativeReward,
	}
	if len(s.Observation) > 0 {
		if data, err := json.Marshal([]float64(s.Observation)); err == nil {
			step.Observation = datatypes.JSON(data)
		}
	}
	return step
}
