// pkg/core/episode.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// TerminalReason records why an episode ended.
type TerminalReason string

const (
	ReasonNone          TerminalReason = "none"
	ReasonLapComplete   TerminalReason = "lap-complete"
	ReasonWallCollision TerminalReason = "wall-collision"
	ReasonManualReset   TerminalReason = "manual-reset"
	ReasonTimeLimit     TerminalReason = "time-limit"
	ReasonInterrupted   TerminalReason = "interrupted"
)

// Checkpoint is a one-shot trigger that grants partial reward.
type Checkpoint struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// EpisodeRecord is created at episode start and finalized at the terminal transition.
type EpisodeRecord struct {
	ID                string         `json:"id"`
	Sequence          uint64         `json:"sequence"`
	StartTime         time.Time      `json:"startTime"`
	EndTime           time.Time      `json:"endTime,omitempty"`
	CumulativeReward  float64        `json:"cumulativeReward"`
	Reason            TerminalReason `json:"reason"`
	Ticks             uint64         `json:"ticks"`
	CheckpointsPassed int            `json:"checkpointsPassed"`
	CheckpointsTotal  int            `json:"checkpointsTotal"`
}

// Finished reports whether the record has been finalized.
func (r *EpisodeRecord) Finished() bool {
	return r.Reason != ReasonNone && r.Reason != ""
}

// StepRecord is one tick of an episode as seen by the recording sinks.
type StepRecord struct {
	EpisodeID        string      `json:"episodeId"`
	Tick             uint64      `json:"tick"`
	Time             time.Time   `json:"time"`
	Position         mgl64.Vec3  `json:"position"`
	Yaw              float64     `json:"yaw"`
	CurrentSpeed     float64     `json:"currentSpeed"`
	Action           Action      `json:"action"`
	Reward           float64     `json:"reward"`
	CumulativeReward float64     `json:"cumulativeReward"`
	Observation      Observation `json:"observation,omitempty"`
}

// StepResult is what a tick hands back to the caller driving the environment.
type StepResult struct {
	EpisodeID   string         `json:"episodeId"`
	Tick        uint64         `json:"tick"`
	Observation Observation    `json:"observation"`
	Action      Action         `json:"action"`
	Reward      float64        `json:"reward"`
	Done        bool           `json:"done"`
	Reason      TerminalReason `json:"reason"`
}
