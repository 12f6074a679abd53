package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&RacecoreInfo{},
	&Track{},
	&Episode{},
	&Step{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RacecoreInfo records the schema version the database was created with.
type RacecoreInfo struct {
	gorm.Model
	SchemaVersion string `json:"schemaVersion" gorm:"size:32"`
	Description   string `json:"description" gorm:"size:255"`
}

func (*RacecoreInfo) TableName() string {
	return "racecore_infos"
}

////////////////////////
// SESSION MODELS
////////////////////////

// Track is a course episodes were run on, keyed by name.
type Track struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:200;uniqueIndex:idx_track_name"`
	CRS         string `json:"crs" gorm:"size:32"`
	Checkpoints int    `json:"checkpoints"`
	Episodes    []Episode
}

func (*Track) TableName() string {
	return "tracks"
}

// Episode is one attempt from spawn to a terminal transition.
type Episode struct {
	ID                uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	EpisodeID         string       `json:"episodeId" gorm:"size:64;uniqueIndex:idx_episode_episode_id"`
	SessionID         string       `json:"sessionId" gorm:"size:64;index:idx_episode_session_id"`
	TrackID           uint         `json:"trackId" gorm:"index:idx_episode_track_id"`
	Sequence          uint64       `json:"sequence"`
	StartTime         time.Time    `json:"startTime" gorm:"index:idx_episode_start"`
	EndTime           sql.NullTime `json:"endTime"`
	Reason            string       `json:"reason" gorm:"size:32;default:none"`
	Ticks             uint64       `json:"ticks"`
	CumulativeReward  float64      `json:"cumulativeReward"`
	CheckpointsPassed int          `json:"checkpointsPassed"`
	CheckpointsTotal  int          `json:"checkpointsTotal"`
}

func (*Episode) TableName() string {
	return "episodes"
}

// Step is one tick of an episode.
type Step struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	EpisodeID string    `json:"episodeId" gorm:"size:64;index:idx_step_episode_tick,priority:1"`
	Tick      uint64    `json:"tick" gorm:"index:idx_step_episode_tick,priority:2"`

	PositionX    float64 `json:"positionX"`
	PositionY    float64 `json:"positionY"` // height
	PositionZ    float64 `json:"positionZ"`
	Yaw          float64 `json:"yaw"` // degrees from +Z toward +X
	CurrentSpeed float64 `json:"currentSpeed"`

	Throttle         float64        `json:"throttle"`
	Steer            float64        `json:"steer"`
	Reward           float64        `json:"reward"`
	CumulativeReward float64        `json:"cumulativeReward"`
	Observation      datatypes.JSON `json:"observation"` // JSON array of the normalized channels
}

func (*Step) TableName() string {
	return "steps"
}
