// Package storage defines the contract every episode recording backend
// implements.
package storage

import "github.com/racerl/racecore/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Calls arrive from a single recording goroutine in dispatch order.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(e *core.EpisodeRecord) error
	EndEpisode(e *core.EpisodeRecord) error

	// Per-tick recording
	RecordStep(s *core.StepRecord) error
}

// UploadMetadata describes an exported session file for the recordings server.
type UploadMetadata struct {
	TrackName string
	SessionID string
	Episodes  int
	Duration  float64 // seconds of recorded episode time
	Tag       string
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a recordings server.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() UploadMetadata
}
