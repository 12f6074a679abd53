// Package influxstorage implements the storage.Backend interface by writing
// episode and step points to InfluxDB.
package influxstorage

import (
	"context"
	"time"

	"github.com/racerl/racecore/internal/influx"
	"github.com/racerl/racecore/pkg/core"
)

const connectTimeout = 10 * time.Second

// Backend writes points through an influx.Manager.
type Backend struct {
	mgr     *influx.Manager
	session string
	track   string
}

// New creates a new InfluxDB storage backend.
func New(mgr *influx.Manager, session, track string) *Backend {
	return &Backend{mgr: mgr, session: session, track: track}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return b.mgr.Connect(ctx)
}

// Close flushes and releases the manager.
func (b *Backend) Close() error {
	return b.mgr.Close()
}

// StartEpisode writes the episode start point.
func (b *Backend) StartEpisode(e *core.EpisodeRecord) error {
	return b.mgr.WritePoint(influx.EpisodePoint(e, b.session, b.track, "start"))
}

// RecordStep writes one step point.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	return b.mgr.WritePoint(influx.StepPoint(s, b.session))
}

// EndEpisode writes the episode end point with the final tallies.
func (b *Backend) EndEpisode(e *core.EpisodeRecord) error {
	return b.mgr.WritePoint(influx.EpisodePoint(e, b.session, b.track, "end"))
}
