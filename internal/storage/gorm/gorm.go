// Package gormstorage implements the storage.Backend interface on top of a
// GORM connection. Episodes are written as they start and end; steps are
// queued and written in batches by a background flush loop.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/racerl/racecore/internal/database"
	"github.com/racerl/racecore/internal/model"
	"github.com/racerl/racecore/internal/model/convert"
	"github.com/racerl/racecore/internal/queue"
	"github.com/racerl/racecore/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 2000
)

// ErrNoDatabase is returned by Init when no connection was supplied.
var ErrNoDatabase = errors.New("gorm backend has no database")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	SessionID     string
	TrackName     string
	Checkpoints   int
	FlushInterval time.Duration
	BatchSize     int
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	steps   *queue.Queue[model.Step]
	trackID uint

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	return &Backend{
		deps:  deps,
		steps: queue.New[model.Step](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema, registers the track and starts the flush loop.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}

	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	if b.deps.TrackName != "" {
		track := model.Track{Name: b.deps.TrackName}
		err := b.deps.DB.
			Where(model.Track{Name: b.deps.TrackName}).
			Assign(model.Track{Checkpoints: b.deps.Checkpoints}).
			FirstOrCreate(&track).Error
		if err != nil {
			return fmt.Errorf("failed to get or insert track: %w", err)
		}
		b.trackID = track.ID
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.flushLoop()

	b.deps.Logger.Info("Database backend ready", "dialect", b.deps.DB.Name(), "track", b.deps.TrackName)
	return nil
}

// Close stops the flush loop and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return b.Flush()
}

// StartEpisode inserts the episode row.
func (b *Backend) StartEpisode(e *core.EpisodeRecord) error {
	row := convert.CoreToEpisode(*e, b.deps.SessionID, b.trackID)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert episode %s: %w", e.ID, err)
	}
	return nil
}

// RecordStep queues the step for the next batch.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	b.steps.Push(convert.CoreToStep(*s))
	return nil
}

// EndEpisode writes the episode's remaining steps, then its terminal
// columns. A missing row, e.g. when the start event was dropped, is created.
func (b *Backend) EndEpisode(e *core.EpisodeRecord) error {
	if err := b.Flush(); err != nil {
		return err
	}

	res := b.deps.DB.Model(&model.Episode{}).
		Where("episode_id = ?", e.ID).
		Updates(convert.EpisodeUpdates(*e))
	if res.Error != nil {
		return fmt.Errorf("failed to update episode %s: %w", e.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return b.StartEpisode(e)
	}
	return nil
}

// Flush writes all queued steps in batches. A failed batch is requeued.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for !b.steps.Empty() {
		if err := writeQueue(b.deps.DB, b.steps, b.deps.BatchSize); err != nil {
			return fmt.Errorf("error creating steps: %w", err)
		}
	}
	return nil
}

// Episode returns the stored episode with the given ID.
func (b *Backend) Episode(id string) (model.Episode, error) {
	var ep model.Episode
	err := b.deps.DB.Where("episode_id = ?", id).First(&ep).Error
	return ep, err
}

// Steps returns the stored steps of an episode ordered by tick.
func (b *Backend) Steps(episodeID string) ([]model.Step, error) {
	var steps []model.Step
	err := b.deps.DB.Where("episode_id = ?", episodeID).Order("tick").Find(&steps).Error
	return steps, err
}

// writeQueue writes up to batch items from a queue in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batch int) error {
	items := q.DrainN(batch)
	if len(items) == 0 {
		return nil
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Push(items...)
		return err
	}
	return tx.Commit().Error
}

// flushLoop periodically drains the step queue into the DB.
func (b *Backend) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			n := b.steps.Len()
			if n == 0 {
				continue
			}
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Error writing steps", "error", err, "queued", n)
			} else {
				b.deps.Logger.Debug("Wrote steps", "count", n, "duration", time.Since(start))
			}
		}
	}
}
