// Package memory implements the storage.Backend interface by keeping the
// session in memory and exporting it as one JSON file on Close.
package memory

import (
	"sync"
	"time"

	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/pkg/core"
)

// EpisodeRecord groups an episode with all its steps
type EpisodeRecord struct {
	Episode core.EpisodeRecord
	Steps   []core.StepRecord
}

// Session identifies what the recording belongs to.
type Session struct {
	ID        string
	TrackName string
	Tag       string
	StartTime time.Time
}

// Backend stores episode data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session Session

	episodes []*EpisodeRecord
	byID     map[string]*EpisodeRecord

	lastExportPath string
	lastExportMeta exportMeta
	mu             sync.RWMutex
}

type exportMeta struct {
	episodes int
	duration float64
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, session Session) *Backend {
	if session.StartTime.IsZero() {
		session.StartTime = time.Now()
	}
	return &Backend{
		cfg:     cfg,
		session: session,
		byID:    make(map[string]*EpisodeRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the session. A session without episodes writes nothing.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.episodes) == 0 {
		return nil
	}
	return b.exportJSON()
}

// StartEpisode begins recording a new episode
func (b *Backend) StartEpisode(e *core.EpisodeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episode(e.ID).Episode = *e
	return nil
}

// RecordStep appends a step to its episode
func (b *Backend) RecordStep(s *core.StepRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.episode(s.EpisodeID)
	rec.Steps = append(rec.Steps, *s)
	return nil
}

// EndEpisode stores the finalized record
func (b *Backend) EndEpisode(e *core.EpisodeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episode(e.ID).Episode = *e
	return nil
}

// episode returns the record for id, creating it on first sight so steps
// arriving without a start are kept. Callers hold mu.
func (b *Backend) episode(id string) *EpisodeRecord {
	if rec, ok := b.byID[id]; ok {
		return rec
	}
	rec := &EpisodeRecord{
		Episode: core.EpisodeRecord{ID: id, Reason: core.ReasonNone},
		Steps:   make([]core.StepRecord, 0),
	}
	b.byID[id] = rec
	b.episodes = append(b.episodes, rec)
	return rec
}

// GetEpisode looks up an episode by ID
func (b *Backend) GetEpisode(id string) (EpisodeRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.byID[id]
	if !ok {
		return EpisodeRecord{}, false
	}
	out := EpisodeRecord{Episode: rec.Episode, Steps: make([]core.StepRecord, len(rec.Steps))}
	copy(out.Steps, rec.Steps)
	return out, true
}

// Episodes returns the finalized records in start order.
func (b *Backend) Episodes() []core.EpisodeRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.EpisodeRecord, 0, len(b.episodes))
	for _, rec := range b.episodes {
		out = append(out, rec.Episode)
	}
	return out
}
