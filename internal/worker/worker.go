package worker

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/racerl/racecore/internal/storage"
)

// ErrUnexpectedPayload is returned when an event carries a payload the
// recording handler does not know how to store.
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// Buffer is the size of the shared recording queue. Zero records synchronously.
	Buffer int
}

// Manager moves episode events from the dispatcher into a storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	lastWrite atomic.Int64
	recorded  atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// Backend returns the storage backend events are written to.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}

// Recorded returns how many events reached the backend without error.
func (m *Manager) Recorded() uint64 {
	return m.recorded.Load()
}

// GetLastWriteDuration returns how long the last backend call took.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}
