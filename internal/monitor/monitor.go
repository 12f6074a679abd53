// Package monitor periodically snapshots the recording pipeline and the
// running episode into a status file.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/racerl/racecore/pkg/core"
)

const defaultInterval = time.Second

// Recorder is the part of the worker manager the monitor reads.
type Recorder interface {
	Recorded() uint64
	GetLastWriteDuration() time.Duration
}

// Episodes is the part of the environment the monitor reads.
type Episodes interface {
	Record() core.EpisodeRecord
	Running() bool
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Recorder Recorder
	Episodes Episodes
	// StatusPath is rewritten on every interval. Empty disables the file.
	StatusPath string
	Interval   time.Duration
}

// Status is one snapshot.
type Status struct {
	Time                time.Time          `json:"time"`
	Running             bool               `json:"running"`
	Episode             core.EpisodeRecord `json:"episode"`
	RecordedEvents      uint64             `json:"recordedEvents"`
	LastWriteDurationMs float32            `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now()}
	if s.deps.Episodes != nil {
		st.Running = s.deps.Episodes.Running()
		st.Episode = s.deps.Episodes.Record()
	}
	if s.deps.Recorder != nil {
		st.RecordedEvents = s.deps.Recorder.Recorded()
		st.LastWriteDurationMs = float32(s.deps.Recorder.GetLastWriteDuration().Microseconds()) / 1000
	}
	return st
}

// WriteStatus writes one snapshot to the status file.
func (s *Service) WriteStatus() error {
	if s.deps.StatusPath == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine. It stops when ctx is done or
// Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					s.deps.Logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()
}

// Stop stops the status monitor and writes a final snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	if err := s.WriteStatus(); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}
