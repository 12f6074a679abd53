package worker

import (
	"fmt"
	"time"

	"github.com/racerl/racecore/internal/dispatcher"
	"github.com/racerl/racecore/pkg/core"
)

// RecordedTopics are the topics a Manager stores, in the order a single
// episode produces them.
var RecordedTopics = []dispatcher.Topic{
	dispatcher.TopicEpisodeStart,
	dispatcher.TopicStep,
	dispatcher.TopicEpisodeEnd,
}

// RegisterHandlers registers the recording handler with the dispatcher.
// All recorded topics share one queue so a backend never sees a step
// before its episode start or after its episode end.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	var opts []dispatcher.Option
	if m.deps.Buffer > 0 {
		opts = append(opts, dispatcher.Buffered(m.deps.Buffer))
	}
	d.RegisterShared(RecordedTopics, m.handle, opts...)
}

func (m *Manager) handle(e dispatcher.Event) error {
	start := time.Now()
	err := m.record(e)
	m.lastWrite.Store(int64(time.Since(start)))
	if err != nil {
		return err
	}
	m.recorded.Add(1)
	return nil
}

func (m *Manager) record(e dispatcher.Event) error {
	switch e.Topic {
	case dispatcher.TopicEpisodeStart, dispatcher.TopicEpisodeEnd:
		rec, ok := e.Payload.(core.EpisodeRecord)
		if !ok {
			return fmt.Errorf("%w: %s carries %T", ErrUnexpectedPayload, e.Topic, e.Payload)
		}
		if e.Topic == dispatcher.TopicEpisodeStart {
			if err := m.backend.StartEpisode(&rec); err != nil {
				return fmt.Errorf("failed to record episode start %s: %w", rec.ID, err)
			}
			return nil
		}
		if err := m.backend.EndEpisode(&rec); err != nil {
			return fmt.Errorf("failed to record episode end %s: %w", rec.ID, err)
		}
		m.deps.Logger.Debug("Episode recorded", "episode", rec.ID, "reason", rec.Reason, "ticks", rec.Ticks)
		return nil

	case dispatcher.TopicStep:
		step, ok := e.Payload.(core.StepRecord)
		if !ok {
			return fmt.Errorf("%w: %s carries %T", ErrUnexpectedPayload, e.Topic, e.Payload)
		}
		if err := m.backend.RecordStep(&step); err != nil {
			return fmt.Errorf("failed to record step %d of %s: %w", step.Tick, step.EpisodeID, err)
		}
		return nil
	}
	return fmt.Errorf("%w: topic %s", ErrUnexpectedPayload, e.Topic)
}
