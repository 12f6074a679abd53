// Package websocket streams episodes to a live recording server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/racerl/racecore/pkg/core"
	"github.com/racerl/racecore/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Session string
	Track   string
}

// Backend streams episode data over WebSocket.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
	seq  atomic.Uint64
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// envelope encodes payload as the next message of the stream.
func (b *Backend) envelope(msgType, episode string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{
		Type:    msgType,
		Seq:     b.seq.Add(1),
		Episode: episode,
		Payload: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartEpisode sends the new episode and waits for the server's ack.
func (b *Backend) StartEpisode(e *core.EpisodeRecord) error {
	data, err := b.envelope(streaming.TypeStartEpisode, e.ID, streaming.StartEpisodePayload{
		Session: b.cfg.Session,
		Track:   b.cfg.Track,
		Episode: e,
	})
	if err != nil {
		return err
	}

	b.conn.setReplay(data)
	return b.conn.sendAndWait(data, ackKey{For: streaming.TypeStartEpisode, Episode: e.ID}, ackTimeout)
}

// RecordStep sends the step without waiting.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	data, err := b.envelope(streaming.TypeStep, s.EpisodeID, s)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndEpisode sends end_episode and waits for the server's ack. The replay
// is cleared either way so a reconnect does not reopen a finished episode.
func (b *Backend) EndEpisode(e *core.EpisodeRecord) error {
	data, err := b.envelope(streaming.TypeEndEpisode, e.ID, streaming.EndEpisodePayload{Episode: e})
	if err != nil {
		return err
	}
	defer b.conn.setReplay(nil)
	return b.conn.sendAndWait(data, ackKey{For: streaming.TypeEndEpisode, Episode: e.ID}, ackTimeout)
}
