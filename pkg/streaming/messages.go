// Package streaming defines the wire protocol the websocket recording
// backend speaks. Every message is an Envelope; the server acknowledges
// episode boundaries with an AckMessage.
package streaming

import (
	"encoding/json"

	"github.com/racerl/racecore/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartEpisode = "start_episode"
	TypeStep         = "step"
	TypeEndEpisode   = "end_episode"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket. Seq increases by one
// per message on a backend so the server can detect dropped steps.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Episode string          `json:"episode,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage acknowledges an episode boundary. For is the acknowledged
// message type and Episode the episode it belongs to.
type AckMessage struct {
	Type    string `json:"type"`
	For     string `json:"for"`
	Episode string `json:"episode"`
}

// StartEpisodePayload carries the new episode and where it runs.
type StartEpisodePayload struct {
	Session string              `json:"session"`
	Track   string              `json:"track"`
	Episode *core.EpisodeRecord `json:"episode"`
}

// EndEpisodePayload carries the finalized episode record.
type EndEpisodePayload struct {
	Episode *core.EpisodeRecord `json:"episode"`
}
