package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/racerl/racecore/pkg/streaming"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errConnClosed = errors.New("connection closed")

// ackKey identifies the acknowledgement an episode boundary waits for.
type ackKey struct {
	For     string
	Episode string
}

// connection owns one socket at a time with a single writer. Steps are
// queued without waiting; episode boundaries block until the server acks
// that boundary for that episode.
type connection struct {
	logger *slog.Logger
	queue  chan []byte
	done   chan struct{}

	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	waiters map[ackKey]chan struct{}
	// replay is the running episode's start_episode, resent first after a
	// reconnect so the server can attach the following steps.
	replay []byte

	target  string
	backoff time.Duration
	dropped atomic.Uint64
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		logger:  logger,
		queue:   make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		waiters: make(map[ackKey]chan struct{}),
		backoff: time.Second,
	}
}

// dial builds the target URL, with the secret as a query parameter, and
// connects.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	c.target = u.String()

	conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.attach(conn)
	return nil
}

func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.writeLoop(conn)
	go c.readLoop(conn)
}

func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			if err := writeText(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("WebSocket read error", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if json.Unmarshal(raw, &ack) != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring non-ack message", "raw", string(raw))
			continue
		}
		if !c.resolve(ackKey{For: ack.For, Episode: ack.Episode}) {
			c.logger.Debug("Unexpected ack", "for", ack.For, "episode", ack.Episode)
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// reconnect swaps the failed socket for a new one with exponential backoff.
// Both loops report the same failure; only the caller that still sees
// failed as current proceeds.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = failed.Close()

	wait := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			wait = min(wait*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		closed, replay := c.closed, c.replay
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}
		if replay != nil {
			if err := writeText(conn, replay); err != nil {
				c.logger.Warn("Failed to replay start_episode after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}
	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// setReplay sets the message resent after a reconnect. nil clears it.
func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

// send queues data for the writer, dropping it when the queue is full.
func (c *connection) send(data []byte) {
	select {
	case c.queue <- data:
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send queue full, dropping message")
	}
}

// sendAndWait queues data and blocks until the ack for key arrives.
func (c *connection) sendAndWait(data []byte, key ackKey, timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w while sending %s", errConnClosed, key.For)
	}
	c.waiters[key] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, key)
		c.mu.Unlock()
	}()

	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for ack of %s for episode %q", key.For, key.Episode)
	case <-c.done:
		return fmt.Errorf("%w while waiting for ack of %s", errConnClosed, key.For)
	}
}

// resolve wakes the waiter for key and reports whether there was one.
func (c *connection) resolve(key ackKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waiters[key]
	if ok {
		close(ch)
		delete(c.waiters, key)
	}
	return ok
}

// close sends a close frame and stops both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
