package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/OCAP2/missionsim/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection owns one websocket with a single writer goroutine. Messages
// that describe the current run are kept so a reconnect can replay them.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}
	closed bool

	wsURL  string
	secret string

	replay         [][]byte
	initialBackoff time.Duration

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:         make(chan []byte, sendChSize),
		ackCh:          make(chan streaming.AckMessage, ackChSize),
		done:           make(chan struct{}),
		initialBackoff: time.Second,
		logger:         logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.run(conn)
	return nil
}

// dialOnce dials with the secret as a query parameter.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// run is the only writer. It drains sendCh into the current connection and
// reconnects when a read or write fails. A message whose write failed is
// sent again after the replay.
func (c *connection) run(conn *ws.Conn) {
	for conn != nil {
		readErr := make(chan error, 1)
		go c.readLoop(conn, readErr)

		pending, err := c.writeLoop(conn, readErr)
		if err == nil {
			return
		}
		c.logger.Warn("WebSocket connection lost", "error", err)
		_ = conn.Close()
		conn = c.reconnect(pending)
	}
}

// writeLoop returns nil on shutdown. On failure it returns the message that
// could not be written, if any.
func (c *connection) writeLoop(conn *ws.Conn, readErr <-chan error) ([]byte, error) {
	for {
		select {
		case <-c.done:
			return nil, nil
		case err := <-readErr:
			return nil, err
		case data := <-c.sendCh:
			if err := writeText(conn, data); err != nil {
				return data, err
			}
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop routes acks to ackCh and ignores everything else.
func (c *connection) readLoop(conn *ws.Conn, errCh chan<- error) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect dials with exponential backoff, replays the run state and then
// pending. It returns nil on shutdown or after maxReconnect failures.
func (c *connection) reconnect(pending []byte) *ws.Conn {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := append([][]byte(nil), c.replay...)
		c.mu.Unlock()
		if pending != nil && !containsMessage(replay, pending) {
			replay = append(replay, pending)
		}

		if err := writeAll(conn, replay); err != nil {
			c.logger.Warn("Failed to replay run state after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt, "replayed", len(replay))
		return conn
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
	return nil
}

func writeAll(conn *ws.Conn, msgs [][]byte) error {
	for _, msg := range msgs {
		if err := writeText(conn, msg); err != nil {
			return err
		}
	}
	return nil
}

func containsMessage(msgs [][]byte, data []byte) bool {
	for _, m := range msgs {
		if bytes.Equal(m, data) {
			return true
		}
	}
	return false
}

// remember appends data to the replay set. reset starts a new set.
func (c *connection) remember(data []byte, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reset {
		c.replay = nil
	}
	c.replay = append(c.replay, data)
}

func (c *connection) forget() {
	c.mu.Lock()
	c.replay = nil
	c.mu.Unlock()
}

// send queues data for the writer. It drops when the queue is full.
func (c *connection) send(data []byte) error {
	select {
	case c.sendCh <- data:
		return nil
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return ErrSendQueueFull
	}
}

// sendAndWait sends data and blocks until the server acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if err := c.send(data); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops every goroutine.
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

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
