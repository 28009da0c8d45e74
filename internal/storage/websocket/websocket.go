// Package websocket streams a run to a live viewer over a websocket.
package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/OCAP2/missionsim/pkg/streaming"
)

var ErrSendQueueFull = errors.New("websocket: send queue full")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Logger *slog.Logger
}

// Backend streams run data as streaming envelopes. StartRun and EndRun wait
// for a server ack, everything else is fire-and-forget.
type Backend struct {
	conn   *connection
	cfg    Config
	nextID atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
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

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.send(data)
}

// StartRun announces the run and waits for the server ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run})
	if err != nil {
		return err
	}
	b.nextID.Store(0)
	b.conn.remember(data, true)
	return b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// EndRun waits for the server ack. Since the server acks in order, every
// record sent before has been received when this returns.
func (b *Backend) EndRun(lastTick int) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{LastTick: lastTick})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)
	b.conn.forget()
	return err
}

// AddEntity numbers the entity and sends it. Entities are replayed after a
// reconnect.
func (b *Backend) AddEntity(e *core.Entity) error {
	e.ID = uint(b.nextID.Add(1))
	data, err := marshalEnvelope(streaming.TypeAddEntity, streaming.AddEntityPayload{ID: e.ID, Entity: e})
	if err != nil {
		return err
	}
	b.conn.remember(data, false)
	return b.conn.send(data)
}

func (b *Backend) RecordTimeline(r *core.TimelineRecord) error {
	return b.sendEnvelope(streaming.TypeTimeline, r)
}

func (b *Backend) RecordDetection(e *core.DetectionEvent) error {
	return b.sendEnvelope(streaming.TypeDetection, e)
}

func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	return b.sendEnvelope(streaming.TypeDetonation, e)
}
