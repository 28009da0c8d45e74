// Package worker connects the simulation kernel to a storage backend. The
// Manager is the kernel's sink: records go through the dispatcher, one
// ordered buffer for events and one for timeline records.
package worker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/missionsim/internal/dispatcher"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/mission"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/storage"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/google/uuid"
)

// ErrNotRegistered is returned when records arrive before RegisterHandlers.
var ErrNotRegistered = errors.New("worker: handlers not registered")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager     *logging.SlogManager
	MissionContext *mission.Context
	BufferSize     int
}

// Manager manages the persistence side of a run
type Manager struct {
	deps       Dependencies
	backend    storage.Backend
	dispatcher *dispatcher.Dispatcher

	errMu    sync.Mutex
	asyncErr error
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.BufferSize <= 0 {
		deps.BufferSize = 4096
	}
	if deps.MissionContext == nil {
		deps.MissionContext = mission.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

func (m *Manager) log(fn, msg, level string) {
	if m.deps.LogManager != nil {
		m.deps.LogManager.WriteLog(fn, msg, level)
	}
}

// Begin starts the run on the backend and registers every entity before
// the first record is produced. A run without a UUID gets a fresh one.
func (m *Manager) Begin(run *core.Run, entities []core.Entity) error {
	if run.UUID == "" {
		run.UUID = uuid.NewString()
	}
	if err := m.backend.StartRun(run); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	for i := range entities {
		if err := m.backend.AddEntity(&entities[i]); err != nil {
			return fmt.Errorf("failed to add entity %q: %w", entities[i].ObjectID, err)
		}
	}
	m.deps.MissionContext.SetRun(run)
	m.log("Begin", fmt.Sprintf("Run %q started with %d entities", run.Name, len(entities)), "INFO")
	return nil
}

// Event forwards a kernel event. It reports the first failure of an earlier
// asynchronous write.
func (m *Manager) Event(ev core.Event) error {
	return m.dispatch(CommandEvent, ev)
}

// Timeline forwards a kernel timeline record.
func (m *Manager) Timeline(rec core.TimelineRecord) error {
	if err := m.dispatch(CommandTimeline, rec); err != nil {
		return err
	}
	m.deps.MissionContext.SetTick(rec.TimeSec)
	return nil
}

func (m *Manager) dispatch(command string, payload any) error {
	if m.dispatcher == nil {
		return ErrNotRegistered
	}
	if err := m.Err(); err != nil {
		return err
	}
	_, err := m.dispatcher.Dispatch(dispatcher.Event{Command: command, Payload: payload})
	return err
}

// Finish drains the dispatcher and ends the run on the backend.
func (m *Manager) Finish(lastTick int) error {
	if m.dispatcher != nil {
		m.dispatcher.Close()
	}
	endErr := m.backend.EndRun(lastTick)
	if endErr != nil {
		endErr = fmt.Errorf("failed to end run: %w", endErr)
	}
	return errors.Join(m.Err(), endErr)
}

// Err returns the first asynchronous write failure, if any.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.asyncErr
}

func (m *Manager) recordError(command string, err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	if m.asyncErr == nil {
		m.asyncErr = fmt.Errorf("%s: %w", command, err)
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// WriteQueueProvider is implemented by backends with their own write queues.
type WriteQueueProvider interface {
	QueueLengths() model.WriteQueueLengths
}

// LastWriteDuration returns the duration of the last DB write cycle, 0 if
// the backend does not report it.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.LastWriteDuration()
	}
	return 0
}

// WriteQueueLengths returns the backend queue lengths, zero if it has none.
func (m *Manager) WriteQueueLengths() model.WriteQueueLengths {
	if p, ok := m.backend.(WriteQueueProvider); ok {
		return p.QueueLengths()
	}
	return model.WriteQueueLengths{}
}

// BufferLengths returns the dispatcher buffer lengths of both streams.
func (m *Manager) BufferLengths() model.BufferLengths {
	if m.dispatcher == nil {
		return model.BufferLengths{}
	}
	q := m.dispatcher.QueueLengths()
	return model.BufferLengths{
		Events:   uint32(q[CommandEvent]),
		Timeline: uint32(q[CommandTimeline]),
	}
}
