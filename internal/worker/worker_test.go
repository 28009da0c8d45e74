package worker

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/missionsim/internal/dispatcher"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/mission"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/scenario"
	"github.com/OCAP2/missionsim/internal/sim"
	"github.com/OCAP2/missionsim/internal/storage"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errWrite = errors.New("disk full")

// recordingBackend keeps everything in call order.
type recordingBackend struct {
	mu          sync.Mutex
	run         *core.Run
	entities    []core.Entity
	timeline    []int
	events      []string
	lastTick    int
	ended       bool
	failOnEvent bool
}

var _ storage.Backend = (*recordingBackend)(nil)

func (b *recordingBackend) Init() error  { return nil }
func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.run = run
	return nil
}

func (b *recordingBackend) EndRun(lastTick int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTick = lastTick
	b.ended = true
	return nil
}

func (b *recordingBackend) AddEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = uint(len(b.entities) + 1)
	b.entities = append(b.entities, *e)
	return nil
}

func (b *recordingBackend) RecordTimeline(r *core.TimelineRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeline = append(b.timeline, r.TimeSec)
	return nil
}

func (b *recordingBackend) RecordDetection(e *core.DetectionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOnEvent {
		return errWrite
	}
	b.events = append(b.events, string(e.Action)+":"+e.DetectID)
	return nil
}

func (b *recordingBackend) RecordDetonation(e *core.DetonationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOnEvent {
		return errWrite
	}
	b.events = append(b.events, "detonation:"+e.AttackerID)
	return nil
}

func (b *recordingBackend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{TimelinePositions: 3}
}

func (b *recordingBackend) LastWriteDuration() time.Duration {
	return 5 * time.Millisecond
}

func newManager(t *testing.T, backend storage.Backend) (*Manager, *mission.Context) {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := mission.NewContext()
	m := NewManager(Dependencies{
		LogManager:     logging.NewSlogManager(),
		MissionContext: ctx,
		BufferSize:     16,
	}, backend)
	m.RegisterHandlers(d)
	return m, ctx
}

func TestRecordsBeforeRegister(t *testing.T) {
	m := NewManager(Dependencies{}, &recordingBackend{})
	assert.ErrorIs(t, m.Event(core.DetonationEvent{}), ErrNotRegistered)
	assert.ErrorIs(t, m.Timeline(core.TimelineRecord{}), ErrNotRegistered)
}

func TestBeginRegistersEntities(t *testing.T) {
	backend := &recordingBackend{}
	m, ctx := newManager(t, backend)

	run := &core.Run{Name: "alpha", EndSec: 10}
	entities := []core.Entity{{ObjectID: "a"}, {ObjectID: "b"}}
	require.NoError(t, m.Begin(run, entities))

	assert.Equal(t, uint(1), entities[0].ID)
	assert.Equal(t, uint(2), entities[1].ID)
	assert.Same(t, run, backend.run)
	assert.Equal(t, "alpha", ctx.GetRun().Name)
	_, err := uuid.Parse(run.UUID)
	assert.NoError(t, err)
	require.NoError(t, m.Finish(-1))
}

func TestBeginKeepsGivenUUID(t *testing.T) {
	backend := &recordingBackend{}
	m, _ := newManager(t, backend)

	run := &core.Run{UUID: "7b0e1c52-9d4a-4c8e-b1f3-2a6d5e4c3b21", Name: "alpha"}
	require.NoError(t, m.Begin(run, nil))
	assert.Equal(t, "7b0e1c52-9d4a-4c8e-b1f3-2a6d5e4c3b21", run.UUID)
	require.NoError(t, m.Finish(-1))
}

func TestStreamsKeepOrder(t *testing.T) {
	backend := &recordingBackend{}
	m, ctx := newManager(t, backend)
	require.NoError(t, m.Begin(&core.Run{Name: "alpha", EndSec: 99}, nil))

	for tick := 0; tick < 100; tick++ {
		require.NoError(t, m.Event(core.DetectionEvent{Action: core.DetectionFound, TimeSec: tick, DetectID: "t"}))
		require.NoError(t, m.Timeline(core.TimelineRecord{TimeSec: tick}))
	}
	require.NoError(t, m.Event(&core.DetonationEvent{TimeSec: 99, AttackerID: "a1"}))
	require.NoError(t, m.Finish(99))

	require.Len(t, backend.timeline, 100)
	for i, tick := range backend.timeline {
		assert.Equal(t, i, tick)
	}
	require.Len(t, backend.events, 101)
	assert.Equal(t, "detonation:a1", backend.events[100])
	assert.True(t, backend.ended)
	assert.Equal(t, 99, backend.lastTick)

	tick, ok := ctx.LastTick()
	assert.True(t, ok)
	assert.Equal(t, 99, tick)
}

func TestAsyncErrorSurfaces(t *testing.T) {
	backend := &recordingBackend{failOnEvent: true}
	m, _ := newManager(t, backend)
	require.NoError(t, m.Begin(&core.Run{Name: "alpha"}, nil))

	require.NoError(t, m.Event(core.DetonationEvent{AttackerID: "a1"}))
	require.Eventually(t, func() bool { return m.Err() != nil }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Event(core.DetonationEvent{AttackerID: "a2"}), errWrite)
	err := m.Finish(0)
	assert.ErrorIs(t, err, errWrite)
	assert.True(t, strings.Contains(err.Error(), CommandEvent))
	assert.True(t, backend.ended)
}

func TestUnsupportedPayload(t *testing.T) {
	m, _ := newManager(t, &recordingBackend{})
	_, err := m.handleEvent(dispatcher.Event{Payload: "nope"})
	assert.Error(t, err)
	_, err = m.handleTimeline(dispatcher.Event{Payload: 42})
	assert.Error(t, err)
	require.NoError(t, m.Finish(0))
}

func TestProviders(t *testing.T) {
	m, _ := newManager(t, &recordingBackend{})
	assert.Equal(t, 5*time.Millisecond, m.LastWriteDuration())
	assert.Equal(t, uint32(3), m.WriteQueueLengths().TimelinePositions)
	assert.Equal(t, model.BufferLengths{}, m.BufferLengths())
	require.NoError(t, m.Finish(0))
}

func TestKernelThroughManager(t *testing.T) {
	s, err := scenario.Decode(strings.NewReader(`{
	  "performance": {"scout": {"detect_range_m": 1000}, "attacker": {"bom_range_m": 30}},
	  "teams": [
	    {"id": "blue", "name": "Blue", "objects": [
	      {"id": "s1", "role": "scout", "start_sec": 0,
	       "route": [{"lat_deg": 35.0, "lon_deg": 139.0, "alt_m": 0, "speeds_kph": 0}]}
	    ]},
	    {"id": "red", "name": "Red", "objects": [
	      {"id": "a1", "role": "attacker", "start_sec": 0,
	       "route": [
	         {"lat_deg": 35.0, "lon_deg": 139.001, "alt_m": 0, "speeds_kph": 36},
	         {"lat_deg": 35.0, "lon_deg": 139.0, "alt_m": 0, "speeds_kph": 36}
	       ]}
	    ]}
	  ]
	}`))
	require.NoError(t, err)

	k, err := sim.New(sim.WithWindow(0, 20))
	require.NoError(t, err)
	require.NoError(t, k.Initialize(s))

	backend := &recordingBackend{}
	m, _ := newManager(t, backend)
	require.NoError(t, m.Begin(&core.Run{Name: "e2e", EndSec: 20}, s.Entities()))
	require.NoError(t, k.Run(m))
	require.NoError(t, m.Finish(20))

	assert.Len(t, backend.entities, 2)
	assert.Len(t, backend.timeline, 21)
	require.NotEmpty(t, backend.events)
	assert.Equal(t, "found:a1", backend.events[0])
	assert.Contains(t, backend.events, "detonation:a1")
}
