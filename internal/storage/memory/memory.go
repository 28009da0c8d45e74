// Package memory keeps a whole run in memory and exports it as one JSON
// document when the run ends.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/OCAP2/missionsim/internal/config"
	v1 "github.com/OCAP2/missionsim/internal/storage/memory/export/v1"
	"github.com/OCAP2/missionsim/pkg/core"
)

// ErrNoRun is returned when records arrive before StartRun.
var ErrNoRun = errors.New("memory: no run started")

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig
	run *core.Run

	entities    map[string]*v1.EntityRecord // keyed by ObjectID
	teamNames   map[string]string
	detections  []core.DetectionEvent
	detonations []core.DetonationEvent
	lastTick    int

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		entities:  make(map[string]*v1.EntityRecord),
		teamNames: make(map[string]string),
	}
}

func (b *Backend) Init() error {
	return nil
}

func (b *Backend) Close() error {
	return nil
}

// StartRun resets all collections and begins recording run.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.entities = make(map[string]*v1.EntityRecord)
	b.teamNames = make(map[string]string)
	b.detections = nil
	b.detonations = nil
	b.lastTick = 0
	b.idCounter = 0
	b.lastExportPath = ""
	return nil
}

// EndRun exports everything collected since StartRun.
func (b *Backend) EndRun(lastTick int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.lastTick = lastTick
	return b.exportJSON()
}

// AddEntity registers an entity and assigns it a sequential ID.
func (b *Backend) AddEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	if _, ok := b.entities[e.ObjectID]; ok {
		return fmt.Errorf("memory: entity %q already registered", e.ObjectID)
	}

	b.idCounter++
	e.ID = b.idCounter
	b.entities[e.ObjectID] = &v1.EntityRecord{Entity: *e}
	if e.TeamName != "" {
		b.teamNames[e.TeamID] = e.TeamName
	}
	return nil
}

// Entity returns a copy of the registered entity.
func (b *Backend) Entity(objectID string) (core.Entity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.entities[objectID]
	if !ok {
		return core.Entity{}, false
	}
	return rec.Entity, true
}

// RecordTimeline splits a snapshot into per entity position samples.
// Positions of unregistered entities are an error.
func (b *Backend) RecordTimeline(r *core.TimelineRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	for _, p := range r.Positions {
		rec, ok := b.entities[p.ObjectID]
		if !ok {
			return fmt.Errorf("memory: position for unknown entity %q at %d", p.ObjectID, r.TimeSec)
		}
		rec.Positions = append(rec.Positions, v1.PositionSample{
			TimeSec: r.TimeSec,
			LatDeg:  p.LatDeg,
			LonDeg:  p.LonDeg,
			AltM:    p.AltM,
		})
	}
	b.lastTick = r.TimeSec
	return nil
}

func (b *Backend) RecordDetection(e *core.DetectionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ErrNoRun
	}
	b.detections = append(b.detections, *e)
	return nil
}

func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ErrNoRun
	}
	b.detonations = append(b.detonations, *e)
	return nil
}

// Counts reports how many records are held, for progress reporting.
func (b *Backend) Counts() (entities, detections, detonations int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entities), len(b.detections), len(b.detonations)
}
