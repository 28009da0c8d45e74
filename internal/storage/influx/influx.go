// Package influxstorage records runs as InfluxDB measurements: entity
// positions in one bucket, detection and detonation events in another.
// Point time is the run start plus the tick.
package influxstorage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OCAP2/missionsim/internal/influx"
	"github.com/OCAP2/missionsim/pkg/core"
)

var ErrNoRun = errors.New("influxstorage: no run started")

// Backend writes through an influx.Manager.
type Backend struct {
	m *influx.Manager

	mu     sync.Mutex
	run    *core.Run
	nextID uint
}

func New(m *influx.Manager) *Backend {
	return &Backend{m: m}
}

// Init connects the manager unless it already is.
func (b *Backend) Init() error {
	if b.m.IsValid || b.m.BackupWriter != nil {
		return nil
	}
	if err := b.m.Connect(context.Background()); err != nil {
		return fmt.Errorf("failed to connect to influx: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.m.Close()
}

func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *run
	b.run = &cp
	b.nextID = 0
	return nil
}

func (b *Backend) EndRun(lastTick int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ErrNoRun
	}
	b.run = nil
	return b.m.Flush()
}

func (b *Backend) current() (core.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return core.Run{}, ErrNoRun
	}
	return *b.run, nil
}

// AddEntity only numbers the entity. Influx has no entity registry.
func (b *Backend) AddEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ErrNoRun
	}
	b.nextID++
	e.ID = b.nextID
	return nil
}

func (b *Backend) RecordTimeline(r *core.TimelineRecord) error {
	run, err := b.current()
	if err != nil {
		return err
	}
	for _, p := range influx.PositionPoints(run, *r) {
		if err := b.m.WritePoint(influx.BucketPositions, p); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) RecordDetection(e *core.DetectionEvent) error {
	run, err := b.current()
	if err != nil {
		return err
	}
	return b.m.WritePoint(influx.BucketEvents, influx.DetectionPoint(run, *e))
}

func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	run, err := b.current()
	if err != nil {
		return err
	}
	return b.m.WritePoint(influx.BucketEvents, influx.DetonationPoint(run, *e))
}
