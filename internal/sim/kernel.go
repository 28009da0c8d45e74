// Package sim runs the per-second simulation loop: positions, spatial index,
// detection, detonation and the timeline snapshot, in that order.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/OCAP2/missionsim/internal/geo"
	"github.com/OCAP2/missionsim/internal/route"
	"github.com/OCAP2/missionsim/internal/scenario"
	"github.com/OCAP2/missionsim/internal/spatial"
	"github.com/OCAP2/missionsim/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Default mission window in seconds, both ends inclusive.
const (
	DefaultStartSec = 0
	DefaultEndSec   = 24 * 60 * 60
)

var (
	// ErrNotInitialized is returned by Run when Initialize has not succeeded
	// since the previous Run.
	ErrNotInitialized = errors.New("sim: Initialize must be called before Run")
	// ErrInvalidWindow is returned by New for a window outside 0..86400 or
	// ending before it starts.
	ErrInvalidWindow = errors.New("sim: invalid tick window")
)

// Sink receives everything the kernel produces, in emission order.
// A returned error aborts the run at the current tick.
type Sink interface {
	Event(ev core.Event) error
	Timeline(rec core.TimelineRecord) error
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = l
	}
}

// WithWindow sets the first and last tick to simulate.
func WithWindow(startSec, endSec int) Option {
	return func(k *Kernel) {
		k.startSec = startSec
		k.endSec = endSec
	}
}

// WithTickHook registers fn to be called after every completed tick.
func WithTickHook(fn func(t int)) Option {
	return func(k *Kernel) {
		k.onTick = fn
	}
}

// Kernel owns the entity population of one run.
type Kernel struct {
	logger   *slog.Logger
	startSec int
	endSec   int
	onTick   func(t int)

	entities    []Entity
	detectRange float64
	initialized bool

	// per tick scratch
	positions []geo.ECEF
	geodetic  []geodetic
	index     *spatial.Index

	ticks       metric.Int64Counter
	detections  metric.Int64Counter
	detonations metric.Int64Counter
}

type geodetic struct {
	lat, lon, alt float64
}

// New returns an uninitialized kernel.
func New(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		startSec: DefaultStartSec,
		endSec:   DefaultEndSec,
		index:    spatial.New(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.startSec < DefaultStartSec || k.endSec > DefaultEndSec || k.startSec > k.endSec {
		return nil, fmt.Errorf("%w: %d..%d, want a range within %d..%d",
			ErrInvalidWindow, k.startSec, k.endSec, DefaultStartSec, DefaultEndSec)
	}

	m := meter()
	var err error

	k.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Total simulated ticks completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	k.detections, err = m.Int64Counter(
		"sim.detections",
		metric.WithDescription("Detection events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating detections counter: %w", err)
	}

	k.detonations, err = m.Int64Counter(
		"sim.detonations",
		metric.WithDescription("Detonation events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating detonations counter: %w", err)
	}

	return k, nil
}

// Initialize builds every entity from s, deriving routes and leg timing once.
// The scenario is expected to have passed scenario.Validate.
func (k *Kernel) Initialize(s *scenario.Scenario) error {
	k.initialized = false
	entities := make([]Entity, 0, s.ObjectCount())

	for _, team := range s.Teams {
		for _, obj := range team.Objects {
			role, err := ParseRole(obj.Role)
			if err != nil {
				return fmt.Errorf("object %q: %w", obj.ID, err)
			}

			points := route.Build(obj.Route)
			ends, total := route.SegmentTimes(points)

			e := Entity{
				ID:          obj.ID,
				TeamID:      team.ID,
				Role:        role,
				StartSec:    obj.StartSec,
				Route:       points,
				SegmentEnds: ends,
				TotalSec:    total,
			}
			if len(points) > 0 {
				e.Position = points[0].ECEF
			}

			switch role {
			case RoleScout:
				e.Scout = &ScoutState{
					DetectRangeM: s.Performance.Scout.DetectRangeM,
					CommRangeM:   s.Performance.Scout.CommRangeM,
					Detected:     make(map[string]Detection),
				}
			case RoleMessenger:
				e.Messenger = &MessengerState{CommRangeM: s.Performance.Messenger.CommRangeM}
			case RoleAttacker:
				e.Attacker = &AttackerState{BomRangeM: s.Performance.Attacker.BomRangeM}
			}

			entities = append(entities, e)
		}
	}

	k.entities = entities
	k.detectRange = s.Performance.Scout.DetectRangeM
	k.positions = make([]geo.ECEF, len(entities))
	k.geodetic = make([]geodetic, len(entities))
	k.initialized = true

	k.logger.Info("kernel initialized",
		"entities", len(entities),
		"teams", len(s.Teams),
		"detectRangeM", k.detectRange,
		"window", fmt.Sprintf("%d..%d", k.startSec, k.endSec),
	)
	return nil
}

// Len returns the number of entities.
func (k *Kernel) Len() int {
	return len(k.entities)
}

// Entity returns the i-th entity in stable order.
func (k *Kernel) Entity(i int) *Entity {
	return &k.entities[i]
}

// PositionAt evaluates the position of entity i at t without changing state.
func (k *Kernel) PositionAt(i int, t float64) geo.ECEF {
	return positionAt(&k.entities[i], t)
}

// Window returns the configured first and last tick.
func (k *Kernel) Window() (startSec, endSec int) {
	return k.startSec, k.endSec
}

// Run executes every tick of the window and reports to sink. It stops at the
// first sink error. Each Run consumes the state built by Initialize; running
// again requires another Initialize.
func (k *Kernel) Run(sink Sink) error {
	if !k.initialized {
		return ErrNotInitialized
	}
	k.initialized = false

	start := time.Now()
	for t := k.startSec; t <= k.endSec; t++ {
		if err := k.step(t, sink); err != nil {
			return fmt.Errorf("tick %d: %w", t, err)
		}
		k.ticks.Add(context.Background(), 1)
		if k.onTick != nil {
			k.onTick(t)
		}
	}

	k.logger.Info("simulation complete",
		"ticks", k.endSec-k.startSec+1,
		"elapsed", time.Since(start),
	)
	return nil
}

func (k *Kernel) step(t int, sink Sink) error {
	k.updatePositions(t)
	k.index.Rebuild(k.positions, k.detectRange)

	if err := k.detect(t, sink); err != nil {
		return err
	}
	if err := k.detonate(t, sink); err != nil {
		return err
	}
	return sink.Timeline(k.timeline(t))
}

func (k *Kernel) updatePositions(t int) {
	for i := range k.entities {
		e := &k.entities[i]
		e.Position = positionAt(e, float64(t))
		k.positions[i] = e.Position

		lat, lon, alt := geo.ECEFToGeodetic(e.Position)
		k.geodetic[i] = geodetic{lat: lat, lon: lon, alt: alt}
	}
}

// detect runs the detection pass. Found events are emitted before lost events
// for each scout, each group ordered by target id.
func (k *Kernel) detect(t int, sink Sink) error {
	if k.detectRange <= 0 {
		return nil
	}

	for i := range k.entities {
		e := &k.entities[i]
		if e.Scout == nil || e.Scout.DetectRangeM <= 0 {
			continue
		}

		current := k.scan(i)
		previous := e.Scout.Detected

		var found, lost []string
		for id := range current {
			if _, ok := previous[id]; !ok {
				found = append(found, id)
			}
		}
		for id := range previous {
			if _, ok := current[id]; !ok {
				lost = append(lost, id)
			}
		}
		sort.Strings(found)
		sort.Strings(lost)

		for _, id := range found {
			if err := k.emitDetection(sink, t, core.DetectionFound, e.ID, id, current[id]); err != nil {
				return err
			}
		}
		for _, id := range lost {
			if err := k.emitDetection(sink, t, core.DetectionLost, e.ID, id, previous[id]); err != nil {
				return err
			}
		}

		e.Scout.Detected = current
	}
	return nil
}

// scan collects every non-teammate within range of scout i. When the same id
// is reached through more than one cell the last visited record is kept.
func (k *Kernel) scan(i int) map[string]Detection {
	scout := &k.entities[i]
	rangeM := scout.Scout.DetectRangeM
	current := make(map[string]Detection)

	base := spatial.Key(scout.Position, k.index.CellSize())
	k.index.Neighbors(base, func(j int) {
		if j == i {
			return
		}
		other := &k.entities[j]
		if other.TeamID == scout.TeamID {
			return
		}
		d := geo.Distance(scout.Position, other.Position)
		if d > rangeM {
			return
		}
		g := k.geodetic[j]
		current[other.ID] = Detection{
			LatDeg:    g.lat,
			LonDeg:    g.lon,
			AltM:      g.alt,
			DistanceM: int(math.Round(d)),
		}
	})
	return current
}

func (k *Kernel) emitDetection(sink Sink, t int, action core.DetectionAction, scoutID, targetID string, d Detection) error {
	ev := core.DetectionEvent{
		EventType: core.EventTypeDetection,
		Action:    action,
		TimeSec:   t,
		ScoutID:   scoutID,
		DetectID:  targetID,
		LatDeg:    d.LatDeg,
		LonDeg:    d.LonDeg,
		AltM:      d.AltM,
		DistanceM: d.DistanceM,
	}
	if err := sink.Event(ev); err != nil {
		return fmt.Errorf("emitting detection: %w", err)
	}
	k.detections.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("action", string(action))))
	return nil
}

func (k *Kernel) detonate(t int, sink Sink) error {
	for i := range k.entities {
		e := &k.entities[i]
		if e.Attacker == nil || e.Attacker.Fired {
			continue
		}
		if math.IsInf(e.TotalSec, 0) || math.IsNaN(e.TotalSec) {
			continue
		}
		if float64(t) < float64(e.StartSec)+e.TotalSec {
			continue
		}

		g := k.geodetic[i]
		ev := core.DetonationEvent{
			EventType:  core.EventTypeDetonation,
			TimeSec:    t,
			AttackerID: e.ID,
			LatDeg:     g.lat,
			LonDeg:     g.lon,
			AltM:       g.alt,
			BomRangeM:  e.Attacker.BomRangeM,
		}
		if err := sink.Event(ev); err != nil {
			return fmt.Errorf("emitting detonation: %w", err)
		}
		e.Attacker.Fired = true
		k.detonations.Add(context.Background(), 1)
		k.logger.Debug("attacker detonated", "attacker", e.ID, "tick", t)
	}
	return nil
}

func (k *Kernel) timeline(t int) core.TimelineRecord {
	rec := core.TimelineRecord{
		TimeSec:   t,
		Positions: make([]core.TimelinePosition, len(k.entities)),
	}
	for i := range k.entities {
		e := &k.entities[i]
		g := k.geodetic[i]
		rec.Positions[i] = core.TimelinePosition{
			ObjectID: e.ID,
			TeamID:   e.TeamID,
			Role:     e.Role.String(),
			LatDeg:   g.lat,
			LonDeg:   g.lon,
			AltM:     g.alt,
		}
	}
	return rec
}
