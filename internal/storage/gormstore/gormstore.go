// Package gormstore is the relational backend shared by the sqlite,
// postgres and mysql storage types. Runs and entities are inserted synchronously;
// per tick rows go through write queues drained by a background writer.
package gormstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/model/convert"
	"github.com/OCAP2/missionsim/internal/queue"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultFlushInterval is how often the writer drains the queues.
const DefaultFlushInterval = 2 * time.Second

var (
	ErrNoDatabase = errors.New("gormstore: no database")
	ErrNoRun      = errors.New("gormstore: no run started")
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	EntityCache   *cache.EntityCache
	LogManager    *logging.SlogManager
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch insertion.
type queues struct {
	TimelinePositions *queue.Queue[model.TimelinePosition]
	DetectionEvents   *queue.Queue[model.DetectionEvent]
	DetonationEvents  *queue.Queue[model.DetonationEvent]
}

func newQueues() *queues {
	return &queues{
		TimelinePositions: queue.New[model.TimelinePosition](),
		DetectionEvents:   queue.New[model.DetectionEvent](),
		DetonationEvents:  queue.New[model.DetonationEvent](),
	}
}

// Backend implements storage.Backend on a gorm database.
type Backend struct {
	deps   Dependencies
	queues *queues
	runID  atomic.Uint64

	writeMu       sync.Mutex
	lastWriteNano atomic.Int64

	stopChan   chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.EntityCache == nil {
		deps.EntityCache = cache.NewEntityCache()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying database.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SetDB injects the database before Init.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

func (b *Backend) log(fn, msg, level string) {
	if b.deps.LogManager != nil {
		b.deps.LogManager.WriteLog(fn, msg, level)
	}
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	if err := database.Setup(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.writerDone = make(chan struct{})
	go b.writer()
	return nil
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.writerDone
		}
		if b.deps.DB != nil {
			err = b.Flush()
		}
	})
	return err
}

// StartRun inserts the run row and makes it the target of queued rows.
func (b *Backend) StartRun(run *core.Run) error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	if err := b.Flush(); err != nil {
		return err
	}

	row := convert.CoreToRun(*run)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	run.ID = row.ID
	b.runID.Store(uint64(row.ID))
	b.deps.EntityCache.Reset()

	b.log("StartRun", fmt.Sprintf("Run %d started: %s", row.ID, row.Name), "INFO")
	return nil
}

// RunID returns the id of the current run, 0 before StartRun.
func (b *Backend) RunID() uint {
	return uint(b.runID.Load())
}

// EndRun writes every queued row, then stamps the run with its last tick.
func (b *Backend) EndRun(lastTick int) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	if err := b.Flush(); err != nil {
		return err
	}

	now := time.Now()
	err := b.deps.DB.Model(&model.Run{}).Where("id = ?", runID).Updates(map[string]any{
		"last_tick": lastTick,
		"ended_at":  now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	b.log("EndRun", fmt.Sprintf("Run %d finished at tick %d", runID, lastTick), "INFO")
	return nil
}

// AddEntity inserts synchronously because timeline rows need the id.
func (b *Backend) AddEntity(e *core.Entity) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}

	row := convert.CoreToEntity(*e)
	row.ID = 0
	row.RunID = runID
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert entity %q: %w", e.ObjectID, err)
	}
	e.ID = row.ID
	b.deps.EntityCache.Add(*e)
	return nil
}

// RecordTimeline converts and queues one row per position.
func (b *Backend) RecordTimeline(r *core.TimelineRecord) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	rows := convert.CoreToTimelinePositions(*r, time.Now(), b.deps.EntityCache.ID)
	for i := range rows {
		rows[i].RunID = runID
	}
	b.queues.TimelinePositions.Push(rows...)
	return nil
}

// RecordDetection converts and queues a detection event.
func (b *Backend) RecordDetection(e *core.DetectionEvent) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	row := convert.CoreToDetectionEvent(*e, time.Now())
	row.RunID = runID
	b.queues.DetectionEvents.Push(row)
	return nil
}

// RecordDetonation converts and queues a detonation event.
func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	runID := b.RunID()
	if runID == 0 {
		return ErrNoRun
	}
	row := convert.CoreToDetonationEvent(*e, time.Now())
	row.RunID = runID
	b.queues.DetonationEvents.Push(row)
	return nil
}

// QueueLengths reports rows waiting for the writer.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		TimelinePositions: uint32(b.queues.TimelinePositions.Len()),
		DetectionEvents:   uint32(b.queues.DetectionEvents.Len()),
		DetonationEvents:  uint32(b.queues.DetonationEvents.Len()),
	}
}

// LastWriteDuration is how long the last non-empty flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteNano.Load())
}

// Flush writes every queue now. Failed batches stay queued.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.deps.DB == nil {
		return ErrNoDatabase
	}

	start := time.Now()
	pending := b.queues.TimelinePositions.Len() + b.queues.DetectionEvents.Len() + b.queues.DetonationEvents.Len()

	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.TimelinePositions, "timeline positions", b.log),
		writeQueue(b.deps.DB, b.queues.DetectionEvents, "detection events", b.log),
		writeQueue(b.deps.DB, b.queues.DetonationEvents, "detonation events", b.log),
	)
	if pending > 0 {
		b.lastWriteNano.Store(int64(time.Since(start)))
	}
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are put back at the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string)) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if tx.Error != nil {
		q.Requeue(items...)
		return fmt.Errorf("failed to begin %s batch: %w", name, tx.Error)
	}
	if err := tx.CreateInBatches(&items, 1000).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

// writer periodically drains the queues until Close.
func (b *Backend) writer() {
	defer close(b.writerDone)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log("writer", err.Error(), "ERROR")
			}
		}
	}
}
