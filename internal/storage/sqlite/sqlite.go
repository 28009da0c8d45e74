// Package sqlitestorage records runs into an in-memory SQLite database and
// snapshots it to disk with VACUUM INTO. Everything else is the shared GORM
// backend.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // target of VACUUM INTO, empty disables dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	cfg       Config
	log       *logging.SlogManager
	stopChan  chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// New opens a private in-memory database and wraps it.
func New(cfg Config, entityCache *cache.EntityCache, logManager *logging.SlogManager, dbLogger zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstore.New(gormstore.Dependencies{
			DB:          db,
			EntityCache: entityCache,
			LogManager:  logManager,
			DBLogger:    dbLogger,
		}),
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.loopDone = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// EndRun finishes the run and writes a dump that includes it.
func (b *Backend) EndRun(lastTick int) error {
	if err := b.Backend.EndRun(lastTick); err != nil {
		return err
	}
	return b.Dump()
}

// Dump snapshots the database to DumpPath. A no-op when no path is set.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath); err != nil {
		return fmt.Errorf("failed to dump to %s: %w", b.cfg.DumpPath, err)
	}
	b.writeLog("Dump", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
	return nil
}

// Close stops dumping, writes the remaining rows, takes a final dump and
// releases the database.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.loopDone != nil {
			<-b.loopDone
		}
		if err = b.Backend.Close(); err != nil {
			return
		}
		if err = b.Dump(); err != nil {
			return
		}
		if sqlDB, dbErr := b.DB().DB(); dbErr == nil {
			err = sqlDB.Close()
		}
	})
	return err
}

func (b *Backend) writeLog(fn, msg, level string) {
	if b.log != nil {
		b.log.WriteLog("sqlite:"+fn, msg, level)
	}
}

func (b *Backend) dumpLoop() {
	defer close(b.loopDone)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.writeLog("dumpLoop", err.Error(), "ERROR")
			}
		}
	}
}
