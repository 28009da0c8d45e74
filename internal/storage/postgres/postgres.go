// Package postgres records runs into PostgreSQL/PostGIS through the shared
// GORM backend. When no database is injected it connects on Init using the
// db.* settings.
package postgres

import (
	"fmt"

	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
)

// Dependencies are the shared GORM backend dependencies.
type Dependencies = gormstore.Dependencies

// Backend is a GORM backend that owns its postgres connection.
type Backend struct {
	*gormstore.Backend
	cfg   database.PostgresConfig
	owned bool
}

// New creates a postgres backend. cfg is only used when deps.DB is nil.
func New(deps Dependencies, cfg database.PostgresConfig) *Backend {
	return &Backend{
		Backend: gormstore.New(deps),
		cfg:     cfg,
	}
}

// Init connects if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.DB() == nil {
		db, err := database.OpenPostgres(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.SetDB(db)
		b.owned = true
	}
	return b.Backend.Init()
}

// Close flushes the queues and closes a connection opened by Init.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if !b.owned {
		return nil
	}
	b.owned = false
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
