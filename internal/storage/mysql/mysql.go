// Package mysql records runs into MySQL through the shared GORM backend.
package mysql

import (
	"fmt"

	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
)

type Dependencies = gormstore.Dependencies

// Backend is a GORM backend that owns its MySQL connection.
type Backend struct {
	*gormstore.Backend
	cfg   database.MySQLConfig
	owned bool
}

// New creates a mysql backend. cfg is only dialed when deps.DB is nil.
func New(deps Dependencies, cfg database.MySQLConfig) *Backend {
	return &Backend{
		Backend: gormstore.New(deps),
		cfg:     cfg,
	}
}

func (b *Backend) Init() error {
	if b.DB() == nil {
		db, err := database.OpenMySQL(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to mysql at %s:%s: %w", b.cfg.Host, b.cfg.Port, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.SetDB(db)
		b.owned = true
	}
	return b.Backend.Init()
}

func (b *Backend) Close() error {
	err := b.Backend.Close()
	if !b.owned {
		return err
	}
	b.owned = false
	if sqlDB, derr := b.DB().DB(); derr == nil {
		if cerr := sqlDB.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
