package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/config"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/influx"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/storage"
	"github.com/OCAP2/missionsim/internal/util"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// storageSet is the backend of a run and the services it was built on.
type storageSet struct {
	backend   storage.Backend
	influx    *influx.Manager
	dbManager *database.Manager
}

// initStorage builds and initializes the configured backend. The postgres
// backend goes through a database.Manager so an unreachable server falls
// back to an in-memory SQLite database that is dumped on close.
func initStorage(ctx context.Context, logManager *logging.SlogManager, logOut io.Writer, sessionStart time.Time) (*storageSet, error) {
	logger := logManager.Logger()
	level := viper.GetString("logLevel")
	dbLogger := logging.NewZerolog(logOut, level, "database")
	storageCfg := config.GetStorageConfig()
	set := &storageSet{}

	influxCfg := config.GetInfluxConfig()
	if storageCfg.Type == storage.TypeInflux {
		influxCfg.Enabled = true
	}
	if influxCfg.Enabled {
		set.influx = influx.NewManager(logging.NewZerolog(logOut, level, "influx"), influxCfg)
		// the influx backend connects in its own Init
		if storageCfg.Type != storage.TypeInflux {
			if err := set.influx.Connect(ctx); err != nil {
				logger.Warn("Failed to set up InfluxDB, performance samples disabled", "error", err)
				set.influx = nil
			}
		}
	}

	deps := storage.Dependencies{
		EntityCache:     cache.NewEntityCache(),
		LogManager:      logManager,
		DBLogger:        dbLogger,
		Output:          config.GetOutputConfig(),
		Postgres:        database.PostgresConfigFromViper(),
		MySQL:           database.MySQLConfigFromViper(),
		Influx:          set.influx,
		WebSocketURL:    httpToWS(viper.GetString("api.serverUrl")) + "/api",
		WebSocketSecret: viper.GetString("api.apiKey"),
		SessionStart:    sessionStart,
	}

	if storageCfg.Type == storage.TypePostgres {
		set.dbManager = database.NewManager(dbLogger)
		set.dbManager.SqliteFilePath = util.TimestampedName("missionsim", sessionStart, ".db")
		if err := set.dbManager.Connect(deps.Postgres); err != nil {
			return nil, err
		}
		deps.DB = set.dbManager.DB
	}

	backend, err := storage.New(storageCfg, deps)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	set.backend = backend

	logger.Info("Storage backend initialized", "type", storageCfg.Type)
	if storageCfg.Type == storage.TypeWebSocket {
		logger.Info("Streaming to web frontend", "url", deps.WebSocketURL)
	}
	return set, nil
}

// DB returns the relational database behind the backend, if any.
func (s *storageSet) DB() *gorm.DB {
	if d, ok := s.backend.(interface{ DB() *gorm.DB }); ok {
		return d.DB()
	}
	return nil
}

// Close closes the backend, then the services it was built on.
func (s *storageSet) Close(logger *slog.Logger) error {
	var errs []error
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	if m := s.dbManager; m != nil {
		if m.Dialect() == database.DialectSqlite {
			if err := m.DumpMemoryToDisk(); err != nil {
				errs = append(errs, err)
			} else {
				logger.Info("Postgres was unreachable, recording saved locally", "path", m.SqliteFilePath)
			}
		}
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	// Manager.Close is idempotent; the influx backend may have closed it.
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
