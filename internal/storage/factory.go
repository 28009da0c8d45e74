package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/config"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/influx"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
	influxstorage "github.com/OCAP2/missionsim/internal/storage/influx"
	"github.com/OCAP2/missionsim/internal/storage/memory"
	mysqlstorage "github.com/OCAP2/missionsim/internal/storage/mysql"
	"github.com/OCAP2/missionsim/internal/storage/ndjson"
	pgstorage "github.com/OCAP2/missionsim/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/missionsim/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/missionsim/internal/storage/websocket"
	"github.com/OCAP2/missionsim/internal/util"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Backend type names accepted in storage.type.
const (
	TypeNDJSON    = "ndjson"
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeMySQL     = "mysql"
	TypeInflux    = "influx"
	TypeWebSocket = "websocket"
)

// Dependencies are the shared services a backend may need.
type Dependencies struct {
	EntityCache *cache.EntityCache
	LogManager  *logging.SlogManager
	DBLogger    zerolog.Logger

	Output   config.OutputConfig
	Postgres database.PostgresConfig
	MySQL    database.MySQLConfig
	Influx   *influx.Manager

	// DB, when set, is used by the postgres backend instead of dialing
	// Postgres itself.
	DB *gorm.DB

	WebSocketURL    string
	WebSocketSecret string

	SessionStart time.Time
}

// New creates the backend selected by cfg.Type. It is not initialized.
func New(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.EntityCache == nil {
		deps.EntityCache = cache.NewEntityCache()
	}
	if deps.SessionStart.IsZero() {
		deps.SessionStart = time.Now()
	}

	switch cfg.Type {
	case TypeNDJSON, "":
		return ndjson.New(deps.Output), nil

	case TypeMemory:
		return memory.New(cfg.Memory), nil

	case TypeSQLite:
		dumpPath := cfg.SQLite.Path
		if dumpPath == "" {
			dumpPath = util.TimestampedName("missionsim", deps.SessionStart, ".db")
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, deps.EntityCache, deps.LogManager, deps.DBLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case TypePostgres:
		return pgstorage.New(gormstore.Dependencies{
			EntityCache: deps.EntityCache,
			LogManager:  deps.LogManager,
			DBLogger:    deps.DBLogger,
			DB:          deps.DB,
		}, deps.Postgres), nil

	case TypeMySQL:
		return mysqlstorage.New(gormstore.Dependencies{
			EntityCache: deps.EntityCache,
			LogManager:  deps.LogManager,
			DBLogger:    deps.DBLogger,
		}, deps.MySQL), nil

	case TypeInflux:
		if deps.Influx == nil {
			return nil, fmt.Errorf("influx backend needs an influx manager")
		}
		return influxstorage.New(deps.Influx), nil

	case TypeWebSocket:
		var logger *slog.Logger
		if deps.LogManager != nil {
			logger = deps.LogManager.Logger()
		}
		return wsstorage.New(wsstorage.Config{
			URL:    deps.WebSocketURL,
			Secret: deps.WebSocketSecret,
			Logger: logger,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
