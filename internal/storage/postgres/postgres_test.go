package postgres

import (
	"testing"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitUnreachableServer(t *testing.T) {
	b := New(Dependencies{LogManager: logging.NewSlogManager()}, database.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "missionsim",
	})
	assert.Error(t, b.Init())
	assert.Nil(t, b.DB())
}

func TestInjectedDB(t *testing.T) {
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	b := New(Dependencies{
		DB:            db,
		EntityCache:   cache.NewEntityCache(),
		FlushInterval: time.Hour,
	}, database.PostgresConfig{})
	require.NoError(t, b.Init())

	run := &core.Run{Name: "bravo", EndSec: 2, StartedAt: time.Now()}
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.AddEntity(&core.Entity{ObjectID: "a1", Role: "attacker"}))
	require.NoError(t, b.RecordDetonation(&core.DetonationEvent{TimeSec: 2, AttackerID: "a1", BomRangeM: 25}))
	require.NoError(t, b.EndRun(2))
	require.NoError(t, b.Close())

	// an injected connection stays open
	var count int64
	require.NoError(t, db.Model(&model.DetonationEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
