package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/missionsim/internal/cache"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/mission"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
	"github.com/OCAP2/missionsim/internal/worker"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleWithoutRun(t *testing.T) {
	s := NewService(Dependencies{MissionContext: mission.NewContext()})
	perf := s.Sample()
	assert.Equal(t, -1, perf.Tick)
	assert.Zero(t, perf.RunID)
	assert.Zero(t, perf.TicksPerSecond)
}

func TestRecordWithoutRun(t *testing.T) {
	dir := t.TempDir()
	s := NewService(Dependencies{
		LogManager:     logging.NewSlogManager(),
		MissionContext: mission.NewContext(),
		StatusDir:      dir,
	})

	require.NotPanics(t, func() {
		require.NoError(t, s.Record(s.Sample()))
	})
	assert.FileExists(t, filepath.Join(dir, "status.txt"))
}

func TestSampleTickRate(t *testing.T) {
	ctx := mission.NewContext()
	ctx.SetRun(&core.Run{Name: "alpha", EndSec: 1000})
	s := NewService(Dependencies{MissionContext: ctx})

	ctx.SetTick(10)
	first := s.Sample()
	assert.Zero(t, first.TicksPerSecond)

	time.Sleep(20 * time.Millisecond)
	ctx.SetTick(110)
	second := s.Sample()
	assert.Equal(t, 110, second.Tick)
	assert.Positive(t, second.TicksPerSecond)
	assert.Less(t, second.TicksPerSecond, 100/0.02+1)
}

func TestStatus(t *testing.T) {
	lines := Status(model.SimPerformance{
		BufferLengths:       model.BufferLengths{Events: 2, Timeline: 4},
		LastWriteDurationMs: 1.5,
	})
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"events": 2`)
	assert.Contains(t, lines[1], `"timelinePositions": 0`)
	assert.Equal(t, "1.5", lines[2])
}

func TestRecordWritesEverywhere(t *testing.T) {
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	backend := gormstore.New(gormstore.Dependencies{DB: db, EntityCache: cache.NewEntityCache(), FlushInterval: time.Hour})
	require.NoError(t, backend.Init())
	t.Cleanup(func() { backend.Close() })

	ctx := mission.NewContext()
	wm := worker.NewManager(worker.Dependencies{MissionContext: ctx}, backend)
	run := &core.Run{Name: "alpha", EndSec: 100, StartedAt: time.Now()}
	require.NoError(t, wm.Begin(run, []core.Entity{{ObjectID: "s1", Role: "scout"}}))
	ctx.SetTick(49)

	dir := t.TempDir()
	s := NewService(Dependencies{
		DB:             db,
		LogManager:     logging.NewSlogManager(),
		MissionContext: ctx,
		WorkerManager:  wm,
		StatusDir:      dir,
	})
	perf := s.Sample()
	assert.Equal(t, run.ID, perf.RunID)
	require.NoError(t, s.Record(perf))

	var rows []model.SimPerformance
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 49, rows[0].Tick)
	assert.Equal(t, run.ID, rows[0].RunID)

	status, err := os.ReadFile(filepath.Join(dir, "status.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(status), `"timelinePositions": 0`)
	assert.True(t, strings.HasSuffix(string(status), "0\n"))
}

func TestStartStop(t *testing.T) {
	ctx := mission.NewContext()
	ctx.SetRun(&core.Run{Name: "alpha", EndSec: 10})
	ctx.SetTick(3)
	dir := t.TempDir()

	s := NewService(Dependencies{
		MissionContext: ctx,
		StatusDir:      dir,
		Interval:       5 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "status.txt"))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
