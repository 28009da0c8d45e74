package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/missionsim/internal/config"
	v1 "github.com/OCAP2/missionsim/internal/storage/memory/export/v1"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSmallRun(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.AddEntity(&core.Entity{ObjectID: "s1", TeamID: "blue", Role: "scout"}))
	require.NoError(t, b.AddEntity(&core.Entity{ObjectID: "a1", TeamID: "red", Role: "attacker"}))
	for tick := 0; tick <= 2; tick++ {
		require.NoError(t, b.RecordTimeline(&core.TimelineRecord{
			TimeSec: tick,
			Positions: []core.TimelinePosition{
				{ObjectID: "s1", TeamID: "blue", Role: "scout"},
				{ObjectID: "a1", TeamID: "red", Role: "attacker"},
			},
		}))
	}
	require.NoError(t, b.RecordDetection(&core.DetectionEvent{
		EventType: core.EventTypeDetection, Action: core.DetectionFound, TimeSec: 1, ScoutID: "s1", DetectID: "a1", DistanceM: 12,
	}))
	require.NoError(t, b.RecordDetonation(&core.DetonationEvent{
		EventType: core.EventTypeDetonation, TimeSec: 2, AttackerID: "a1", BomRangeM: 50,
	}))
}

func readExport(t *testing.T, path string, compressed bool) v1.Export {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export v1.Export
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		require.NoError(t, json.NewDecoder(gz).Decode(&export))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&export))
	}
	return export
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := startedBackend(t, config.MemoryConfig{OutputDir: dir})
	recordSmallRun(t, b)

	require.NoError(t, b.EndRun(2))

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "test_run_20240115_103000.json"), path)

	export := readExport(t, path, false)
	assert.Equal(t, v1.FormatVersion, export.Format)
	assert.Equal(t, 2, export.EndFrame)
	require.Len(t, export.Entities, 3)
	assert.Equal(t, "a1", export.Entities[2].ObjectID)
	assert.Len(t, export.Entities[1].Positions, 3)
	assert.Len(t, export.Events, 2)
}

func TestExportGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := startedBackend(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	recordSmallRun(t, b)

	require.NoError(t, b.EndRun(2))

	path := b.ExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))
	export := readExport(t, path, true)
	assert.Equal(t, "test run", export.RunName)
}

func TestExportCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	b := startedBackend(t, config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.EndRun(0))

	_, err := os.Stat(b.ExportedFilePath())
	assert.NoError(t, err)
}

func TestExportMetadata(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.Equal(t, core.UploadMetadata{}, b.ExportMetadata())

	require.NoError(t, b.StartRun(testRun()))
	recordSmallRun(t, b)
	require.NoError(t, b.EndRun(2))

	meta := b.ExportMetadata()
	assert.Equal(t, "test run", meta.RunName)
	assert.Equal(t, "scenario.json", meta.Scenario)
	assert.Equal(t, 3.0, meta.DurationSec)
	assert.Equal(t, "simulation", meta.Tag)
}
