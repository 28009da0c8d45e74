package main

import (
	"fmt"
	"os"

	"github.com/OCAP2/missionsim/internal/config"
	"github.com/OCAP2/missionsim/internal/database"
	"github.com/OCAP2/missionsim/internal/storage/gormstore"
	"github.com/OCAP2/missionsim/internal/storage/memory"
	"github.com/OCAP2/missionsim/pkg/core"
)

// exportRun reads a run back from a SQLite recording and writes it as a
// JSON export, the same file the memory backend leaves behind.
func exportRun(opts *exportOptions) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	db, err := database.OpenSqlite(opts.DBPath)
	if err != nil {
		return fmt.Errorf("export: opening %s: %w", opts.DBPath, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	src := gormstore.New(gormstore.Dependencies{DB: db})
	dst := memory.New(config.MemoryConfig{
		OutputDir:      opts.OutputDir,
		CompressOutput: opts.Compress,
	})

	path, err := replay(src, opts.RunID, dst)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// replay copies one stored run into dst and returns the exported file.
func replay(src *gormstore.Backend, runID uint, dst *memory.Backend) (string, error) {
	run, err := src.Run(runID)
	if err != nil {
		return "", err
	}
	entities, err := src.Entities(runID)
	if err != nil {
		return "", err
	}

	if err := dst.StartRun(&run); err != nil {
		return "", err
	}
	for i := range entities {
		if err := dst.AddEntity(&entities[i]); err != nil {
			return "", err
		}
	}

	lastSeen := run.StartSec - 1
	err = src.EachTimeline(runID, func(rec core.TimelineRecord) error {
		lastSeen = rec.TimeSec
		return dst.RecordTimeline(&rec)
	})
	if err != nil {
		return "", err
	}

	detections, err := src.Detections(runID)
	if err != nil {
		return "", err
	}
	for i := range detections {
		if err := dst.RecordDetection(&detections[i]); err != nil {
			return "", err
		}
	}
	detonations, err := src.Detonations(runID)
	if err != nil {
		return "", err
	}
	for i := range detonations {
		if err := dst.RecordDetonation(&detonations[i]); err != nil {
			return "", err
		}
	}

	lastTick, err := src.LastTick(runID)
	if err != nil {
		return "", err
	}
	if lastTick < 0 {
		lastTick = lastSeen
	}
	if err := dst.EndRun(lastTick); err != nil {
		return "", err
	}
	return dst.ExportedFilePath(), nil
}
