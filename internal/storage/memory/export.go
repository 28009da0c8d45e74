package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/OCAP2/missionsim/internal/storage/memory/export/v1"
	"github.com/OCAP2/missionsim/internal/util"
	"github.com/OCAP2/missionsim/pkg/core"
)

// ExportedFilePath returns the file written by the last EndRun.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last exported run for upload.
func (b *Backend) ExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.run == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		RunName:     b.run.Name,
		Scenario:    filepath.Base(b.run.ScenarioPath),
		DurationSec: float64(b.lastTick - b.run.StartSec + 1),
		Tag:         "simulation",
	}
}

// exportJSON writes the run to <outputDir>/<name>_<timestamp>.json[.gz].
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(b.runData())

	ext := ".json"
	if b.cfg.CompressOutput {
		ext = ".json.gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, util.TimestampedName(b.run.Name, b.run.StartedAt, ext))

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) runData() *v1.RunData {
	return &v1.RunData{
		Run:         b.run,
		Entities:    b.entities,
		TeamNames:   b.teamNames,
		Detections:  b.detections,
		Detonations: b.detonations,
		LastTick:    b.lastTick,
	}
}

func writeExport(path string, data v1.Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("failed to finish gzip stream: %w", cerr)
			}
		}()
		w = gz
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
