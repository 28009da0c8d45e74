package gormstore

import (
	"fmt"

	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/model/convert"
	"github.com/OCAP2/missionsim/pkg/core"
)

// Run loads a stored run.
func (b *Backend) Run(runID uint) (core.Run, error) {
	var row model.Run
	if err := b.deps.DB.First(&row, runID).Error; err != nil {
		return core.Run{}, fmt.Errorf("failed to load run %d: %w", runID, err)
	}
	return convert.RunToCore(row), nil
}

// Entities loads the entities of a run in registration order.
func (b *Backend) Entities(runID uint) ([]core.Entity, error) {
	var rows []model.Entity
	if err := b.deps.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load entities of run %d: %w", runID, err)
	}
	out := make([]core.Entity, len(rows))
	for i, row := range rows {
		e, err := convert.EntityToCore(row)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", runID, err)
		}
		out[i] = e
	}
	return out, nil
}

// Detections loads the detection events of a run in emission order.
func (b *Backend) Detections(runID uint) ([]core.DetectionEvent, error) {
	var rows []model.DetectionEvent
	if err := b.deps.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load detections of run %d: %w", runID, err)
	}
	out := make([]core.DetectionEvent, len(rows))
	for i, row := range rows {
		out[i] = convert.DetectionEventToCore(row)
	}
	return out, nil
}

// Detonations loads the detonation events of a run in emission order.
func (b *Backend) Detonations(runID uint) ([]core.DetonationEvent, error) {
	var rows []model.DetonationEvent
	if err := b.deps.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load detonations of run %d: %w", runID, err)
	}
	out := make([]core.DetonationEvent, len(rows))
	for i, row := range rows {
		out[i] = convert.DetonationEventToCore(row)
	}
	return out, nil
}

// TimelineAt rebuilds the timeline record of one tick.
func (b *Backend) TimelineAt(runID uint, timeSec int) (core.TimelineRecord, error) {
	var rows []model.TimelinePosition
	err := b.deps.DB.Where("run_id = ? AND time_sec = ?", runID, timeSec).Order("id").Find(&rows).Error
	if err != nil {
		return core.TimelineRecord{}, fmt.Errorf("failed to load timeline of run %d at %d: %w", runID, timeSec, err)
	}

	entities, err := b.Entities(runID)
	if err != nil {
		return core.TimelineRecord{}, err
	}
	byObject := make(map[string]core.Entity, len(entities))
	for _, e := range entities {
		byObject[e.ObjectID] = e
	}
	return convert.TimelinePositionsToRecord(timeSec, rows, byObject), nil
}

// LastTick returns the last tick stamped by EndRun, or -1 for a run that
// never finished.
func (b *Backend) LastTick(runID uint) (int, error) {
	var row model.Run
	if err := b.deps.DB.Select("id", "last_tick").First(&row, runID).Error; err != nil {
		return 0, fmt.Errorf("failed to load run %d: %w", runID, err)
	}
	return row.LastTick, nil
}

// EachTimeline streams the stored timeline of a run to fn in tick order.
// Ticks without rows are skipped.
func (b *Backend) EachTimeline(runID uint, fn func(core.TimelineRecord) error) error {
	entities, err := b.Entities(runID)
	if err != nil {
		return err
	}
	byObject := make(map[string]core.Entity, len(entities))
	for _, e := range entities {
		byObject[e.ObjectID] = e
	}

	rows, err := b.deps.DB.Model(&model.TimelinePosition{}).
		Where("run_id = ?", runID).
		Order("time_sec, id").
		Rows()
	if err != nil {
		return fmt.Errorf("failed to read timeline of run %d: %w", runID, err)
	}
	defer rows.Close()

	var (
		batch []model.TimelinePosition
		tick  int
	)
	emit := func() error {
		if len(batch) == 0 {
			return nil
		}
		rec := convert.TimelinePositionsToRecord(tick, batch, byObject)
		batch = batch[:0]
		return fn(rec)
	}

	for rows.Next() {
		var row model.TimelinePosition
		if err := b.deps.DB.ScanRows(rows, &row); err != nil {
			return fmt.Errorf("failed to scan timeline row: %w", err)
		}
		if len(batch) > 0 && row.TimeSec != tick {
			if err := emit(); err != nil {
				return err
			}
		}
		tick = row.TimeSec
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read timeline of run %d: %w", runID, err)
	}
	return emit()
}
