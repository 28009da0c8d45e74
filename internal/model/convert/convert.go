package convert

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/pkg/core"
)

// RunToCore converts a GORM Run to core run metadata.
func RunToCore(r model.Run) core.Run {
	return core.Run{
		ID:           r.ID,
		UUID:         r.UUID,
		Name:         r.Name,
		ScenarioPath: r.ScenarioPath,
		StartSec:     r.StartSec,
		EndSec:       r.EndSec,
		EntityCount:  r.EntityCount,
		TeamCount:    r.TeamCount,
		StartedAt:    r.StartedAt,
	}
}

// EntityToCore converts a GORM Entity to a core.Entity. The route comes
// from the stored waypoints, which keep leg speeds the geometry lacks.
func EntityToCore(e model.Entity) (core.Entity, error) {
	out := core.Entity{
		ID:       e.ID,
		ObjectID: e.ObjectID,
		TeamID:   e.TeamID,
		TeamName: e.TeamName,
		Role:     e.Role,
		StartSec: e.StartSec,
	}
	if len(e.Waypoints) > 0 {
		if err := json.Unmarshal(e.Waypoints, &out.Route); err != nil {
			return core.Entity{}, fmt.Errorf("entity %q: decoding waypoints: %w", e.ObjectID, err)
		}
	}
	if len(e.Network) > 0 {
		if err := json.Unmarshal(e.Network, &out.Network); err != nil {
			return core.Entity{}, fmt.Errorf("entity %q: decoding network: %w", e.ObjectID, err)
		}
	}
	if len(out.Network) == 0 {
		out.Network = nil
	}
	if len(out.Route) == 0 {
		out.Route = nil
	}
	return out, nil
}

// DetectionEventToCore converts a GORM DetectionEvent back to its wire form.
func DetectionEventToCore(e model.DetectionEvent) core.DetectionEvent {
	return core.DetectionEvent{
		EventType: core.EventTypeDetection,
		Action:    core.DetectionAction(e.Action),
		TimeSec:   e.TimeSec,
		ScoutID:   e.ScoutObjectID,
		DetectID:  e.TargetObjectID,
		LatDeg:    e.LatDeg,
		LonDeg:    e.LonDeg,
		AltM:      e.AltM,
		DistanceM: e.DistanceM,
	}
}

// DetonationEventToCore converts a GORM DetonationEvent back to its wire form.
func DetonationEventToCore(e model.DetonationEvent) core.DetonationEvent {
	return core.DetonationEvent{
		EventType:  core.EventTypeDetonation,
		TimeSec:    e.TimeSec,
		AttackerID: e.AttackerObjectID,
		LatDeg:     e.LatDeg,
		LonDeg:     e.LonDeg,
		AltM:       e.AltM,
		BomRangeM:  e.BomRangeM,
	}
}

// TimelinePositionsToRecord groups the rows of one tick back into a record,
// keeping row order. Team and role come from the registered entities.
func TimelinePositionsToRecord(timeSec int, rows []model.TimelinePosition, entities map[string]core.Entity) core.TimelineRecord {
	rec := core.TimelineRecord{TimeSec: timeSec, Positions: make([]core.TimelinePosition, 0, len(rows))}
	for _, row := range rows {
		if row.TimeSec != timeSec {
			continue
		}
		p := core.TimelinePosition{
			ObjectID: row.ObjectID,
			LatDeg:   row.LatDeg,
			LonDeg:   row.LonDeg,
			AltM:     row.AltM,
		}
		if meta, ok := entities[row.ObjectID]; ok {
			p.TeamID = meta.TeamID
			p.Role = meta.Role
		}
		rec.Positions = append(rec.Positions, p)
	}
	return rec
}
