// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/missionsim/internal/geo"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// mercatorPoint projects a geodetic position. Invalid input yields an empty
// point rather than an error so one bad row never blocks a batch.
func mercatorPoint(latDeg, lonDeg, altM float64) geom.Point {
	p, err := geo.MercatorPointZ(latDeg, lonDeg, altM)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ)
	}
	return p
}

// toJSON converts a slice to datatypes.JSON, using [] for nil.
func toJSON[T any](items []T) datatypes.JSON {
	if len(items) == 0 {
		return datatypes.JSON("[]")
	}
	data, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts run metadata to a GORM model.Run.
func CoreToRun(r core.Run) model.Run {
	out := model.Run{
		UUID:         r.UUID,
		Name:         r.Name,
		ScenarioPath: r.ScenarioPath,
		StartSec:     r.StartSec,
		EndSec:       r.EndSec,
		LastTick:     -1,
		EntityCount:  r.EntityCount,
		TeamCount:    r.TeamCount,
		StartedAt:    r.StartedAt,
	}
	out.ID = r.ID
	return out
}

// CoreToEntity converts a core.Entity to a GORM model.Entity. The route
// geometry is only set for routes of two or more valid vertices.
func CoreToEntity(e core.Entity) model.Entity {
	out := model.Entity{
		ID:        e.ID,
		ObjectID:  e.ObjectID,
		TeamID:    e.TeamID,
		TeamName:  e.TeamName,
		Role:      e.Role,
		StartSec:  e.StartSec,
		Waypoints: toJSON(e.Route),
		Network:   toJSON(e.Network),
	}

	vertices := make([]geo.LonLatAlt, len(e.Route))
	for i, wp := range e.Route {
		vertices[i] = geo.LonLatAlt{Lon: wp.LonDeg, Lat: wp.LatDeg, Alt: wp.AltM}
	}
	if ls, err := geo.RouteLineString(vertices); err == nil {
		out.Route = ls
	}
	return out
}

// CoreToTimelinePositions splits a timeline record into one row per entity.
// entityID resolves an object id to its database id, 0 when unknown.
func CoreToTimelinePositions(r core.TimelineRecord, now time.Time, entityID func(objectID string) uint) []model.TimelinePosition {
	rows := make([]model.TimelinePosition, 0, len(r.Positions))
	for _, p := range r.Positions {
		var id uint
		if entityID != nil {
			id = entityID(p.ObjectID)
		}
		rows = append(rows, model.TimelinePosition{
			Time:     now,
			TimeSec:  r.TimeSec,
			EntityID: id,
			ObjectID: p.ObjectID,
			Position: mercatorPoint(p.LatDeg, p.LonDeg, p.AltM),
			LatDeg:   p.LatDeg,
			LonDeg:   p.LonDeg,
			AltM:     p.AltM,
		})
	}
	return rows
}

// CoreToDetectionEvent converts a detection event to a GORM model.
func CoreToDetectionEvent(e core.DetectionEvent, now time.Time) model.DetectionEvent {
	return model.DetectionEvent{
		Time:           now,
		TimeSec:        e.TimeSec,
		Action:         string(e.Action),
		ScoutObjectID:  e.ScoutID,
		TargetObjectID: e.DetectID,
		Position:       mercatorPoint(e.LatDeg, e.LonDeg, e.AltM),
		LatDeg:         e.LatDeg,
		LonDeg:         e.LonDeg,
		AltM:           e.AltM,
		DistanceM:      e.DistanceM,
	}
}

// CoreToDetonationEvent converts a detonation event to a GORM model.
func CoreToDetonationEvent(e core.DetonationEvent, now time.Time) model.DetonationEvent {
	return model.DetonationEvent{
		Time:             now,
		TimeSec:          e.TimeSec,
		AttackerObjectID: e.AttackerID,
		Position:         mercatorPoint(e.LatDeg, e.LonDeg, e.AltM),
		LatDeg:           e.LatDeg,
		LonDeg:           e.LonDeg,
		AltM:             e.AltM,
		BomRangeM:        e.BomRangeM,
	}
}
