package v1

import (
	"sort"

	"github.com/OCAP2/missionsim/internal/util"
	"github.com/OCAP2/missionsim/pkg/core"
)

// RunData contains everything needed to build an export.
type RunData struct {
	Run         *core.Run
	Entities    map[string]*EntityRecord
	TeamNames   map[string]string
	Detections  []core.DetectionEvent
	Detonations []core.DetonationEvent
	LastTick    int
}

// EntityRecord groups an entity with its recorded positions.
type EntityRecord struct {
	Entity    core.Entity
	Positions []PositionSample
}

// PositionSample is one timeline entry for one entity.
type PositionSample struct {
	TimeSec int
	LatDeg  float64
	LonDeg  float64
	AltM    float64
}

// Build creates an Export from the run data.
func Build(data *RunData) Export {
	export := Export{
		Format:   FormatVersion,
		EndFrame: data.LastTick,
		Teams:    make([]Team, 0),
		Entities: make([]Entity, 0),
		Events:   make([][]any, 0),
	}
	if data.Run != nil {
		export.RunUUID = data.Run.UUID
		export.RunName = data.Run.Name
		export.Scenario = data.Run.ScenarioPath
		export.StartedAt = data.Run.StartedAt
		export.StartSec = data.Run.StartSec
		export.EndSec = data.Run.EndSec
	}

	// The frontend looks entities up by index, so index N holds ID N.
	var maxID uint
	for _, rec := range data.Entities {
		if rec.Entity.ID > maxID {
			maxID = rec.Entity.ID
		}
	}
	if len(data.Entities) > 0 {
		export.Entities = make([]Entity, maxID+1)
	}

	ids := make(map[string]uint, len(data.Entities))
	teams := make(map[string]*Team)
	for _, rec := range data.Entities {
		e := rec.Entity
		ids[e.ObjectID] = e.ID

		entity := Entity{
			ID:            e.ID,
			ObjectID:      e.ObjectID,
			Team:          e.TeamID,
			Role:          e.Role,
			StartFrameNum: e.StartSec,
			Route:         make([][]any, 0, len(e.Route)),
			Positions:     make([][]any, 0, len(rec.Positions)),
		}
		for _, wp := range e.Route {
			entity.Route = append(entity.Route, []any{
				[]float64{wp.LatDeg, wp.LonDeg, wp.AltM},
				wp.SpeedKph,
			})
		}
		for _, p := range rec.Positions {
			entity.Positions = append(entity.Positions, []any{
				[]float64{p.LatDeg, p.LonDeg, p.AltM},
				p.TimeSec,
			})
		}
		export.Entities[e.ID] = entity

		team, ok := teams[e.TeamID]
		if !ok {
			team = &Team{ID: e.TeamID, Name: data.TeamNames[e.TeamID]}
			teams[e.TeamID] = team
		}
		team.Members = append(team.Members, e.ID)
	}

	for _, team := range teams {
		sort.Slice(team.Members, func(i, j int) bool { return team.Members[i] < team.Members[j] })
		export.Teams = append(export.Teams, *team)
	}
	sort.Slice(export.Teams, func(i, j int) bool { return export.Teams[i].ID < export.Teams[j].ID })

	lookup := func(objectID string) any {
		if id, ok := ids[objectID]; ok {
			return id
		}
		return -1
	}

	// Format: [frameNum, "found"|"lost", scoutId, targetId, distance, text]
	for _, evt := range data.Detections {
		export.Events = append(export.Events, []any{
			evt.TimeSec,
			string(evt.Action),
			lookup(evt.ScoutID),
			lookup(evt.DetectID),
			evt.DistanceM,
			util.DetectionText(evt.ScoutID, evt.DetectID, string(evt.Action), evt.DistanceM),
		})
	}

	// Format: [frameNum, "detonation", attackerId, [lat, lon, alt], bomRange]
	for _, evt := range data.Detonations {
		export.Events = append(export.Events, []any{
			evt.TimeSec,
			core.EventTypeDetonation,
			lookup(evt.AttackerID),
			[]float64{evt.LatDeg, evt.LonDeg, evt.AltM},
			evt.BomRangeM,
		})
	}

	sort.SliceStable(export.Events, func(i, j int) bool {
		return export.Events[i][0].(int) < export.Events[j][0].(int)
	})

	return export
}
