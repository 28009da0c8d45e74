package convert

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToRun(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := CoreToRun(core.Run{
		ID: 7, Name: "r", ScenarioPath: "s.json", StartSec: 10, EndSec: 20,
		EntityCount: 4, TeamCount: 2, StartedAt: started,
	})

	assert.Equal(t, uint(7), r.ID)
	assert.Equal(t, "r", r.Name)
	assert.Equal(t, 10, r.StartSec)
	assert.Equal(t, 20, r.EndSec)
	assert.Equal(t, -1, r.LastTick)
	assert.Equal(t, 4, r.EntityCount)
	assert.Equal(t, started, r.StartedAt)
}

func TestCoreToEntity(t *testing.T) {
	e := CoreToEntity(core.Entity{
		ID: 3, ObjectID: "s1", TeamID: "blue", TeamName: "Blue", Role: "scout", StartSec: 5,
		Route: []core.Waypoint{
			{LatDeg: 35, LonDeg: 139, AltM: 10, SpeedKph: 36},
			{LatDeg: 35.001, LonDeg: 139, AltM: 20},
		},
		Network: []string{"hq"},
	})

	assert.Equal(t, uint(3), e.ID)
	assert.Equal(t, "s1", e.ObjectID)
	assert.Equal(t, "scout", e.Role)
	assert.Equal(t, 2, e.Route.Coordinates().Length())
	assert.JSONEq(t, `["hq"]`, string(e.Network))

	var wps []core.Waypoint
	require.NoError(t, json.Unmarshal(e.Waypoints, &wps))
	require.Len(t, wps, 2)
	assert.Equal(t, 36.0, wps[0].SpeedKph)
}

func TestCoreToEntitySinglePointRoute(t *testing.T) {
	e := CoreToEntity(core.Entity{ObjectID: "c1", Route: []core.Waypoint{{LatDeg: 1, LonDeg: 2}}})

	assert.True(t, e.Route.IsEmpty())
	assert.JSONEq(t, `[]`, string(e.Network))
}

func TestCoreToTimelinePositions(t *testing.T) {
	now := time.Now()
	ids := map[string]uint{"a": 1, "b": 2}
	rows := CoreToTimelinePositions(core.TimelineRecord{
		TimeSec: 9,
		Positions: []core.TimelinePosition{
			{ObjectID: "a", LatDeg: 0, LonDeg: 0, AltM: 100},
			{ObjectID: "b", LatDeg: 10, LonDeg: 20, AltM: 0},
			{ObjectID: "zz"},
		},
	}, now, func(id string) uint { return ids[id] })

	require.Len(t, rows, 3)
	assert.Equal(t, 9, rows[0].TimeSec)
	assert.Equal(t, uint(1), rows[0].EntityID)
	assert.Equal(t, uint(0), rows[2].EntityID)
	assert.Equal(t, now, rows[1].Time)

	c, ok := rows[0].Position.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 0, c.X, 1e-6)
	assert.InDelta(t, 0, c.Y, 1e-6)
	assert.Equal(t, 100.0, c.Z)
}

func TestCoreToTimelinePositionsInvalidLatitude(t *testing.T) {
	rows := CoreToTimelinePositions(core.TimelineRecord{
		Positions: []core.TimelinePosition{{ObjectID: "a", LatDeg: math.NaN()}},
	}, time.Now(), nil)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Position.IsEmpty())
}

func TestCoreToDetectionEvent(t *testing.T) {
	e := CoreToDetectionEvent(core.DetectionEvent{
		EventType: core.EventTypeDetection, Action: core.DetectionLost, TimeSec: 5,
		ScoutID: "s1", DetectID: "m1", LatDeg: 1, LonDeg: 2, AltM: 3, DistanceM: 99,
	}, time.Now())

	assert.Equal(t, "lost", e.Action)
	assert.Equal(t, "s1", e.ScoutObjectID)
	assert.Equal(t, "m1", e.TargetObjectID)
	assert.Equal(t, 99, e.DistanceM)
	assert.False(t, e.Position.IsEmpty())
}

func TestCoreToDetonationEvent(t *testing.T) {
	e := CoreToDetonationEvent(core.DetonationEvent{
		EventType: core.EventTypeDetonation, TimeSec: 10, AttackerID: "a1", BomRangeM: 50.5,
	}, time.Now())

	assert.Equal(t, 10, e.TimeSec)
	assert.Equal(t, "a1", e.AttackerObjectID)
	assert.Equal(t, 50.5, e.BomRangeM)
}
