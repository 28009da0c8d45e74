package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestRunRoundTrip(t *testing.T) {
	in := core.Run{ID: 2, UUID: "0d5c2f6e-4f0b-4a51-9a3e-8f5f0b1c2d3e", Name: "x", ScenarioPath: "p", StartSec: 1, EndSec: 9, EntityCount: 3, TeamCount: 1,
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, in, RunToCore(CoreToRun(in)))
}

func TestEntityRoundTrip(t *testing.T) {
	in := core.Entity{
		ID: 4, ObjectID: "a1", TeamID: "red", TeamName: "Red", Role: "attacker", StartSec: 30,
		Route: []core.Waypoint{
			{LatDeg: 1, LonDeg: 2, AltM: 3, SpeedKph: 40},
			{LatDeg: 1.1, LonDeg: 2.1, AltM: 3, SpeedKph: 0},
		},
		Network: []string{"a2"},
	}
	out, err := EntityToCore(CoreToEntity(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEntityToCoreEmpty(t *testing.T) {
	out, err := EntityToCore(model.Entity{ObjectID: "c"})
	require.NoError(t, err)
	assert.Nil(t, out.Route)
	assert.Nil(t, out.Network)
}

func TestEntityToCoreCorruptJSON(t *testing.T) {
	_, err := EntityToCore(model.Entity{ObjectID: "c", Waypoints: datatypes.JSON(`[{"lat_deg":`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waypoints")

	_, err = EntityToCore(model.Entity{ObjectID: "c", Network: datatypes.JSON(`{"a2"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
}

func TestDetectionEventRoundTrip(t *testing.T) {
	in := core.DetectionEvent{
		EventType: core.EventTypeDetection, Action: core.DetectionFound, TimeSec: 3,
		ScoutID: "s", DetectID: "t", LatDeg: 1, LonDeg: 2, AltM: 3, DistanceM: 4,
	}
	assert.Equal(t, in, DetectionEventToCore(CoreToDetectionEvent(in, time.Now())))
}

func TestDetonationEventRoundTrip(t *testing.T) {
	in := core.DetonationEvent{
		EventType: core.EventTypeDetonation, TimeSec: 3, AttackerID: "a", LatDeg: 1, LonDeg: 2, AltM: 3, BomRangeM: 4,
	}
	assert.Equal(t, in, DetonationEventToCore(CoreToDetonationEvent(in, time.Now())))
}

func TestTimelinePositionsToRecord(t *testing.T) {
	rows := []model.TimelinePosition{
		{TimeSec: 1, ObjectID: "a", LatDeg: 1},
		{TimeSec: 2, ObjectID: "a", LatDeg: 2},
		{TimeSec: 2, ObjectID: "b", LatDeg: 3},
	}
	entities := map[string]core.Entity{"a": {TeamID: "blue", Role: "scout"}}

	rec := TimelinePositionsToRecord(2, rows, entities)

	assert.Equal(t, 2, rec.TimeSec)
	require.Len(t, rec.Positions, 2)
	assert.Equal(t, core.TimelinePosition{ObjectID: "a", TeamID: "blue", Role: "scout", LatDeg: 2}, rec.Positions[0])
	assert.Equal(t, "", rec.Positions[1].Role)
}
