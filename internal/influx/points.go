package influx

import (
	"time"

	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// SimTime maps a tick onto wall time, counting from the run start.
func SimTime(run core.Run, timeSec int) time.Time {
	return run.StartedAt.Add(time.Duration(timeSec) * time.Second)
}

// PositionPoints returns one entity_position point per timeline position.
func PositionPoints(run core.Run, r core.TimelineRecord) []*influxdb2_write.Point {
	ts := SimTime(run, r.TimeSec)
	points := make([]*influxdb2_write.Point, 0, len(r.Positions))
	for _, p := range r.Positions {
		points = append(points, influxdb2_write.NewPoint(
			"entity_position",
			map[string]string{
				"run":       run.Name,
				"object_id": p.ObjectID,
				"team_id":   p.TeamID,
				"role":      p.Role,
			},
			map[string]any{
				"lat_deg": p.LatDeg,
				"lon_deg": p.LonDeg,
				"alt_m":   p.AltM,
			},
			ts,
		))
	}
	return points
}

func DetectionPoint(run core.Run, e core.DetectionEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"detection",
		map[string]string{
			"run":       run.Name,
			"action":    string(e.Action),
			"scout_id":  e.ScoutID,
			"detect_id": e.DetectID,
		},
		map[string]any{
			"lat_deg":    e.LatDeg,
			"lon_deg":    e.LonDeg,
			"alt_m":      e.AltM,
			"distance_m": e.DistanceM,
		},
		SimTime(run, e.TimeSec),
	)
}

func DetonationPoint(run core.Run, e core.DetonationEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"detonation",
		map[string]string{
			"run":         run.Name,
			"attacker_id": e.AttackerID,
		},
		map[string]any{
			"lat_deg":     e.LatDeg,
			"lon_deg":     e.LonDeg,
			"alt_m":       e.AltM,
			"bom_range_m": e.BomRangeM,
		},
		SimTime(run, e.TimeSec),
	)
}

// PerformancePoint turns a monitor sample into a sim_performance point.
func PerformancePoint(runName string, perf model.SimPerformance) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"writer_health",
		map[string]string{"run": runName},
		map[string]any{
			"tick":                         perf.Tick,
			"ticks_per_second":             perf.TicksPerSecond,
			"buffer_events":                int(perf.BufferLengths.Events),
			"buffer_timeline":              int(perf.BufferLengths.Timeline),
			"writequeue_timeline":          int(perf.WriteQueueLengths.TimelinePositions),
			"writequeue_detection_events":  int(perf.WriteQueueLengths.DetectionEvents),
			"writequeue_detonation_events": int(perf.WriteQueueLengths.DetonationEvents),
			"last_write_duration_ms":       float64(perf.LastWriteDurationMs),
		},
		perf.Time,
	)
}
