// Package route turns scenario waypoints into ECEF route points and the
// cumulative leg timing used for position interpolation.
package route

import (
	"math"

	"github.com/OCAP2/missionsim/internal/geo"
	"github.com/OCAP2/missionsim/internal/scenario"
)

// Point is a waypoint with its derived ECEF position.
type Point struct {
	LatDeg   float64
	LonDeg   float64
	AltM     float64
	SpeedKph float64 // speed of the leg starting here
	ECEF     geo.ECEF
}

// Build maps waypoints to route points one to one, preserving order.
func Build(waypoints []scenario.Waypoint) []Point {
	points := make([]Point, 0, len(waypoints))
	for _, wp := range waypoints {
		points = append(points, Point{
			LatDeg:   wp.LatDeg,
			LonDeg:   wp.LonDeg,
			AltM:     wp.AltM,
			SpeedKph: wp.SpeedKph,
			ECEF:     geo.GeodeticToECEF(wp.LatDeg, wp.LonDeg, wp.AltM),
		})
	}
	return points
}

// SegmentTimes returns the cumulative end time in seconds of every leg and the
// total route duration. A leg whose starting speed is zero takes forever, so
// it and every later end time are +Inf. Fewer than two points yield no legs.
func SegmentTimes(points []Point) (ends []float64, total float64) {
	if len(points) < 2 {
		return nil, 0
	}

	ends = make([]float64, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		d := geo.Distance(points[i].ECEF, points[i+1].ECEF)
		speedMps := points[i].SpeedKph * 1000.0 / 3600.0

		duration := math.Inf(1)
		if speedMps > 0 {
			duration = d / speedMps
		}
		total += duration
		ends = append(ends, total)
	}

	return ends, total
}

// Vertices returns the geodetic vertices of a route for geometry export.
func Vertices(points []Point) []geo.LonLatAlt {
	out := make([]geo.LonLatAlt, len(points))
	for i, p := range points {
		out[i] = geo.LonLatAlt{Lon: p.LonDeg, Lat: p.LatDeg, Alt: p.AltM}
	}
	return out
}
