package geo

import "math"

// WGS84 ellipsoid parameters.
const (
	SemiMajorAxis  = 6378137.0
	Flattening     = 1.0 / 298.257223563
	EccentricitySq = Flattening * (2.0 - Flattening)
)

// ecefInverseIterations is fixed; output is golden-tested against it.
const ecefInverseIterations = 5

// ECEF is an Earth-Centered, Earth-Fixed position in metres.
type ECEF struct {
	X float64
	Y float64
	Z float64
}

// GeodeticToECEF converts a WGS84 latitude/longitude/altitude to ECEF.
// Inputs are not range checked.
func GeodeticToECEF(latDeg, lonDeg, altM float64) ECEF {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// prime vertical radius of curvature
	n := SemiMajorAxis / math.Sqrt(1.0-EccentricitySq*sinLat*sinLat)

	return ECEF{
		X: (n + altM) * cosLat * math.Cos(lon),
		Y: (n + altM) * cosLat * math.Sin(lon),
		Z: (n*(1.0-EccentricitySq) + altM) * sinLat,
	}
}

// ECEFToGeodetic converts an ECEF position back to WGS84 degrees and metres.
// It runs a fixed number of Bowring-style refinements and does not check for
// convergence; sub-millimetre for terrestrial altitudes.
func ECEFToGeodetic(p ECEF) (latDeg, lonDeg, altM float64) {
	r := math.Sqrt(p.X*p.X + p.Y*p.Y)
	lat := math.Atan2(p.Z, r)
	lon := math.Atan2(p.Y, p.X)
	alt := 0.0

	for i := 0; i < ecefInverseIterations; i++ {
		sinLat := math.Sin(lat)
		n := SemiMajorAxis / math.Sqrt(1.0-EccentricitySq*sinLat*sinLat)
		alt = r/math.Cos(lat) - n
		lat = math.Atan2(p.Z, r*(1.0-EccentricitySq*n/(n+alt)))
	}

	return lat * 180.0 / math.Pi, lon * 180.0 / math.Pi, alt
}

// Distance returns the straight-line distance between two ECEF positions.
func Distance(a, b ECEF) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Lerp returns the point at fraction t along the segment a->b.
func Lerp(a, b ECEF, t float64) ECEF {
	return ECEF{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}
