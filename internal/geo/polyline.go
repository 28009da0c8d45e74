package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// LonLatAlt is a geodetic vertex in degrees and metres.
type LonLatAlt struct {
	Lon float64
	Lat float64
	Alt float64
}

// RouteLineString projects route vertices to EPSG:3857 and joins them into a
// LineString Z. Routes with fewer than two vertices have no line geometry.
func RouteLineString(vertices []LonLatAlt) (geom.LineString, error) {
	if len(vertices) < 2 {
		return geom.LineString{}, fmt.Errorf("route must have at least 2 points, got %d", len(vertices))
	}

	flatCoords := make([]float64, 0, len(vertices)*3)
	for i, v := range vertices {
		p, err := Coords3857From4326(v.Lon, v.Lat)
		if err != nil {
			return geom.LineString{}, fmt.Errorf("vertex %d: %w", i, err)
		}
		c, _ := p.Coordinates()
		flatCoords = append(flatCoords, c.X, c.Y, v.Alt)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	return geom.NewLineString(seq)
}
