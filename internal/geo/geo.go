package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Positions are persisted as EPSG:3857 points so SQLite and Postgres share one
// WKB representation; altitude travels in the Z ordinate.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Coords3857From4326 creates a Web Mercator point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) || math.Abs(latitude) > 90 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}

	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: x, Y: y},
	})
}

// MercatorPointZ is Coords3857From4326 with the altitude kept as Z.
func MercatorPointZ(latDeg, lonDeg, altM float64) (geom.Point, error) {
	p, err := Coords3857From4326(lonDeg, latDeg)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), err
	}
	c, _ := p.Coordinates()
	return geom.NewPoint(geom.Coordinates{
		XY:   c.XY,
		Z:    altM,
		Type: geom.DimXYZ,
	})
}
