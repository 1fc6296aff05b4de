// Package geo provides the Bounds value type: an axis-aligned
// latitude/longitude bounding box used by the index, storage and
// export layers.
package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/kass/go-geo-bounds/pkg/models"
)

// ErrNoPoints is returned when a bounding box is requested for an
// empty set of points.
var ErrNoPoints = errors.New("no points to bound")

// Bounds is an axis-aligned geographic bounding box held as its
// south-west and north-east corners. The corners always satisfy
// sw.Lat <= ne.Lat and sw.Lon <= ne.Lon; every constructor and
// mutator maintains that ordering. A zero-area box with both corners
// equal is valid. Longitudes are treated as plain numbers, so a box
// never wraps the antimeridian.
//
// Bounds is a comparable value type; Equal and == agree. Methods do
// not lock. Share a Bounds between goroutines the same way you would
// share a float64: copies are free, concurrent mutation is on the
// caller.
type Bounds struct {
	sw models.Coordinate
	ne models.Coordinate
}

// New returns the smallest box covering the two coordinates. The
// arguments are opposite corners of a diagonal in either order:
// New(a, b) and New(b, a) produce the same box.
func New(a, b models.Coordinate) Bounds {
	box, _ := FromPoints([]models.Coordinate{a, b}) // two points, cannot fail
	return box
}

// FromPoints returns the smallest box covering every coordinate in
// points. It fails with ErrNoPoints on an empty slice.
func FromPoints(points []models.Coordinate) (Bounds, error) {
	if len(points) == 0 {
		return Bounds{}, ErrNoPoints
	}

	minLat, maxLat := 90.0, -90.0
	minLon, maxLon := 180.0, -180.0
	for _, p := range points {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}

	return Bounds{
		sw: models.Coordinate{Lat: minLat, Lon: minLon},
		ne: models.Coordinate{Lat: maxLat, Lon: maxLon},
	}, nil
}

// Extend grows the box in place so it covers p. Extending with a
// coordinate already inside the box leaves it unchanged.
func (b *Bounds) Extend(p models.Coordinate) {
	b.sw.Lat = math.Min(b.sw.Lat, p.Lat)
	b.sw.Lon = math.Min(b.sw.Lon, p.Lon)
	b.ne.Lat = math.Max(b.ne.Lat, p.Lat)
	b.ne.Lon = math.Max(b.ne.Lon, p.Lon)
}

// ExtendBounds grows the box in place so it covers other. Extending
// twice with the same box is a no-op.
func (b *Bounds) ExtendBounds(other Bounds) {
	b.Extend(other.sw)
	b.Extend(other.ne)
}

// West returns the minimum longitude edge.
func (b Bounds) West() float64 { return b.sw.Lon }

// South returns the minimum latitude edge.
func (b Bounds) South() float64 { return b.sw.Lat }

// East returns the maximum longitude edge.
func (b Bounds) East() float64 { return b.ne.Lon }

// North returns the maximum latitude edge.
func (b Bounds) North() float64 { return b.ne.Lat }

// SouthWest returns the minimum corner.
func (b Bounds) SouthWest() models.Coordinate { return b.sw }

// NorthEast returns the maximum corner.
func (b Bounds) NorthEast() models.Coordinate { return b.ne }

// NorthWest returns the maximum-latitude, minimum-longitude corner.
func (b Bounds) NorthWest() models.Coordinate {
	return models.Coordinate{Lat: b.ne.Lat, Lon: b.sw.Lon}
}

// SouthEast returns the minimum-latitude, maximum-longitude corner.
func (b Bounds) SouthEast() models.Coordinate {
	return models.Coordinate{Lat: b.sw.Lat, Lon: b.ne.Lon}
}

// Center returns the great-circle midpoint of the south-west and
// north-east corners, computed on a sphere. For anything but a
// degenerate box this is not the arithmetic mean of the corners.
// Longitudes are not wrapped, so a box spanning more than 180 degrees
// of longitude yields a midpoint on the far side of the globe.
func (b Bounds) Center() models.Coordinate {
	phi1 := degToRad(b.sw.Lat)
	lambda1 := degToRad(b.sw.Lon)
	phi2 := degToRad(b.ne.Lat)
	deltaLambda := degToRad(b.ne.Lon - b.sw.Lon)

	bx := math.Cos(phi2) * math.Cos(deltaLambda)
	by := math.Cos(phi2) * math.Sin(deltaLambda)

	phi3 := math.Atan2(
		math.Sin(phi1)+math.Sin(phi2),
		math.Sqrt((math.Cos(phi1)+bx)*(math.Cos(phi1)+bx)+by*by),
	)
	lambda3 := lambda1 + math.Atan2(by, math.Cos(phi1)+bx)

	return models.Coordinate{Lat: radToDeg(phi3), Lon: radToDeg(lambda3)}
}

// Contains reports whether p lies inside the box. Points on an edge
// or corner count as inside.
func (b Bounds) Contains(p models.Coordinate) bool {
	return p.Lat >= b.sw.Lat && p.Lat <= b.ne.Lat &&
		p.Lon >= b.sw.Lon && p.Lon <= b.ne.Lon
}

// ContainsBounds reports whether other lies entirely inside the box.
// Every box contains itself.
func (b Bounds) ContainsBounds(other Bounds) bool {
	return other.sw.Lat >= b.sw.Lat && other.sw.Lon >= b.sw.Lon &&
		other.ne.Lat <= b.ne.Lat && other.ne.Lon <= b.ne.Lon
}

// Overlaps reports whether the two boxes share at least one point.
// Boxes that merely touch along an edge or at a corner overlap.
func (b Bounds) Overlaps(other Bounds) bool {
	return !(other.sw.Lat > b.ne.Lat || other.ne.Lat < b.sw.Lat ||
		other.sw.Lon > b.ne.Lon || other.ne.Lon < b.sw.Lon)
}

// Equal reports whether both boxes have identical corners.
func (b Bounds) Equal(other Bounds) bool {
	return b == other
}

// Hash returns a 64-bit hash of the corner coordinates. Equal boxes
// hash identically, including boxes that differ only in the sign of a
// floating-point zero.
func (b Bounds) Hash() uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], floatBits(b.sw.Lat))
	binary.LittleEndian.PutUint64(buf[8:16], floatBits(b.sw.Lon))
	binary.LittleEndian.PutUint64(buf[16:24], floatBits(b.ne.Lat))
	binary.LittleEndian.PutUint64(buf[24:32], floatBits(b.ne.Lon))
	return xxhash.Sum64(buf[:])
}

// String renders the box as "minLat,minLon,maxLat,maxLon".
func (b Bounds) String() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.sw.Lat, b.sw.Lon, b.ne.Lat, b.ne.Lon)
}

// floatBits returns the IEEE 754 bit pattern of v with negative zero
// folded into positive zero, keeping Hash consistent with ==.
func floatBits(v float64) uint64 {
	if v == 0 {
		v = 0
	}
	return math.Float64bits(v)
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
