// Package geojson converts between bounding boxes, points and GeoJSON
// for interchange with mapping tools.
package geojson

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	gj "github.com/paulmach/orb/geojson"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

// Bound converts a box to an orb.Bound.
func Bound(box geo.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{box.West(), box.South()},
		Max: orb.Point{box.East(), box.North()},
	}
}

// FromBound converts an orb.Bound to a box.
func FromBound(b orb.Bound) geo.Bounds {
	return geo.New(
		models.Coordinate{Lat: b.Min.Y(), Lon: b.Min.X()},
		models.Coordinate{Lat: b.Max.Y(), Lon: b.Max.X()},
	)
}

// BoundsFeature renders a box as a closed polygon feature carrying the
// edges and center as properties.
func BoundsFeature(box geo.Bounds) *gj.Feature {
	sw, nw, ne, se := box.SouthWest(), box.NorthWest(), box.NorthEast(), box.SouthEast()

	ring := orb.Ring{
		{sw.Lon, sw.Lat},
		{se.Lon, se.Lat},
		{ne.Lon, ne.Lat},
		{nw.Lon, nw.Lat},
		{sw.Lon, sw.Lat},
	}

	feature := gj.NewFeature(orb.Polygon{ring})
	center := box.Center()
	feature.Properties = gj.Properties{
		"west":       box.West(),
		"south":      box.South(),
		"east":       box.East(),
		"north":      box.North(),
		"center_lat": center.Lat,
		"center_lon": center.Lon,
	}
	return feature
}

// PointsFeatureCollection renders points for visualization. Points
// without a location are skipped.
func PointsFeatureCollection(points []*models.Point) *gj.FeatureCollection {
	fc := gj.NewFeatureCollection()
	for _, p := range points {
		if p.Location == nil {
			continue
		}
		feature := gj.NewFeature(orb.Point{p.Location.Lon, p.Location.Lat})
		feature.ID = p.ID
		feature.Properties = gj.Properties{"id": p.ID}
		fc.Append(feature)
	}
	return fc
}

// CollectCoordinates flattens a feature collection into coordinates.
// Point geometries contribute themselves; every other geometry
// contributes the corners of its bound.
func CollectCoordinates(fc *gj.FeatureCollection) []models.Coordinate {
	var coords []models.Coordinate
	for _, feature := range fc.Features {
		if feature == nil || feature.Geometry == nil {
			continue
		}
		switch g := feature.Geometry.(type) {
		case orb.Point:
			coords = append(coords, models.Coordinate{Lat: g.Y(), Lon: g.X()})
		default:
			b := g.Bound()
			coords = append(coords,
				models.Coordinate{Lat: b.Min.Y(), Lon: b.Min.X()},
				models.Coordinate{Lat: b.Max.Y(), Lon: b.Max.X()},
			)
		}
	}
	return coords
}

// FileExtent computes the bounding box of every geometry in a GeoJSON
// file. It fails with geo.ErrNoPoints when the file holds no
// geometries.
func FileExtent(path string) (geo.Bounds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("failed to read geojson: %w", err)
	}

	fc, err := gj.UnmarshalFeatureCollection(data)
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("failed to parse geojson: %w", err)
	}

	box, err := geo.FromPoints(CollectCoordinates(fc))
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("no geometries in %s: %w", path, err)
	}
	return box, nil
}

// LoadPoints reads the Point features of a GeoJSON file as indexable
// points. Features without an id get a generated one.
func LoadPoints(path string) ([]*models.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}

	fc, err := gj.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	var points []*models.Point
	for i, feature := range fc.Features {
		if feature == nil {
			continue
		}
		p, ok := feature.Geometry.(orb.Point)
		if !ok {
			continue
		}

		id := fmt.Sprintf("feature_%d", i)
		if feature.ID != nil {
			id = fmt.Sprintf("%v", feature.ID)
		}
		points = append(points, &models.Point{
			ID:       id,
			Location: &models.Coordinate{Lat: p.Y(), Lon: p.X()},
		})
	}
	return points, nil
}
