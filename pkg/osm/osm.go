// Package osm loads indexable points from OpenStreetMap PBF extracts.
package osm

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/qedus/osmpbf"

	"github.com/kass/go-geo-bounds/pkg/models"
)

// LoadPoints decodes every node in a PBF file into an indexable point.
// With taggedOnly set, geometry-only nodes without tags are skipped,
// which cuts most extracts down to named places and POIs.
func LoadPoints(path string, taggedOnly bool) ([]*models.Point, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pbf: %w", err)
	}
	defer file.Close()

	decoder := osmpbf.NewDecoder(file)
	decoder.SetBufferSize(osmpbf.MaxBlobSize)
	if err := decoder.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, fmt.Errorf("failed to start pbf decoder: %w", err)
	}

	var points []*models.Point
	for {
		v, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode pbf: %w", err)
		}

		node, ok := v.(*osmpbf.Node)
		if !ok {
			continue
		}
		if taggedOnly && len(node.Tags) == 0 {
			continue
		}

		points = append(points, &models.Point{
			ID:       fmt.Sprintf("osm_%d", node.ID),
			Location: &models.Coordinate{Lat: node.Lat, Lon: node.Lon},
		})
	}

	return points, nil
}
