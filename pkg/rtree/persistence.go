package rtree

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

// IndexData is the serializable form of the geo index.
type IndexData struct {
	Points []*models.Point `json:"points"`
	Count  int64           `json:"count"`
}

// SaveToFile writes a snapshot of the index to a binary file.
func (g *GeoIndex) SaveToFile(filename string) error {
	// rtreego has no iterator; querying the running extent returns
	// every indexed point
	extent, err := g.Extent()
	if err != nil && !errors.Is(err, geo.ErrNoPoints) {
		return fmt.Errorf("failed to compute extent: %w", err)
	}

	var points []*models.Point
	if err == nil {
		points, err = g.QueryBounds(extent)
		if err != nil {
			return fmt.Errorf("failed to extract points: %w", err)
		}
	}

	data := IndexData{
		Points: points,
		Count:  g.itemCount.Load(),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return nil
}

// LoadFromFile replaces the index contents with a saved snapshot. The
// extent is rebuilt while re-indexing.
func (g *GeoIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data IndexData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}

	g.Clear()
	if err := g.IndexPoints(data.Points); err != nil {
		return fmt.Errorf("failed to index points: %w", err)
	}

	return nil
}
