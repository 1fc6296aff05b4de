// Package regions loads named bounding boxes from a YAML manifest so
// tools can query well-known areas by name.
package regions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

// Region is a named box in manifest form. The corners may appear in
// either order; Bounds normalizes them.
type Region struct {
	Name      string            `yaml:"name"`
	SouthWest models.Coordinate `yaml:"southwest"`
	NorthEast models.Coordinate `yaml:"northeast"`
}

// Bounds returns the region's box.
func (r Region) Bounds() geo.Bounds {
	return geo.New(r.SouthWest, r.NorthEast)
}

// Manifest is an ordered collection of named regions.
type Manifest struct {
	Regions []Region `yaml:"regions"`
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse regions file: %w", err)
	}
	return &m, nil
}

// Find returns the box of the named region.
func (m *Manifest) Find(name string) (geo.Bounds, bool) {
	for _, r := range m.Regions {
		if r.Name == name {
			return r.Bounds(), true
		}
	}
	return geo.Bounds{}, false
}

// Names lists the region names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Regions))
	for _, r := range m.Regions {
		names = append(names, r.Name)
	}
	return names
}

// Extent returns the hull of every region in the manifest. It fails
// with geo.ErrNoPoints for an empty manifest.
func (m *Manifest) Extent() (geo.Bounds, error) {
	if len(m.Regions) == 0 {
		return geo.Bounds{}, fmt.Errorf("manifest has no regions: %w", geo.ErrNoPoints)
	}

	hull := m.Regions[0].Bounds()
	for _, r := range m.Regions[1:] {
		hull.ExtendBounds(r.Bounds())
	}
	return hull, nil
}
