package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-bounds/pkg/geo"
)

const sampleManifest = `
regions:
  - name: bay-area
    southwest:
      lat: 37.2
      lon: -122.6
    northeast:
      lat: 38.0
      lon: -121.7
  - name: socal
    southwest:
      lat: 32.5
      lon: -119.0
    northeast:
      lat: 34.5
      lon: -116.9
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Regions, 2)
	assert.Equal(t, []string{"bay-area", "socal"}, m.Names())

	box, ok := m.Find("bay-area")
	require.True(t, ok)
	assert.Equal(t, 37.2, box.South())
	assert.Equal(t, 38.0, box.North())
	assert.Equal(t, -122.6, box.West())
	assert.Equal(t, -121.7, box.East())

	_, ok = m.Find("nowhere")
	assert.False(t, ok)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("regions: [not a region"))
	assert.Error(t, err)
}

func TestFindSwappedCorners(t *testing.T) {
	m, err := Parse([]byte(`
regions:
  - name: swapped
    southwest:
      lat: 38.0
      lon: -121.7
    northeast:
      lat: 37.2
      lon: -122.6
`))
	require.NoError(t, err)

	// Corner order in the file does not matter
	box, ok := m.Find("swapped")
	require.True(t, ok)
	assert.Equal(t, 37.2, box.South())
	assert.Equal(t, 38.0, box.North())
	assert.Equal(t, -122.6, box.West())
	assert.Equal(t, -121.7, box.East())
}

func TestExtent(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	hull, err := m.Extent()
	require.NoError(t, err)

	bay, _ := m.Find("bay-area")
	socal, _ := m.Find("socal")
	assert.True(t, hull.ContainsBounds(bay))
	assert.True(t, hull.ContainsBounds(socal))
	assert.Equal(t, 32.5, hull.South())
	assert.Equal(t, 38.0, hull.North())

	empty := &Manifest{}
	_, err = empty.Extent()
	assert.ErrorIs(t, err, geo.ErrNoPoints)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Regions, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
