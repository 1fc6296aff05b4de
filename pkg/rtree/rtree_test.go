package rtree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

func TestNewGeoIndex(t *testing.T) {
	index := NewGeoIndex()
	assert.NotNil(t, index)
	assert.Len(t, index.partitions, runtime.NumCPU())
	assert.Equal(t, int64(0), index.Count())
}

func TestNewGeoIndexWithWorkers(t *testing.T) {
	index := NewGeoIndexWithWorkers(4)
	assert.Len(t, index.partitions, 4)

	// Bands tile the full longitude range
	assert.Equal(t, -180.0, index.partitionBounds[0].West())
	assert.Equal(t, 180.0, index.partitionBounds[3].East())

	fallback := NewGeoIndexWithWorkers(0)
	assert.Equal(t, runtime.NumCPU(), fallback.numCPU)
}

func TestIndexPoints(t *testing.T) {
	index := NewGeoIndex()

	points := []*models.Point{
		{ID: "1", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}}, // San Francisco
		{ID: "2", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}}, // Los Angeles
		{ID: "3", Location: &models.Coordinate{Lat: 40.7128, Lon: -74.0060}},  // New York
		{ID: "4", Location: nil}, // Point without location
	}

	err := index.IndexPoints(points)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), index.Count()) // Only 3 points have locations
}

func TestExtentTracking(t *testing.T) {
	index := NewGeoIndex()

	_, err := index.Extent()
	assert.ErrorIs(t, err, geo.ErrNoPoints)

	err = index.IndexPoints([]*models.Point{
		{ID: "SF", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}},
		{ID: "LA", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}},
	})
	require.NoError(t, err)

	extent, err := index.Extent()
	require.NoError(t, err)
	assert.Equal(t, 34.0522, extent.South())
	assert.Equal(t, 37.7749, extent.North())
	assert.Equal(t, -122.4194, extent.West())
	assert.Equal(t, -118.2437, extent.East())

	// A second batch can only widen the extent
	err = index.IndexPoints([]*models.Point{
		{ID: "NYC", Location: &models.Coordinate{Lat: 40.7128, Lon: -74.0060}},
	})
	require.NoError(t, err)

	wider, err := index.Extent()
	require.NoError(t, err)
	assert.True(t, wider.ContainsBounds(extent))
	assert.Equal(t, 40.7128, wider.North())
	assert.Equal(t, -74.0060, wider.East())

	index.Clear()
	_, err = index.Extent()
	assert.ErrorIs(t, err, geo.ErrNoPoints)
}

func TestQueryBounds(t *testing.T) {
	index := NewGeoIndex()

	// Points in California plus two outside
	points := []*models.Point{
		{ID: "SF", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}},
		{ID: "LA", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}},
		{ID: "SD", Location: &models.Coordinate{Lat: 32.7157, Lon: -117.1611}},
		{ID: "NYC", Location: &models.Coordinate{Lat: 40.7128, Lon: -74.0060}},
		{ID: "CHI", Location: &models.Coordinate{Lat: 41.8781, Lon: -87.6298}},
	}

	err := index.IndexPoints(points)
	require.NoError(t, err)

	// Box covering California
	box := geo.New(
		models.Coordinate{Lat: 32.0, Lon: -125.0},
		models.Coordinate{Lat: 42.0, Lon: -114.0},
	)

	results, err := index.QueryBounds(box)
	assert.NoError(t, err)
	assert.Len(t, results, 3) // SF, LA, SD

	resultIDs := make(map[string]bool)
	for _, p := range results {
		resultIDs[p.ID] = true
	}

	assert.True(t, resultIDs["SF"])
	assert.True(t, resultIDs["LA"])
	assert.True(t, resultIDs["SD"])
	assert.False(t, resultIDs["NYC"])
	assert.False(t, resultIDs["CHI"])
}

func TestQueryBoundsDegenerate(t *testing.T) {
	index := NewGeoIndex()
	err := index.IndexPoints([]*models.Point{
		{ID: "SF", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}},
		{ID: "LA", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}},
	})
	require.NoError(t, err)

	// A zero-area box is a valid query and matches the exact point
	point := models.Coordinate{Lat: 37.7749, Lon: -122.4194}
	results, err := index.QueryBounds(geo.New(point, point))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "SF", results[0].ID)
}

func TestQueryRadius(t *testing.T) {
	index := NewGeoIndex()

	// Points around San Francisco
	sf := models.Coordinate{Lat: 37.7749, Lon: -122.4194}
	points := []*models.Point{
		{ID: "SF", Location: &models.Coordinate{Lat: sf.Lat, Lon: sf.Lon}},
		{ID: "Oakland", Location: &models.Coordinate{Lat: 37.8044, Lon: -122.2712}},    // ~13km
		{ID: "San Jose", Location: &models.Coordinate{Lat: 37.3382, Lon: -121.8863}},   // ~68km
		{ID: "Sacramento", Location: &models.Coordinate{Lat: 38.5816, Lon: -121.4944}}, // ~120km
		{ID: "LA", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}},         // ~560km
	}

	err := index.IndexPoints(points)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		radius   float64
		expected []string
	}{
		{"10km radius", 10, []string{"SF"}},
		{"20km radius", 20, []string{"SF", "Oakland"}},
		{"80km radius", 80, []string{"SF", "Oakland", "San Jose"}},
		{"150km radius", 150, []string{"SF", "Oakland", "San Jose", "Sacramento"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := index.QueryRadius(sf, tc.radius)
			assert.NoError(t, err)
			assert.Len(t, results, len(tc.expected))

			resultIDs := make(map[string]bool)
			for _, p := range results {
				resultIDs[p.ID] = true
			}

			for _, expectedID := range tc.expected {
				assert.True(t, resultIDs[expectedID], "expected %s in results", expectedID)
			}
		})
	}
}

func TestNearestNeighbors(t *testing.T) {
	index := NewGeoIndex()

	points := []*models.Point{
		{ID: "1", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}},
		{ID: "2", Location: &models.Coordinate{Lat: 37.7849, Lon: -122.4094}},
		{ID: "3", Location: &models.Coordinate{Lat: 37.7649, Lon: -122.4294}},
		{ID: "4", Location: &models.Coordinate{Lat: 37.8049, Lon: -122.3994}},
		{ID: "5", Location: &models.Coordinate{Lat: 37.7549, Lon: -122.4394}},
	}

	err := index.IndexPoints(points)
	require.NoError(t, err)

	center := models.Coordinate{Lat: 37.7749, Lon: -122.4194}
	results := index.NearestNeighbors(center, 3)

	assert.Len(t, results, 3)
	// First result should be the center point itself
	assert.Equal(t, "1", results[0].ID)
}

func TestPersistence(t *testing.T) {
	index1 := NewGeoIndex()
	points := generateRandomPoints(100)
	err := index1.IndexPoints(points)
	require.NoError(t, err)

	tempFile := filepath.Join(t.TempDir(), "index.gob")
	err = index1.SaveToFile(tempFile)
	require.NoError(t, err)

	index2 := NewGeoIndex()
	err = index2.LoadFromFile(tempFile)
	require.NoError(t, err)

	assert.Equal(t, index1.Count(), index2.Count())

	// The extent is rebuilt on load
	ext1, err := index1.Extent()
	require.NoError(t, err)
	ext2, err := index2.Extent()
	require.NoError(t, err)
	assert.True(t, ext1.Equal(ext2))

	box := geo.New(
		models.Coordinate{Lat: 30, Lon: -120},
		models.Coordinate{Lat: 40, Lon: -110},
	)

	results1, err := index1.QueryBounds(box)
	require.NoError(t, err)

	results2, err := index2.QueryBounds(box)
	require.NoError(t, err)

	assert.Equal(t, len(results1), len(results2))
}

func TestConcurrentQueries(t *testing.T) {
	index := NewGeoIndex()
	points := generateRandomPoints(10000)
	err := index.IndexPoints(points)
	require.NoError(t, err)

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			defer func() { done <- true }()

			switch rand.Intn(3) {
			case 0: // Box query
				box := geo.New(
					models.Coordinate{Lat: rand.Float64()*10 + 30, Lon: rand.Float64()*10 - 120},
					models.Coordinate{Lat: rand.Float64()*10 + 40, Lon: rand.Float64()*10 - 110},
				)
				_, err := index.QueryBounds(box)
				assert.NoError(t, err)

			case 1: // Radius query
				center := models.Coordinate{Lat: rand.Float64()*20 + 30, Lon: rand.Float64()*40 - 120}
				_, err := index.QueryRadius(center, rand.Float64()*100+10)
				assert.NoError(t, err)

			case 2: // Nearest neighbors
				center := models.Coordinate{Lat: rand.Float64()*20 + 30, Lon: rand.Float64()*40 - 120}
				results := index.NearestNeighbors(center, rand.Intn(50)+1)
				assert.NotNil(t, results)
			}
		}()
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		name     string
		a        models.Coordinate
		b        models.Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "Same point",
			a:        models.Coordinate{Lat: 37.7749, Lon: -122.4194},
			b:        models.Coordinate{Lat: 37.7749, Lon: -122.4194},
			expected: 0,
			delta:    0.01,
		},
		{
			name:     "SF to Oakland",
			a:        models.Coordinate{Lat: 37.7749, Lon: -122.4194},
			b:        models.Coordinate{Lat: 37.8044, Lon: -122.2712},
			expected: 13.0,
			delta:    1.0,
		},
		{
			name:     "SF to LA",
			a:        models.Coordinate{Lat: 37.7749, Lon: -122.4194},
			b:        models.Coordinate{Lat: 34.0522, Lon: -118.2437},
			expected: 559.0,
			delta:    5.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dist := Distance(tc.a, tc.b)
			assert.InDelta(t, tc.expected, dist, tc.delta)
		})
	}
}

// Helper function to generate random points
func generateRandomPoints(n int) []*models.Point {
	points := make([]*models.Point, n)
	for i := 0; i < n; i++ {
		points[i] = &models.Point{
			ID: fmt.Sprintf("point_%d", i),
			Location: &models.Coordinate{
				Lat: rand.Float64()*20 + 30,  // 30-50
				Lon: rand.Float64()*40 - 120, // -120 to -80
			},
		}
	}
	return points
}

// Benchmarks
func BenchmarkIndexPoints(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%d_points", size), func(b *testing.B) {
			points := generateRandomPoints(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				index := NewGeoIndex()
				_ = index.IndexPoints(points)
			}
		})
	}
}

func BenchmarkQueryBounds(b *testing.B) {
	index := NewGeoIndex()
	points := generateRandomPoints(100000)
	_ = index.IndexPoints(points)

	box := geo.New(
		models.Coordinate{Lat: 35, Lon: -115},
		models.Coordinate{Lat: 40, Lon: -110},
	)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.QueryBounds(box)
	}
}

func BenchmarkQueryRadius(b *testing.B) {
	index := NewGeoIndex()
	points := generateRandomPoints(100000)
	_ = index.IndexPoints(points)

	center := models.Coordinate{Lat: 37.5, Lon: -112.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.QueryRadius(center, 50)
	}
}

func BenchmarkNearestNeighbors(b *testing.B) {
	index := NewGeoIndex()
	points := generateRandomPoints(100000)
	_ = index.IndexPoints(points)

	center := models.Coordinate{Lat: 37.5, Lon: -112.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = index.NearestNeighbors(center, 10)
	}
}
