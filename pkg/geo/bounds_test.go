package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-bounds/pkg/models"
)

var (
	sanFrancisco = models.Coordinate{Lat: 37.7749, Lon: -122.4194}
	losAngeles   = models.Coordinate{Lat: 34.0522, Lon: -118.2437}
	newYork      = models.Coordinate{Lat: 40.7128, Lon: -74.0060}
	oakland      = models.Coordinate{Lat: 37.8044, Lon: -122.2712}
	sanDiego     = models.Coordinate{Lat: 32.7157, Lon: -117.1611}
	chicago      = models.Coordinate{Lat: 41.8781, Lon: -87.6298}
)

func TestFromPoints(t *testing.T) {
	box, err := FromPoints([]models.Coordinate{sanFrancisco, losAngeles, newYork})
	require.NoError(t, err)

	assert.Equal(t, 34.0522, box.South())
	assert.Equal(t, 40.7128, box.North())
	assert.Equal(t, -122.4194, box.West())
	assert.Equal(t, -74.0060, box.East())
}

func TestFromPointsSingle(t *testing.T) {
	box, err := FromPoints([]models.Coordinate{oakland})
	require.NoError(t, err)

	assert.Equal(t, oakland, box.SouthWest())
	assert.Equal(t, oakland, box.NorthEast())
	assert.True(t, box.Contains(oakland))
}

func TestFromPointsEmpty(t *testing.T) {
	_, err := FromPoints(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPoints)

	_, err = FromPoints([]models.Coordinate{})
	assert.ErrorIs(t, err, ErrNoPoints)
}

func TestFromPointsHull(t *testing.T) {
	box, err := FromPoints([]models.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 10, Lon: 5},
		{Lat: 5, Lon: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, models.Coordinate{Lat: 0, Lon: 0}, box.SouthWest())
	assert.Equal(t, models.Coordinate{Lat: 10, Lon: 10}, box.NorthEast())
}

func TestNewCornerOrder(t *testing.T) {
	a := models.Coordinate{Lat: 10, Lon: 0}
	b := models.Coordinate{Lat: 0, Lon: 10}

	box := New(a, b)
	assert.Equal(t, models.Coordinate{Lat: 0, Lon: 0}, box.SouthWest())
	assert.Equal(t, models.Coordinate{Lat: 10, Lon: 10}, box.NorthEast())
	assert.True(t, box.Equal(New(b, a)))
}

func TestExtend(t *testing.T) {
	box := New(sanFrancisco, oakland)

	box.Extend(losAngeles)
	assert.True(t, box.Contains(losAngeles))
	assert.True(t, box.Contains(sanFrancisco))
	assert.True(t, box.Contains(oakland))

	before := box
	box.Extend(oakland) // already inside
	assert.True(t, box.Equal(before))
}

func TestExtendMonotonic(t *testing.T) {
	box := New(sanFrancisco, losAngeles)
	prev := box
	for _, p := range []models.Coordinate{sanDiego, newYork, chicago} {
		box.Extend(p)
		assert.True(t, box.ContainsBounds(prev), "extending must never shrink the box")
		assert.True(t, box.Contains(p))
		prev = box
	}
}

func TestExtendBounds(t *testing.T) {
	bay := New(sanFrancisco, oakland)
	socal := New(sanDiego, losAngeles)

	union := bay
	union.ExtendBounds(socal)
	assert.True(t, union.ContainsBounds(bay))
	assert.True(t, union.ContainsBounds(socal))

	again := union
	again.ExtendBounds(socal)
	assert.True(t, union.Equal(again), "repeated extension is a no-op")
}

func TestEdgesAndCorners(t *testing.T) {
	box := New(
		models.Coordinate{Lat: 0, Lon: 0},
		models.Coordinate{Lat: 10, Lon: 10},
	)

	assert.Equal(t, 0.0, box.South())
	assert.Equal(t, 0.0, box.West())
	assert.Equal(t, 10.0, box.North())
	assert.Equal(t, 10.0, box.East())

	assert.Equal(t, models.Coordinate{Lat: 10, Lon: 0}, box.NorthWest())
	assert.Equal(t, models.Coordinate{Lat: 0, Lon: 10}, box.SouthEast())
}

func TestCenterEquator(t *testing.T) {
	box := New(
		models.Coordinate{Lat: 0, Lon: 0},
		models.Coordinate{Lat: 0, Lon: 10},
	)

	center := box.Center()
	assert.InDelta(t, 0.0, center.Lat, 1e-9)
	assert.InDelta(t, 5.0, center.Lon, 1e-9)
}

func TestCenterDegenerate(t *testing.T) {
	box := New(sanFrancisco, sanFrancisco)

	center := box.Center()
	assert.InDelta(t, sanFrancisco.Lat, center.Lat, 1e-9)
	assert.InDelta(t, sanFrancisco.Lon, center.Lon, 1e-9)
}

func TestCenterSpherical(t *testing.T) {
	// The midpoint of the sw-ne diagonal bulges poleward on the
	// sphere; for a wide mid-latitude box it sits north of the box.
	box := New(sanFrancisco, newYork)

	center := box.Center()
	assert.InDelta(t, 41.86, center.Lat, 0.1)
	assert.InDelta(t, -98.75, center.Lon, 0.1)
	assert.Greater(t, center.Lat, box.North())
}

func TestContains(t *testing.T) {
	box := New(
		models.Coordinate{Lat: 0, Lon: 0},
		models.Coordinate{Lat: 10, Lon: 10},
	)

	testCases := []struct {
		name  string
		point models.Coordinate
		want  bool
	}{
		{"interior", models.Coordinate{Lat: 5, Lon: 5}, true},
		{"south-west corner", models.Coordinate{Lat: 0, Lon: 0}, true},
		{"north-east corner", models.Coordinate{Lat: 10, Lon: 10}, true},
		{"north edge", models.Coordinate{Lat: 10, Lon: 5}, true},
		{"west of box", models.Coordinate{Lat: 5, Lon: -0.001}, false},
		{"north of box", models.Coordinate{Lat: 10.001, Lon: 5}, false},
		{"south of box", models.Coordinate{Lat: -0.001, Lon: 5}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, box.Contains(tc.point))
		})
	}
}

func TestContainsBounds(t *testing.T) {
	outer := New(models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 10, Lon: 10})
	inner := New(models.Coordinate{Lat: 2, Lon: 2}, models.Coordinate{Lat: 8, Lon: 8})

	assert.True(t, outer.ContainsBounds(inner))
	assert.False(t, inner.ContainsBounds(outer))
	assert.True(t, outer.ContainsBounds(outer), "a box contains itself")

	poking := New(models.Coordinate{Lat: 2, Lon: 2}, models.Coordinate{Lat: 11, Lon: 8})
	assert.False(t, outer.ContainsBounds(poking))
	assert.True(t, outer.Overlaps(poking))
}

func TestOverlaps(t *testing.T) {
	base := New(models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 10, Lon: 10})

	testCases := []struct {
		name  string
		other Bounds
		want  bool
	}{
		{"identical", base, true},
		{"partial overlap", New(models.Coordinate{Lat: 5, Lon: 5}, models.Coordinate{Lat: 15, Lon: 15}), true},
		{"contained", New(models.Coordinate{Lat: 2, Lon: 2}, models.Coordinate{Lat: 8, Lon: 8}), true},
		{"edge touch", New(models.Coordinate{Lat: 10, Lon: 0}, models.Coordinate{Lat: 20, Lon: 10}), true},
		{"corner touch", New(models.Coordinate{Lat: 10, Lon: 10}, models.Coordinate{Lat: 20, Lon: 20}), true},
		{"disjoint north", New(models.Coordinate{Lat: 10.5, Lon: 0}, models.Coordinate{Lat: 20, Lon: 10}), false},
		{"disjoint east", New(models.Coordinate{Lat: 0, Lon: 11}, models.Coordinate{Lat: 10, Lon: 20}), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base), "overlap is symmetric")
		})
	}
}

func TestEqualAndHash(t *testing.T) {
	a := New(sanFrancisco, newYork)
	b := New(newYork, sanFrancisco)
	c := New(sanFrancisco, chicago)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestHashNegativeZero(t *testing.T) {
	plus := New(models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 1, Lon: 1})
	minus := New(models.Coordinate{Lat: math.Copysign(0, -1), Lon: 0}, models.Coordinate{Lat: 1, Lon: 1})

	require.True(t, plus.Equal(minus))
	assert.Equal(t, plus.Hash(), minus.Hash())
}

func TestString(t *testing.T) {
	box := New(models.Coordinate{Lat: 0, Lon: 0}, models.Coordinate{Lat: 10, Lon: 10})
	assert.Equal(t, "0,0,10,10", box.String())
}

func TestExtendMatchesFromPoints(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	points := make([]models.Coordinate, 0, 200)
	for i := 0; i < 200; i++ {
		points = append(points, models.Coordinate{
			Lat: r.Float64()*180 - 90,
			Lon: r.Float64()*360 - 180,
		})
	}

	running := New(points[0], points[0])
	for _, p := range points[1:] {
		running.Extend(p)
	}

	whole, err := FromPoints(points)
	require.NoError(t, err)
	assert.True(t, whole.Equal(running), "running extent must match the one-shot hull")
}

func BenchmarkFromPoints(b *testing.B) {
	r := rand.New(rand.NewSource(42))
	points := make([]models.Coordinate, 1000)
	for i := range points {
		points[i] = models.Coordinate{
			Lat: r.Float64()*180 - 90,
			Lon: r.Float64()*360 - 180,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = FromPoints(points)
	}
}

func BenchmarkContains(b *testing.B) {
	box := New(sanDiego, newYork)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		box.Contains(losAngeles)
	}
}

func BenchmarkHash(b *testing.B) {
	box := New(sanDiego, newYork)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		box.Hash()
	}
}
