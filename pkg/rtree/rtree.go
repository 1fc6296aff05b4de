// Package rtree implements a partitioned R-tree index over geo points
// with goroutine-parallel loading and querying. The index keeps a
// running extent of everything indexed so far.
package rtree

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/s2"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialPoint adapts a models.Point to the rtreego.Spatial interface.
type spatialPoint struct {
	*models.Point
	rect rtreego.Rect
}

func (sp *spatialPoint) Bounds() rtreego.Rect {
	return sp.rect
}

// GeoIndex is a thread-safe R-tree based geographic index. Points are
// spread over longitude-band partitions so loads and queries can run
// one goroutine per band.
type GeoIndex struct {
	partitions []*rtreego.Rtree
	numCPU     int
	mu         sync.RWMutex
	itemCount  atomic.Int64

	// Partition extents for query routing
	partitionBounds []geo.Bounds

	// Hull of every point indexed so far
	extent    geo.Bounds
	hasExtent bool
}

// NewGeoIndex creates a geographic index with one partition per CPU.
func NewGeoIndex() *GeoIndex {
	return NewGeoIndexWithWorkers(runtime.NumCPU())
}

// NewGeoIndexWithWorkers creates a geographic index with the given
// partition count. Non-positive counts fall back to the CPU count.
func NewGeoIndexWithWorkers(numPartitions int) *GeoIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	partitionBounds := make([]geo.Bounds, numPartitions)

	// Slice the globe into equal longitude bands
	lonRange := 360.0 / float64(numPartitions)
	for i := 0; i < numPartitions; i++ {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		west := -180.0 + float64(i)*lonRange
		east := west + lonRange
		if i == numPartitions-1 {
			east = 180.0 // last band absorbs rounding leftovers
		}

		partitionBounds[i] = geo.New(
			models.Coordinate{Lat: -90, Lon: west},
			models.Coordinate{Lat: 90, Lon: east},
		)
	}

	return &GeoIndex{
		partitions:      partitions,
		numCPU:          numPartitions,
		partitionBounds: partitionBounds,
	}
}

// IndexPoints indexes a batch of points, inserting each longitude band
// in its own goroutine, and widens the running extent to cover the
// batch. Points without a location are skipped.
func (g *GeoIndex) IndexPoints(points []*models.Point) error {
	if len(points) == 0 {
		return nil
	}

	// Group points by partition and gather the batch coordinates
	partitioned := make([][]*spatialPoint, g.numCPU)
	for i := range partitioned {
		partitioned[i] = make([]*spatialPoint, 0, len(points)/g.numCPU)
	}

	coords := make([]models.Coordinate, 0, len(points))
	lonRange := 360.0 / float64(g.numCPU)
	for _, point := range points {
		if point.Location == nil {
			continue
		}

		p := rtreego.Point{point.Location.Lat, point.Location.Lon}
		sp := &spatialPoint{point, p.ToRect(tolerance)}

		partitionIdx := int((point.Location.Lon + 180.0) / lonRange)
		if partitionIdx >= g.numCPU {
			partitionIdx = g.numCPU - 1
		}
		if partitionIdx < 0 {
			partitionIdx = 0
		}

		partitioned[partitionIdx] = append(partitioned[partitionIdx], sp)
		coords = append(coords, *point.Location)
	}

	if len(coords) == 0 {
		return nil
	}
	batch, err := geo.FromPoints(coords)
	if err != nil {
		return fmt.Errorf("failed to compute batch extent: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var wg sync.WaitGroup
	var totalInserted atomic.Int64

	for i := 0; i < g.numCPU; i++ {
		if len(partitioned[i]) == 0 {
			continue
		}

		wg.Add(1)
		go func(partitionIdx int, items []*spatialPoint) {
			defer wg.Done()

			// Each partition can be updated independently
			for _, item := range items {
				g.partitions[partitionIdx].Insert(item)
			}
			totalInserted.Add(int64(len(items)))
		}(i, partitioned[i])
	}

	wg.Wait()
	g.itemCount.Add(totalInserted.Load())

	if g.hasExtent {
		g.extent.ExtendBounds(batch)
	} else {
		g.extent = batch
		g.hasExtent = true
	}
	return nil
}

// QueryBounds returns all points inside the given box, searching the
// overlapping partitions in parallel. Points on the box edges are
// included.
func (g *GeoIndex) QueryBounds(box geo.Bounds) ([]*models.Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	relevant := g.relevantPartitions(box)
	resultsChan := make(chan []*models.Point, len(relevant))

	for _, partitionIdx := range relevant {
		go func(idx int) {
			latSize := box.North() - box.South()
			lonSize := box.East() - box.West()
			// rtreego rejects non-positive side lengths, so degenerate
			// boxes query as hairline rects
			if latSize <= 0 {
				latSize = 1e-9
			}
			if lonSize <= 0 {
				lonSize = 1e-9
			}

			rect, err := rtreego.NewRect(
				rtreego.Point{box.South(), box.West()},
				[]float64{latSize, lonSize},
			)
			if err != nil {
				resultsChan <- nil
				return
			}

			results := g.partitions[idx].SearchIntersect(rect)

			// The tree stores tolerance-padded rects; keep only points
			// the box itself contains
			points := make([]*models.Point, 0)
			for _, result := range results {
				item, ok := result.(*spatialPoint)
				if !ok || item.Point == nil || item.Point.Location == nil {
					continue
				}
				if box.Contains(*item.Point.Location) {
					points = append(points, item.Point)
				}
			}

			resultsChan <- points
		}(partitionIdx)
	}

	var allResults []*models.Point
	for i := 0; i < len(relevant); i++ {
		if partial := <-resultsChan; partial != nil {
			allResults = append(allResults, partial...)
		}
	}

	return allResults, nil
}

// QueryRadius returns all points within radiusKm of center, searching
// the overlapping partitions in parallel.
func (g *GeoIndex) QueryRadius(center models.Coordinate, radiusKm float64) ([]*models.Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Convert the radius to degrees (approximate)
	deg := (radiusKm / earthRadius) * (180 / math.Pi)

	queryBox := geo.New(
		models.Coordinate{Lat: center.Lat - deg, Lon: center.Lon - deg},
		models.Coordinate{Lat: center.Lat + deg, Lon: center.Lon + deg},
	)

	relevant := g.relevantPartitions(queryBox)
	resultsChan := make(chan []*models.Point, len(relevant))

	for _, partitionIdx := range relevant {
		go func(idx int) {
			span := 2 * deg
			if span <= 0 {
				span = 1e-9
			}

			rect, err := rtreego.NewRect(
				rtreego.Point{queryBox.South(), queryBox.West()},
				[]float64{span, span},
			)
			if err != nil {
				resultsChan <- nil
				return
			}

			results := g.partitions[idx].SearchIntersect(rect)

			// Box prefilter only; keep points the circle contains
			points := make([]*models.Point, 0)
			for _, result := range results {
				item, ok := result.(*spatialPoint)
				if !ok || item.Point == nil || item.Point.Location == nil {
					continue
				}
				if Distance(center, *item.Point.Location) <= radiusKm {
					points = append(points, item.Point)
				}
			}

			resultsChan <- points
		}(partitionIdx)
	}

	var allResults []*models.Point
	for i := 0; i < len(relevant); i++ {
		if partial := <-resultsChan; partial != nil {
			allResults = append(allResults, partial...)
		}
	}

	return allResults, nil
}

// NearestNeighbors returns the n indexed points closest to center.
func (g *GeoIndex) NearestNeighbors(center models.Coordinate, n int) []*models.Point {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type nearestResult struct {
		point    *models.Point
		distance float64
	}

	resultsChan := make(chan []nearestResult, g.numCPU)

	for i := 0; i < g.numCPU; i++ {
		go func(idx int) {
			queryPoint := rtreego.Point{center.Lat, center.Lon}
			// Over-fetch per partition; the merge below trims to n
			results := g.partitions[idx].NearestNeighbors(n*2, queryPoint)

			nearest := make([]nearestResult, 0, len(results))
			for _, result := range results {
				sp, ok := result.(*spatialPoint)
				if !ok || sp.Point == nil || sp.Point.Location == nil {
					continue
				}
				nearest = append(nearest, nearestResult{
					point:    sp.Point,
					distance: Distance(center, *sp.Point.Location),
				})
			}

			resultsChan <- nearest
		}(i)
	}

	var allResults []nearestResult
	for i := 0; i < g.numCPU; i++ {
		allResults = append(allResults, <-resultsChan...)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].distance < allResults[j].distance
	})

	resultCount := n
	if len(allResults) < n {
		resultCount = len(allResults)
	}

	points := make([]*models.Point, resultCount)
	for i := 0; i < resultCount; i++ {
		points[i] = allResults[i].point
	}

	return points
}

// Count returns the number of indexed points.
func (g *GeoIndex) Count() int64 {
	return g.itemCount.Load()
}

// Extent returns the bounding box of every point indexed so far. It
// fails with geo.ErrNoPoints until at least one point is indexed.
func (g *GeoIndex) Extent() (geo.Bounds, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasExtent {
		return geo.Bounds{}, fmt.Errorf("index is empty: %w", geo.ErrNoPoints)
	}
	return g.extent, nil
}

// Clear removes all points from the index and resets the extent.
func (g *GeoIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < g.numCPU; i++ {
		g.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	g.itemCount.Store(0)
	g.extent = geo.Bounds{}
	g.hasExtent = false
}

// relevantPartitions returns the indices of the longitude bands whose
// extent overlaps the query box.
func (g *GeoIndex) relevantPartitions(box geo.Bounds) []int {
	var relevant []int
	for i, bounds := range g.partitionBounds {
		if bounds.Overlaps(box) {
			relevant = append(relevant, i)
		}
	}
	return relevant
}

// Distance returns the great-circle distance between two coordinates
// in kilometers.
func Distance(a, b models.Coordinate) float64 {
	p1 := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	p2 := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return s2.ChordAngleBetweenPoints(p1, p2).Angle().Radians() * earthRadius
}
