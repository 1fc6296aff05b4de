package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
	"github.com/kass/go-geo-bounds/pkg/rtree"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

func main() {
	var (
		indexFile  = flag.String("i", "data/index.gob", "Index file path")
		queryType  = flag.String("t", "box", "Query type: box, radius, nearest, mixed")
		numQueries = flag.Int("n", 1000, "Number of queries to run")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		// Geographic bounds for random queries (default: roughly USA)
		minLat = flag.Float64("min-lat", 25.0, "Minimum latitude for random queries")
		maxLat = flag.Float64("max-lat", 49.0, "Maximum latitude for random queries")
		minLon = flag.Float64("min-lon", -125.0, "Minimum longitude for random queries")
		maxLon = flag.Float64("max-lon", -66.0, "Maximum longitude for random queries")
		// Query-specific parameters
		boxSize = flag.Float64("box-size", 1.0, "Box size in degrees (for box queries)")
		radius  = flag.Float64("radius", 50.0, "Radius in km (for radius queries)")
		k       = flag.Int("k", 100, "Number of nearest neighbors")
	)
	flag.Parse()

	log.Printf("Loading index from %s...", *indexFile)
	index := rtree.NewGeoIndex()
	if err := index.LoadFromFile(*indexFile); err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	log.Printf("Index loaded with %d points", index.Count())

	area := geo.New(
		models.Coordinate{Lat: *minLat, Lon: *minLon},
		models.Coordinate{Lat: *maxLat, Lon: *maxLon},
	)

	log.Printf("Running %d %s queries with %d workers...", *numQueries, *queryType, *workers)

	var result BenchmarkResult
	switch *queryType {
	case "box":
		result = benchmarkBoxQueries(index, *numQueries, *workers, area, *boxSize)
	case "radius":
		result = benchmarkRadiusQueries(index, *numQueries, *workers, area, *radius)
	case "nearest":
		result = benchmarkNearestQueries(index, *numQueries, *workers, area, *k)
	case "mixed":
		result = benchmarkMixedQueries(index, *numQueries, *workers, area, *boxSize, *radius, *k)
	default:
		log.Fatalf("Unknown query type: %s", *queryType)
	}

	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Query Type: %s\n", result.QueryType)
	fmt.Printf("Total Queries: %d\n", result.TotalQueries)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Printf("Workers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

// runQueries drives a worker pool over numQueries invocations of query and
// collects latency stats. query returns the result count, or -1 on failure.
func runQueries(queryType string, numQueries, workers int, query func(r *rand.Rand) int) BenchmarkResult {
	var (
		totalResults int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		totalLatency time.Duration
		completed    int
		mu           sync.Mutex
	)

	startTime := time.Now()

	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(rand.Int63()))

			for range queryCh {
				queryStart := time.Now()
				n := query(r)
				queryDuration := time.Since(queryStart)

				if n < 0 {
					continue
				}
				atomic.AddInt64(&totalResults, int64(n))

				mu.Lock()
				completed++
				totalLatency += queryDuration
				if queryDuration < minDuration {
					minDuration = queryDuration
				}
				if queryDuration > maxDuration {
					maxDuration = queryDuration
				}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	avgDuration := time.Duration(0)
	if completed > 0 {
		avgDuration = totalLatency / time.Duration(completed)
	}

	return BenchmarkResult{
		QueryType:     queryType,
		TotalQueries:  numQueries,
		TotalDuration: totalDuration,
		AvgDuration:   avgDuration,
		QueriesPerSec: float64(numQueries) / totalDuration.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults,
		AvgResults:    float64(totalResults) / float64(numQueries),
	}
}

func randomCoordinate(r *rand.Rand, area geo.Bounds) models.Coordinate {
	return models.Coordinate{
		Lat: area.South() + r.Float64()*(area.North()-area.South()),
		Lon: area.West() + r.Float64()*(area.East()-area.West()),
	}
}

func benchmarkBoxQueries(index *rtree.GeoIndex, numQueries, workers int, area geo.Bounds, boxSize float64) BenchmarkResult {
	latSpan := area.North() - area.South() - boxSize
	lonSpan := area.East() - area.West() - boxSize

	return runQueries("box", numQueries, workers, func(r *rand.Rand) int {
		lat := area.South() + r.Float64()*latSpan
		lon := area.West() + r.Float64()*lonSpan

		box := geo.New(
			models.Coordinate{Lat: lat, Lon: lon},
			models.Coordinate{Lat: lat + boxSize, Lon: lon + boxSize},
		)

		results, err := index.QueryBounds(box)
		if err != nil {
			return -1
		}
		return len(results)
	})
}

func benchmarkRadiusQueries(index *rtree.GeoIndex, numQueries, workers int, area geo.Bounds, radius float64) BenchmarkResult {
	return runQueries("radius", numQueries, workers, func(r *rand.Rand) int {
		results, err := index.QueryRadius(randomCoordinate(r, area), radius)
		if err != nil {
			return -1
		}
		return len(results)
	})
}

func benchmarkNearestQueries(index *rtree.GeoIndex, numQueries, workers int, area geo.Bounds, k int) BenchmarkResult {
	return runQueries("nearest", numQueries, workers, func(r *rand.Rand) int {
		return len(index.NearestNeighbors(randomCoordinate(r, area), k))
	})
}

func benchmarkMixedQueries(index *rtree.GeoIndex, numQueries, workers int, area geo.Bounds, boxSize, radius float64, k int) BenchmarkResult {
	// Run a third of each query type
	queriesPerType := numQueries / 3

	log.Println("Running mixed benchmark (33% each type)...")

	boxResult := benchmarkBoxQueries(index, queriesPerType, workers, area, boxSize)
	radiusResult := benchmarkRadiusQueries(index, queriesPerType, workers, area, radius)
	nearestResult := benchmarkNearestQueries(index, queriesPerType, workers, area, k)

	totalQueries := boxResult.TotalQueries + radiusResult.TotalQueries + nearestResult.TotalQueries
	totalDuration := boxResult.TotalDuration + radiusResult.TotalDuration + nearestResult.TotalDuration
	totalResults := boxResult.TotalResults + radiusResult.TotalResults + nearestResult.TotalResults

	return BenchmarkResult{
		QueryType:     "mixed",
		TotalQueries:  totalQueries,
		TotalDuration: totalDuration,
		AvgDuration:   totalDuration / time.Duration(totalQueries),
		QueriesPerSec: float64(totalQueries) / totalDuration.Seconds(),
		MinDuration:   min(boxResult.MinDuration, radiusResult.MinDuration, nearestResult.MinDuration),
		MaxDuration:   max(boxResult.MaxDuration, radiusResult.MaxDuration, nearestResult.MaxDuration),
		TotalResults:  totalResults,
		AvgResults:    float64(totalResults) / float64(totalQueries),
	}
}
