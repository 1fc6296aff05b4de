package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/geojson"
	"github.com/kass/go-geo-bounds/pkg/models"
	"github.com/kass/go-geo-bounds/pkg/osm"
	"github.com/kass/go-geo-bounds/pkg/regions"
	"github.com/kass/go-geo-bounds/pkg/rtree"
)

var (
	indexFile string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "go-geo-bounds",
	Short: "Bounding-box driven geographic index tools",
	Long:  `Load, query and inspect a partitioned R-tree geo index built around axis-aligned bounding boxes.`,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Build the index from random, OSM or GeoJSON points",
	Long:  `Generate random points inside a bounding box, or read them from an OSM PBF extract or a GeoJSON file, then index and save them.`,
	Run:   runLoad,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a bounding box query against the index",
	Long:  `Query the saved index with a box given as corner flags or as a named region from a manifest.`,
	Run:   runQuery,
}

var radiusCmd = &cobra.Command{
	Use:   "radius",
	Short: "Run a radius search against the index",
	Run:   runRadius,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the nearest neighbors of a point",
	Run:   runNearest,
}

var extentCmd = &cobra.Command{
	Use:   "extent",
	Short: "Show the bounding box of an index, GeoJSON file or region manifest",
	Long:  `Compute a dataset's bounding box and print its edges, corners and spherical center.`,
	Run:   runExtent,
}

var (
	numPoints   int
	numWorkers  int
	randSeed    int64
	genMinLat   float64
	genMaxLat   float64
	genMinLon   float64
	genMaxLon   float64
	osmFile     string
	taggedOnly  bool
	geojsonFile string

	queryMinLat   float64
	queryMaxLat   float64
	queryMinLon   float64
	queryMaxLon   float64
	regionName    string
	regionsFile   string
	outputJSON    bool
	outputGeoJSON bool
	resultLimit   int

	centerLat    float64
	centerLon    float64
	searchRadius float64
	numNeighbors int

	extentGeoJSON string
	extentRegions string
	extentFeature bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&indexFile, "file", "f", "data/index.gob", "Index file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	loadCmd.Flags().IntVarP(&numPoints, "points", "p", 1000000, "Number of random points to generate")
	loadCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	loadCmd.Flags().Int64Var(&randSeed, "seed", time.Now().UnixNano(), "Random seed")
	loadCmd.Flags().Float64Var(&genMinLat, "min-lat", 25.0, "Minimum latitude for random points")
	loadCmd.Flags().Float64Var(&genMaxLat, "max-lat", 49.0, "Maximum latitude for random points")
	loadCmd.Flags().Float64Var(&genMinLon, "min-lon", -125.0, "Minimum longitude for random points")
	loadCmd.Flags().Float64Var(&genMaxLon, "max-lon", -66.0, "Maximum longitude for random points")
	loadCmd.Flags().StringVar(&osmFile, "osm", "", "Load points from an OSM PBF extract instead")
	loadCmd.Flags().BoolVar(&taggedOnly, "tagged-only", false, "Keep only tagged OSM nodes")
	loadCmd.Flags().StringVar(&geojsonFile, "geojson", "", "Load points from a GeoJSON file instead")

	queryCmd.Flags().Float64Var(&queryMinLat, "min-lat", 0, "Minimum latitude of the box")
	queryCmd.Flags().Float64Var(&queryMaxLat, "max-lat", 0, "Maximum latitude of the box")
	queryCmd.Flags().Float64Var(&queryMinLon, "min-lon", 0, "Minimum longitude of the box")
	queryCmd.Flags().Float64Var(&queryMaxLon, "max-lon", 0, "Maximum longitude of the box")
	queryCmd.Flags().StringVar(&regionName, "region", "", "Query a named region instead of corner flags")
	queryCmd.Flags().StringVar(&regionsFile, "regions", "regions.yaml", "Region manifest path")
	queryCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	queryCmd.Flags().BoolVar(&outputGeoJSON, "geo", false, "Output results as a GeoJSON feature collection")
	queryCmd.Flags().IntVar(&resultLimit, "limit", 100, "Maximum number of results to display")

	radiusCmd.Flags().Float64Var(&centerLat, "lat", 0, "Center latitude")
	radiusCmd.Flags().Float64Var(&centerLon, "lon", 0, "Center longitude")
	radiusCmd.Flags().Float64VarP(&searchRadius, "radius", "r", 10.0, "Search radius in km")
	radiusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	radiusCmd.Flags().BoolVar(&outputGeoJSON, "geo", false, "Output results as a GeoJSON feature collection")
	radiusCmd.Flags().IntVar(&resultLimit, "limit", 100, "Maximum number of results to display")

	nearestCmd.Flags().Float64Var(&centerLat, "lat", 0, "Center latitude")
	nearestCmd.Flags().Float64Var(&centerLon, "lon", 0, "Center longitude")
	nearestCmd.Flags().IntVarP(&numNeighbors, "neighbors", "n", 10, "Number of nearest neighbors")
	nearestCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	nearestCmd.Flags().BoolVar(&outputGeoJSON, "geo", false, "Output results as a GeoJSON feature collection")
	nearestCmd.Flags().IntVar(&resultLimit, "limit", 100, "Maximum number of results to display")

	extentCmd.Flags().StringVar(&extentGeoJSON, "geojson", "", "Compute the extent of a GeoJSON file instead of the index")
	extentCmd.Flags().StringVar(&extentRegions, "regions", "", "Compute the hull of a region manifest instead of the index")
	extentCmd.Flags().BoolVar(&outputJSON, "json", false, "Output the extent as JSON")
	extentCmd.Flags().BoolVar(&extentFeature, "feature", false, "Output the extent as a GeoJSON polygon feature")

	rootCmd.AddCommand(loadCmd, queryCmd, radiusCmd, nearestCmd, extentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLoad(cmd *cobra.Command, args []string) {
	var (
		points []*models.Point
		err    error
	)

	switch {
	case osmFile != "":
		log.Printf("Loading points from OSM extract %s...", osmFile)
		points, err = osm.LoadPoints(osmFile, taggedOnly)
		if err != nil {
			log.Fatalf("Failed to load OSM points: %v", err)
		}
	case geojsonFile != "":
		log.Printf("Loading points from GeoJSON %s...", geojsonFile)
		points, err = geojson.LoadPoints(geojsonFile)
		if err != nil {
			log.Fatalf("Failed to load GeoJSON points: %v", err)
		}
	default:
		area := geo.New(
			models.Coordinate{Lat: genMinLat, Lon: genMinLon},
			models.Coordinate{Lat: genMaxLat, Lon: genMaxLon},
		)
		log.Printf("Generating %d random points in [%v] with %d workers...", numPoints, area, numWorkers)
		points = generateRandomPoints(numPoints, area, numWorkers)
	}

	if len(points) == 0 {
		log.Fatal("No points to index")
	}

	log.Println("Building R-tree index...")
	start := time.Now()

	index := rtree.NewGeoIndexWithWorkers(numWorkers)
	if err := index.IndexPoints(points); err != nil {
		log.Fatalf("Failed to index points: %v", err)
	}

	indexTime := time.Since(start)
	log.Printf("Indexed %d points in %v (%.0f points/sec)",
		index.Count(), indexTime, float64(index.Count())/indexTime.Seconds())

	extent, err := index.Extent()
	if err != nil {
		log.Fatalf("Failed to compute extent: %v", err)
	}
	center := extent.Center()
	log.Printf("Dataset extent: [%v]", extent)
	log.Printf("Extent center: (%.6f, %.6f)", center.Lat, center.Lon)
	if verbose {
		printExtent(extent)
	}

	if dir := filepath.Dir(indexFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	log.Printf("Saving index to %s...", indexFile)
	start = time.Now()
	if err := index.SaveToFile(indexFile); err != nil {
		log.Fatalf("Failed to save index: %v", err)
	}
	log.Printf("Index saved in %v", time.Since(start))

	if fileInfo, err := os.Stat(indexFile); err == nil {
		log.Printf("Index file size: %.2f MB", float64(fileInfo.Size())/(1024*1024))
	}
}

func runQuery(cmd *cobra.Command, args []string) {
	index := loadIndex()

	box, err := resolveQueryBox()
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	results, err := index.QueryBounds(box)
	if err != nil {
		log.Fatalf("Box query failed: %v", err)
	}
	log.Printf("Box [%v] matched %d points in %v", box, len(results), time.Since(start))

	printResults(results, nil)
}

func runRadius(cmd *cobra.Command, args []string) {
	index := loadIndex()

	center := models.Coordinate{Lat: centerLat, Lon: centerLon}
	start := time.Now()
	results, err := index.QueryRadius(center, searchRadius)
	if err != nil {
		log.Fatalf("Radius query failed: %v", err)
	}
	log.Printf("Radius query (%.2f km) matched %d points in %v",
		searchRadius, len(results), time.Since(start))

	printResults(results, &center)
}

func runNearest(cmd *cobra.Command, args []string) {
	index := loadIndex()

	center := models.Coordinate{Lat: centerLat, Lon: centerLon}
	start := time.Now()
	results := index.NearestNeighbors(center, numNeighbors)
	log.Printf("Found %d nearest neighbors in %v", len(results), time.Since(start))

	printResults(results, &center)
}

func runExtent(cmd *cobra.Command, args []string) {
	var (
		box geo.Bounds
		err error
	)

	switch {
	case extentGeoJSON != "":
		box, err = geojson.FileExtent(extentGeoJSON)
		if err != nil {
			log.Fatalf("Failed to compute GeoJSON extent: %v", err)
		}
	case extentRegions != "":
		manifest, merr := regions.Load(extentRegions)
		if merr != nil {
			log.Fatalf("Failed to load regions: %v", merr)
		}
		box, err = manifest.Extent()
		if err != nil {
			log.Fatalf("Failed to compute manifest extent: %v", err)
		}
	default:
		index := loadIndex()
		box, err = index.Extent()
		if err != nil {
			log.Fatalf("Failed to compute index extent: %v", err)
		}
	}

	printExtent(box)
}

func loadIndex() *rtree.GeoIndex {
	log.Printf("Loading index from %s...", indexFile)
	index := rtree.NewGeoIndex()
	if err := index.LoadFromFile(indexFile); err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	log.Printf("Index loaded with %d points", index.Count())
	return index
}

func resolveQueryBox() (geo.Bounds, error) {
	if regionName != "" {
		manifest, err := regions.Load(regionsFile)
		if err != nil {
			return geo.Bounds{}, fmt.Errorf("failed to load regions: %w", err)
		}
		box, ok := manifest.Find(regionName)
		if !ok {
			return geo.Bounds{}, fmt.Errorf("unknown region %q (have: %v)", regionName, manifest.Names())
		}
		return box, nil
	}

	if queryMinLat == 0 && queryMaxLat == 0 && queryMinLon == 0 && queryMaxLon == 0 {
		return geo.Bounds{}, fmt.Errorf("box query requires --min-lat, --max-lat, --min-lon, --max-lon or --region")
	}

	return geo.New(
		models.Coordinate{Lat: queryMinLat, Lon: queryMinLon},
		models.Coordinate{Lat: queryMaxLat, Lon: queryMaxLon},
	), nil
}

func printResults(results []*models.Point, center *models.Coordinate) {
	if len(results) > resultLimit {
		log.Printf("Showing first %d results (use --limit to see more)", resultLimit)
		results = results[:resultLimit]
	}

	switch {
	case outputGeoJSON:
		fc := geojson.PointsFeatureCollection(results)
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode GeoJSON: %v", err)
		}
		fmt.Println(string(data))
	case outputJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
	default:
		for i, point := range results {
			if center != nil {
				dist := rtree.Distance(*center, *point.Location)
				fmt.Printf("%d. %s: (%.6f, %.6f) - %.2f km\n",
					i+1, point.ID, point.Location.Lat, point.Location.Lon, dist)
			} else {
				fmt.Printf("%d. %s: (%.6f, %.6f)\n",
					i+1, point.ID, point.Location.Lat, point.Location.Lon)
			}
		}
	}
}

func printExtent(box geo.Bounds) {
	switch {
	case extentFeature:
		data, err := json.MarshalIndent(geojson.BoundsFeature(box), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode feature: %v", err)
		}
		fmt.Println(string(data))
	case outputJSON:
		out := map[string]interface{}{
			"west":      box.West(),
			"south":     box.South(),
			"east":      box.East(),
			"north":     box.North(),
			"southwest": box.SouthWest(),
			"northeast": box.NorthEast(),
			"northwest": box.NorthWest(),
			"southeast": box.SouthEast(),
			"center":    box.Center(),
			"hash":      fmt.Sprintf("%016x", box.Hash()),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			log.Fatalf("Failed to encode extent: %v", err)
		}
	default:
		center := box.Center()
		fmt.Printf("Extent:    %v\n", box)
		fmt.Printf("West:      %.6f\n", box.West())
		fmt.Printf("South:     %.6f\n", box.South())
		fmt.Printf("East:      %.6f\n", box.East())
		fmt.Printf("North:     %.6f\n", box.North())
		fmt.Printf("SouthWest: (%.6f, %.6f)\n", box.SouthWest().Lat, box.SouthWest().Lon)
		fmt.Printf("NorthEast: (%.6f, %.6f)\n", box.NorthEast().Lat, box.NorthEast().Lon)
		fmt.Printf("NorthWest: (%.6f, %.6f)\n", box.NorthWest().Lat, box.NorthWest().Lon)
		fmt.Printf("SouthEast: (%.6f, %.6f)\n", box.SouthEast().Lat, box.SouthEast().Lon)
		fmt.Printf("Center:    (%.6f, %.6f)\n", center.Lat, center.Lon)
		fmt.Printf("Hash:      %016x\n", box.Hash())
	}
}

func generateRandomPoints(n int, area geo.Bounds, workers int) []*models.Point {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	points := make([]*models.Point, n)

	latSpan := area.North() - area.South()
	lonSpan := area.East() - area.West()

	type workRange struct {
		start, end int
	}
	work := make(chan workRange, workers)
	done := make(chan bool, workers)

	seeder := rand.New(rand.NewSource(randSeed))
	for w := 0; w < workers; w++ {
		// Per-worker generators avoid lock contention
		r := rand.New(rand.NewSource(seeder.Int63()))
		go func(r *rand.Rand) {
			for wr := range work {
				for i := wr.start; i < wr.end; i++ {
					points[i] = &models.Point{
						ID: fmt.Sprintf("point_%d", i),
						Location: &models.Coordinate{
							Lat: area.South() + r.Float64()*latSpan,
							Lon: area.West() + r.Float64()*lonSpan,
						},
					}
				}
			}
			done <- true
		}(r)
	}

	pointsPerWorker := n / workers
	remainder := n % workers
	start := 0
	for w := 0; w < workers; w++ {
		size := pointsPerWorker
		if w < remainder {
			size++
		}
		work <- workRange{start: start, end: start + size}
		start += size
	}
	close(work)

	for w := 0; w < workers; w++ {
		<-done
	}

	return points
}
