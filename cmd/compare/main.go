// Command compare benchmarks the in-memory R-tree index against PostGIS on
// the same dataset and checks that both return identical result counts for
// the same query boxes.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/kass/go-geo-bounds/pkg/config"
	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
	"github.com/kass/go-geo-bounds/pkg/postgis"
	"github.com/kass/go-geo-bounds/pkg/rtree"
)

// Both engines replay queries from this fixed pool of boxes so that result
// counts can be compared per box.
const numQueryBoxes = 256

var (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"

	cfg *config.Config

	networkLatency time.Duration
)

func init() {
	// Disable colors if not in a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		colorReset = ""
		colorRed = ""
		colorGreen = ""
		colorYellow = ""
		colorPurple = ""
		colorCyan = ""
		colorBold = ""
	}
}

func printTitle(title string) {
	fmt.Printf("\n%s%s🌍 %s%s\n", colorBold, colorPurple, title, colorReset)
	fmt.Println(strings.Repeat("=", 60))
}

func printSubtitle(subtitle string) {
	fmt.Printf("\n%s%s%s%s\n", colorBold, colorCyan, subtitle, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, message, colorReset)
}

func printError(message string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, message, colorReset)
}

func printInfo(message string) {
	fmt.Printf("%s• %s%s\n", colorYellow, message, colorReset)
}

func printStat(label string, value interface{}) {
	fmt.Printf("  %s%s:%s %s%v%s\n", colorBold, label, colorReset, colorYellow, value, colorReset)
}

func printProgress(current, total int, label string) {
	percent := float64(current) / float64(total) * 100
	barLength := 40
	filled := int(percent / 100 * float64(barLength))

	bar := "["
	for i := 0; i < barLength; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	bar += "]"

	fmt.Printf("\r%s %s%.1f%%%s %s", label, colorCyan, percent, colorReset, bar)
	if current >= total {
		fmt.Println()
	}
}

type benchmarkStats struct {
	queriesPerSecond float64
	avgQueryTime     time.Duration
	totalQueries     int64
}

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	networkLatency = time.Duration(cfg.Network.SimulatedLatencyMs) * time.Millisecond

	printTitle("R-Tree vs PostGIS Comparison")

	index, points := loadAndIndex()
	boxes := randomQueryBoxes(numQueryBoxes)

	time.Sleep(500 * time.Millisecond)
	rtreeStats, memo := runRtreeBenchmark(index, boxes)

	time.Sleep(500 * time.Millisecond)
	postgisStats := runPostGISBenchmark(points, boxes, memo)

	printComparison(rtreeStats, postgisStats)

	if postgisStats.totalQueries > 0 {
		fmt.Println()
		printInfo("Stopping PostGIS container...")
		cmd := exec.Command("docker", "compose", "down")
		if err := cmd.Run(); err != nil {
			printError("Failed to stop PostGIS container. Run 'docker compose down' manually.")
		} else {
			printSuccess("PostGIS container stopped")
		}
	}
}

// loadAndIndex reuses a saved index when it is big enough, otherwise builds
// and saves a fresh one. It returns the index together with its full point
// set so PostGIS can be loaded with the exact same data.
func loadAndIndex() (*rtree.GeoIndex, []*models.Point) {
	if fileInfo, err := os.Stat(cfg.IndexFile); err == nil {
		printSubtitle("Using Existing Index")

		index := rtree.NewGeoIndex()
		if err := index.LoadFromFile(cfg.IndexFile); err != nil {
			printError(fmt.Sprintf("Error loading existing index: %v", err))
			fmt.Println("Regenerating index...")
		} else if index.Count() >= int64(cfg.Demo.Points) {
			count := index.Count()

			printSuccess(fmt.Sprintf("Found existing index: %s", cfg.IndexFile))
			fmt.Println()
			printStat("Index file size", humanSize(fileInfo.Size()))
			printStat("Points indexed", fmt.Sprintf("%s%d%s", colorGreen, count, colorReset))
			printStat("Points per MB", fmt.Sprintf("%.0f", float64(count)/(float64(fileInfo.Size())/(1<<20))))
			printStat("CPU partitions", runtime.NumCPU())

			extent, err := index.Extent()
			if err != nil {
				log.Fatalf("Failed to compute extent: %v", err)
			}
			center := extent.Center()
			printStat("Dataset extent", extent.String())
			printStat("Extent center", fmt.Sprintf("(%.4f, %.4f)", center.Lat, center.Lon))

			// Read the dataset back out through the extent so PostGIS gets
			// the same points
			points, err := index.QueryBounds(extent)
			if err != nil {
				log.Fatalf("Failed to read back indexed points: %v", err)
			}

			fmt.Println()
			printInfo("Skipping index generation - using existing data")
			return index, points
		} else {
			fmt.Printf("\n%sExisting index has insufficient points, regenerating...%s\n", colorYellow, colorReset)
		}
	}

	printSubtitle("Loading Points")

	numPoints := cfg.Demo.Points
	numCPU := runtime.NumCPU()

	fmt.Printf("Generating %s%d%s random geographic points...\n", colorBold, numPoints, colorReset)
	fmt.Printf("System has %s%d CPU cores%s available\n", colorBold, numCPU, colorReset)
	fmt.Printf("Points will be distributed across %s%d spatial partitions%s (one per CPU)\n",
		colorBold, numCPU, colorReset)

	points := generateRandomPoints(numPoints)

	index := rtree.NewGeoIndex()
	start := time.Now()

	done := make(chan bool)
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Printf("\rIndexing... %v", time.Since(start).Round(100*time.Millisecond))
			}
		}
	}()

	if err := index.IndexPoints(points); err != nil {
		log.Fatalf("Failed to index points: %v", err)
	}
	done <- true
	loadTime := time.Since(start)
	fmt.Println()

	extent, err := index.Extent()
	if err != nil {
		log.Fatalf("Failed to compute extent: %v", err)
	}
	center := extent.Center()

	if dir := filepath.Dir(cfg.IndexFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Error creating %s: %v", dir, err)
		}
	}
	if err := index.SaveToFile(cfg.IndexFile); err != nil {
		log.Printf("Error saving index: %v", err)
	}

	printSuccess(fmt.Sprintf("Indexed %d points across %d partitions in %v", numPoints, numCPU, loadTime))
	printSuccess(fmt.Sprintf("Indexing rate: %.0f points/second", float64(numPoints)/loadTime.Seconds()))
	printStat("Dataset extent", extent.String())
	printStat("Extent center", fmt.Sprintf("(%.4f, %.4f)", center.Lat, center.Lon))
	printSuccess(fmt.Sprintf("Index saved to %s", cfg.IndexFile))

	return index, points
}

// randomQueryBoxes builds the fixed, seeded pool of query boxes shared by
// both benchmark phases.
func randomQueryBoxes(n int) []geo.Bounds {
	r := rand.New(rand.NewSource(42))
	boxes := make([]geo.Bounds, n)

	for i := range boxes {
		centerLat := r.Float64()*178 - 89
		centerLon := r.Float64()*358 - 179
		size := r.Float64()*1.9 + 0.1

		boxes[i] = geo.New(
			models.Coordinate{Lat: centerLat - size/2, Lon: centerLon - size/2},
			models.Coordinate{Lat: centerLat + size/2, Lon: centerLon + size/2},
		)
	}
	return boxes
}

func runRtreeBenchmark(index *rtree.GeoIndex, boxes []geo.Bounds) (benchmarkStats, map[uint64]int) {
	printSubtitle("Running R-Tree Bounding Box Queries")

	benchDuration := time.Duration(cfg.Demo.BenchmarkDuration) * time.Second

	fmt.Printf("Running %ssingle-threaded%s benchmark for %s%v%s\n",
		colorBold, colorReset, colorBold, benchDuration, colorReset)
	fmt.Printf("R-Tree advantage: Each query %sinternally uses %d CPU cores%s\n",
		colorGreen, runtime.NumCPU(), colorReset)

	memo := make(map[uint64]int, len(boxes))
	inconsistent := 0

	var queryCount int64
	start := time.Now()
	deadline := start.Add(benchDuration)

	done := make(chan bool)
	go progressLoop(start, benchDuration, done)

	for i := 0; time.Now().Before(deadline); i++ {
		box := boxes[i%len(boxes)]

		results, err := index.QueryBounds(box)
		if err != nil {
			continue
		}
		queryCount++

		// Replaying the same box must keep returning the same count
		h := box.Hash()
		if prev, seen := memo[h]; seen {
			if prev != len(results) {
				inconsistent++
			}
		} else {
			memo[h] = len(results)
		}
	}
	done <- true
	elapsed := time.Since(start)

	avgQueryTime := time.Duration(0)
	if queryCount > 0 {
		avgQueryTime = elapsed / time.Duration(queryCount)
	}

	fmt.Println()
	printSuccess("R-Tree Bounding Box Queries Complete!")
	printStat("Total queries", fmt.Sprintf("%d", queryCount))
	printStat("Queries per second", fmt.Sprintf("%s%.0f%s", colorGreen, float64(queryCount)/elapsed.Seconds(), colorReset))
	printStat("Average query time", fmt.Sprintf("%s%v%s", colorGreen, avgQueryTime, colorReset))
	printStat("Distinct boxes", len(memo))
	if inconsistent == 0 {
		printSuccess("Repeated boxes returned stable result counts")
	} else {
		printError(fmt.Sprintf("%d queries disagreed with an earlier run of the same box", inconsistent))
	}
	printInfo(fmt.Sprintf("Each query internally searched %d partitions in parallel", runtime.NumCPU()))

	return benchmarkStats{
		queriesPerSecond: float64(queryCount) / elapsed.Seconds(),
		avgQueryTime:     avgQueryTime,
		totalQueries:     queryCount,
	}, memo
}

func runPostGISBenchmark(points []*models.Point, boxes []geo.Bounds, memo map[uint64]int) benchmarkStats {
	printSubtitle("Running PostGIS Bounding Box Queries")

	printInfo("Connecting to PostGIS...")
	db, err := postgis.NewPostGISIndex(
		cfg.PostGIS.Host,
		cfg.PostGIS.User,
		cfg.PostGIS.Password,
		cfg.PostGIS.Database,
		cfg.PostGIS.Port)
	if err != nil {
		printError(fmt.Sprintf("PostGIS connection failed: %v", err))
		fmt.Println()
		printInfo("Skipping PostGIS benchmark. To enable PostGIS:")
		printInfo("1. Ensure Docker is running")
		printInfo("2. Run 'docker compose up -d' to start PostGIS")
		fmt.Println()
		return benchmarkStats{}
	}
	defer db.Close()
	printSuccess("Connected to PostGIS")

	// The cross-check against the R-tree only holds when this run loaded
	// PostGIS with the same points the index holds
	sameData := false

	count, err := db.Count()
	if err == nil && count >= int64(len(points)) {
		printSuccess(fmt.Sprintf("Found existing PostGIS data with %d points", count))

		if stats, err := db.GetDatabaseStats(); err == nil {
			fmt.Println()
			printStat("Database size", stats["database_size"])
			printStat("Table size", stats["table_size"])
			printStat("Index size", stats["index_size"])
			printStat("Points indexed", fmt.Sprintf("%s%d%s", colorGreen, stats["row_count"], colorReset))
			fmt.Println()
		}
	} else {
		printInfo("Loading points into PostGIS...")

		if err := db.InitSchema(); err != nil {
			log.Printf("Failed to initialize schema: %v", err)
			return benchmarkStats{}
		}

		start := time.Now()
		lastProgress := 0
		progressCallback := func(loaded, total int) {
			percent := loaded * 100 / total
			if percent > lastProgress {
				printProgress(percent, 100, fmt.Sprintf("Loading %d points", total))
				lastProgress = percent
			}
		}

		fmt.Println()
		err = db.BulkInsertPoints(points, progressCallback)
		fmt.Println()
		if err != nil {
			log.Printf("Failed to insert points: %v", err)
			return benchmarkStats{}
		}
		printSuccess(fmt.Sprintf("Loaded %d points in %v", len(points), time.Since(start)))

		printInfo("Creating spatial index...")
		if err := db.CreateSpatialIndex(); err != nil {
			log.Printf("Failed to create spatial index: %v", err)
			return benchmarkStats{}
		}
		sameData = true

		if extent, err := db.Extent(); err == nil {
			printStat("PostGIS extent", extent.String())
		}
	}

	benchDuration := time.Duration(cfg.Demo.BenchmarkDuration) * time.Second

	fmt.Printf("Running %ssingle-threaded%s benchmark for %s%v%s\n",
		colorBold, colorReset, colorBold, benchDuration, colorReset)
	fmt.Printf("PostGIS: Each query runs %ssequentially%s (no internal parallelism)\n", colorYellow, colorReset)
	if networkLatency > 0 {
		fmt.Printf("%sSimulating network latency: +%v per query%s\n", colorCyan, networkLatency, colorReset)
	}

	var queryCount int64
	mismatches := 0
	checked := 0

	start := time.Now()
	deadline := start.Add(benchDuration)

	done := make(chan bool)
	go progressLoop(start, benchDuration, done)

	for i := 0; time.Now().Before(deadline); i++ {
		box := boxes[i%len(boxes)]

		results, err := db.QueryBounds(box)
		if err != nil {
			continue
		}
		queryCount++

		if sameData && i < len(boxes) {
			if expected, ok := memo[box.Hash()]; ok {
				checked++
				if expected != len(results) {
					mismatches++
				}
			}
		}

		if networkLatency > 0 {
			time.Sleep(networkLatency)
		}
	}
	done <- true
	elapsed := time.Since(start)

	avgQueryTime := time.Duration(0)
	if queryCount > 0 {
		avgQueryTime = elapsed / time.Duration(queryCount)
	}

	fmt.Println()
	printSuccess("PostGIS Bounding Box Queries Complete!")
	printStat("Total queries", fmt.Sprintf("%d", queryCount))
	printStat("Queries per second", fmt.Sprintf("%s%.0f%s", colorYellow, float64(queryCount)/elapsed.Seconds(), colorReset))
	printStat("Average query time", fmt.Sprintf("%s%v%s", colorYellow, avgQueryTime, colorReset))
	if checked > 0 {
		if mismatches == 0 {
			printSuccess(fmt.Sprintf("PostGIS result counts matched the R-tree on all %d sample boxes", checked))
		} else {
			printError(fmt.Sprintf("PostGIS disagreed with the R-tree on %d of %d sample boxes", mismatches, checked))
		}
	}
	if networkLatency > 0 {
		printInfo(fmt.Sprintf("Each query included %v simulated network latency", networkLatency))
	} else {
		printInfo("Each query executed sequentially without parallelism")
	}

	return benchmarkStats{
		queriesPerSecond: float64(queryCount) / elapsed.Seconds(),
		avgQueryTime:     avgQueryTime,
		totalQueries:     queryCount,
	}
}

// progressLoop redraws the benchmark progress bar until told to stop.
func progressLoop(start time.Time, total time.Duration, done <-chan bool) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			fmt.Println()
			return
		case <-ticker.C:
			percent := time.Since(start).Seconds() / total.Seconds() * 100
			if percent > 100 {
				percent = 100
			}
			printProgress(int(percent), 100, "Benchmarking")
		}
	}
}

func printComparison(rtreeStats, postgisStats benchmarkStats) {
	printTitle("Performance Comparison")

	fmt.Printf("\n%sSingle-Threaded Benchmark Results:%s\n", colorBold, colorReset)
	fmt.Printf("• R-Tree: Each query %sinternally parallelized%s across %d CPU partitions\n",
		colorGreen, colorReset, runtime.NumCPU())
	if networkLatency > 0 {
		fmt.Printf("• PostGIS: Each query runs %ssequentially%s with %s%v network latency%s\n\n",
			colorYellow, colorReset, colorCyan, networkLatency, colorReset)
	} else {
		fmt.Printf("• PostGIS: Each query runs %ssequentially%s without parallelism\n\n",
			colorYellow, colorReset)
	}

	fmt.Printf("%s%-20s %-30s %-30s%s\n", colorBold, "Metric", "R-Tree (Internal Parallel)", "PostGIS (Sequential)", colorReset)
	fmt.Println(strings.Repeat("-", 80))

	rtreeQPS := fmt.Sprintf("%.0f", rtreeStats.queriesPerSecond)
	postgisQPS := "N/A"
	if postgisStats.queriesPerSecond > 0 {
		postgisQPS = fmt.Sprintf("%.0f", postgisStats.queriesPerSecond)
	}
	fmt.Printf("%-20s %s%-30s%s %s%-30s%s\n", "Queries/second",
		colorGreen, rtreeQPS, colorReset,
		colorYellow, postgisQPS, colorReset)

	rtreeAvg := rtreeStats.avgQueryTime.String()
	postgisAvg := "N/A"
	if postgisStats.avgQueryTime > 0 {
		postgisAvg = postgisStats.avgQueryTime.String()
	}
	fmt.Printf("%-20s %s%-30s%s %s%-30s%s\n", "Avg query time",
		colorGreen, rtreeAvg, colorReset,
		colorYellow, postgisAvg, colorReset)

	fmt.Printf("%-20s %-30d", "Total queries", rtreeStats.totalQueries)
	if postgisStats.totalQueries > 0 {
		fmt.Printf(" %-30d\n", postgisStats.totalQueries)
	} else {
		fmt.Printf(" %-30s\n", "N/A")
	}

	if postgisStats.queriesPerSecond > 0 {
		ratio := rtreeStats.queriesPerSecond / postgisStats.queriesPerSecond
		fmt.Printf("\n%sR-Tree is %.1fx faster than PostGIS%s\n", colorBold, ratio, colorReset)
		if networkLatency > 0 {
			fmt.Printf("This represents %sreal-world cloud/remote database performance%s\n",
				colorCyan, colorReset)
			fmt.Printf("R-Tree advantage: %sNo network overhead%s for in-memory queries\n",
				colorGreen, colorReset)
		} else {
			fmt.Printf("This speedup comes from %sinternal parallel execution%s across %d CPU partitions\n",
				colorGreen, colorReset, runtime.NumCPU())
			fmt.Printf("Both benchmarks used %ssingle-threaded%s query generation for fair comparison\n",
				colorBold, colorReset)
		}
	}

	fmt.Printf("\n%sBenchmark Duration:%s %d seconds per test\n", colorBold, colorReset, cfg.Demo.BenchmarkDuration)
	fmt.Printf("%sTest Dataset:%s %d geographic points\n", colorBold, colorReset, cfg.Demo.Points)
	fmt.Println()
}

func generateRandomPoints(n int) []*models.Point {
	points := make([]*models.Point, n)

	numWorkers := runtime.NumCPU()
	batchSize := n / numWorkers
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * batchSize
		endIdx := startIdx + batchSize
		if w == numWorkers-1 {
			endIdx = n
		}

		go func(start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(start)))

			for i := start; i < end; i++ {
				var lat, lon float64

				switch r.Intn(5) {
				case 0: // North America
					lat = r.Float64()*30 + 30
					lon = r.Float64()*60 - 120
				case 1: // Europe
					lat = r.Float64()*20 + 40
					lon = r.Float64()*40 - 10
				case 2: // Asia
					lat = r.Float64()*40 + 20
					lon = r.Float64()*80 + 60
				case 3: // South America
					lat = r.Float64()*40 - 50
					lon = r.Float64()*30 - 80
				default: // Anywhere
					lat = r.Float64()*180 - 90
					lon = r.Float64()*360 - 180
				}

				points[i] = &models.Point{
					ID: fmt.Sprintf("point_%d", i),
					Location: &models.Coordinate{
						Lat: lat,
						Lon: lon,
					},
				}
			}
		}(startIdx, endIdx)
	}

	wg.Wait()
	return points
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
