package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kass/go-geo-bounds/pkg/config"
	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
	"github.com/kass/go-geo-bounds/pkg/rtree"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

type stage int

const (
	stageLoading stage = iota
	stageLoadComplete
	stageBenchmarking
	stageBenchmarkComplete
	stageRadiusSearch
	stageRadiusComplete
	stageNearestNeighbor
	stageNearestComplete
	stageDone
)

type model struct {
	stage           stage
	spinner         spinner.Model
	progress        progress.Model
	progressPercent float64

	// Loading stats
	pointsLoaded int
	loadTime     time.Duration
	extent       geo.Bounds
	extentKnown  bool
	center       models.Coordinate
	indexed      int64

	// Benchmark stats
	benchmarkStats benchmarkResult
	radiusStats    benchmarkResult
	nearestStats   benchmarkResult

	// Messages
	messages []string
	width    int
	height   int
}

type benchmarkResult struct {
	totalQueries  int64
	totalTime     time.Duration
	totalResults  int64
	avgQueryTime  time.Duration
	queriesPerSec float64
}

type progressMsg float64

type stageCompleteMsg struct {
	stage stage
	stats interface{}
}

type messageMsg string

type advanceMsg struct{}

// extentMsg carries the growing bounding box of the dataset while batches
// are being indexed.
type extentMsg struct {
	box    geo.Bounds
	center models.Coordinate
	count  int64
}

type loadStats struct {
	points   int
	duration time.Duration
	extent   geo.Bounds
	center   models.Coordinate
}

var (
	cfg     *config.Config
	program *tea.Program
)

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	p := progress.New(progress.WithDefaultGradient())

	return model{
		stage:    stageLoading,
		spinner:  s,
		progress: p,
		messages: []string{},
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		runDemo(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		m.progressPercent = float64(msg)
		return m, m.progress.SetPercent(float64(msg))

	case extentMsg:
		m.extent = msg.box
		m.center = msg.center
		m.indexed = msg.count
		m.extentKnown = true
		return m, nil

	case messageMsg:
		m.messages = append(m.messages, string(msg))
		if len(m.messages) > 5 {
			m.messages = m.messages[1:]
		}
		return m, nil

	case advanceMsg:
		if m.stage < stageDone {
			m.stage++
		}
		return m, nil

	case stageCompleteMsg:
		switch msg.stage {
		case stageLoading:
			if stats, ok := msg.stats.(loadStats); ok {
				m.pointsLoaded = stats.points
				m.loadTime = stats.duration
				m.extent = stats.extent
				m.center = stats.center
				m.extentKnown = true
			}
			m.stage = stageLoadComplete
		case stageBenchmarking:
			if stats, ok := msg.stats.(benchmarkResult); ok {
				m.benchmarkStats = stats
			}
			m.stage = stageBenchmarkComplete
		case stageRadiusSearch:
			if stats, ok := msg.stats.(benchmarkResult); ok {
				m.radiusStats = stats
			}
			m.stage = stageRadiusComplete
		case stageNearestNeighbor:
			if stats, ok := msg.stats.(benchmarkResult); ok {
				m.nearestStats = stats
			}
			m.stage = stageNearestComplete
		}

		// Auto-advance to the next stage after a beat
		if m.stage < stageDone {
			return m, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return advanceMsg{}
			})
		}
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌍 Geo Bounds Demo"))
	b.WriteString("\n\n")

	switch m.stage {
	case stageLoading:
		b.WriteString(subtitleStyle.Render("Loading Points"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Indexing %d random points...\n\n", cfg.Demo.Points))
		b.WriteString(m.progress.ViewAs(m.progressPercent))
		if m.extentKnown {
			b.WriteString("\n\n")
			b.WriteString(dimStyle.Render(fmt.Sprintf("Points indexed: %d", m.indexed)))
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(fmt.Sprintf("Extent so far: %s", m.extent.String())))
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(fmt.Sprintf("Running center: (%.4f, %.4f)", m.center.Lat, m.center.Lon)))
		}

	case stageLoadComplete:
		b.WriteString(renderLoadStats(m))

	case stageBenchmarking:
		b.WriteString(subtitleStyle.Render("Running Bounding Box Queries"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Executing 1,000 bounding box queries...\n\n")
		b.WriteString(m.progress.ViewAs(m.progressPercent))

	case stageBenchmarkComplete:
		b.WriteString(renderBenchmarkStats("Bounding Box Queries", m.benchmarkStats))

	case stageRadiusSearch:
		b.WriteString(subtitleStyle.Render("Running Radius Searches"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Executing 1,000 radius searches (50km)...\n\n")
		b.WriteString(m.progress.ViewAs(m.progressPercent))

	case stageRadiusComplete:
		b.WriteString(renderBenchmarkStats("Radius Searches", m.radiusStats))

	case stageNearestNeighbor:
		b.WriteString(subtitleStyle.Render("Running Nearest Neighbor Searches"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Finding 10 nearest neighbors for 1,000 queries...\n\n")
		b.WriteString(m.progress.ViewAs(m.progressPercent))

	case stageNearestComplete:
		b.WriteString(renderBenchmarkStats("Nearest Neighbor Searches", m.nearestStats))

	case stageDone:
		b.WriteString(renderSummary(m))
	}

	// Show recent messages
	if len(m.messages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Recent activity:"))
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dimStyle.Render("• " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func renderLoadStats(m model) string {
	stats := fmt.Sprintf(
		"✓ Loaded %s points in %s\n"+
			"✓ Points per second: %s\n"+
			"✓ Dataset extent: %s\n"+
			"✓ Extent center: %s\n"+
			"✓ Index saved to %s",
		statStyle.Render(fmt.Sprintf("%d", m.pointsLoaded)),
		statStyle.Render(m.loadTime.String()),
		statStyle.Render(fmt.Sprintf("%.0f", float64(m.pointsLoaded)/m.loadTime.Seconds())),
		statStyle.Render(m.extent.String()),
		statStyle.Render(fmt.Sprintf("(%.4f, %.4f)", m.center.Lat, m.center.Lon)),
		statStyle.Render(cfg.IndexFile),
	)

	return boxStyle.Render(successStyle.Render("Loading Complete!\n\n") + stats)
}

func renderBenchmarkStats(title string, stats benchmarkResult) string {
	content := fmt.Sprintf(
		"✓ Total queries: %s\n"+
			"✓ Total time: %s\n"+
			"✓ Queries per second: %s\n"+
			"✓ Average query time: %s\n"+
			"✓ Total results found: %s\n"+
			"✓ Average results per query: %s",
		statStyle.Render(fmt.Sprintf("%d", stats.totalQueries)),
		statStyle.Render(stats.totalTime.String()),
		statStyle.Render(fmt.Sprintf("%.0f", stats.queriesPerSec)),
		statStyle.Render(stats.avgQueryTime.String()),
		statStyle.Render(fmt.Sprintf("%d", stats.totalResults)),
		statStyle.Render(fmt.Sprintf("%.1f", float64(stats.totalResults)/float64(stats.totalQueries))),
	)

	return boxStyle.Render(successStyle.Render(title+" Complete!\n\n") + content)
}

func renderSummary(m model) string {
	summary := titleStyle.Render("🎉 Demo Complete!")
	summary += "\n\n"

	summary += infoStyle.Render("The R-Tree index demonstrated:")
	summary += "\n\n"

	features := []string{
		fmt.Sprintf("• Parallel loading using %d CPU cores", runtime.NumCPU()),
		"• Live extent tracking while batches were indexed",
		fmt.Sprintf("• Efficient bounding box queries (%s queries/sec)", statStyle.Render(fmt.Sprintf("%.0f", m.benchmarkStats.queriesPerSec))),
		fmt.Sprintf("• Fast radius searches (%s queries/sec)", statStyle.Render(fmt.Sprintf("%.0f", m.radiusStats.queriesPerSec))),
		fmt.Sprintf("• Quick nearest neighbor lookups (%s queries/sec)", statStyle.Render(fmt.Sprintf("%.0f", m.nearestStats.queriesPerSec))),
	}

	for _, feature := range features {
		summary += successStyle.Render(feature) + "\n"
	}

	summary += "\n"
	summary += boxStyle.Render(
		infoStyle.Render("Performance Summary:\n\n") +
			fmt.Sprintf("Total points indexed: %s\n", statStyle.Render(fmt.Sprintf("%d", m.pointsLoaded))) +
			fmt.Sprintf("Dataset extent: %s\n", statStyle.Render(m.extent.String())) +
			fmt.Sprintf("Extent center: %s\n", statStyle.Render(fmt.Sprintf("(%.4f, %.4f)", m.center.Lat, m.center.Lon))) +
			fmt.Sprintf("Index creation time: %s\n", statStyle.Render(m.loadTime.String())) +
			fmt.Sprintf("Average query performance: %s", statStyle.Render(fmt.Sprintf("~%.0f queries/sec",
				(m.benchmarkStats.queriesPerSec+m.radiusStats.queriesPerSec+m.nearestStats.queriesPerSec)/3))),
	)

	return summary
}

func runDemo() tea.Cmd {
	return func() tea.Msg {
		// Run the actual demo in the background
		go executeDemo()
		return nil
	}
}

func executeDemo() {
	index, extent := loadAndIndex()
	if index == nil {
		return
	}

	time.Sleep(500 * time.Millisecond)
	runBoxQueries(index, extent)

	time.Sleep(500 * time.Millisecond)
	runRadiusSearches(index, extent)

	time.Sleep(500 * time.Millisecond)
	runNearestNeighbors(index, extent)
}

// loadAndIndex builds the index in slices so the growing extent can be
// reported to the UI between batches.
func loadAndIndex() (*rtree.GeoIndex, geo.Bounds) {
	numPoints := cfg.Demo.Points

	points := generateRandomPoints(numPoints)
	index := rtree.NewGeoIndex()

	start := time.Now()

	numBatches := 20
	batchSize := (numPoints + numBatches - 1) / numBatches

	for startIdx := 0; startIdx < numPoints; startIdx += batchSize {
		endIdx := startIdx + batchSize
		if endIdx > numPoints {
			endIdx = numPoints
		}

		if err := index.IndexPoints(points[startIdx:endIdx]); err != nil {
			program.Send(messageMsg(fmt.Sprintf("Error indexing batch: %v", err)))
			continue
		}

		indexed := index.Count()
		program.Send(progressMsg(float64(indexed) / float64(numPoints)))
		if extent, err := index.Extent(); err == nil {
			program.Send(extentMsg{box: extent, center: extent.Center(), count: indexed})
		}
	}
	loadTime := time.Since(start)

	extent, err := index.Extent()
	if err != nil {
		program.Send(messageMsg(fmt.Sprintf("Error computing extent: %v", err)))
		return nil, geo.Bounds{}
	}

	if dir := filepath.Dir(cfg.IndexFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			program.Send(messageMsg(fmt.Sprintf("Error creating %s: %v", dir, err)))
		}
	}
	if err := index.SaveToFile(cfg.IndexFile); err != nil {
		program.Send(messageMsg(fmt.Sprintf("Error saving index: %v", err)))
	}

	program.Send(stageCompleteMsg{
		stage: stageLoading,
		stats: loadStats{
			points:   numPoints,
			duration: loadTime,
			extent:   extent,
			center:   extent.Center(),
		},
	})

	return index, extent
}

func runBoxQueries(index *rtree.GeoIndex, extent geo.Bounds) {
	numQueries := 1000
	numWorkers := runtime.NumCPU()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	boxes := make([]geo.Bounds, numQueries)
	for i := range boxes {
		boxes[i] = randomBoxWithin(r, extent)
	}

	var totalResults atomic.Int64
	var queryCount atomic.Int32

	start := time.Now()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			program.Send(progressMsg(float64(queryCount.Load()) / float64(numQueries)))
			if queryCount.Load() >= int32(numQueries) {
				break
			}
		}
	}()

	var wg sync.WaitGroup
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(start, end int) {
			defer wg.Done()

			localResults := 0
			for i := start; i < end; i++ {
				results, err := index.QueryBounds(boxes[i])
				if err == nil {
					localResults += len(results)
				}
				queryCount.Add(1)
			}
			totalResults.Add(int64(localResults))
		}(startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	completedQueries := queryCount.Load()
	program.Send(stageCompleteMsg{
		stage: stageBenchmarking,
		stats: benchmarkResult{
			totalQueries:  int64(completedQueries),
			totalTime:     elapsed,
			totalResults:  totalResults.Load(),
			avgQueryTime:  elapsed / time.Duration(completedQueries),
			queriesPerSec: float64(completedQueries) / elapsed.Seconds(),
		},
	})
}

func runRadiusSearches(index *rtree.GeoIndex, extent geo.Bounds) {
	numQueries := 1000
	numWorkers := runtime.NumCPU()
	searchRadius := 50.0 // km

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	centers := make([]models.Coordinate, numQueries)
	for i := range centers {
		centers[i] = randomCoordinateWithin(r, extent)
	}

	var totalResults atomic.Int64
	var queryCount atomic.Int32

	start := time.Now()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			program.Send(progressMsg(float64(queryCount.Load()) / float64(numQueries)))
			if queryCount.Load() >= int32(numQueries) {
				break
			}
		}
	}()

	var wg sync.WaitGroup
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(start, end int) {
			defer wg.Done()

			localResults := 0
			for i := start; i < end; i++ {
				results, err := index.QueryRadius(centers[i], searchRadius)
				if err == nil {
					localResults += len(results)
				}
				queryCount.Add(1)
			}
			totalResults.Add(int64(localResults))
		}(startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	completedQueries := queryCount.Load()
	program.Send(stageCompleteMsg{
		stage: stageRadiusSearch,
		stats: benchmarkResult{
			totalQueries:  int64(completedQueries),
			totalTime:     elapsed,
			totalResults:  totalResults.Load(),
			avgQueryTime:  elapsed / time.Duration(completedQueries),
			queriesPerSec: float64(completedQueries) / elapsed.Seconds(),
		},
	})
}

func runNearestNeighbors(index *rtree.GeoIndex, extent geo.Bounds) {
	numQueries := 1000
	numWorkers := runtime.NumCPU()
	numNeighbors := 10

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	centers := make([]models.Coordinate, numQueries)
	for i := range centers {
		centers[i] = randomCoordinateWithin(r, extent)
	}

	var totalResults atomic.Int64
	var queryCount atomic.Int32

	start := time.Now()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			program.Send(progressMsg(float64(queryCount.Load()) / float64(numQueries)))
			if queryCount.Load() >= int32(numQueries) {
				break
			}
		}
	}()

	var wg sync.WaitGroup
	queriesPerWorker := numQueries / numWorkers

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		startIdx := w * queriesPerWorker
		endIdx := startIdx + queriesPerWorker
		if w == numWorkers-1 {
			endIdx = numQueries
		}

		go func(start, end int) {
			defer wg.Done()

			localResults := 0
			for i := start; i < end; i++ {
				results := index.NearestNeighbors(centers[i], numNeighbors)
				localResults += len(results)
				queryCount.Add(1)
			}
			totalResults.Add(int64(localResults))
		}(startIdx, endIdx)
	}

	wg.Wait()
	elapsed := time.Since(start)

	completedQueries := queryCount.Load()
	program.Send(stageCompleteMsg{
		stage: stageNearestNeighbor,
		stats: benchmarkResult{
			totalQueries:  int64(completedQueries),
			totalTime:     elapsed,
			totalResults:  totalResults.Load(),
			avgQueryTime:  elapsed / time.Duration(completedQueries),
			queriesPerSec: float64(completedQueries) / elapsed.Seconds(),
		},
	})
}

func randomBoxWithin(r *rand.Rand, extent geo.Bounds) geo.Bounds {
	size := r.Float64()*1.9 + 0.1
	lat := extent.South() + r.Float64()*(extent.North()-extent.South())
	lon := extent.West() + r.Float64()*(extent.East()-extent.West())

	return geo.New(
		models.Coordinate{Lat: lat - size/2, Lon: lon - size/2},
		models.Coordinate{Lat: lat + size/2, Lon: lon + size/2},
	)
}

func randomCoordinateWithin(r *rand.Rand, extent geo.Bounds) models.Coordinate {
	return models.Coordinate{
		Lat: extent.South() + r.Float64()*(extent.North()-extent.South()),
		Lon: extent.West() + r.Float64()*(extent.East()-extent.West()),
	}
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

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	program = tea.NewProgram(initialModel())

	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}
}
