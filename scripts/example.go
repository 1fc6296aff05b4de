package main

import (
	"fmt"
	"log"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
	"github.com/kass/go-geo-bounds/pkg/rtree"
)

func main() {
	// Sample points for major US cities
	cities := []*models.Point{
		{ID: "NYC", Location: &models.Coordinate{Lat: 40.7128, Lon: -74.0060}},
		{ID: "LAX", Location: &models.Coordinate{Lat: 34.0522, Lon: -118.2437}},
		{ID: "CHI", Location: &models.Coordinate{Lat: 41.8781, Lon: -87.6298}},
		{ID: "HOU", Location: &models.Coordinate{Lat: 29.7604, Lon: -95.3698}},
		{ID: "PHX", Location: &models.Coordinate{Lat: 33.4484, Lon: -112.0740}},
		{ID: "PHL", Location: &models.Coordinate{Lat: 39.9526, Lon: -75.1652}},
		{ID: "SAT", Location: &models.Coordinate{Lat: 29.4241, Lon: -98.4936}},
		{ID: "SDG", Location: &models.Coordinate{Lat: 32.7157, Lon: -117.1611}},
		{ID: "DAL", Location: &models.Coordinate{Lat: 32.7767, Lon: -96.7970}},
		{ID: "SJC", Location: &models.Coordinate{Lat: 37.3382, Lon: -121.8863}},
		{ID: "AUS", Location: &models.Coordinate{Lat: 30.2672, Lon: -97.7431}},
		{ID: "JAX", Location: &models.Coordinate{Lat: 30.3322, Lon: -81.6557}},
		{ID: "SFO", Location: &models.Coordinate{Lat: 37.7749, Lon: -122.4194}},
		{ID: "CLB", Location: &models.Coordinate{Lat: 39.9612, Lon: -82.9988}},
		{ID: "CLT", Location: &models.Coordinate{Lat: 35.2271, Lon: -80.8431}},
	}

	// Example 1: Build a bounding box from a point cloud
	fmt.Println("=== Bounding Box Basics ===")
	coords := make([]models.Coordinate, len(cities))
	for i, city := range cities {
		coords[i] = *city.Location
	}

	hull, err := geo.FromPoints(coords)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Hull of %d cities: %v\n", len(cities), hull)
	fmt.Printf("Edges: west=%.4f south=%.4f east=%.4f north=%.4f\n",
		hull.West(), hull.South(), hull.East(), hull.North())

	center := hull.Center()
	fmt.Printf("Spherical center: (%.4f, %.4f)\n", center.Lat, center.Lon)

	// Widen the hull to take in Seattle
	seattle := models.Coordinate{Lat: 47.6062, Lon: -122.3321}
	fmt.Printf("Contains Seattle before extend: %v\n", hull.Contains(seattle))
	hull.Extend(seattle)
	fmt.Printf("Contains Seattle after extend:  %v\n", hull.Contains(seattle))

	california := geo.New(
		models.Coordinate{Lat: 32.5, Lon: -124.5},
		models.Coordinate{Lat: 42.0, Lon: -114.0},
	)
	fmt.Printf("Hull contains California box: %v\n", hull.ContainsBounds(california))
	fmt.Printf("Hull overlaps California box: %v\n", hull.Overlaps(california))

	// Example 2: Find cities in California through the index
	index := rtree.NewGeoIndex()
	if err := index.IndexPoints(cities); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nIndexed %d cities\n", index.Count())

	fmt.Println("\n=== Cities in California (Bounding Box) ===")
	results, err := index.QueryBounds(california)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d cities in California:\n", len(results))
	for _, city := range results {
		fmt.Printf("  - %s: (%.4f, %.4f)\n", city.ID, city.Location.Lat, city.Location.Lon)
	}

	// Example 3: Find cities within 500km of Dallas
	fmt.Println("\n=== Cities within 500km of Dallas ===")
	dallas := models.Coordinate{Lat: 32.7767, Lon: -96.7970}

	results, err = index.QueryRadius(dallas, 500)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d cities within 500km of Dallas:\n", len(results))
	for _, city := range results {
		fmt.Printf("  - %s: %.1f km away\n", city.ID, rtree.Distance(dallas, *city.Location))
	}

	// Example 4: Find 5 nearest cities to Denver
	fmt.Println("\n=== 5 Nearest Cities to Denver ===")
	denver := models.Coordinate{Lat: 39.7392, Lon: -104.9903}

	nearest := index.NearestNeighbors(denver, 5)
	fmt.Printf("Found %d nearest cities to Denver:\n", len(nearest))
	for i, city := range nearest {
		fmt.Printf("  %d. %s: %.1f km away\n", i+1, city.ID, rtree.Distance(denver, *city.Location))
	}

	// Example 5: Dataset extent straight from the index
	fmt.Println("\n=== Dataset Extent ===")
	extent, err := index.Extent()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Extent: %v\n", extent)
	fmt.Printf("Corners: NW=(%.4f, %.4f) SE=(%.4f, %.4f)\n",
		extent.NorthWest().Lat, extent.NorthWest().Lon,
		extent.SouthEast().Lat, extent.SouthEast().Lon)

	// Save the index
	fmt.Println("\n=== Saving Index ===")
	if err := index.SaveToFile("cities.gob"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Index saved to cities.gob")

	// Load the index
	fmt.Println("\n=== Loading Index ===")
	newIndex := rtree.NewGeoIndex()
	if err := newIndex.LoadFromFile("cities.gob"); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded index with %d points\n", newIndex.Count())

	restored, err := newIndex.Extent()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Extents match after reload: %v\n", restored.Equal(extent))
}
