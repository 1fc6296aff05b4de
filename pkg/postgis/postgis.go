// Package postgis stores geo points in PostGIS, mirroring the queries
// the in-memory index answers. It exists for correctness checks and
// benchmark comparisons against a real spatial database.
package postgis

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/kass/go-geo-bounds/pkg/geo"
	"github.com/kass/go-geo-bounds/pkg/models"
)

type PostGISIndex struct {
	db *sql.DB
}

// NewPostGISIndex opens a pooled PostGIS connection.
func NewPostGISIndex(host, user, password, dbname string, port int) (*PostGISIndex, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostGISIndex{db: db}, nil
}

// InitSchema recreates the geo_points table with a geometry column.
func (p *PostGISIndex) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`DROP TABLE IF EXISTS geo_points;`,

		`CREATE TABLE geo_points (
			id TEXT PRIMARY KEY,
			location GEOMETRY(POINT, 4326)
		);`,
	}

	for _, query := range queries {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// CreateSpatialIndex creates a GIST index on the geometry column.
func (p *PostGISIndex) CreateSpatialIndex() error {
	query := `CREATE INDEX idx_geo_points_location ON geo_points USING GIST(location);`

	start := time.Now()
	if _, err := p.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}

	// Analyze table for better query planning
	if _, err := p.db.Exec("ANALYZE geo_points;"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	log.Printf("created spatial index in %v", time.Since(start))

	return nil
}

// BulkInsertPoints inserts points in batched transactions. Points
// without a location are skipped.
func (p *PostGISIndex) BulkInsertPoints(points []*models.Point) error {
	const batchSize = 10000

	stmt, err := p.db.Prepare(`
		INSERT INTO geo_points (id, location)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStmt := tx.Stmt(stmt)

	inserted := 0
	for _, point := range points {
		if point.Location == nil {
			continue
		}

		_, err := txStmt.Exec(point.ID, point.Location.Lon, point.Location.Lat)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert point %s: %w", point.ID, err)
		}

		inserted++
		if inserted%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}

			tx, err = p.db.Begin()
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			txStmt = tx.Stmt(stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}

	return nil
}

// QueryBounds returns all points inside the given box using an
// envelope intersection query.
func (p *PostGISIndex) QueryBounds(box geo.Bounds) ([]*models.Point, error) {
	query := `
		SELECT id, ST_Y(location) as lat, ST_X(location) as lon
		FROM geo_points
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
	`

	rows, err := p.db.Query(query, box.West(), box.South(), box.East(), box.North())
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []*models.Point
	for rows.Next() {
		var id string
		var lat, lon float64

		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		results = append(results, &models.Point{
			ID: id,
			Location: &models.Coordinate{
				Lat: lat,
				Lon: lon,
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// Extent returns the bounding box of every stored point. It fails
// with geo.ErrNoPoints when the table is empty.
func (p *PostGISIndex) Extent() (geo.Bounds, error) {
	query := `
		SELECT ST_XMin(extent), ST_YMin(extent), ST_XMax(extent), ST_YMax(extent)
		FROM (SELECT ST_Extent(location) AS extent FROM geo_points) AS sub
		WHERE extent IS NOT NULL
	`

	var west, south, east, north float64
	err := p.db.QueryRow(query).Scan(&west, &south, &east, &north)
	if errors.Is(err, sql.ErrNoRows) {
		return geo.Bounds{}, fmt.Errorf("table is empty: %w", geo.ErrNoPoints)
	}
	if err != nil {
		return geo.Bounds{}, fmt.Errorf("failed to compute extent: %w", err)
	}

	return geo.New(
		models.Coordinate{Lat: south, Lon: west},
		models.Coordinate{Lat: north, Lon: east},
	), nil
}

// Count returns the number of points in the database.
func (p *PostGISIndex) Count() (int64, error) {
	var count int64
	err := p.db.QueryRow("SELECT COUNT(*) FROM geo_points").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// GetDatabaseStats returns database size and table statistics.
func (p *PostGISIndex) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var dbSize string
	err := p.db.QueryRow(`
		SELECT pg_size_pretty(pg_database_size(current_database()))
	`).Scan(&dbSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get database size: %w", err)
	}
	stats["database_size"] = dbSize

	var tableSize, indexSize string
	err = p.db.QueryRow(`
		SELECT
			pg_size_pretty(pg_total_relation_size('geo_points')) as total_size,
			pg_size_pretty(pg_indexes_size('geo_points')) as index_size
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		// Table might not exist yet
		stats["table_size"] = "0 bytes"
		stats["index_size"] = "0 bytes"
	} else {
		stats["table_size"] = tableSize
		stats["index_size"] = indexSize
	}

	count, _ := p.Count()
	stats["row_count"] = count

	return stats, nil
}

// Close closes the database connection.
func (p *PostGISIndex) Close() error {
	return p.db.Close()
}
