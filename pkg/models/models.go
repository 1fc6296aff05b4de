package models

// Coordinate is a geographic position in decimal degrees. Values are
// plain WGS84 degrees; nothing here normalizes or wraps them. Treat a
// Coordinate as immutable: operations that need a different position
// build a new value.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is an identified geo point for indexing and storage.
type Point struct {
	ID       string      `json:"id"`
	Location *Coordinate `json:"location"`
}
