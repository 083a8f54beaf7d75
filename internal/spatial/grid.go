package spatial

import (
	"fmt"
	"math"
)

// Grid is a fixed latitude/longitude grid. Cell ids are row-major:
// id = row * Cols + col. The same formula labels the risk feed's cells.
type Grid struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	LatStep        float64
	LonStep        float64

	rows int
	cols int
}

// CityGrid is the grid the risk model scores
var CityGrid = MustNewGrid(47.48, 47.75, -122.45, -122.22, 0.01, 0.01)

// NewGrid creates a grid over the given bounds
func NewGrid(minLat, maxLat, minLon, maxLon, latStep, lonStep float64) (*Grid, error) {
	if maxLat <= minLat || maxLon <= minLon {
		return nil, fmt.Errorf("invalid grid bounds lat=[%f,%f] lon=[%f,%f]", minLat, maxLat, minLon, maxLon)
	}
	if latStep <= 0 || lonStep <= 0 {
		return nil, fmt.Errorf("invalid grid step %f x %f", latStep, lonStep)
	}

	return &Grid{
		MinLat:  minLat,
		MaxLat:  maxLat,
		MinLon:  minLon,
		MaxLon:  maxLon,
		LatStep: latStep,
		LonStep: lonStep,
		rows:    int(math.Ceil((maxLat - minLat) / latStep)),
		cols:    int(math.Ceil((maxLon - minLon) / lonStep)),
	}, nil
}

// MustNewGrid is NewGrid for package-level definitions
func MustNewGrid(minLat, maxLat, minLon, maxLon, latStep, lonStep float64) *Grid {
	g, err := NewGrid(minLat, maxLat, minLon, maxLon, latStep, lonStep)
	if err != nil {
		panic(err)
	}
	return g
}

// Rows returns the number of cells along the latitude axis
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of cells along the longitude axis
func (g *Grid) Cols() int { return g.cols }

// CellCount returns rows * cols
func (g *Grid) CellCount() int { return g.rows * g.cols }

// CellIDOf returns the id of the cell containing the point.
// ok is false when the point is outside the grid; that is "unfocused", not a fault.
func (g *Grid) CellIDOf(lat, lon float64) (id int, ok bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, false
	}

	row := int(math.Floor((lat - g.MinLat) / g.LatStep))
	col := int(math.Floor((lon - g.MinLon) / g.LonStep))
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return 0, false
	}

	return row*g.cols + col, true
}

// Centroid returns the center of a cell as the risk feed computes it
func (g *Grid) Centroid(id int) (lat, lon float64, ok bool) {
	if id < 0 || id >= g.CellCount() {
		return 0, 0, false
	}
	row, col := id/g.cols, id%g.cols
	lat = g.MinLat + (float64(row)+0.5)*g.LatStep
	lon = g.MinLon + (float64(col)+0.5)*g.LonStep
	return lat, lon, true
}

// CellBounds derives a cell's bounding box from its center point.
// The box is one step wide on each axis, clipped to the grid's outer bounds.
// Returns (minLat, maxLat, minLon, maxLon).
func (g *Grid) CellBounds(centerLat, centerLon float64) (float64, float64, float64, float64) {
	halfLat := g.LatStep / 2
	halfLon := g.LonStep / 2

	minLat := math.Max(centerLat-halfLat, g.MinLat)
	maxLat := math.Min(centerLat+halfLat, g.MaxLat)
	minLon := math.Max(centerLon-halfLon, g.MinLon)
	maxLon := math.Min(centerLon+halfLon, g.MaxLon)

	return minLat, maxLat, minLon, maxLon
}
