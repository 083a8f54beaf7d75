package spatial

import (
	"github.com/sero-sim/scene-engine/internal/models"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// PathPoints converts a trip path into plain points
func PathPoints(path []models.TripPoint) []Point {
	points := make([]Point, len(path))
	for i, p := range path {
		points[i] = Point{Lat: p.Lat, Lon: p.Lon}
	}
	return points
}

// PathLength calculates the total length of a path (sequence of points) in meters
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		totalDist += HaversineDistance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}

	return totalDist
}

// NearestIndex returns the index of the point closest to (lat, lon) and its
// distance in meters. Returns -1 for an empty slice.
func NearestIndex(points []Point, lat, lon float64) (int, float64) {
	best := -1
	bestDist := 0.0
	for i, p := range points {
		d := HaversineDistance(lat, lon, p.Lat, p.Lon)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
