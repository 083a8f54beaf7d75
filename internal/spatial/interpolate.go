package spatial

import "github.com/sero-sim/scene-engine/internal/models"

// PositionAt returns the interpolated (lon, lat) of a path at time t.
// Before the first point or after the last the ends are returned as-is
// (clamping, no extrapolation). Between points, longitude and latitude are
// interpolated linearly and independently on the first bracketing segment.
// An empty path yields (0, 0).
func PositionAt(path []models.TripPoint, t float64) (lon, lat float64) {
	if len(path) == 0 {
		return 0, 0
	}

	first := path[0]
	if len(path) == 1 || t <= first.Time {
		return first.Lon, first.Lat
	}

	last := path[len(path)-1]
	if t >= last.Time {
		return last.Lon, last.Lat
	}

	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		if t < a.Time || t > b.Time {
			continue
		}
		span := b.Time - a.Time
		if span <= 0 {
			return a.Lon, a.Lat
		}
		ratio := (t - a.Time) / span
		return a.Lon + (b.Lon-a.Lon)*ratio, a.Lat + (b.Lat-a.Lat)*ratio
	}

	// Unreachable for ascending paths
	return last.Lon, last.Lat
}
