package service

import (
	"github.com/sero-sim/scene-engine/internal/models"
	"github.com/sero-sim/scene-engine/internal/spatial"
)

// FallbackTripID is the fixed id of the built-in demo trip
const FallbackTripID = "fallback-demo"

// fallbackPath loops through downtown Seattle in ten minutes
var fallbackPath = []models.TripPoint{
	{Time: 0, Lon: -122.3321, Lat: 47.6062},
	{Time: 90, Lon: -122.3380, Lat: 47.6101},
	{Time: 180, Lon: -122.3431, Lat: 47.6148},
	{Time: 300, Lon: -122.3493, Lat: 47.6205},
	{Time: 420, Lon: -122.3410, Lat: 47.6239},
	{Time: 510, Lon: -122.3302, Lat: 47.6170},
	{Time: 600, Lon: -122.3321, Lat: 47.6062},
}

// FallbackTrip returns the synthetic trip shown when a run produced no trips.
// It carries no station endpoints, so it never appears among snapshot moves.
func FallbackTrip() models.Trip {
	path := make([]models.TripPoint, len(fallbackPath))
	copy(path, fallbackPath)

	return models.Trip{
		ID:             FallbackTripID,
		FleetType:      models.FleetFire,
		VehicleKind:    models.VehicleKindFor(models.FleetFire),
		Path:           path,
		DistanceMeters: spatial.PathLength(spatial.PathPoints(path)),
	}
}

// IsFallback reports whether a trip is the synthetic fallback
func IsFallback(t models.Trip) bool {
	return t.ID == FallbackTripID
}
