package backend

// Wire types of the optimization/risk service. Optional fields are pointers
// or omitempty; normalize.go turns them into engine models exactly once.

// RiskCell is one element of GET /risk/latest
type RiskCell struct {
	CellID            int      `json:"cell_id"`
	RiskScore         float64  `json:"risk_score"`
	Lat               *float64 `json:"lat,omitempty"`
	Lon               *float64 `json:"lon,omitempty"`
	HighRisk          *bool    `json:"high_risk,omitempty"`
	ExpectedIncidents *float64 `json:"expected_incidents,omitempty"`
	BucketStart       string   `json:"bucket_start,omitempty"`
}

// StationRequest is one station in a deployment request
type StationRequest struct {
	StationID       string  `json:"station_id"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	VehiclesCurrent int     `json:"vehicles_current"`
}

// DeploymentRequest is the body of POST /optimize/deployment
type DeploymentRequest struct {
	FleetType string           `json:"fleet_type"`
	Stations  []StationRequest `json:"stations"`
}

// DeploymentStation is one station in a deployment response.
// Name and StationName are both seen upstream; Name wins when both are set.
type DeploymentStation struct {
	StationID       string  `json:"station_id"`
	Name            string  `json:"name,omitempty"`
	StationName     string  `json:"station_name,omitempty"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	VehiclesCurrent int     `json:"vehicles_current"`
	VehiclesTarget  int     `json:"vehicles_target"`
	LocalRisk       float64 `json:"local_risk"`
}

// DeploymentMove is one move in a deployment response
type DeploymentMove struct {
	FromStationID string  `json:"from_station_id"`
	ToStationID   string  `json:"to_station_id"`
	FleetType     string  `json:"fleet_type,omitempty"`
	NumVehicles   int     `json:"num_vehicles,omitempty"`
	Distance      float64 `json:"distance,omitempty"`
}

// DeploymentResponse is the body returned by POST /optimize/deployment
type DeploymentResponse struct {
	FleetType       string              `json:"fleet_type"`
	Timestamp       string              `json:"timestamp,omitempty"`
	Stations        []DeploymentStation `json:"stations"`
	Moves           []DeploymentMove    `json:"moves"`
	TotalTravelCost float64             `json:"total_travel_cost"`
}

// RouteRequest is the body of POST /route
type RouteRequest struct {
	StartLat float64 `json:"start_lat"`
	StartLon float64 `json:"start_lon"`
	EndLat   float64 `json:"end_lat"`
	EndLon   float64 `json:"end_lon"`
}

// RoutePoint is one vertex of a routed polyline
type RoutePoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time float64 `json:"time"`
}

// RouteResponse is the body returned by POST /route
type RouteResponse struct {
	Points      []RoutePoint `json:"points"`
	TotalTime   float64      `json:"total_time,omitempty"`
	TotalLength float64      `json:"total_length,omitempty"`
}
