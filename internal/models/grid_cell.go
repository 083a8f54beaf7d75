package models

// GridCell represents one risk-scored cell of the fixed city grid.
// Bounds are derived from the reported center and the grid step, never stored
// independently of the grid definition.
type GridCell struct {
	ID     string `json:"id"`      // Format: "cell-{cellId}"
	CellID int    `json:"cell_id"` // row * cols + col

	// Bounding box (clipped to the grid's outer bounds)
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`

	// Center as reported by the risk feed
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`

	Risk              float64 `json:"risk"` // Normalized 0~1
	HighRisk          bool    `json:"high_risk,omitempty"`
	ExpectedIncidents float64 `json:"expected_incidents,omitempty"`
}

// Contains reports whether the point falls inside the cell's bounding box.
// Lower edges are inclusive, upper edges exclusive, matching the indexer.
func (c GridCell) Contains(lat, lon float64) bool {
	return lat >= c.MinLat && lat < c.MaxLat && lon >= c.MinLon && lon < c.MaxLon
}

// RiskSummary describes the distribution of risk over the current grid
type RiskSummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}
