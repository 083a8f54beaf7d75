package stats

import (
	"math"
	"sort"

	"github.com/sero-sim/scene-engine/internal/models"
)

// Percentiles calculates multiple percentiles (0-100) at once.
// Uses linear interpolation between closest ranks.
func Percentiles(values []float64, ps []float64) []float64 {
	if len(values) == 0 {
		return make([]float64, len(ps))
	}

	// Sort once for efficiency
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	results := make([]float64, len(ps))
	for i, p := range ps {
		p = math.Max(0, math.Min(100, p))
		index := p / 100.0 * float64(len(sorted)-1)
		lower := int(math.Floor(index))
		upper := int(math.Ceil(index))

		if lower == upper {
			results[i] = sorted[lower]
		} else {
			weight := index - float64(lower)
			results[i] = sorted[lower]*(1-weight) + sorted[upper]*weight
		}
	}
	return results
}

// RiskSummary describes the distribution of risk over a set of cells
func RiskSummary(cells []models.GridCell) models.RiskSummary {
	if len(cells) == 0 {
		return models.RiskSummary{}
	}

	values := make([]float64, len(cells))
	var sum, maxRisk float64
	for i, c := range cells {
		values[i] = c.Risk
		sum += c.Risk
		if c.Risk > maxRisk {
			maxRisk = c.Risk
		}
	}

	ps := Percentiles(values, []float64{50, 90})
	return models.RiskSummary{
		Count: len(cells),
		P50:   ps[0],
		P90:   ps[1],
		Max:   maxRisk,
		Mean:  sum / float64(len(cells)),
	}
}
