package attribution

import (
	"math"
	"time"

	"github.com/attributionops/attribution-engine/internal/models"
)

const defaultHalfLifeDays = 7.0

// expDecayWeight returns exp(-ln2/halfLife * deltaDays). Touchpoints after
// the order (negative delta) clamp to weight 1; a non-positive half-life
// degrades to uniform weighting.
func expDecayWeight(deltaDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1.0
	}
	lambda := math.Ln2 / halfLifeDays
	return math.Exp(-lambda * math.Max(0, deltaDays))
}

// weightsFor distributes conversion credit across the windowed touchpoints.
// The returned slice has one weight per touchpoint. A single touchpoint
// always gets full credit regardless of model.
func weightsFor(model Model, window []models.Touchpoint, orderTS time.Time, halfLifeDays float64) []float64 {
	n := len(window)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []float64{1.0}
	}

	switch model {
	case ModelLastClick:
		weights := make([]float64, n)
		weights[n-1] = 1.0
		return weights

	case ModelFirstClick:
		weights := make([]float64, n)
		weights[0] = 1.0
		return weights

	case ModelLinear:
		weights := make([]float64, n)
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights

	case ModelTimeDecay:
		weights := make([]float64, n)
		var sum float64
		for i, tp := range window {
			deltaDays := orderTS.Sub(tp.Timestamp).Seconds() / 86400.0
			weights[i] = expDecayWeight(deltaDays, halfLifeDays)
			sum += weights[i]
		}
		if sum == 0 {
			sum = 1.0
		}
		for i := range weights {
			weights[i] /= sum
		}
		return weights

	case ModelDataDrivenProxy:
		// Fixed heuristic: 40% first, 40% last, 20% split across the
		// middle. With exactly two touchpoints there is no middle and the
		// 20% is intentionally left unassigned (weights sum to 0.8); this
		// mirrors the upstream behavior and is pinned by a test.
		weights := make([]float64, n)
		weights[0] = 0.4
		weights[n-1] = 0.4
		if middle := n - 2; middle > 0 {
			each := 0.2 / float64(middle)
			for i := 1; i < n-1; i++ {
				weights[i] = each
			}
		}
		return weights
	}

	return nil
}
