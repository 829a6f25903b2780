package risk

import (
	"context"
	"math"
)

// Heuristic weights. The exact coefficients are tunable; the combination is
// monotonically increasing in budget utilization, merchant regret rate, and
// proximity (decreasing distance).
const (
	weightRegret    = 0.40
	weightBudget    = 0.30
	weightProximity = 0.20
	weightLateNight = 0.05
	weightWeekend   = 0.05

	// proximityDecayM controls how fast the proximity term falls off with
	// distance from the merchant.
	proximityDecayM = 120.0

	lateNightHour = 21
)

// HeuristicScorer is the fallback path used when the trained model is
// unavailable. It never fails.
type HeuristicScorer struct {
	threshold float64
}

// NewHeuristicScorer creates a heuristic scorer. A threshold of 0 uses
// DefaultThreshold.
func NewHeuristicScorer(threshold float64) *HeuristicScorer {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &HeuristicScorer{threshold: threshold}
}

// Score implements Scorer.
func (s *HeuristicScorer) Score(_ context.Context, v FeatureVector) (*Assessment, error) {
	proximity := math.Exp(-math.Max(v.DistanceM, 0) / proximityDecayM)

	p := weightRegret*clamp01(v.MerchantRegretRate) +
		weightBudget*clamp01(v.BudgetUtilization) +
		weightProximity*proximity

	if v.HourOfDay >= lateNightHour {
		p += weightLateNight
	}
	if v.IsWeekend {
		p += weightWeekend
	}

	return newAssessment(clamp01(p), s.threshold, ModelTypeHeuristic, "heuristic"), nil
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
