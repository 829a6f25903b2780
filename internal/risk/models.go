// Package risk turns contextual feature vectors into purchase-risk
// assessments, with a trained-model path and a heuristic fallback.
package risk

import "errors"

// Scoring errors.
var (
	// ErrModelUnavailable means the trained model could not be reached or
	// answered with a failure; scoring may degrade to the heuristic.
	ErrModelUnavailable = errors.New("risk model unavailable")

	// ErrNoAssessment means the model answered with something unusable.
	// No assessment is produced: fail closed, never notify on a guess.
	ErrNoAssessment = errors.New("no risk assessment available")
)

// Risk tier bands and the default notification threshold.
const (
	LowBand  = 0.30
	HighBand = 0.70

	DefaultThreshold = 0.70
)

// Level is the coarse risk tier.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ModelType identifies which scoring path produced an assessment.
type ModelType string

const (
	ModelTypeML        ModelType = "ml"
	ModelTypeHeuristic ModelType = "heuristic"
)

// FeatureVector is the contextual snapshot scored for one proximity event.
// Built fresh per event; never persisted.
type FeatureVector struct {
	DistanceM          float64
	HourOfDay          int
	IsWeekend          bool
	BudgetUtilization  float64
	MerchantRegretRate float64
	DwellTimeS         float64
}

// Assessment is the outcome of scoring one feature vector.
type Assessment struct {
	Probability  float64
	Level        Level
	ShouldNotify bool
	ModelType    ModelType
	Reason       string
}

// LevelForProbability buckets a probability into the fixed risk bands.
func LevelForProbability(p float64) Level {
	switch {
	case p < LowBand:
		return LevelLow
	case p < HighBand:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// newAssessment derives the tier and notify decision from a probability.
func newAssessment(probability, threshold float64, modelType ModelType, reason string) *Assessment {
	return &Assessment{
		Probability:  probability,
		Level:        LevelForProbability(probability),
		ShouldNotify: probability >= threshold,
		ModelType:    modelType,
		Reason:       reason,
	}
}
