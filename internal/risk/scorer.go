package risk

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Scorer turns a feature vector into a risk assessment.
type Scorer interface {
	Score(ctx context.Context, v FeatureVector) (*Assessment, error)
}

// FallbackScorer composes a primary scorer with a fallback. When the primary
// reports ErrModelUnavailable, the fallback answers instead; ErrNoAssessment
// propagates untouched so the pipeline fails closed on untrustworthy model
// output rather than guessing with the heuristic.
type FallbackScorer struct {
	primary  Scorer
	fallback Scorer
	logger   zerolog.Logger
}

// WithFallback wraps primary so that unavailability degrades to fallback.
func WithFallback(primary, fallback Scorer, logger zerolog.Logger) *FallbackScorer {
	return &FallbackScorer{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "risk_scorer").Logger(),
	}
}

// Score implements Scorer.
func (s *FallbackScorer) Score(ctx context.Context, v FeatureVector) (*Assessment, error) {
	assessment, err := s.primary.Score(ctx, v)
	if err == nil {
		return assessment, nil
	}
	if errors.Is(err, ErrNoAssessment) {
		return nil, err
	}

	s.logger.Warn().Err(err).Msg("model scoring failed, using heuristic")
	return s.fallback.Score(ctx, v)
}
