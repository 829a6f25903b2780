package personalization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service provides regret score reads and online feedback updates.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// ServiceConfig holds configuration for creating a Service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewService creates a new personalization service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger.With().Str("component", "personalization").Logger(),
		now:    now,
	}
}

// Get returns the stored regret score for a merchant, or DefaultRegretScore
// if the merchant has never been seen. Repository read failures degrade to
// the default so a storage hiccup never stalls the event pipeline.
func (s *Service) Get(ctx context.Context, merchantKey string) float64 {
	record, err := s.repo.Get(ctx, merchantKey)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("merchant", merchantKey).
				Msg("regret score read failed, using default")
		}
		return DefaultRegretScore
	}
	return record.RegretScore
}

// Update blends one feedback sample into the merchant's regret score with an
// exponential moving average and persists the result. feedbackScore must be
// in [0,1]; both terms are in [0,1] and the weights sum to 1, so the new
// score stays in range. The update is synchronous and local.
func (s *Service) Update(ctx context.Context, merchantKey string, feedbackScore float64) (float64, error) {
	if feedbackScore < 0 || feedbackScore > 1 {
		return 0, fmt.Errorf("feedback score %.2f out of range [0,1]", feedbackScore)
	}

	old := s.Get(ctx, merchantKey)
	updated := old*(1-LearningRate) + feedbackScore*LearningRate

	record := &Record{
		MerchantKey: merchantKey,
		RegretScore: updated,
		LastUpdated: s.now(),
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return 0, fmt.Errorf("persist regret score for %q: %w", merchantKey, err)
	}

	s.logger.Debug().
		Str("merchant", merchantKey).
		Float64("old", old).
		Float64("new", updated).
		Msg("regret score updated")
	return updated, nil
}

// Records returns all stored records for the ops surface.
func (s *Service) Records(ctx context.Context) ([]*Record, error) {
	return s.repo.List(ctx)
}
