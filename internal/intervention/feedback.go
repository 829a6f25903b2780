package intervention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/personalization"
)

// FeedbackSubmitter reports a response to the backend aggregator for
// global-model retraining. The backend client implements it.
type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, interventionID, userResponse string) error
}

// FeedbackLoop routes a user's response to an intervention back into the
// personalization store and, best-effort, to the backend aggregator.
type FeedbackLoop struct {
	repo      Repository
	store     *personalization.Service
	submitter FeedbackSubmitter
	logger    zerolog.Logger
	now       func() time.Time

	// submitTimeout bounds the fire-and-forget aggregator call.
	submitTimeout time.Duration
}

// FeedbackLoopConfig holds configuration for creating a FeedbackLoop.
type FeedbackLoopConfig struct {
	Repository Repository
	Store      *personalization.Service

	// Submitter may be nil, in which case no aggregator submission happens.
	Submitter FeedbackSubmitter

	Logger zerolog.Logger

	// SubmitTimeout bounds the aggregator call. Default: 10s.
	SubmitTimeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewFeedbackLoop creates a new feedback loop.
func NewFeedbackLoop(cfg FeedbackLoopConfig) *FeedbackLoop {
	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &FeedbackLoop{
		repo:          cfg.Repository,
		store:         cfg.Store,
		submitter:     cfg.Submitter,
		logger:        cfg.Logger.With().Str("component", "feedback").Logger(),
		now:           now,
		submitTimeout: timeout,
	}
}

// Respond records the user's response on the matching intervention and
// applies it to the personalization store. Each intervention accepts exactly
// one response. The aggregator submission is fire-and-forget: its failure is
// swallowed and never blocks or fails the local update.
func (f *FeedbackLoop) Respond(ctx context.Context, interventionID string, response Response) error {
	if !response.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResponse, response)
	}

	iv, err := f.repo.Get(ctx, interventionID)
	if err != nil {
		return err
	}

	if err := f.repo.RecordResponse(ctx, interventionID, response, f.now()); err != nil {
		return err
	}

	if score, ok := response.FeedbackScore(); ok {
		if _, err := f.store.Update(ctx, iv.ZoneKey, score); err != nil {
			// The response is recorded; a failed score update only costs
			// one learning step.
			f.logger.Warn().Err(err).Str("merchant", iv.ZoneKey).
				Msg("regret score update failed")
		}
	}

	if f.submitter != nil {
		go f.submit(interventionID, response)
	}

	f.logger.Info().
		Str("intervention_id", interventionID).
		Str("response", string(response)).
		Msg("intervention feedback recorded")
	return nil
}

// submit runs detached from the caller's context so a canceled request
// cannot abort the aggregator POST mid-flight.
func (f *FeedbackLoop) submit(interventionID string, response Response) {
	ctx, cancel := context.WithTimeout(context.Background(), f.submitTimeout)
	defer cancel()

	if err := f.submitter.SubmitFeedback(ctx, interventionID, string(response)); err != nil {
		f.logger.Warn().Err(err).Str("intervention_id", interventionID).
			Msg("aggregator feedback submission failed")
	}
}
