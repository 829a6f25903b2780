package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/pigeonline/pigeon/internal/backend"
)

// ModelScorer scores feature vectors with the backend's trained binary
// classifier via POST /predict.
type ModelScorer struct {
	client    *backend.Client
	threshold float64
}

// NewModelScorer creates a model-backed scorer. A threshold of 0 uses
// DefaultThreshold; a threshold carried in the backend response overrides it
// for that assessment.
func NewModelScorer(client *backend.Client, threshold float64) *ModelScorer {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &ModelScorer{client: client, threshold: threshold}
}

// Score implements Scorer.
func (s *ModelScorer) Score(ctx context.Context, v FeatureVector) (*Assessment, error) {
	isWeekend := 0
	if v.IsWeekend {
		isWeekend = 1
	}

	resp, err := s.client.Predict(ctx, backend.PredictRequest{
		DistanceToMerchant: v.DistanceM,
		HourOfDay:          v.HourOfDay,
		IsWeekend:          isWeekend,
		BudgetUtilization:  v.BudgetUtilization,
		MerchantRegretRate: v.MerchantRegretRate,
		DwellTime:          v.DwellTimeS,
	})
	if err != nil {
		if errors.Is(err, backend.ErrMalformedResponse) {
			return nil, fmt.Errorf("%w: %v", ErrNoAssessment, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	threshold := s.threshold
	if resp.Threshold != nil && *resp.Threshold > 0 {
		threshold = *resp.Threshold
	}

	return newAssessment(resp.Probability, threshold, ModelTypeML, resp.NudgeReason), nil
}
