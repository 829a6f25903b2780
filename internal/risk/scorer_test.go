package risk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/backend"
	"github.com/pigeonline/pigeon/internal/risk"
)

func TestLevelForProbability_Bands(t *testing.T) {
	assert.Equal(t, risk.LevelLow, risk.LevelForProbability(0.0))
	assert.Equal(t, risk.LevelLow, risk.LevelForProbability(0.29))
	assert.Equal(t, risk.LevelMedium, risk.LevelForProbability(0.30))
	assert.Equal(t, risk.LevelMedium, risk.LevelForProbability(0.69))
	assert.Equal(t, risk.LevelHigh, risk.LevelForProbability(0.70))
	assert.Equal(t, risk.LevelHigh, risk.LevelForProbability(1.0))
}

func modelServer(t *testing.T, body string, status int) *backend.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
}

func TestModelScorer_Score(t *testing.T) {
	client := modelServer(t, `{"probability": 0.84, "should_nudge": true, "risk_level": "high", "threshold": 0.70, "model_type": "xgboost"}`, http.StatusOK)
	scorer := risk.NewModelScorer(client, 0)

	a, err := scorer.Score(context.Background(), risk.FeatureVector{
		DistanceM:          13,
		BudgetUtilization:  0.95,
		MerchantRegretRate: 0.75,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.84, a.Probability)
	assert.Equal(t, risk.LevelHigh, a.Level)
	assert.True(t, a.ShouldNotify)
	assert.Equal(t, risk.ModelTypeML, a.ModelType)
}

func TestModelScorer_NotifyExactlyAtThreshold(t *testing.T) {
	client := modelServer(t, `{"probability": 0.70, "model_type": "xgboost"}`, http.StatusOK)
	scorer := risk.NewModelScorer(client, 0)

	a, err := scorer.Score(context.Background(), risk.FeatureVector{})
	require.NoError(t, err)
	assert.True(t, a.ShouldNotify, "probability equal to threshold must notify")

	client = modelServer(t, `{"probability": 0.6999, "model_type": "xgboost"}`, http.StatusOK)
	a, err = risk.NewModelScorer(client, 0).Score(context.Background(), risk.FeatureVector{})
	require.NoError(t, err)
	assert.False(t, a.ShouldNotify)
}

func TestModelScorer_ResponseThresholdOverridesDefault(t *testing.T) {
	client := modelServer(t, `{"probability": 0.75, "threshold": 0.80, "model_type": "xgboost"}`, http.StatusOK)

	a, err := risk.NewModelScorer(client, 0).Score(context.Background(), risk.FeatureVector{})
	require.NoError(t, err)
	assert.False(t, a.ShouldNotify, "server threshold 0.80 must win over the 0.70 default")
	assert.Equal(t, risk.LevelHigh, a.Level)
}

func TestModelScorer_UnavailableAndMalformed(t *testing.T) {
	down := modelServer(t, ``, http.StatusServiceUnavailable)
	_, err := risk.NewModelScorer(down, 0).Score(context.Background(), risk.FeatureVector{})
	assert.ErrorIs(t, err, risk.ErrModelUnavailable)

	garbage := modelServer(t, `{"probability": 12.0}`, http.StatusOK)
	_, err = risk.NewModelScorer(garbage, 0).Score(context.Background(), risk.FeatureVector{})
	assert.ErrorIs(t, err, risk.ErrNoAssessment)
}

func TestFallbackScorer_DegradesToHeuristicWhenModelDown(t *testing.T) {
	down := modelServer(t, ``, http.StatusServiceUnavailable)
	scorer := risk.WithFallback(
		risk.NewModelScorer(down, 0),
		risk.NewHeuristicScorer(0),
		zerolog.Nop(),
	)

	a, err := scorer.Score(context.Background(), risk.FeatureVector{
		DistanceM:          13,
		BudgetUtilization:  0.95,
		MerchantRegretRate: 0.75,
	})
	require.NoError(t, err)
	assert.Equal(t, risk.ModelTypeHeuristic, a.ModelType)
	assert.Equal(t, risk.LevelHigh, a.Level)
	assert.True(t, a.ShouldNotify)
}

func TestFallbackScorer_FailsClosedOnMalformedModelOutput(t *testing.T) {
	garbage := modelServer(t, `{"probability": -3}`, http.StatusOK)
	scorer := risk.WithFallback(
		risk.NewModelScorer(garbage, 0),
		risk.NewHeuristicScorer(0),
		zerolog.Nop(),
	)

	_, err := scorer.Score(context.Background(), risk.FeatureVector{})
	assert.ErrorIs(t, err, risk.ErrNoAssessment,
		"a malformed model answer is no assessment, not a license to guess")
}
