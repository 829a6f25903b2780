package personalization_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/personalization"
)

func newService(t *testing.T) *personalization.Service {
	t.Helper()
	return personalization.NewService(personalization.ServiceConfig{
		Repository: personalization.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
}

func TestService_Get_UnseenMerchantReturnsDefault(t *testing.T) {
	svc := newService(t)
	assert.Equal(t, 0.75, svc.Get(context.Background(), "Never Visited"))
}

func TestService_Update_EMA(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// Starting from the 0.75 baseline, one not_helpful (0.0) lands at 0.60.
	updated, err := svc.Update(ctx, "Tech Store", 0.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, updated, 1e-9)
	assert.InDelta(t, 0.60, svc.Get(ctx, "Tech Store"), 1e-9)
}

func TestService_Update_ConvergesUpwardBounded(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	prev := svc.Get(ctx, "The Dive Bar")
	for i := 0; i < 50; i++ {
		score, err := svc.Update(ctx, "The Dive Bar", 1.0)
		require.NoError(t, err)
		assert.Greater(t, score, prev, "repeated helpful feedback must drive the score up")
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
	assert.Greater(t, prev, 0.99)
}

func TestService_Update_ConvergesDownwardBounded(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	prev := svc.Get(ctx, "The Dive Bar")
	for i := 0; i < 50; i++ {
		score, err := svc.Update(ctx, "The Dive Bar", 0.0)
		require.NoError(t, err)
		assert.Less(t, score, prev, "repeated not_helpful feedback must drive the score down")
		assert.GreaterOrEqual(t, score, 0.0)
		prev = score
	}
	assert.Less(t, prev, 0.01)
}

func TestService_Update_RejectsOutOfRangeFeedback(t *testing.T) {
	svc := newService(t)
	_, err := svc.Update(context.Background(), "Tech Store", 1.5)
	assert.Error(t, err)
}

type failingRepo struct{}

func (failingRepo) Get(context.Context, string) (*personalization.Record, error) {
	return nil, errors.New("storage down")
}

func (failingRepo) Upsert(context.Context, *personalization.Record) error {
	return errors.New("storage down")
}

func (failingRepo) List(context.Context) ([]*personalization.Record, error) {
	return nil, errors.New("storage down")
}

func TestService_Get_StorageFailureDegradesToDefault(t *testing.T) {
	svc := personalization.NewService(personalization.ServiceConfig{
		Repository: failingRepo{},
		Logger:     zerolog.Nop(),
	})
	assert.Equal(t, 0.75, svc.Get(context.Background(), "The Dive Bar"))
}
