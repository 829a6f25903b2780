package intervention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/personalization"
	"github.com/pigeonline/pigeon/internal/risk"
)

type recordingSubmitter struct {
	calls chan string
	err   error
}

func newRecordingSubmitter(err error) *recordingSubmitter {
	return &recordingSubmitter{calls: make(chan string, 4), err: err}
}

func (s *recordingSubmitter) SubmitFeedback(_ context.Context, interventionID, userResponse string) error {
	s.calls <- interventionID + ":" + userResponse
	return s.err
}

func seedIntervention(t *testing.T, repo intervention.Repository, zoneKey string) *intervention.Intervention {
	t.Helper()
	iv := &intervention.Intervention{
		ID:          "int_test",
		ZoneKey:     zoneKey,
		TriggeredAt: time.Now(),
		Message:     "test",
		Probability: 0.8,
		RiskLevel:   risk.LevelHigh,
		ModelType:   risk.ModelTypeML,
	}
	require.NoError(t, repo.Create(context.Background(), iv))
	return iv
}

func newLoop(repo intervention.Repository, store *personalization.Service, submitter intervention.FeedbackSubmitter) *intervention.FeedbackLoop {
	return intervention.NewFeedbackLoop(intervention.FeedbackLoopConfig{
		Repository: repo,
		Store:      store,
		Submitter:  submitter,
		Logger:     zerolog.Nop(),
	})
}

func newStore() *personalization.Service {
	return personalization.NewService(personalization.ServiceConfig{
		Repository: personalization.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
}

func TestFeedbackLoop_NotHelpfulUpdatesScore(t *testing.T) {
	repo := intervention.NewInMemoryRepository()
	store := newStore()
	loop := newLoop(repo, store, nil)
	ctx := context.Background()

	seedIntervention(t, repo, "Tech Store")
	require.NoError(t, loop.Respond(ctx, "int_test", intervention.ResponseNotHelpful))

	// 0.75*0.8 + 0.0*0.2 = 0.60
	assert.InDelta(t, 0.60, store.Get(ctx, "Tech Store"), 1e-9)

	stored, err := repo.Get(ctx, "int_test")
	require.NoError(t, err)
	require.NotNil(t, stored.UserResponse)
	assert.Equal(t, intervention.ResponseNotHelpful, *stored.UserResponse)
}

func TestFeedbackLoop_IgnoredSkipsStoreUpdate(t *testing.T) {
	repo := intervention.NewInMemoryRepository()
	store := newStore()
	loop := newLoop(repo, store, nil)
	ctx := context.Background()

	seedIntervention(t, repo, "The Dive Bar")
	require.NoError(t, loop.Respond(ctx, "int_test", intervention.ResponseIgnored))

	assert.Equal(t, 0.75, store.Get(ctx, "The Dive Bar"), "ignored must not move the score")
}

func TestFeedbackLoop_RespondOnce(t *testing.T) {
	repo := intervention.NewInMemoryRepository()
	loop := newLoop(repo, newStore(), nil)
	ctx := context.Background()

	seedIntervention(t, repo, "The Dive Bar")
	require.NoError(t, loop.Respond(ctx, "int_test", intervention.ResponseHelpful))

	err := loop.Respond(ctx, "int_test", intervention.ResponseNotHelpful)
	assert.ErrorIs(t, err, intervention.ErrAlreadyResponded)
}

func TestFeedbackLoop_UnknownIntervention(t *testing.T) {
	loop := newLoop(intervention.NewInMemoryRepository(), newStore(), nil)
	err := loop.Respond(context.Background(), "int_missing", intervention.ResponseHelpful)
	assert.ErrorIs(t, err, intervention.ErrInterventionNotFound)
}

func TestFeedbackLoop_InvalidResponse(t *testing.T) {
	loop := newLoop(intervention.NewInMemoryRepository(), newStore(), nil)
	err := loop.Respond(context.Background(), "int_test", intervention.Response("meh"))
	assert.ErrorIs(t, err, intervention.ErrInvalidResponse)
}

func TestFeedbackLoop_SubmitsToAggregator(t *testing.T) {
	repo := intervention.NewInMemoryRepository()
	submitter := newRecordingSubmitter(nil)
	loop := newLoop(repo, newStore(), submitter)

	seedIntervention(t, repo, "The Dive Bar")
	require.NoError(t, loop.Respond(context.Background(), "int_test", intervention.ResponseHelpful))

	select {
	case call := <-submitter.calls:
		assert.Equal(t, "int_test:helpful", call)
	case <-time.After(2 * time.Second):
		t.Fatal("aggregator submission never happened")
	}
}

func TestFeedbackLoop_AggregatorFailureIsSwallowed(t *testing.T) {
	repo := intervention.NewInMemoryRepository()
	store := newStore()
	submitter := newRecordingSubmitter(errors.New("aggregator down"))
	loop := newLoop(repo, store, submitter)
	ctx := context.Background()

	seedIntervention(t, repo, "Tech Store")
	require.NoError(t, loop.Respond(ctx, "int_test", intervention.ResponseNotHelpful),
		"aggregator failure must never surface to the user")

	// The local update still happened.
	assert.InDelta(t, 0.60, store.Get(ctx, "Tech Store"), 1e-9)

	select {
	case <-submitter.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("aggregator submission never attempted")
	}
}
