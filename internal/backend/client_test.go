package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/backend"
)

func TestClient_FetchDangerZones(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/danger-zones", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"danger_zones": [
				{"id": "The Dive Bar", "merchant_name": "The Dive Bar", "lat": 40.444, "lng": -79.943, "radius": 50.0, "merchant_category": "Food and Drink", "avg_regret_score": 0.82},
				{"id": "z2", "merchant_name": "Tech Store", "lat": 40.430, "lng": -79.950, "radius_m": 75.0, "category": "Electronics", "historical_regret_count": 12}
			]
		}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	zones, err := client.FetchDangerZones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, "The Dive Bar", zones[0].MerchantName)
	assert.Equal(t, 50.0, zones[0].RadiusM)
	assert.Equal(t, "Food and Drink", zones[0].Category)
	require.NotNil(t, zones[0].AvgRegretScore)
	assert.Equal(t, 0.82, *zones[0].AvgRegretScore)

	assert.Equal(t, 75.0, zones[1].RadiusM)
	assert.Equal(t, "Electronics", zones[1].Category)
	assert.Equal(t, 12, zones[1].HistoricalRegretCount)
}

func TestClient_FetchDangerZones_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	_, err := client.FetchDangerZones(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestClient_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 13.5, req["distance_to_merchant"])
		assert.Equal(t, 1.0, req["is_weekend"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"probability": 0.84,
			"should_nudge": true,
			"risk_level": "high",
			"threshold": 0.70,
			"model_type": "xgboost",
			"nudge_reason": "danger_zone_override"
		}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	resp, err := client.Predict(context.Background(), backend.PredictRequest{
		DistanceToMerchant: 13.5,
		HourOfDay:          22,
		IsWeekend:          1,
		BudgetUtilization:  0.95,
		MerchantRegretRate: 0.75,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.84, resp.Probability)
	assert.True(t, resp.ShouldNudge)
	assert.Equal(t, "xgboost", resp.ModelType)
	require.NotNil(t, resp.Threshold)
	assert.Equal(t, 0.70, *resp.Threshold)
	assert.Equal(t, "danger_zone_override", resp.NudgeReason)
}

func TestClient_Predict_MalformedProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"probability": 4.2, "model_type": "xgboost"}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	_, err := client.Predict(context.Background(), backend.PredictRequest{})
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestClient_Predict_UnparseableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	_, err := client.Predict(context.Background(), backend.PredictRequest{})
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestClient_CheckLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/check-location", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// camelCase keys are part of the contract.
		assert.Contains(t, req, "budgetUtilization")
		assert.Contains(t, req, "merchantCategory")

		w.Header().Set("Content-Type", "application/json")
		// intervention_id is a bare row number on the wire.
		_, _ = w.Write([]byte(`{
			"in_danger_zone": true,
			"predicted_probability": 0.81,
			"regret_score": 0.75,
			"risk_level": "high",
			"should_notify": true,
			"notification_message": "High regret risk nearby",
			"intervention_id": 42
		}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	resp, err := client.CheckLocation(context.Background(), backend.CheckLocationRequest{
		Lat:               40.444,
		Lng:               -79.943,
		BudgetUtilization: 0.95,
		MerchantCategory:  "Food and Drink",
	})
	require.NoError(t, err)

	assert.True(t, resp.InDangerZone)
	assert.True(t, resp.ShouldNotify)
	assert.Equal(t, "high", resp.RiskLevel)
	require.NotNil(t, resp.InterventionID)
	assert.Equal(t, backend.ID("42"), *resp.InterventionID)
}

func TestClient_CheckLocation_StringInterventionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"in_danger_zone": true, "intervention_id": "int_abc"}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	resp, err := client.CheckLocation(context.Background(), backend.CheckLocationRequest{})
	require.NoError(t, err)
	require.NotNil(t, resp.InterventionID)
	assert.Equal(t, backend.ID("int_abc"), *resp.InterventionID)
}

func TestClient_SubmitFeedback(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/intervention-feedback", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL})
	err := client.SubmitFeedback(context.Background(), "int_123", "helpful")
	require.NoError(t, err)

	assert.Equal(t, "int_123", received["intervention_id"])
	assert.Equal(t, "helpful", received["user_response"])
}
