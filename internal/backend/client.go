package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pigeonline/pigeon/internal/provider/resilience"
	"github.com/pigeonline/pigeon/internal/zone"
)

const (
	// DefaultBaseURL is the default backend base URL.
	DefaultBaseURL = "http://localhost:5001/api/pigeon"

	// ProviderName identifies this collaborator.
	ProviderName = "pigeon-backend"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with
	// zero retries is created: the monitoring pipeline must never retry on
	// its own, the next qualifying proximity event is the retry.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// Client is a Pigeon backend API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:       ProviderName,
			Timeout:    timeout,
			MaxRetries: 0,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchDangerZones retrieves the danger zone catalog. Implements zone.Source.
func (c *Client) FetchDangerZones(ctx context.Context) ([]zone.DangerZone, error) {
	var result dangerZonesResponse
	if err := c.get(ctx, "/danger-zones", &result); err != nil {
		return nil, err
	}

	zones := make([]zone.DangerZone, 0, len(result.DangerZones))
	for _, d := range result.DangerZones {
		zones = append(zones, d.toZone())
	}
	return zones, nil
}

// Predict scores a feature vector with the backend's trained classifier.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	var result PredictResponse
	if err := c.post(ctx, "/predict", req, &result); err != nil {
		return nil, err
	}
	if result.Probability < 0 || result.Probability > 1 {
		return nil, fmt.Errorf("%w: probability %.4f out of range", ErrMalformedResponse, result.Probability)
	}
	return &result, nil
}

// CheckLocation asks the backend for a full server-side assessment of a
// coordinate, used by the ops spot-check surface.
func (c *Client) CheckLocation(ctx context.Context, req CheckLocationRequest) (*CheckLocationResponse, error) {
	var result CheckLocationResponse
	if err := c.post(ctx, "/check-location", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitFeedback reports a user's intervention response to the backend
// aggregator for global-model retraining. Best effort by contract; callers
// swallow the error.
func (c *Client) SubmitFeedback(ctx context.Context, interventionID, userResponse string) error {
	return c.post(ctx, "/intervention-feedback", feedbackRequest{
		InterventionID: interventionID,
		UserResponse:   userResponse,
	}, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrUnavailable, resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, req.URL.Path, err)
	}
	return nil
}

// toZone converts a wire entry to the domain model, preferring the explicit
// field spellings over the legacy ones.
func (d dangerZoneData) toZone() zone.DangerZone {
	radius := d.RadiusM
	if radius == 0 {
		radius = d.Radius
	}
	category := d.Category
	if category == "" {
		category = d.MerchantCategory
	}
	return zone.DangerZone{
		ID:                    d.ID,
		MerchantName:          d.MerchantName,
		Lat:                   d.Lat,
		Lng:                   d.Lng,
		RadiusM:               radius,
		Category:              category,
		HistoricalRegretCount: d.HistoricalRegretCount,
		AvgRegretScore:        d.AvgRegretScore,
	}
}
