// Package notify delivers local notifications to the host platform.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PayloadType tags intervention notifications so a tap can be routed back
// into the feedback prompt.
const PayloadType = "pigeon-intervention"

// Notification is the payload handed to the host platform.
type Notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

// NotificationData carries the routing metadata for a notification tap.
type NotificationData struct {
	Type           string `json:"type"`
	InterventionID string `json:"interventionId"`
	ZoneName       string `json:"zoneName"`
}

// Notifier delivers a local notification. Implementations must be safe for
// use from the single pipeline goroutine; delivery failures are returned to
// the caller, which logs and drops them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier posts notifications to a host-platform endpoint. Delivery
// is one attempt only; a failed delivery is retried naturally by the next
// qualifying proximity event once the cooldown allows.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no host-platform
// endpoint is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info().
		Str("title", n.Title).
		Str("body", n.Body).
		Str("intervention_id", n.Data.InterventionID).
		Str("zone", n.Data.ZoneName).
		Msg("notification delivered")
	return nil
}

// CaptureNotifier records notifications in memory for tests.
type CaptureNotifier struct {
	mu        sync.Mutex
	delivered []Notification

	// Err, when set, is returned by Notify to simulate delivery failure.
	Err error
}

// NewCaptureNotifier creates a capturing notifier.
func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{}
}

// Notify implements Notifier.
func (c *CaptureNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.delivered = append(c.delivered, n)
	return nil
}

// Delivered returns a copy of all delivered notifications.
func (c *CaptureNotifier) Delivered() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.delivered))
	copy(out, c.delivered)
	return out
}

var (
	_ Notifier = (*WebhookNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*CaptureNotifier)(nil)
)
