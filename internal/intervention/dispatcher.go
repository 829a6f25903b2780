package intervention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/notify"
	"github.com/pigeonline/pigeon/internal/risk"
	"github.com/pigeonline/pigeon/internal/zone"
)

// DefaultCooldown is the minimum time between two notifications for the
// same zone.
const DefaultCooldown = 60 * time.Second

// Dispatcher decides whether a risk assessment becomes a delivered
// notification, enforcing a per-zone cooldown. Cooldown state is in-memory
// only; a fresh window on every boot is acceptable.
//
// Dispatcher is driven by the single serial event pipeline and needs no
// locking around its cooldown map.
type Dispatcher struct {
	notifier notify.Notifier
	repo     Repository
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	lastNotified map[string]time.Time
}

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	Notifier   notify.Notifier
	Repository Repository
	Logger     zerolog.Logger

	// Cooldown overrides DefaultCooldown when positive.
	Cooldown time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		notifier:     cfg.Notifier,
		repo:         cfg.Repository,
		cooldown:     cooldown,
		logger:       cfg.Logger.With().Str("component", "dispatcher").Logger(),
		now:          now,
		lastNotified: make(map[string]time.Time),
	}
}

// MaybeNotify applies the cooldown policy and, if permitted, delivers a
// notification and records an Intervention. Returns nil when nothing was
// dispatched: assessment below threshold, cooldown suppression, or delivery
// failure (logged and dropped, cooldown untouched so the next qualifying
// event retries naturally).
func (d *Dispatcher) MaybeNotify(ctx context.Context, z zone.DangerZone, a *risk.Assessment) *Intervention {
	if a == nil || !a.ShouldNotify {
		return nil
	}

	key := z.Key()
	if last, ok := d.lastNotified[key]; ok && d.now().Sub(last) < d.cooldown {
		d.logger.Debug().Str("zone", key).Msg("notification suppressed by cooldown")
		return nil
	}

	iv := &Intervention{
		ID:          "int_" + uuid.New().String()[:22],
		ZoneKey:     key,
		TriggeredAt: d.now(),
		Message:     messageFor(z, a),
		Probability: a.Probability,
		RiskLevel:   a.Level,
		ModelType:   a.ModelType,
	}

	err := d.notifier.Notify(ctx, notify.Notification{
		Title: fmt.Sprintf("Spending Alert: %s", z.Key()),
		Body:  iv.Message,
		Data: notify.NotificationData{
			Type:           notify.PayloadType,
			InterventionID: iv.ID,
			ZoneName:       key,
		},
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("zone", key).Msg("notification delivery failed, dropping")
		return nil
	}

	d.lastNotified[key] = d.now()

	if err := d.repo.Create(ctx, iv); err != nil {
		// The notification already reached the user; losing the record is
		// worth a log line, not an unwind.
		d.logger.Error().Err(err).Str("intervention_id", iv.ID).
			Msg("failed to persist intervention")
	}

	d.logger.Info().
		Str("zone", key).
		Str("intervention_id", iv.ID).
		Float64("probability", a.Probability).
		Str("risk_level", string(a.Level)).
		Msg("intervention dispatched")
	return iv
}

// messageFor picks a risk-specific message body.
func messageFor(z zone.DangerZone, a *risk.Assessment) string {
	switch a.Level {
	case risk.LevelHigh:
		return fmt.Sprintf("You're near %s, a strong spending trigger for you. Take a breath before you buy.", z.Key())
	case risk.LevelMedium:
		return fmt.Sprintf("Heads up: purchases at %s have led to regret before.", z.Key())
	default:
		return fmt.Sprintf("You're near %s. A moment of reflection can save the day.", z.Key())
	}
}
