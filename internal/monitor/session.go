package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/personalization"
	"github.com/pigeonline/pigeon/internal/risk"
	"github.com/pigeonline/pigeon/internal/zone"
)

// DefaultRefreshInterval is how often the session re-fetches the zone
// catalog while running.
const DefaultRefreshInterval = 15 * time.Minute

// State is the session lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateNoZones  State = "no_zones"
	StateWatching State = "watching"
)

// Metrics counts pipeline outcomes since the session started. All counters
// are safe for concurrent reads while the pipeline runs.
type Metrics struct {
	EventsReceived atomic.Int64
	Assessments    atomic.Int64
	Notifications  atomic.Int64
	Suppressions   atomic.Int64
	Fallbacks      atomic.Int64
	FailedClosed   atomic.Int64
}

// Snapshot returns the counters as a plain map for status reporting.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"events_received": m.EventsReceived.Load(),
		"assessments":     m.Assessments.Load(),
		"notifications":   m.Notifications.Load(),
		"suppressions":    m.Suppressions.Load(),
		"fallbacks":       m.Fallbacks.Load(),
		"failed_closed":   m.FailedClosed.Load(),
	}
}

// Session owns the monitoring lifecycle: it refreshes the zone catalog,
// runs a proximity monitor, and drives every proximity event through the
// assessment pipeline serially. One event is fully handled before the next
// is taken; the monitor's bounded buffer absorbs bursts.
type Session struct {
	monitor    ProximityMonitor
	registry   *zone.Registry
	scorer     risk.Scorer
	store      *personalization.Service
	dispatcher *intervention.Dispatcher
	budget     BudgetSource
	logger     zerolog.Logger
	refresh    time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	rewire chan (<-chan ProximityEvent)

	metrics Metrics
}

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	Monitor    ProximityMonitor
	Registry   *zone.Registry
	Scorer     risk.Scorer
	Store      *personalization.Service
	Dispatcher *intervention.Dispatcher
	Budget     BudgetSource
	Logger     zerolog.Logger

	// RefreshInterval between catalog refreshes. Default: 15m.
	RefreshInterval time.Duration
}

// NewSession creates a monitoring session.
func NewSession(cfg SessionConfig) *Session {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	budget := cfg.Budget
	if budget == nil {
		budget = StaticBudget(0)
	}
	return &Session{
		monitor:    cfg.Monitor,
		registry:   cfg.Registry,
		scorer:     cfg.Scorer,
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		budget:     budget,
		logger:     cfg.Logger.With().Str("component", "monitor_session").Logger(),
		refresh:    refresh,
		state:      StateStopped,
	}
}

// Start refreshes the catalog and begins monitoring. Calling Start on a
// running session is a no-op. Permission refusal from the monitor is
// returned to the caller; nothing is left running in that case.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return nil
	}

	// A failed refresh is tolerated when a previous catalog exists; a
	// danger zone list that is merely stale still protects the user.
	if err := s.registry.Refresh(ctx); err != nil && s.registry.Count() == 0 {
		return err
	}
	if s.registry.Count() == 0 {
		s.state = StateNoZones
		s.logger.Info().Msg("no danger zones found, monitoring idle")
		return nil
	}

	if err := s.monitor.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.rewire = make(chan (<-chan ProximityEvent))
	s.state = StateWatching

	go s.run(runCtx, s.monitor.Events())
	go s.refreshLoop(runCtx)

	s.logger.Info().
		Int("zones", s.registry.Count()).
		Str("mode", string(s.monitor.Mode())).
		Msg("monitoring session started")
	return nil
}

// Stop halts monitoring. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNoZones {
		s.state = StateStopped
		return
	}
	if s.state != StateWatching {
		return
	}

	s.cancel()
	<-s.done
	s.monitor.Stop()
	s.state = StateStopped
	s.logger.Info().Msg("monitoring session stopped")
}

// State reports the session lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode reports the active detection strategy.
func (s *Session) Mode() Mode {
	return s.monitor.Mode()
}

// Metrics returns the session's pipeline counters.
func (s *Session) Metrics() *Metrics {
	return &s.metrics
}

func (s *Session) run(ctx context.Context, events <-chan ProximityEvent) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case events = <-s.rewire:
		case ev, ok := <-events:
			if !ok {
				// Monitor restarting after a catalog refresh; block on
				// the nil channel until rewired or shut down.
				events = nil
				continue
			}
			s.handle(ctx, ev)
		}
	}
}

// handle runs one proximity event through the full pipeline.
func (s *Session) handle(ctx context.Context, ev ProximityEvent) {
	s.metrics.EventsReceived.Add(1)

	tracer := otel.Tracer("pigeon/monitor")
	ctx, span := tracer.Start(ctx, "session.handle")
	span.SetAttributes(
		attribute.String("zone.key", ev.Zone.Key()),
		attribute.Float64("zone.distance_m", ev.DistanceM),
	)
	defer span.End()

	utilization, err := s.budget.Utilization(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("budget lookup failed, assuming zero utilization")
		utilization = 0
	}

	key := ev.Zone.Key()
	vector := risk.FeatureVector{
		DistanceM:          ev.DistanceM,
		HourOfDay:          ev.Timestamp.Hour(),
		IsWeekend:          isWeekend(ev.Timestamp),
		BudgetUtilization:  utilization,
		MerchantRegretRate: s.store.Get(ctx, key),
		DwellTimeS:         ev.DwellTimeS,
	}

	assessment, err := s.scorer.Score(ctx, vector)
	if err != nil {
		// Unusable model output produces no assessment at all; better a
		// missed nudge than one based on a guess.
		if errors.Is(err, risk.ErrNoAssessment) {
			s.metrics.FailedClosed.Add(1)
			s.logger.Warn().Str("zone", key).Msg("no usable assessment, skipping event")
			return
		}
		s.logger.Error().Err(err).Str("zone", key).Msg("risk scoring failed")
		return
	}

	s.metrics.Assessments.Add(1)
	if assessment.ModelType == risk.ModelTypeHeuristic {
		s.metrics.Fallbacks.Add(1)
	}

	if iv := s.dispatcher.MaybeNotify(ctx, ev.Zone, assessment); iv != nil {
		s.metrics.Notifications.Add(1)
		span.SetAttributes(attribute.String("intervention.id", iv.ID))
	} else if assessment.ShouldNotify {
		s.metrics.Suppressions.Add(1)
	}
}

// refreshLoop keeps the catalog current while the session runs. It never
// blocks the event pipeline; a refresh failure keeps the previous catalog.
func (s *Session) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := s.registry.Refresh(refreshCtx)
			cancel()
			if err != nil {
				continue
			}
			if s.monitor.Mode() == ModeGeofence {
				s.reregister(ctx)
			}
		}
	}
}

// reregister restarts a geofence monitor so the registered region set
// tracks the refreshed catalog. Polling mode needs none of this; it reads
// the registry live. The session lock keeps Stop from interleaving with
// the restart; a refresh tick that lost the race to Stop does nothing.
func (s *Session) reregister(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A stale tick from a previous run carries a canceled context.
	if s.state != StateWatching || ctx.Err() != nil {
		return
	}

	s.monitor.Stop()
	if err := s.monitor.Start(ctx); err != nil {
		// The monitor could not come back, so nothing is being watched.
		s.logger.Error().Err(err).Msg("monitor restart after catalog refresh failed, stopping session")
		s.cancel()
		s.state = StateStopped
		return
	}
	select {
	case s.rewire <- s.monitor.Events():
	case <-ctx.Done():
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
