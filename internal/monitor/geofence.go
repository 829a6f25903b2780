package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/zone"
)

// dwellResetAfter treats a zone as re-entered when the platform has been
// silent about it for this long. Exit callbacks are deliberately not
// registered, so this is the only way dwell tracking resets.
const dwellResetAfter = 5 * time.Minute

// GeofenceMonitor detects proximity through the platform's region-monitoring
// service: one entry-only circular region per zone. The platform wakes the
// process and delivers entry callbacks even while backgrounded.
type GeofenceMonitor struct {
	provider    GeofenceProvider
	permissions PermissionService
	registry    *zone.Registry
	logger      zerolog.Logger
	now         func() time.Time

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
	events chan ProximityEvent
}

// GeofenceMonitorConfig holds configuration for creating a GeofenceMonitor.
type GeofenceMonitorConfig struct {
	Provider    GeofenceProvider
	Permissions PermissionService
	Registry    *zone.Registry
	Logger      zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewGeofenceMonitor creates a geofence-backed proximity monitor.
func NewGeofenceMonitor(cfg GeofenceMonitorConfig) *GeofenceMonitor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &GeofenceMonitor{
		provider:    cfg.Provider,
		permissions: cfg.Permissions,
		registry:    cfg.Registry,
		logger:      cfg.Logger.With().Str("component", "geofence_monitor").Logger(),
		now:         now,
	}
}

// Start implements ProximityMonitor. It registers one region per catalog
// zone; the registered set is a snapshot, matching native geofencing
// semantics, and is re-registered by the session after a catalog refresh.
func (m *GeofenceMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrMonitorActive
	}

	if err := m.permissions.Ensure(ctx, PermissionLocation); err != nil {
		return err
	}
	if err := m.permissions.Ensure(ctx, PermissionNotifications); err != nil {
		return err
	}

	zones := m.registry.Zones()
	regions := make([]Region, 0, len(zones))
	byKey := make(map[string]zone.DangerZone, len(zones))
	for _, z := range zones {
		regions = append(regions, Region{
			ID:            z.Key(),
			Center:        z.Center(),
			RadiusM:       z.RadiusM,
			NotifyOnEntry: true,
			NotifyOnExit:  false,
		})
		byKey[z.Key()] = z
	}

	if err := m.provider.Register(ctx, regions); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.events = make(chan ProximityEvent, DefaultEventBuffer)
	m.active = true

	go m.run(runCtx, byKey)

	m.logger.Info().Int("regions", len(regions)).Msg("geofence monitoring started")
	return nil
}

func (m *GeofenceMonitor) run(ctx context.Context, byKey map[string]zone.DangerZone) {
	defer close(m.done)
	defer close(m.events)

	firstEntry := make(map[string]time.Time)
	lastSeen := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-m.provider.Entries():
			z, ok := byKey[entry.RegionID]
			if !ok {
				m.logger.Warn().Str("region", entry.RegionID).Msg("entry for unknown region")
				continue
			}

			now := entry.Timestamp
			if now.IsZero() {
				now = m.now()
			}

			// The platform may re-fire entries for a region we are still
			// inside; dwell accumulates until the zone goes quiet.
			if seen, ok := lastSeen[entry.RegionID]; !ok || now.Sub(seen) > dwellResetAfter {
				firstEntry[entry.RegionID] = now
			}
			lastSeen[entry.RegionID] = now

			coords := entry.Coordinates
			if !coords.Valid() || (coords == geo.Point{}) {
				coords = z.Center()
			}

			ev := ProximityEvent{
				Zone:        z,
				Coordinates: coords,
				DistanceM:   geo.Haversine(coords, z.Center()),
				DwellTimeS:  now.Sub(firstEntry[entry.RegionID]).Seconds(),
				Timestamp:   now,
			}

			select {
			case m.events <- ev:
			default:
				m.logger.Warn().Str("zone", z.Key()).Msg("event buffer full, dropping proximity event")
			}
		}
	}
}

// Stop implements ProximityMonitor.
func (m *GeofenceMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	m.cancel()
	<-m.done

	deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.provider.Deregister(deregCtx); err != nil {
		m.logger.Warn().Err(err).Msg("geofence deregister failed")
	}

	m.active = false
	m.logger.Info().Msg("geofence monitoring stopped")
}

// Active implements ProximityMonitor.
func (m *GeofenceMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Mode implements ProximityMonitor.
func (m *GeofenceMonitor) Mode() Mode {
	if m.Active() {
		return ModeGeofence
	}
	return ModeInactive
}

// Events implements ProximityMonitor.
func (m *GeofenceMonitor) Events() <-chan ProximityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

var _ ProximityMonitor = (*GeofenceMonitor)(nil)
