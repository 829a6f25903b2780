package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/zone"
)

// PollingMonitor is the fallback strategy when background region monitoring
// is unavailable: it subscribes to periodic position updates and scans the
// zone catalog on each sample. Because it consults the registry live,
// catalog refreshes take effect without a restart.
type PollingMonitor struct {
	source      LocationSource
	permissions PermissionService
	registry    *zone.Registry
	logger      zerolog.Logger
	opts        WatchOptions

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
	events chan ProximityEvent
}

// PollingMonitorConfig holds configuration for creating a PollingMonitor.
type PollingMonitorConfig struct {
	Source      LocationSource
	Permissions PermissionService
	Registry    *zone.Registry
	Logger      zerolog.Logger

	// Interval between position samples. Default: 30s.
	Interval time.Duration

	// MinDisplacementM filters samples that barely moved. Default: 50m.
	MinDisplacementM float64
}

// NewPollingMonitor creates a polling-backed proximity monitor.
func NewPollingMonitor(cfg PollingMonitorConfig) *PollingMonitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	displacement := cfg.MinDisplacementM
	if displacement <= 0 {
		displacement = DefaultMinDisplacementM
	}
	return &PollingMonitor{
		source:      cfg.Source,
		permissions: cfg.Permissions,
		registry:    cfg.Registry,
		logger:      cfg.Logger.With().Str("component", "polling_monitor").Logger(),
		opts: WatchOptions{
			Interval:         interval,
			MinDisplacementM: displacement,
		},
	}
}

// Start implements ProximityMonitor.
func (m *PollingMonitor) Start(ctx context.Context) error {
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

	runCtx, cancel := context.WithCancel(context.Background())

	positions, err := m.source.Watch(runCtx, m.opts)
	if err != nil {
		cancel()
		return err
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	m.events = make(chan ProximityEvent, DefaultEventBuffer)
	m.active = true

	go m.run(positions)

	m.logger.Info().
		Dur("interval", m.opts.Interval).
		Float64("min_displacement_m", m.opts.MinDisplacementM).
		Msg("polling monitoring started")
	return nil
}

func (m *PollingMonitor) run(positions <-chan Position) {
	defer close(m.done)
	defer close(m.events)

	// insideSince debounces continuous dwell: one logical entry per stay,
	// not one event per poll sample.
	insideSince := make(map[string]time.Time)
	var lastProcessed *geo.Point

	for pos := range positions {
		if lastProcessed != nil &&
			geo.Haversine(*lastProcessed, pos.Point) < m.opts.MinDisplacementM {
			continue
		}
		p := pos.Point
		lastProcessed = &p

		matches := m.registry.ZonesWithin(pos.Point, 0)
		current := make(map[string]struct{}, len(matches))

		for _, match := range matches {
			key := match.Zone.Key()
			current[key] = struct{}{}

			if _, inside := insideSince[key]; inside {
				continue
			}
			insideSince[key] = pos.Timestamp

			ev := ProximityEvent{
				Zone:        match.Zone,
				Coordinates: pos.Point,
				DistanceM:   match.DistanceM,
				DwellTimeS:  0,
				Timestamp:   pos.Timestamp,
			}
			select {
			case m.events <- ev:
			default:
				m.logger.Warn().Str("zone", key).Msg("event buffer full, dropping proximity event")
			}
		}

		// Leaving a zone arms the next entry transition.
		for key := range insideSince {
			if _, still := current[key]; !still {
				delete(insideSince, key)
			}
		}
	}
}

// Stop implements ProximityMonitor.
func (m *PollingMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	m.cancel()
	<-m.done
	m.active = false
	m.logger.Info().Msg("polling monitoring stopped")
}

// Active implements ProximityMonitor.
func (m *PollingMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Mode implements ProximityMonitor.
func (m *PollingMonitor) Mode() Mode {
	if m.Active() {
		return ModePolling
	}
	return ModeInactive
}

// Events implements ProximityMonitor.
func (m *PollingMonitor) Events() <-chan ProximityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

var _ ProximityMonitor = (*PollingMonitor)(nil)
