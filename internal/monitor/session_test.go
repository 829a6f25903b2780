package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/notify"
	"github.com/pigeonline/pigeon/internal/personalization"
	"github.com/pigeonline/pigeon/internal/risk"
	"github.com/pigeonline/pigeon/internal/zone"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sessionFixture struct {
	session  *Session
	source   *ChannelLocationSource
	notifier *notify.CaptureNotifier
	clock    *fakeClock
}

func newSessionFixture(t *testing.T, zones []zone.DangerZone, budget BudgetSource) *sessionFixture {
	t.Helper()

	// A Wednesday at noon, clear of late-night and weekend bonuses.
	clock := newFakeClock(time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC))

	registry := zone.NewRegistry(staticSource{zones: zones}, zerolog.Nop())
	source := NewChannelLocationSource()
	monitor := NewPollingMonitor(PollingMonitorConfig{
		Source:      source,
		Permissions: AllPermissionsGranted(),
		Registry:    registry,
		Logger:      zerolog.Nop(),
	})

	store := personalization.NewService(personalization.ServiceConfig{
		Repository: personalization.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})

	notifier := notify.NewCaptureNotifier()
	dispatcher := intervention.NewDispatcher(intervention.DispatcherConfig{
		Notifier:   notifier,
		Repository: intervention.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})

	session := NewSession(SessionConfig{
		Monitor:    monitor,
		Registry:   registry,
		Scorer:     risk.NewHeuristicScorer(0),
		Store:      store,
		Dispatcher: dispatcher,
		Budget:     budget,
		Logger:     zerolog.Nop(),
	})

	return &sessionFixture{
		session:  session,
		source:   source,
		notifier: notifier,
		clock:    clock,
	}
}

func diveBar() zone.DangerZone {
	return zone.DangerZone{
		ID:           "dz_divebar",
		MerchantName: "The Dive Bar",
		Lat:          40.444,
		Lng:          -79.943,
		RadiusM:      50,
		Category:     "bar",
	}
}

// A point roughly 13 meters from The Dive Bar's center.
func nearDiveBar() geo.Point {
	return geo.Point{Lat: 40.4441, Lng: -79.9431}
}

// A point a few hundred meters away, outside every zone.
func awayFromDiveBar() geo.Point {
	return geo.Point{Lat: 40.448, Lng: -79.943}
}

func (f *sessionFixture) push(p geo.Point) {
	f.source.Push(Position{Point: p, Timestamp: f.clock.Now()})
}

func (f *sessionFixture) waitMetric(t *testing.T, name string, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.session.Metrics().Snapshot()[name] >= want
	}, 2*time.Second, 10*time.Millisecond, "metric %s never reached %d", name, want)
}

func TestSessionNotifiesInHighRiskZone(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.95))

	require.NoError(t, f.session.Start(context.Background()))
	defer f.session.Stop()
	require.Equal(t, StateWatching, f.session.State())

	// Unknown merchant regret defaults to 0.75; with budget nearly spent
	// and the user 13m from the door, the heuristic lands in the high band.
	f.push(nearDiveBar())
	f.waitMetric(t, "notifications", 1)

	delivered := f.notifier.Delivered()
	require.Len(t, delivered, 1)
	require.Equal(t, notify.PayloadType, delivered[0].Data.Type)
	require.Equal(t, "The Dive Bar", delivered[0].Data.ZoneName)
	require.NotEmpty(t, delivered[0].Data.InterventionID)
}

func TestSessionCooldownSuppressesRepeatAlerts(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.95))

	require.NoError(t, f.session.Start(context.Background()))
	defer f.session.Stop()

	f.push(nearDiveBar())
	f.waitMetric(t, "notifications", 1)

	// Leave and come straight back 10 seconds later: the re-entry scores
	// high again but lands inside the cooldown window.
	f.push(awayFromDiveBar())
	f.clock.Advance(10 * time.Second)
	f.push(nearDiveBar())
	f.waitMetric(t, "suppressions", 1)
	require.Len(t, f.notifier.Delivered(), 1)

	// Past the window, the next re-entry notifies again.
	f.push(awayFromDiveBar())
	f.clock.Advance(65 * time.Second)
	f.push(nearDiveBar())
	f.waitMetric(t, "notifications", 2)
	require.Len(t, f.notifier.Delivered(), 2)
}

func TestSessionStartNoOpWhenActive(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.5))

	require.NoError(t, f.session.Start(context.Background()))
	defer f.session.Stop()

	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, StateWatching, f.session.State())
}

func TestSessionStopIdempotent(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.5))

	require.NoError(t, f.session.Start(context.Background()))
	f.session.Stop()
	f.session.Stop()
	require.Equal(t, StateStopped, f.session.State())
}

func TestSessionNoZonesIdles(t *testing.T) {
	f := newSessionFixture(t, nil, StaticBudget(0.5))

	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, StateNoZones, f.session.State())
	require.Equal(t, ModeInactive, f.session.Mode())

	f.session.Stop()
	require.Equal(t, StateStopped, f.session.State())
}

func TestSessionPermissionDeniedPropagates(t *testing.T) {
	registry := zone.NewRegistry(staticSource{zones: []zone.DangerZone{diveBar()}}, zerolog.Nop())
	monitor := NewPollingMonitor(PollingMonitorConfig{
		Source:      NewChannelLocationSource(),
		Permissions: StaticPermissions{LocationGranted: false},
		Registry:    registry,
		Logger:      zerolog.Nop(),
	})

	session := NewSession(SessionConfig{
		Monitor:    monitor,
		Registry:   registry,
		Scorer:     risk.NewHeuristicScorer(0),
		Store:      personalization.NewService(personalization.ServiceConfig{Repository: personalization.NewInMemoryRepository(), Logger: zerolog.Nop()}),
		Dispatcher: intervention.NewDispatcher(intervention.DispatcherConfig{Notifier: notify.NewCaptureNotifier(), Repository: intervention.NewInMemoryRepository(), Logger: zerolog.Nop()}),
		Budget:     StaticBudget(0.5),
		Logger:     zerolog.Nop(),
	})

	require.ErrorIs(t, session.Start(context.Background()), ErrPermissionDenied)
	require.Equal(t, StateStopped, session.State())
}

type noAssessmentScorer struct{}

func (noAssessmentScorer) Score(context.Context, risk.FeatureVector) (*risk.Assessment, error) {
	return nil, risk.ErrNoAssessment
}

func TestSessionFailsClosedWithoutAssessment(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.95))
	f.session.scorer = noAssessmentScorer{}

	require.NoError(t, f.session.Start(context.Background()))
	defer f.session.Stop()

	f.push(nearDiveBar())
	f.waitMetric(t, "failed_closed", 1)
	require.Empty(t, f.notifier.Delivered())
	require.Zero(t, f.session.Metrics().Notifications.Load())
}

func TestSessionStaleRefreshTickAfterStop(t *testing.T) {
	f := newSessionFixture(t, []zone.DangerZone{diveBar()}, StaticBudget(0.5))

	require.NoError(t, f.session.Start(context.Background()))
	f.session.Stop()

	// A catalog refresh that fired just before Stop must not bring the
	// monitor back behind a stopped session.
	f.session.reregister(context.Background())

	require.Equal(t, StateStopped, f.session.State())
	require.False(t, f.session.monitor.Active())

	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, StateWatching, f.session.State())
	f.session.Stop()
}

// restartFailMonitor starts cleanly once, then refuses every restart.
type restartFailMonitor struct {
	mu     sync.Mutex
	starts int
	active bool
	events chan ProximityEvent
}

func (m *restartFailMonitor) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.starts > 1 {
		return errors.New("region registration rejected")
	}
	m.active = true
	m.events = make(chan ProximityEvent)
	return nil
}

func (m *restartFailMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false
	close(m.events)
}

func (m *restartFailMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *restartFailMonitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ModeInactive
	}
	return ModeGeofence
}

func (m *restartFailMonitor) Events() <-chan ProximityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestSessionStopsWhenMonitorRestartFails(t *testing.T) {
	registry := zone.NewRegistry(staticSource{zones: []zone.DangerZone{diveBar()}}, zerolog.Nop())
	mon := &restartFailMonitor{}
	session := NewSession(SessionConfig{
		Monitor:    mon,
		Registry:   registry,
		Scorer:     risk.NewHeuristicScorer(0),
		Store:      personalization.NewService(personalization.ServiceConfig{Repository: personalization.NewInMemoryRepository(), Logger: zerolog.Nop()}),
		Dispatcher: intervention.NewDispatcher(intervention.DispatcherConfig{Notifier: notify.NewCaptureNotifier(), Repository: intervention.NewInMemoryRepository(), Logger: zerolog.Nop()}),
		Budget:     StaticBudget(0.5),
		Logger:     zerolog.Nop(),
	})

	require.NoError(t, session.Start(context.Background()))
	require.Equal(t, StateWatching, session.State())

	// The monitor cannot come back after the catalog refresh; a session
	// watching nothing must report stopped, and Stop stays idempotent.
	session.reregister(context.Background())

	require.Equal(t, StateStopped, session.State())
	require.False(t, mon.Active())
	session.Stop()
	require.Equal(t, StateStopped, session.State())
}
