// Package monitor watches the user's location for danger zone proximity and
// drives the assessment pipeline for each proximity event.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/zone"
)

// Monitor errors.
var (
	// ErrPermissionDenied means location or notification permission was
	// refused; nothing was registered and the caller must re-request.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMonitorActive means Start was called on an already-started monitor.
	ErrMonitorActive = errors.New("monitor already active")
)

// DefaultEventBuffer bounds the proximity event channel. Events arriving
// while the buffer is full are dropped; this is a best-effort nudge feature,
// not a durable queue.
const DefaultEventBuffer = 16

// Polling defaults.
const (
	DefaultPollInterval     = 30 * time.Second
	DefaultMinDisplacementM = 50.0
)

// Mode identifies the proximity detection strategy.
type Mode string

const (
	ModeGeofence Mode = "geofence"
	ModePolling  Mode = "polling"
	ModeInactive Mode = "inactive"
)

// ProximityEvent is a detected presence inside a danger zone's radius.
type ProximityEvent struct {
	Zone        zone.DangerZone
	Coordinates geo.Point
	DistanceM   float64
	DwellTimeS  float64
	Timestamp   time.Time
}

// ProximityMonitor produces a stream of proximity events. Two interchangeable
// strategies implement it: native geofencing and foreground polling.
type ProximityMonitor interface {
	// Start requests location and notification permission first, failing
	// with ErrPermissionDenied without registering anything if either is
	// refused, then begins event delivery.
	Start(ctx context.Context) error

	// Stop is idempotent. It deregisters all regions or cancels the position
	// subscription and halts event delivery.
	Stop()

	// Active reports whether the monitor is delivering events.
	Active() bool

	// Mode reports the detection strategy, or ModeInactive when stopped.
	Mode() Mode

	// Events returns the bounded event channel. Closed on Stop.
	Events() <-chan ProximityEvent
}

// Permission is a platform capability the monitor needs granted.
type Permission string

const (
	PermissionLocation      Permission = "location"
	PermissionNotifications Permission = "notifications"
)

// PermissionService requests platform permissions.
type PermissionService interface {
	// Ensure requests the permission, returning ErrPermissionDenied if the
	// user or platform refuses it.
	Ensure(ctx context.Context, p Permission) error
}

// Position is one location sample.
type Position struct {
	Point     geo.Point
	Timestamp time.Time
}

// WatchOptions configures a position subscription.
type WatchOptions struct {
	Interval         time.Duration
	MinDisplacementM float64
}

// LocationSource delivers periodic position updates for polling mode.
type LocationSource interface {
	// Watch subscribes to position updates. The channel closes when ctx is
	// canceled.
	Watch(ctx context.Context, opts WatchOptions) (<-chan Position, error)
}

// Region is a circular geofence registered with the platform.
type Region struct {
	ID            string
	Center        geo.Point
	RadiusM       float64
	NotifyOnEntry bool
	NotifyOnExit  bool
}

// RegionEntry is a platform callback for entering a registered region.
type RegionEntry struct {
	RegionID    string
	Coordinates geo.Point
	Timestamp   time.Time
}

// GeofenceProvider abstracts the platform's region-monitoring service. The
// platform may wake the process and deliver entries while backgrounded,
// subject to OS scheduling.
type GeofenceProvider interface {
	Register(ctx context.Context, regions []Region) error
	Deregister(ctx context.Context) error
	Entries() <-chan RegionEntry
}

// BudgetSource supplies the user's current budget utilization in [0,1].
type BudgetSource interface {
	Utilization(ctx context.Context) (float64, error)
}

// StaticBudget is a fixed budget utilization.
type StaticBudget float64

// Utilization implements BudgetSource.
func (b StaticBudget) Utilization(context.Context) (float64, error) {
	return float64(b), nil
}
