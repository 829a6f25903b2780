package monitor

import (
	"context"
	"sync"
	"time"
)

// StaticPermissions is a PermissionService with fixed grants, used by the
// daemon (which runs headless with everything granted) and by tests.
type StaticPermissions struct {
	LocationGranted      bool
	NotificationsGranted bool
}

// AllPermissionsGranted returns a PermissionService granting everything.
func AllPermissionsGranted() StaticPermissions {
	return StaticPermissions{LocationGranted: true, NotificationsGranted: true}
}

// Ensure implements PermissionService.
func (s StaticPermissions) Ensure(_ context.Context, p Permission) error {
	switch p {
	case PermissionLocation:
		if !s.LocationGranted {
			return ErrPermissionDenied
		}
	case PermissionNotifications:
		if !s.NotificationsGranted {
			return ErrPermissionDenied
		}
	}
	return nil
}

// ChannelLocationSource is a LocationSource fed by Push calls, bridging
// host-platform position updates (delivered over the ops API) into polling
// mode.
type ChannelLocationSource struct {
	mu        sync.Mutex
	ch        chan Position
	listening bool
}

// NewChannelLocationSource creates a push-fed location source.
func NewChannelLocationSource() *ChannelLocationSource {
	return &ChannelLocationSource{ch: make(chan Position, DefaultEventBuffer)}
}

// Watch implements LocationSource. Interval and displacement filtering are
// applied by the consumer; this source forwards whatever the host pushes.
func (s *ChannelLocationSource) Watch(ctx context.Context, _ WatchOptions) (<-chan Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil, ErrMonitorActive
	}
	s.listening = true

	out := make(chan Position, DefaultEventBuffer)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.listening = false
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-s.ch:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Push feeds one position sample. Samples pushed while the buffer is full
// are dropped.
func (s *ChannelLocationSource) Push(p Position) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	select {
	case s.ch <- p:
	default:
	}
}

// ChannelGeofenceProvider is a GeofenceProvider fed by PushEntry calls,
// bridging host-platform region callbacks (delivered over the ops API) into
// geofence mode.
type ChannelGeofenceProvider struct {
	mu      sync.Mutex
	regions []Region
	entries chan RegionEntry
}

// NewChannelGeofenceProvider creates a push-fed geofence provider.
func NewChannelGeofenceProvider() *ChannelGeofenceProvider {
	return &ChannelGeofenceProvider{entries: make(chan RegionEntry, DefaultEventBuffer)}
}

// Register implements GeofenceProvider.
func (g *ChannelGeofenceProvider) Register(_ context.Context, regions []Region) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regions = regions
	return nil
}

// Deregister implements GeofenceProvider.
func (g *ChannelGeofenceProvider) Deregister(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regions = nil
	return nil
}

// Entries implements GeofenceProvider.
func (g *ChannelGeofenceProvider) Entries() <-chan RegionEntry {
	return g.entries
}

// Regions returns the currently registered regions.
func (g *ChannelGeofenceProvider) Regions() []Region {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Region, len(g.regions))
	copy(out, g.regions)
	return out
}

// PushEntry feeds one region entry callback. Entries pushed while the buffer
// is full are dropped.
func (g *ChannelGeofenceProvider) PushEntry(e RegionEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case g.entries <- e:
	default:
	}
}

var (
	_ PermissionService = StaticPermissions{}
	_ LocationSource    = (*ChannelLocationSource)(nil)
	_ GeofenceProvider  = (*ChannelGeofenceProvider)(nil)
)
