package zone

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/geo"
)

// Source fetches the danger zone catalog from the backend.
type Source interface {
	FetchDangerZones(ctx context.Context) ([]DangerZone, error)
}

// Registry caches the catalog of monitored danger zones. The catalog is
// replaced atomically on refresh so readers never observe a partial update;
// a failed refresh keeps the previous catalog.
type Registry struct {
	source Source
	logger zerolog.Logger

	zones       atomic.Pointer[[]DangerZone]
	refreshedAt atomic.Pointer[time.Time]
}

// NewRegistry creates a registry backed by the given source.
func NewRegistry(source Source, logger zerolog.Logger) *Registry {
	r := &Registry{
		source: source,
		logger: logger.With().Str("component", "zone_registry").Logger(),
	}
	empty := make([]DangerZone, 0)
	r.zones.Store(&empty)
	return r
}

// Refresh fetches the catalog and swaps it in. On failure the previous
// catalog is retained and the error is returned to the caller. Zones that
// fail validation are skipped with a warning; the rest of the catalog still
// loads.
func (r *Registry) Refresh(ctx context.Context) error {
	fetched, err := r.source.FetchDangerZones(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("zone catalog refresh failed, keeping previous catalog")
		return fmt.Errorf("refresh danger zones: %w", err)
	}

	valid := make([]DangerZone, 0, len(fetched))
	for _, z := range fetched {
		if err := z.Validate(); err != nil {
			r.logger.Warn().
				Str("zone", z.Key()).
				Err(err).
				Msg("skipping invalid danger zone")
			continue
		}
		valid = append(valid, z)
	}

	now := time.Now()
	r.zones.Store(&valid)
	r.refreshedAt.Store(&now)

	r.logger.Info().
		Int("zones", len(valid)).
		Int("skipped", len(fetched)-len(valid)).
		Msg("zone catalog refreshed")
	return nil
}

// Zones returns the current catalog. The returned slice must not be mutated.
func (r *Registry) Zones() []DangerZone {
	return *r.zones.Load()
}

// Count returns the number of zones in the current catalog.
func (r *Registry) Count() int {
	return len(*r.zones.Load())
}

// RefreshedAt returns the time of the last successful refresh, or the zero
// time if the catalog has never loaded.
func (r *Registry) RefreshedAt() time.Time {
	if t := r.refreshedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// ZonesWithin returns zones whose great-circle distance from p is inside
// their radius, nearest first. A maxCount <= 0 means no cap. The linear scan
// is deliberate: catalogs hold tens of zones, not millions.
func (r *Registry) ZonesWithin(p geo.Point, maxCount int) []Match {
	var matches []Match
	for _, z := range r.Zones() {
		d := geo.Haversine(p, z.Center())
		if d < z.RadiusM {
			matches = append(matches, Match{Zone: z, DistanceM: d})
		}
	}

	// Insertion sort keeps the nearest zone first; match counts are tiny.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].DistanceM < matches[j-1].DistanceM; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	if maxCount > 0 && len(matches) > maxCount {
		matches = matches[:maxCount]
	}
	return matches
}
