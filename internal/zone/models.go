// Package zone provides the danger zone catalog and proximity lookups.
package zone

import (
	"errors"
	"fmt"

	"github.com/pigeonline/pigeon/internal/geo"
)

// Registry errors.
var (
	ErrInvalidZone = errors.New("invalid danger zone")
)

// DangerZone is a geographic circle historically associated with regretted
// purchases. Zones are created wholesale on registry refresh and are read-only
// to every other component.
type DangerZone struct {
	ID                    string
	MerchantName          string
	Lat                   float64
	Lng                   float64
	RadiusM               float64
	Category              string
	HistoricalRegretCount int
	AvgRegretScore        *float64
}

// Key returns the stable identifier used for geofence regions, cooldown
// bookkeeping, and personalization lookups. Merchant name wins when present
// because the catalog keys regret history by merchant.
func (z DangerZone) Key() string {
	if z.MerchantName != "" {
		return z.MerchantName
	}
	return z.ID
}

// Center returns the zone's center point.
func (z DangerZone) Center() geo.Point {
	return geo.Point{Lat: z.Lat, Lng: z.Lng}
}

// Validate checks the zone invariants.
func (z DangerZone) Validate() error {
	if z.RadiusM <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %.1f", ErrInvalidZone, z.RadiusM)
	}
	if !z.Center().Valid() {
		return fmt.Errorf("%w: coordinates out of range (%.4f, %.4f)", ErrInvalidZone, z.Lat, z.Lng)
	}
	return nil
}

// Match pairs a zone with the distance from a query point to its center.
type Match struct {
	Zone      DangerZone
	DistanceM float64
}
