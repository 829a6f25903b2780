package zone_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/zone"
)

type stubSource struct {
	zones []zone.DangerZone
	err   error
}

func (s *stubSource) FetchDangerZones(_ context.Context) ([]zone.DangerZone, error) {
	return s.zones, s.err
}

func testZones() []zone.DangerZone {
	return []zone.DangerZone{
		{ID: "z1", MerchantName: "The Dive Bar", Lat: 40.444, Lng: -79.943, RadiusM: 50},
		{ID: "z2", MerchantName: "Tech Store", Lat: 40.430, Lng: -79.950, RadiusM: 50},
	}
}

func TestRegistry_Refresh(t *testing.T) {
	src := &stubSource{zones: testZones()}
	reg := zone.NewRegistry(src, zerolog.Nop())

	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, 2, reg.Count())
	assert.False(t, reg.RefreshedAt().IsZero())
}

func TestRegistry_RefreshFailureKeepsPreviousCatalog(t *testing.T) {
	src := &stubSource{zones: testZones()}
	reg := zone.NewRegistry(src, zerolog.Nop())
	require.NoError(t, reg.Refresh(context.Background()))

	src.err = errors.New("backend unavailable")
	err := reg.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, reg.Count(), "previous catalog should survive a failed refresh")
}

func TestRegistry_RefreshSkipsInvalidZones(t *testing.T) {
	src := &stubSource{zones: []zone.DangerZone{
		{ID: "ok", MerchantName: "The Dive Bar", Lat: 40.444, Lng: -79.943, RadiusM: 50},
		{ID: "bad-radius", Lat: 40.444, Lng: -79.943, RadiusM: 0},
		{ID: "bad-coords", Lat: 95, Lng: 0, RadiusM: 50},
	}}
	reg := zone.NewRegistry(src, zerolog.Nop())

	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_ZonesWithin(t *testing.T) {
	src := &stubSource{zones: testZones()}
	reg := zone.NewRegistry(src, zerolog.Nop())
	require.NoError(t, reg.Refresh(context.Background()))

	// ~13m from The Dive Bar, well outside Tech Store.
	matches := reg.ZonesWithin(geo.Point{Lat: 40.4441, Lng: -79.9431}, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "The Dive Bar", matches[0].Zone.Key())
	assert.Less(t, matches[0].DistanceM, 50.0)

	// Far from everything.
	assert.Empty(t, reg.ZonesWithin(geo.Point{Lat: 52.3676, Lng: 4.9041}, 0))
}

func TestRegistry_ZonesWithin_NearestFirstAndCapped(t *testing.T) {
	big := 500.0
	src := &stubSource{zones: []zone.DangerZone{
		{ID: "far", Lat: 40.4470, Lng: -79.943, RadiusM: big},
		{ID: "near", Lat: 40.4441, Lng: -79.943, RadiusM: big},
		{ID: "mid", Lat: 40.4455, Lng: -79.943, RadiusM: big},
	}}
	reg := zone.NewRegistry(src, zerolog.Nop())
	require.NoError(t, reg.Refresh(context.Background()))

	matches := reg.ZonesWithin(geo.Point{Lat: 40.444, Lng: -79.943}, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Zone.ID)
	assert.Equal(t, "mid", matches[1].Zone.ID)
}

func TestDangerZone_Key(t *testing.T) {
	assert.Equal(t, "The Dive Bar", zone.DangerZone{ID: "z1", MerchantName: "The Dive Bar"}.Key())
	assert.Equal(t, "z1", zone.DangerZone{ID: "z1"}.Key())
}
