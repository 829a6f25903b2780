package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pigeonline/pigeon/internal/backend"
	"github.com/pigeonline/pigeon/internal/geo"
	"github.com/pigeonline/pigeon/internal/monitor"
	"github.com/pigeonline/pigeon/internal/ops/models"
	"github.com/pigeonline/pigeon/internal/ops/response"
)

// PositionSink receives position samples pushed by the host platform.
type PositionSink interface {
	Push(p monitor.Position)
}

// EntrySink receives region-entry callbacks pushed by the host platform.
type EntrySink interface {
	PushEntry(e monitor.RegionEntry)
}

// LocationChecker performs an on-demand server-side risk check.
type LocationChecker interface {
	CheckLocation(ctx context.Context, req backend.CheckLocationRequest) (*backend.CheckLocationResponse, error)
}

// MonitorHandler bridges host-platform location signals into the monitor.
type MonitorHandler struct {
	positions PositionSink
	entries   EntrySink
	checker   LocationChecker
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(positions PositionSink, entries EntrySink, checker LocationChecker) *MonitorHandler {
	return &MonitorHandler{
		positions: positions,
		entries:   entries,
		checker:   checker,
	}
}

// UpdateLocation handles POST /v1/location/update - a position sample from
// the host. The sample is queued for the polling pipeline; the reply does
// not wait for assessment.
func (h *MonitorHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req models.LocationUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	p := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if !p.Valid() {
		response.BadRequest(w, r, "coordinates out of range", []models.FieldError{
			{Field: "lat", Message: "must be in [-90, 90]"},
			{Field: "lng", Message: "must be in [-180, 180]"},
		})
		return
	}

	at := time.Now()
	if req.Timestamp != nil {
		at = req.Timestamp.Time()
	}
	h.positions.Push(monitor.Position{Point: p, Timestamp: at})

	response.Accepted(w, r, nil)
}

// GeofenceEntry handles POST /v1/geofence/entry - a region-entry callback
// from the host platform's geofencing service.
func (h *MonitorHandler) GeofenceEntry(w http.ResponseWriter, r *http.Request) {
	var req models.GeofenceEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if req.RegionID == "" {
		response.BadRequest(w, r, "regionId is required", nil)
		return
	}

	at := time.Now()
	if req.Timestamp != nil {
		at = req.Timestamp.Time()
	}
	h.entries.PushEntry(monitor.RegionEntry{
		RegionID:    req.RegionID,
		Coordinates: geo.Point{Lat: req.Lat, Lng: req.Lng},
		Timestamp:   at,
	})

	response.Accepted(w, r, nil)
}

// CheckLocation handles POST /v1/location/check - a synchronous server-side
// risk check for a coordinate, proxied to the backend.
func (h *MonitorHandler) CheckLocation(w http.ResponseWriter, r *http.Request) {
	var req models.CheckLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	p := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if !p.Valid() {
		response.BadRequest(w, r, "coordinates out of range", nil)
		return
	}

	result, err := h.checker.CheckLocation(r.Context(), backend.CheckLocationRequest{
		Lat:               req.Lat,
		Lng:               req.Lng,
		BudgetUtilization: req.BudgetUtilization,
		MerchantCategory:  req.MerchantCategory,
	})
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			response.ServiceUnavailable(w, r, "risk backend unavailable")
			return
		}
		response.InternalError(w, r, "location check failed")
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}
