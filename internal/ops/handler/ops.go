// Package handler provides HTTP handlers for the ops API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pigeonline/pigeon/internal/monitor"
	"github.com/pigeonline/pigeon/internal/ops/models"
	"github.com/pigeonline/pigeon/internal/ops/response"
	"github.com/pigeonline/pigeon/internal/zone"
)

// Pinger checks that a storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	session   *monitor.Session
	registry  *zone.Registry
	db        Pinger
}

// NewOpsHandler creates a new OpsHandler. db may be nil when the daemon
// runs with in-memory storage.
func NewOpsHandler(version, buildTime string, session *monitor.Session, registry *zone.Registry, db Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		session:   session,
		registry:  registry,
		db:        db,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - session and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Monitor: h.monitorStatus(),
	}

	if h.db != nil {
		sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Ping(pingCtx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
		cancel()
		status.Subsystems = append(status.Subsystems, sub)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) monitorStatus() models.MonitorStatus {
	ms := models.MonitorStatus{
		State:     string(h.session.State()),
		Mode:      string(h.session.Mode()),
		ZoneCount: h.registry.Count(),
		Pipeline:  h.session.Metrics().Snapshot(),
	}
	if at := h.registry.RefreshedAt(); !at.IsZero() {
		ts := models.Timestamp(at)
		ms.RefreshedAt = &ts
	}
	return ms
}
