package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/pigeonline/pigeon/internal/ops/response"
	"github.com/pigeonline/pigeon/internal/settings"
)

// SettingsHandler handles monitor settings endpoints.
type SettingsHandler struct {
	service *settings.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(service *settings.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// GetSettings handles GET /v1/settings - read all settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAll(r.Context())

	list := settings.SettingList{Items: make([]settings.Setting, 0, len(all))}
	for _, s := range all {
		list.Items = append(list.Items, *s)
	}
	sort.Slice(list.Items, func(i, j int) bool {
		return list.Items[i].Key < list.Items[j].Key
	})

	response.JSON(w, r, http.StatusOK, list)
}

// UpdateSettings handles PUT /v1/settings - update one or more settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "no updates provided", nil)
		return
	}

	updates := make([]*settings.Setting, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.Key == "" {
			response.BadRequest(w, r, "update with empty key", nil)
			return
		}
		updates = append(updates, &settings.Setting{Key: u.Key, Value: u.Value})
	}

	if err := h.service.SetMany(r.Context(), updates); err != nil {
		response.InternalError(w, r, "failed to store settings")
		return
	}

	response.NoContent(w, r)
}
