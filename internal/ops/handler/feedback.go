package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/ops/models"
	"github.com/pigeonline/pigeon/internal/ops/response"
)

// FeedbackHandler handles intervention feedback endpoints.
type FeedbackHandler struct {
	loop *intervention.FeedbackLoop
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(loop *intervention.FeedbackLoop) *FeedbackHandler {
	return &FeedbackHandler{loop: loop}
}

// SubmitFeedback handles POST /v1/interventions/{interventionID}/feedback.
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	interventionID := chi.URLParam(r, "interventionID")
	if interventionID == "" {
		response.BadRequest(w, r, "interventionID is required", nil)
		return
	}

	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	err := h.loop.Respond(r.Context(), interventionID, intervention.Response(req.Response))
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.FeedbackResponse{
			InterventionID: interventionID,
			Response:       req.Response,
		})
	case errors.Is(err, intervention.ErrInvalidResponse):
		response.BadRequest(w, r, "response must be one of: helpful, not_helpful, ignored, somewhat", nil)
	case errors.Is(err, intervention.ErrInterventionNotFound):
		response.NotFound(w, r, "intervention not found")
	case errors.Is(err, intervention.ErrAlreadyResponded):
		response.Conflict(w, r, "intervention already has a response")
	default:
		response.InternalError(w, r, "failed to record feedback")
	}
}
