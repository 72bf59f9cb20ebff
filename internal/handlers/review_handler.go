package handlers

import (
	"net/http"
	"strconv"

	"narrative-safety/internal/middleware"
	"narrative-safety/internal/models"
	"narrative-safety/internal/service"
	"narrative-safety/pkg/validator"
)

// ReviewHandler serves the human review queue
type ReviewHandler struct {
	queue    *service.ReviewQueueService
	pipeline *service.ReportPipeline
	pageSize int
}

// NewReviewHandler creates a new review handler. pageSize is the default
// number of pending items returned when the client sends no limit.
func NewReviewHandler(queue *service.ReviewQueueService, pipeline *service.ReportPipeline, pageSize int) *ReviewHandler {
	if pageSize <= 0 {
		pageSize = service.DefaultPendingPageSize
	}
	return &ReviewHandler{queue: queue, pipeline: pipeline, pageSize: pageSize}
}

// DecisionRequest is a reviewer's verdict on a pending report
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Notes    string `json:"notes" validate:"max=4000"`
}

// ListPending lists pending reviews newest first, without identifying fields
// @Summary List pending reviews
// @Description De-identified summaries of reports waiting for a reviewer decision, newest first
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of items" default(50)
// @Success 200 {array} models.PendingReviewSummary
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - reviewer only"
// @Router /admin/reviews/pending [get]
func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := h.pageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	pending, err := h.queue.ListPending(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	summaries := make([]models.PendingReviewSummary, 0, len(pending))
	for i := range pending {
		summaries = append(summaries, pending[i].Summary())
	}
	respondWithJSON(w, http.StatusOK, summaries)
}

// GetReview returns the full review record including report content
// @Summary Get review
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} models.ReviewRecord
// @Failure 404 {object} map[string]string "Review not found"
// @Router /admin/reviews/{id} [get]
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.queue.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// Decide records a reviewer decision; approved reports are delivered immediately
// @Summary Submit reviewer decision
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body DecisionRequest true "Decision"
// @Success 200 {object} models.ReviewRecord
// @Failure 400 {object} map[string]string "Invalid decision"
// @Failure 404 {object} map[string]string "Review not found"
// @Failure 409 {object} map[string]string "Review already decided"
// @Router /admin/reviews/{id}/decision [post]
func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.pipeline.Decide(r.Context(), r.PathValue("id"), principal.UserID, req.Decision, req.Notes)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// Stats returns queue counters
// @Summary Review statistics
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ReviewStats
// @Router /admin/reviews/stats [get]
func (h *ReviewHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
