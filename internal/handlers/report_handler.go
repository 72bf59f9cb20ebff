package handlers

import (
	"net/http"

	"narrative-safety/internal/middleware"
	"narrative-safety/internal/service"
	"narrative-safety/pkg/validator"
)

// ReportHandler accepts generated reports for safety processing
type ReportHandler struct {
	pipeline *service.ReportPipeline
}

// NewReportHandler creates a new report handler
func NewReportHandler(pipeline *service.ReportPipeline) *ReportHandler {
	return &ReportHandler{pipeline: pipeline}
}

// SubmitReport runs a generated report through validation, harm judging and review routing
// @Summary Submit a generated report
// @Description Validates the report against the principle rules, scores it with the harm judge and either delivers it or queues it for human review
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ReportSubmission true "Generated report"
// @Success 200 {object} service.PipelineResult "Delivered"
// @Success 202 {object} service.PipelineResult "Queued for review"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /reports [post]
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req service.ReportSubmission
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.SessionID = validator.SanitizeString(req.SessionID)
	req.ReportContent = validator.SanitizeString(req.ReportContent)
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.UserID = principal.UserID
	if principal.HasRole(service.RoleAdmin) {
		req.UserRole = service.RoleAdmin
	}

	result, err := h.pipeline.Process(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Status == service.PipelineStatusPendingReview {
		status = http.StatusAccepted
	}
	respondWithJSON(w, status, result)
}
