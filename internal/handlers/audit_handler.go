package handlers

import (
	"context"
	"net/http"
	"strconv"

	"narrative-safety/internal/models"
	"narrative-safety/internal/repository"
)

// AuditLister reads the audit log
type AuditLister interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, error)
}

// AuditHandler handles audit log requests
type AuditHandler struct {
	auditRepo AuditLister
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo AuditLister) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// ListAuditLogs lists audit logs with pagination (admin only)
// @Summary List audit logs
// @Description Get a paginated list of audit logs, newest first (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Param user_id query int false "Filter by user ID"
// @Param action query string false "Filter by action"
// @Success 200 {object} map[string]interface{} "Paginated audit logs"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	filter := repository.AuditFilter{
		Action: r.URL.Query().Get("action"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if userIDStr := r.URL.Query().Get("user_id"); userIDStr != "" {
		userID, err := strconv.ParseUint(userIDStr, 10, 32)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "user_id must be a positive integer")
			return
		}
		uid := uint(userID)
		filter.UserID = &uid
	}

	logs, err := h.auditRepo.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve audit logs")
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"page":  page,
		"limit": limit,
	})
}
