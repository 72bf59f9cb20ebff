package handlers

import (
	"net/http"
	"strconv"

	"narrative-safety/internal/service"
)

// ReceiptHandler exposes the constitutional receipt log
type ReceiptHandler struct {
	validator *service.ConstitutionalValidator
	exporter  *service.ReceiptExportService
}

// NewReceiptHandler creates a new receipt handler. exporter may be nil when
// no archive sink is configured.
func NewReceiptHandler(validator *service.ConstitutionalValidator, exporter *service.ReceiptExportService) *ReceiptHandler {
	return &ReceiptHandler{validator: validator, exporter: exporter}
}

// ListReceipts returns the unexported receipts in append order
// @Summary List receipts
// @Tags Receipts
// @Produce json
// @Security BearerAuth
// @Param content_type query string false "Filter by content type (story_synthesis, recommendation)"
// @Success 200 {array} models.Receipt
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/receipts [get]
func (h *ReceiptHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.validator.AuditTrail(r.Context(), r.URL.Query().Get("content_type"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, receipts)
}

// ExportReceipts writes the receipt log to every configured archive
// @Summary Export receipts
// @Description Serializes the receipt log to the archive sinks. With reset=true the exported receipts are removed from the live log.
// @Tags Receipts
// @Produce json
// @Security BearerAuth
// @Param reset query bool false "Drain the log after a successful export" default(false)
// @Success 200 {object} service.ExportResult
// @Failure 503 {object} map[string]string "No archive configured"
// @Router /admin/receipts/export [post]
func (h *ReceiptHandler) ExportReceipts(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		respondWithServiceError(w, r, service.ErrNoArchiveSinks)
		return
	}

	var opts service.ExportOptions
	if resetStr := r.URL.Query().Get("reset"); resetStr != "" {
		reset, err := strconv.ParseBool(resetStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "reset must be a boolean")
			return
		}
		opts.Reset = reset
	}

	result, err := h.exporter.Export(r.Context(), opts)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
