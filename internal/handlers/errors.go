package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"narrative-safety/internal/service"
)

// respondWithServiceError maps service sentinel errors onto HTTP status codes
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrReviewNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgReviewNotFound)
	case errors.Is(err, service.ErrInvalidDecision), errors.Is(err, service.ErrMissingSessionID):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrNotDeliverable):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoArchiveSinks):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternal)
	}
}
