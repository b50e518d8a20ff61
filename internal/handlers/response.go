package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps conflict engine errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrConflictNotFound), errors.Is(err, models.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflictClosed):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidResolution),
		errors.Is(err, models.ErrResolverRequired),
		errors.Is(err, models.ErrInvalidFilter),
		errors.Is(err, models.ErrEmptyPropertyID):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDetectionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
