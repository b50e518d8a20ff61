package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hotelpms/server/internal/middleware"
	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/services"
)

// ConflictHandler handles booking conflict API endpoints
type ConflictHandler struct {
	conflictService *services.ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflictService *services.ConflictService) *ConflictHandler {
	return &ConflictHandler{
		conflictService: conflictService,
	}
}

// ListConflicts returns the conflicts of a property
// @Summary List property conflicts
// @Description Get conflicts of a property with optional status and type filters
// @Tags conflicts
// @Produce json
// @Param propertyId path string true "Property ID"
// @Param status query string false "Filter by status (detected, resolved, ignored)"
// @Param type query string false "Filter by type (double_booking, sync_failed, availability_mismatch, pricing_mismatch)"
// @Param skip query int false "Number of records to skip" default(0)
// @Param take query int false "Number of records to return" default(20)
// @Success 200 {object} models.ConflictListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/properties/{propertyId}/conflicts [get]
func (h *ConflictHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, err := queryInt(query.Get("skip"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "skip must be an integer")
		return
	}
	take, err := queryInt(query.Get("take"), 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "take must be an integer")
		return
	}

	if take <= 0 {
		take = 20
	}
	if take > 100 {
		take = 100
	}

	filter := models.ConflictFilter{
		PropertyID: chi.URLParam(r, "propertyId"),
		Status:     query.Get("status"),
		Type:       query.Get("type"),
		Skip:       skip,
		Take:       take,
	}

	conflicts, total, err := h.conflictService.ListConflicts(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ConflictListResponse{
		Conflicts:  conflicts,
		TotalCount: total,
		Skip:       skip,
		Take:       take,
	})
}

// DetectConflicts runs a detection pass for a property
// @Summary Detect conflicts
// @Description Run every detector for a property and store the results. A partial run still returns 200 with the failed detectors listed.
// @Tags conflicts
// @Produce json
// @Param propertyId path string true "Property ID"
// @Success 200 {object} models.DetectionReport
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse "Every detector failed"
// @Security ApiKeyAuth
// @Router /api/properties/{propertyId}/conflicts/detect [post]
func (h *ConflictHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	report, err := h.conflictService.DetectConflicts(r.Context(), chi.URLParam(r, "propertyId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// AutoResolveConflicts applies automatic fixes for a property
// @Summary Auto-resolve conflicts
// @Description Apply automatic fixes to detected sync and pricing conflicts
// @Tags conflicts
// @Produce json
// @Param propertyId path string true "Property ID"
// @Success 200 {object} models.AutoResolveResponse
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/properties/{propertyId}/conflicts/auto-resolve [post]
func (h *ConflictHandler) AutoResolveConflicts(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "propertyId")

	resolved, err := h.conflictService.AutoResolveConflicts(r.Context(), propertyID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.AutoResolveResponse{
		PropertyID:    propertyID,
		ResolvedCount: resolved,
	})
}

// GetConflictStats returns conflict statistics
// @Summary Get conflict statistics
// @Description Get counts of a property's conflicts by type, severity and status
// @Tags conflicts
// @Produce json
// @Param propertyId path string true "Property ID"
// @Success 200 {object} models.ConflictStats
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/properties/{propertyId}/conflicts/stats [get]
func (h *ConflictHandler) GetConflictStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.conflictService.GetConflictStats(r.Context(), chi.URLParam(r, "propertyId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetLatestRun returns the most recent detection run of a property
// @Summary Get latest detection run
// @Tags conflicts
// @Produce json
// @Param propertyId path string true "Property ID"
// @Success 200 {object} models.DetectionRun
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/properties/{propertyId}/conflicts/runs/latest [get]
func (h *ConflictHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.conflictService.LatestRun(r.Context(), chi.URLParam(r, "propertyId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "No detection run recorded")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetConflict returns details of a specific conflict
// @Summary Get conflict details
// @Tags conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} models.Conflict
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/conflicts/{id} [get]
func (h *ConflictHandler) GetConflict(w http.ResponseWriter, r *http.Request) {
	conflict, err := h.conflictService.GetConflict(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conflict)
}

// ResolveConflict marks a conflict as resolved by the calling operator
// @Summary Resolve conflict
// @Tags conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param request body models.ResolveConflictRequest true "Resolution action and notes"
// @Success 200 {object} models.Conflict
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Conflict already closed"
// @Security ApiKeyAuth
// @Router /api/conflicts/{id}/resolve [post]
func (h *ConflictHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conflict, err := h.conflictService.ResolveConflict(
		r.Context(),
		chi.URLParam(r, "id"),
		models.ConflictResolution{Action: req.Action, Notes: req.Notes},
		middleware.GetOperatorFromContext(r.Context()),
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conflict)
}

// IgnoreConflict marks a conflict as ignored
// @Summary Ignore conflict
// @Description Mark a conflict as ignored. It stays ignored on later detection passes.
// @Tags conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param request body models.IgnoreConflictRequest false "Optional notes"
// @Success 200 {object} models.Conflict
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Conflict already closed"
// @Security ApiKeyAuth
// @Router /api/conflicts/{id}/ignore [post]
func (h *ConflictHandler) IgnoreConflict(w http.ResponseWriter, r *http.Request) {
	var req models.IgnoreConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conflict, err := h.conflictService.IgnoreConflict(
		r.Context(),
		chi.URLParam(r, "id"),
		req.Notes,
		middleware.GetOperatorFromContext(r.Context()),
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conflict)
}

func queryInt(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
