package handlers

import (
	"net/http"

	"github.com/hotelpms/server/internal/services"
)

// SchedulerHandler handles conflict scheduler API endpoints
type SchedulerHandler struct {
	scheduler *services.ConflictScheduler
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(scheduler *services.ConflictScheduler) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
	}
}

// GetStatus returns the current scheduler status
// @Summary Get scheduler status
// @Description Get the status of the background conflict detection scheduler
// @Tags scheduler
// @Produce json
// @Success 200 {object} services.SchedulerStatus
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/scheduler/status [get]
func (h *SchedulerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

// Start enables the scheduler loop
// @Summary Start scheduler
// @Tags scheduler
// @Produce json
// @Success 200 {object} services.SchedulerStatus
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/scheduler/start [post]
func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Start()
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

// Stop disables the scheduler loop and cancels a scan in progress
// @Summary Stop scheduler
// @Tags scheduler
// @Produce json
// @Success 200 {object} services.SchedulerStatus
// @Failure 401 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/scheduler/stop [post]
func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

// RunNow triggers an immediate scan
// @Summary Run detection now
// @Description Trigger an immediate detection pass over every property (runs in background)
// @Tags scheduler
// @Produce json
// @Success 202 {object} services.SchedulerStatus
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Scan already running"
// @Security ApiKeyAuth
// @Router /api/scheduler/run [post]
func (h *SchedulerHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if h.scheduler.IsRunning() {
		respondError(w, http.StatusConflict, "A scan is already in progress")
		return
	}

	h.scheduler.RunNow()
	respondJSON(w, http.StatusAccepted, h.scheduler.GetStatus())
}
