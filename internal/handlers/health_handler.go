package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hotelpms/server/internal/models"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck returns the server health status
// @Summary Health check
// @Description Returns the current health status of the server and its database
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Failure 503 {object} models.HealthResponse "Database unreachable"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response.Database = "ok"
		if err := h.db.Ping(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, response)
}
