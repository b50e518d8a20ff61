package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hotelpms/server/internal/models"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrConflictNotFound, http.StatusNotFound},
		{fmt.Errorf("resolve: %w", models.ErrConflictClosed), http.StatusConflict},
		{models.ErrInvalidResolution, http.StatusBadRequest},
		{models.ErrResolverRequired, http.StatusBadRequest},
		{fmt.Errorf("%w: unknown status", models.ErrInvalidFilter), http.StatusBadRequest},
		{models.ErrEmptyPropertyID, http.StatusBadRequest},
		{fmt.Errorf("%w: all detectors failed", models.ErrDetectionFailed), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusForError(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, models.ErrConflictClosed)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"conflict is already resolved or ignored"}`, rec.Body.String())
}
