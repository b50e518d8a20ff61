package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectorFailure records a detector that could not refresh its conflicts
type DetectorFailure struct {
	Detector string `json:"detector"`
	Error    string `json:"error"`
}

// DetectionRun is the persisted summary of one detection pass over a property
type DetectionRun struct {
	ID              string            `json:"id"`
	PropertyID      string            `json:"propertyId"`
	StartedAt       time.Time         `json:"startedAt"`
	FinishedAt      *time.Time        `json:"finishedAt,omitempty"`
	DetectedCount   int               `json:"detectedCount"`
	PersistedCount  int               `json:"persistedCount"`
	PersistFailures int               `json:"persistFailures"`
	FailedDetectors []DetectorFailure `json:"failedDetectors"`
	Cancelled       bool              `json:"cancelled"`
}

// NewDetectionRun starts a run record for a property
func NewDetectionRun(propertyID string) *DetectionRun {
	return &DetectionRun{
		ID:              uuid.New().String(),
		PropertyID:      propertyID,
		StartedAt:       time.Now().UTC(),
		FailedDetectors: []DetectorFailure{},
	}
}

// Finish stamps the run as complete
func (r *DetectionRun) Finish() {
	now := time.Now().UTC()
	r.FinishedAt = &now
}

// DetectionReport is returned by a detection pass: the stored conflicts plus
// the run summary describing any partial failure.
type DetectionReport struct {
	Run       *DetectionRun `json:"run"`
	Conflicts []*Conflict   `json:"conflicts"`
}

// Partial reports whether any detector or write failed during the run
func (r *DetectionReport) Partial() bool {
	return len(r.Run.FailedDetectors) > 0 || r.Run.PersistFailures > 0 || r.Run.Cancelled
}
