package services

import (
	"time"

	"github.com/hotelpms/server/internal/models"
)

// urgentWindow is how close an overlap may start before it becomes urgent
const urgentWindow = 3 * 24 * time.Hour

// Placeholder costs until real relocation pricing exists
var estimatedCosts = map[string]float64{
	models.ActionRelocateDirect: 150,
	models.ActionRelocateOTA:    250,
	models.ActionHonorFirst:     200,
	models.ActionManualReview:   100,
}

var resolutionSteps = map[string][]string{
	models.ActionRelocateDirect: {
		"Keep the OTA booking in the room to avoid platform penalties",
		"Contact the direct guest and offer an equivalent or upgraded room",
		"Move the direct booking and confirm the change with the guest",
	},
	models.ActionRelocateOTA: {
		"Keep the direct booking in the room",
		"Find an equivalent room for the OTA guest",
		"Move the OTA booking and update the platform reservation",
		"Confirm the change with the OTA guest",
	},
	models.ActionHonorFirst: {
		"Keep the booking that was made first",
		"Contact the later guest and offer an alternative room",
		"Move or cancel the later booking",
	},
	models.ActionManualReview: {
		"Review both bookings with the front desk",
		"Decide which guest keeps the room",
		"Relocate the other guest and record the decision",
	},
	models.ActionRetrySync: {
		"Request a calendar resync with the platform",
		"Verify the booking appears on the platform calendar",
	},
	models.ActionAssignRoom: {
		"Check room availability for the stay",
		"Assign an available room to the booking",
	},
	models.ActionUpdatePricing: {
		"Look up the room's nightly rate",
		"Set the booking total to nights multiplied by the rate",
	},
}

// AdvisorPolicy tunes how double bookings are split
type AdvisorPolicy struct {
	// DirectPrecedence keeps direct guests in the room and relocates the OTA guest
	DirectPrecedence bool
}

// ResolutionAdvisor proposes how each detected conflict should be resolved
type ResolutionAdvisor struct {
	policy AdvisorPolicy
}

// NewResolutionAdvisor creates a new ResolutionAdvisor
func NewResolutionAdvisor(policy AdvisorPolicy) *ResolutionAdvisor {
	return &ResolutionAdvisor{policy: policy}
}

// Suggest returns the proposed resolution for a candidate. Unknown conflict
// types fall back to manual review.
func (a *ResolutionAdvisor) Suggest(candidate Candidate, today time.Time) *models.SuggestedResolution {
	c := candidate.Conflict

	switch c.ConflictType {
	case models.ConflictTypeDoubleBooking:
		return a.suggestDoubleBooking(candidate, today)

	case models.ConflictTypeSyncFailed:
		priority := models.PriorityLow
		if candidate.Sync != nil && candidate.Sync.SyncStatus == models.SyncStatusFailed {
			priority = models.PriorityMedium
		} else if candidate.Sync == nil && c.Severity == models.SeverityMedium {
			priority = models.PriorityMedium
		}
		return newSuggestion(models.ActionRetrySync, priority, true)

	case models.ConflictTypeAvailabilityMismatch:
		return newSuggestion(models.ActionAssignRoom, models.PriorityMedium, false)

	case models.ConflictTypePricingMismatch:
		return newSuggestion(models.ActionUpdatePricing, models.PriorityLow, true)
	}

	return newSuggestion(models.ActionManualReview, models.PriorityMedium, false)
}

func (a *ResolutionAdvisor) suggestDoubleBooking(candidate Candidate, today time.Time) *models.SuggestedResolution {
	c := candidate.Conflict

	priority := models.PriorityHigh
	if c.ConflictDateStart.Sub(today) <= urgentWindow {
		priority = models.PriorityUrgent
	}

	if len(candidate.Bookings) != 2 {
		return newSuggestion(models.ActionManualReview, priority, false)
	}
	first, second := candidate.Bookings[0], candidate.Bookings[1]

	// Mixed provenance: one guest came direct, the other through a platform
	if first.IsDirect() != second.IsDirect() {
		direct, ota := first, second
		if !direct.IsDirect() {
			direct, ota = second, first
		}

		if a.policy.DirectPrecedence {
			s := newSuggestion(models.ActionRelocateOTA, priority, false)
			s.KeepBookingID, s.RelocateBookingID = direct.ID, ota.ID
			return s
		}
		s := newSuggestion(models.ActionRelocateDirect, priority, false)
		s.KeepBookingID, s.RelocateBookingID = ota.ID, direct.ID
		return s
	}

	if first.BookingDate != nil && second.BookingDate != nil && !first.BookingDate.Equal(*second.BookingDate) {
		earlier, later := first, second
		if second.BookingDate.Before(*first.BookingDate) {
			earlier, later = second, first
		}
		s := newSuggestion(models.ActionHonorFirst, priority, false)
		s.KeepBookingID, s.RelocateBookingID = earlier.ID, later.ID
		return s
	}

	return newSuggestion(models.ActionManualReview, priority, false)
}

func newSuggestion(action, priority string, autoResolvable bool) *models.SuggestedResolution {
	return &models.SuggestedResolution{
		Action:         action,
		Priority:       priority,
		Steps:          append([]string(nil), resolutionSteps[action]...),
		EstimatedCost:  estimatedCosts[action],
		AutoResolvable: autoResolvable,
	}
}
