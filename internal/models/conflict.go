package models

import (
	"sort"
	"strings"
	"time"
)

// Conflict is a detected booking problem for a property
type Conflict struct {
	ID                  string                 `json:"id"`
	PropertyID          string                 `json:"propertyId"`
	ConflictType        string                 `json:"conflictType"`
	Severity            string                 `json:"severity"`
	Status              string                 `json:"status"`
	ConflictDateStart   time.Time              `json:"conflictDateStart"`
	ConflictDateEnd     time.Time              `json:"conflictDateEnd"`
	RoomNo              string                 `json:"roomNo"`
	BookingID1          string                 `json:"bookingId1"`
	BookingID2          *string                `json:"bookingId2,omitempty"`
	Description         string                 `json:"description"`
	Details             map[string]interface{} `json:"details"`
	SuggestedResolution *SuggestedResolution   `json:"suggestedResolution,omitempty"`

	// Resolution tracking
	ResolvedBy       *string    `json:"resolvedBy,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	ResolutionAction *string    `json:"resolutionAction,omitempty"`
	ResolutionNotes  *string    `json:"resolutionNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SuggestedResolution is the advisor's proposal for a conflict
type SuggestedResolution struct {
	Action            string   `json:"action"`
	Priority          string   `json:"priority"`
	Steps             []string `json:"steps"`
	EstimatedCost     float64  `json:"estimatedCost"`
	AutoResolvable    bool     `json:"autoResolvable"`
	KeepBookingID     string   `json:"keepBookingId,omitempty"`
	RelocateBookingID string   `json:"relocateBookingId,omitempty"`
}

// Conflict type constants
const (
	ConflictTypeDoubleBooking        = "double_booking"
	ConflictTypeSyncFailed           = "sync_failed"
	ConflictTypeAvailabilityMismatch = "availability_mismatch"
	ConflictTypePricingMismatch      = "pricing_mismatch"
)

// Conflict severity constants
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Conflict status constants
const (
	ConflictStatusDetected = "detected"
	ConflictStatusResolved = "resolved"
	ConflictStatusIgnored  = "ignored"
)

// Resolution actions
const (
	ActionRelocateDirect = "relocate_direct"
	ActionRelocateOTA    = "relocate_ota"
	ActionHonorFirst     = "honor_first"
	ActionManualReview   = "manual_review"
	ActionRetrySync      = "retry_sync"
	ActionAssignRoom     = "assign_room"
	ActionUpdatePricing  = "update_pricing"
)

// Resolution priorities
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ResolverSystem is recorded as resolvedBy for automatic resolutions
const ResolverSystem = "system"

// ConflictID builds the stable identity of a conflict. Participant ids are
// sorted so the same set always yields the same key regardless of fetch order.
func ConflictID(conflictType string, participants ...string) string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		if p != "" {
			ids = append(ids, p)
		}
	}
	sort.Strings(ids)
	return conflictType + ":" + strings.Join(ids, ":")
}

// NewConflict creates a detected conflict whose id is derived from its participants
func NewConflict(propertyID, conflictType, severity string, start, end time.Time, bookingIDs ...string) *Conflict {
	now := time.Now().UTC()
	c := &Conflict{
		ID:                ConflictID(conflictType, bookingIDs...),
		PropertyID:        propertyID,
		ConflictType:      conflictType,
		Severity:          severity,
		Status:            ConflictStatusDetected,
		ConflictDateStart: start,
		ConflictDateEnd:   end,
		Details:           map[string]interface{}{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ids := append([]string(nil), bookingIDs...)
	sort.Strings(ids)
	if len(ids) > 0 {
		c.BookingID1 = ids[0]
	}
	if len(ids) > 1 {
		second := ids[1]
		c.BookingID2 = &second
	}
	return c
}

// IsTerminal reports whether the conflict has left the detected state
func (c *Conflict) IsTerminal() bool {
	return c.Status == ConflictStatusResolved || c.Status == ConflictStatusIgnored
}

// IsAutoResolvable reports whether the advisor marked the conflict safe to fix automatically
func (c *Conflict) IsAutoResolvable() bool {
	return c.SuggestedResolution != nil && c.SuggestedResolution.AutoResolvable
}

// ConflictResolution is what a resolver records when closing a conflict
type ConflictResolution struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// ConflictFilter narrows conflict listings. Take <= 0 means no limit.
type ConflictFilter struct {
	PropertyID         string
	Status             string
	Type               string
	AutoResolvableOnly bool
	Skip               int
	Take               int
}

// ConflictStats aggregates conflict counts for a property
type ConflictStats struct {
	PropertyID     string         `json:"propertyId"`
	Total          int            `json:"total"`
	ByType         map[string]int `json:"byType"`
	BySeverity     map[string]int `json:"bySeverity"`
	ByStatus       map[string]int `json:"byStatus"`
	AutoResolvable int            `json:"autoResolvable"`
}

// NewConflictStats returns zeroed stats with every known bucket present
func NewConflictStats(propertyID string) *ConflictStats {
	stats := &ConflictStats{
		PropertyID: propertyID,
		ByType:     map[string]int{},
		BySeverity: map[string]int{},
		ByStatus:   map[string]int{},
	}
	for _, t := range []string{ConflictTypeDoubleBooking, ConflictTypeSyncFailed, ConflictTypeAvailabilityMismatch, ConflictTypePricingMismatch} {
		stats.ByType[t] = 0
	}
	for _, s := range []string{SeverityLow, SeverityMedium, SeverityHigh} {
		stats.BySeverity[s] = 0
	}
	for _, s := range []string{ConflictStatusDetected, ConflictStatusResolved, ConflictStatusIgnored} {
		stats.ByStatus[s] = 0
	}
	return stats
}
