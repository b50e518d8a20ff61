package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/repository"
)

// Detector names, as recorded in detection runs
const (
	DetectorDoubleBooking = "double_booking"
	DetectorSync          = "sync"
	DetectorAvailability  = "availability"
	DetectorPricing       = "pricing"
)

// Availability reasons
const (
	ReasonUnassignedRoom = "unassigned_room"
	ReasonUnknownRoom    = "unknown_room"
)

// DefaultPlaceholderRooms are room values that mean "no room assigned yet"
var DefaultPlaceholderRooms = []string{"TBD", "UNASSIGNED", "N/A", "0"}

// Candidate is a conflict found by a detector together with the records the
// resolution advisor needs to reason about it.
type Candidate struct {
	Conflict *models.Conflict
	Bookings []*models.Booking
	Sync     *models.PlatformSyncRow
}

// Detector scans one property for a single class of conflict.
// today is the property's current date at midnight UTC.
type Detector interface {
	Name() string
	Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error)
}

func newPlaceholderSet(rooms []string) map[string]bool {
	set := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		set[strings.ToUpper(strings.TrimSpace(r))] = true
	}
	return set
}

func isUnassignedRoom(room string, placeholders map[string]bool) bool {
	room = strings.TrimSpace(room)
	return room == "" || placeholders[strings.ToUpper(room)]
}

// SyncConflictDetector reports bookings whose OTA calendar push failed or is stuck
type SyncConflictDetector struct {
	bookingRepo  repository.BookingRepo
	platformRepo repository.PlatformRepo
}

// NewSyncConflictDetector creates a new SyncConflictDetector
func NewSyncConflictDetector(bookingRepo repository.BookingRepo, platformRepo repository.PlatformRepo) *SyncConflictDetector {
	return &SyncConflictDetector{
		bookingRepo:  bookingRepo,
		platformRepo: platformRepo,
	}
}

// Name returns the detector name
func (d *SyncConflictDetector) Name() string {
	return DetectorSync
}

// Detect joins failed and pending sync rows with bookings that have not checked out
func (d *SyncConflictDetector) Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error) {
	rows, err := d.platformRepo.ListPlatformSyncState(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform sync state: %w", err)
	}

	bookings, err := d.bookingRepo.ListActiveBookings(ctx, propertyID, models.BookingFilter{CheckOutFrom: today})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	byID := make(map[string]*models.Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}

	var candidates []Candidate
	for _, row := range rows {
		var severity string
		switch row.SyncStatus {
		case models.SyncStatusFailed:
			severity = models.SeverityMedium
		case models.SyncStatusPending:
			severity = models.SeverityLow
		default:
			continue
		}

		booking, ok := byID[row.BookingID]
		if !ok {
			continue
		}

		c := models.NewConflict(propertyID, models.ConflictTypeSyncFailed, severity,
			booking.CheckIn, booking.CheckOut, booking.ID)
		c.RoomNo = booking.RoomNo
		c.Description = fmt.Sprintf("Booking %s for %s is %s on %s", booking.ID, booking.GuestName,
			syncStatusPhrase(row.SyncStatus), row.Platform)

		details := map[string]interface{}{
			"bookingId":    booking.ID,
			"guestName":    booking.GuestName,
			"platform":     row.Platform,
			"syncStatus":   row.SyncStatus,
			"syncAttempts": row.SyncAttempts,
		}
		if row.LastSyncAt != nil {
			details["lastSyncAt"] = row.LastSyncAt.UTC().Format(time.RFC3339)
		}
		if row.ErrorMessage != nil {
			details["errorMessage"] = *row.ErrorMessage
		}
		c.Details = details

		candidates = append(candidates, Candidate{
			Conflict: c,
			Bookings: []*models.Booking{booking},
			Sync:     row,
		})
	}
	return candidates, nil
}

func syncStatusPhrase(status string) string {
	if status == models.SyncStatusFailed {
		return "not synced (sync failed)"
	}
	return "waiting to sync"
}

// AvailabilityConflictDetector reports upcoming bookings without a usable room
type AvailabilityConflictDetector struct {
	bookingRepo  repository.BookingRepo
	roomRepo     repository.RoomRepo
	placeholders map[string]bool
}

// NewAvailabilityConflictDetector creates a new AvailabilityConflictDetector
func NewAvailabilityConflictDetector(bookingRepo repository.BookingRepo, roomRepo repository.RoomRepo, placeholderRooms []string) *AvailabilityConflictDetector {
	return &AvailabilityConflictDetector{
		bookingRepo:  bookingRepo,
		roomRepo:     roomRepo,
		placeholders: newPlaceholderSet(placeholderRooms),
	}
}

// Name returns the detector name
func (d *AvailabilityConflictDetector) Name() string {
	return DetectorAvailability
}

// Detect flags future bookings with an empty or placeholder room. When the
// property has a room inventory, rooms missing from it are flagged too.
func (d *AvailabilityConflictDetector) Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error) {
	bookings, err := d.bookingRepo.ListActiveBookings(ctx, propertyID, models.BookingFilter{CheckInFrom: today})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	var inventory map[string]bool
	if d.roomRepo != nil {
		rooms, err := d.roomRepo.ListRoomNumbers(ctx, propertyID)
		if err != nil {
			return nil, fmt.Errorf("failed to list rooms: %w", err)
		}
		if len(rooms) > 0 {
			inventory = make(map[string]bool, len(rooms))
			for _, r := range rooms {
				inventory[r] = true
			}
		}
	}

	var candidates []Candidate
	for _, b := range bookings {
		var reason string
		switch {
		case isUnassignedRoom(b.RoomNo, d.placeholders):
			reason = ReasonUnassignedRoom
		case inventory != nil && !inventory[strings.TrimSpace(b.RoomNo)]:
			reason = ReasonUnknownRoom
		default:
			continue
		}

		c := models.NewConflict(propertyID, models.ConflictTypeAvailabilityMismatch, models.SeverityMedium,
			b.CheckIn, b.CheckOut, b.ID)
		c.RoomNo = b.RoomNo
		if reason == ReasonUnknownRoom {
			c.Description = fmt.Sprintf("Booking %s for %s references room %s which does not exist", b.ID, b.GuestName, b.RoomNo)
		} else {
			c.Description = fmt.Sprintf("Booking %s for %s has no room assigned", b.ID, b.GuestName)
		}
		c.Details = map[string]interface{}{
			"bookingId": b.ID,
			"guestName": b.GuestName,
			"checkIn":   models.FormatDate(b.CheckIn),
			"checkOut":  models.FormatDate(b.CheckOut),
			"roomNo":    b.RoomNo,
			"platform":  b.Platform(),
			"reason":    reason,
		}

		candidates = append(candidates, Candidate{Conflict: c, Bookings: []*models.Booking{b}})
	}
	return candidates, nil
}

// PricingConflictDetector reports upcoming bookings without a total amount
type PricingConflictDetector struct {
	bookingRepo repository.BookingRepo
}

// NewPricingConflictDetector creates a new PricingConflictDetector
func NewPricingConflictDetector(bookingRepo repository.BookingRepo) *PricingConflictDetector {
	return &PricingConflictDetector{bookingRepo: bookingRepo}
}

// Name returns the detector name
func (d *PricingConflictDetector) Name() string {
	return DetectorPricing
}

// Detect flags future bookings whose total amount is missing or zero
func (d *PricingConflictDetector) Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error) {
	bookings, err := d.bookingRepo.ListActiveBookings(ctx, propertyID, models.BookingFilter{CheckInFrom: today})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	var candidates []Candidate
	for _, b := range bookings {
		if b.HasAmount() {
			continue
		}

		c := models.NewConflict(propertyID, models.ConflictTypePricingMismatch, models.SeverityLow,
			b.CheckIn, b.CheckOut, b.ID)
		c.RoomNo = b.RoomNo
		c.Description = fmt.Sprintf("Booking %s for %s has no total amount", b.ID, b.GuestName)

		var amount interface{}
		if b.TotalAmount != nil {
			amount = *b.TotalAmount
		}
		c.Details = map[string]interface{}{
			"bookingId":   b.ID,
			"guestName":   b.GuestName,
			"roomNo":      b.RoomNo,
			"nights":      b.Nights(),
			"totalAmount": amount,
			"platform":    b.Platform(),
		}

		candidates = append(candidates, Candidate{Conflict: c, Bookings: []*models.Booking{b}})
	}
	return candidates, nil
}
