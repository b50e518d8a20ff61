package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/repository"
)

// Overlaps reports whether two half-open stays [CheckIn, CheckOut) share a night.
// A checkout on the day of the other booking's check-in is not an overlap.
func Overlaps(a, b *models.Booking) bool {
	return a.CheckIn.Before(b.CheckOut) && b.CheckIn.Before(a.CheckOut)
}

// OverlapWindow returns the shared interval [max(checkIn), min(checkOut))
func OverlapWindow(a, b *models.Booking) (time.Time, time.Time) {
	start := a.CheckIn
	if b.CheckIn.After(start) {
		start = b.CheckIn
	}
	end := a.CheckOut
	if b.CheckOut.Before(end) {
		end = b.CheckOut
	}
	return start, end
}

// bookingPair is an unordered pair of overlapping bookings in one room
type bookingPair struct {
	first  *models.Booking
	second *models.Booking
}

// findOverlaps returns every overlapping pair among bookings of a single room.
// Bookings are swept in check-in order; the active set only holds stays that
// have not checked out by the current check-in, so each pair is found once.
func findOverlaps(bookings []*models.Booking) []bookingPair {
	sorted := append([]*models.Booking(nil), bookings...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CheckIn.Equal(sorted[j].CheckIn) {
			return sorted[i].CheckIn.Before(sorted[j].CheckIn)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var pairs []bookingPair
	active := make([]*models.Booking, 0, len(sorted))
	for _, current := range sorted {
		kept := active[:0]
		for _, b := range active {
			if b.CheckOut.After(current.CheckIn) {
				kept = append(kept, b)
			}
		}
		active = kept

		for _, b := range active {
			if Overlaps(b, current) {
				pairs = append(pairs, bookingPair{first: b, second: current})
			}
		}
		active = append(active, current)
	}
	return pairs
}

// DoubleBookingDetector finds rooms sold twice for the same night
type DoubleBookingDetector struct {
	bookingRepo  repository.BookingRepo
	placeholders map[string]bool
}

// NewDoubleBookingDetector creates a new DoubleBookingDetector
func NewDoubleBookingDetector(bookingRepo repository.BookingRepo, placeholderRooms []string) *DoubleBookingDetector {
	return &DoubleBookingDetector{
		bookingRepo:  bookingRepo,
		placeholders: newPlaceholderSet(placeholderRooms),
	}
}

// Name returns the detector name
func (d *DoubleBookingDetector) Name() string {
	return DetectorDoubleBooking
}

// Detect finds overlapping stays per room among bookings not yet checked out
func (d *DoubleBookingDetector) Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error) {
	bookings, err := d.bookingRepo.ListActiveBookings(ctx, propertyID, models.BookingFilter{CheckOutFrom: today})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	// Unassigned rooms are the availability detector's concern
	byRoom := make(map[string][]*models.Booking)
	for _, b := range bookings {
		if isUnassignedRoom(b.RoomNo, d.placeholders) {
			continue
		}
		byRoom[b.RoomNo] = append(byRoom[b.RoomNo], b)
	}

	rooms := make([]string, 0, len(byRoom))
	for room := range byRoom {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	var candidates []Candidate
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pair := range findOverlaps(byRoom[room]) {
			candidates = append(candidates, newDoubleBookingCandidate(propertyID, room, pair))
		}
	}
	return candidates, nil
}

func newDoubleBookingCandidate(propertyID, room string, pair bookingPair) Candidate {
	start, end := OverlapWindow(pair.first, pair.second)

	c := models.NewConflict(propertyID, models.ConflictTypeDoubleBooking, models.SeverityHigh,
		start, end, pair.first.ID, pair.second.ID)
	c.RoomNo = room
	c.Description = fmt.Sprintf("Room %s is booked by %s and %s for %d overlapping night(s) from %s",
		room, pair.first.GuestName, pair.second.GuestName, models.Nights(start, end), models.FormatDate(start))
	// booking1/booking2 follow the id order of BookingID1/BookingID2
	first, second := pair.first, pair.second
	if second.ID < first.ID {
		first, second = second, first
	}
	c.Details = map[string]interface{}{
		"booking1":      bookingDetails(first),
		"booking2":      bookingDetails(second),
		"overlapNights": models.Nights(start, end),
	}

	return Candidate{
		Conflict: c,
		Bookings: []*models.Booking{pair.first, pair.second},
	}
}

func bookingDetails(b *models.Booking) map[string]interface{} {
	return map[string]interface{}{
		"id":        b.ID,
		"guestName": b.GuestName,
		"checkIn":   models.FormatDate(b.CheckIn),
		"checkOut":  models.FormatDate(b.CheckOut),
		"platform":  b.Platform(),
	}
}
