package models

import (
	"strings"
	"time"
)

// DateLayout is the storage and wire format for stay dates
const DateLayout = "2006-01-02"

// Booking is a reservation owned by the booking module. The conflict engine
// only reads it, except for the amount correction made by auto-resolution.
type Booking struct {
	ID          string     `json:"id"`
	PropertyID  string     `json:"propertyId"`
	RoomNo      string     `json:"roomNo"`
	GuestName   string     `json:"guestName"`
	CheckIn     time.Time  `json:"checkIn"`
	CheckOut    time.Time  `json:"checkOut"`
	Cancelled   bool       `json:"cancelled"`
	TotalAmount *float64   `json:"totalAmount,omitempty"`
	Source      string     `json:"source"`
	BookingDate *time.Time `json:"bookingDate,omitempty"`
}

// Booking sources that were not taken through an OTA platform
var directSources = map[string]bool{
	"":        true,
	"direct":  true,
	"walk_in": true,
	"phone":   true,
	"website": true,
}

// IsDirect reports whether the booking was taken directly by the property
func (b *Booking) IsDirect() bool {
	return directSources[strings.ToLower(strings.TrimSpace(b.Source))]
}

// Platform returns the booking channel name used in conflict details
func (b *Booking) Platform() string {
	if b.IsDirect() {
		return "direct"
	}
	return b.Source
}

// Nights returns the number of nights in the half-open stay [CheckIn, CheckOut)
func (b *Booking) Nights() int {
	return Nights(b.CheckIn, b.CheckOut)
}

// HasAmount reports whether a usable total amount is recorded
func (b *Booking) HasAmount() bool {
	return b.TotalAmount != nil && *b.TotalAmount != 0
}

// BookingFilter narrows ListActiveBookings. Zero dates are ignored.
type BookingFilter struct {
	CheckInFrom  time.Time
	CheckOutFrom time.Time
}

// Platform sync status values
const (
	SyncStatusSynced  = "synced"
	SyncStatusPending = "pending"
	SyncStatusFailed  = "failed"
)

// PlatformSyncRow is the OTA calendar sync state of a single booking
type PlatformSyncRow struct {
	BookingID         string     `json:"bookingId"`
	PropertyID        string     `json:"propertyId"`
	Platform          string     `json:"platform"`
	SyncStatus        string     `json:"syncStatus"`
	LastSyncAt        *time.Time `json:"lastSyncAt,omitempty"`
	ErrorMessage      *string    `json:"errorMessage,omitempty"`
	SyncAttempts      int        `json:"syncAttempts"`
	ResyncRequestedAt *time.Time `json:"resyncRequestedAt,omitempty"`
}

// DateOf truncates t to its calendar date in loc, returned as midnight UTC
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD stay date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// FormatDate renders a stay date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Nights counts whole days between two stay dates
func Nights(checkIn, checkOut time.Time) int {
	n := int(DateOf(checkOut, time.UTC).Sub(DateOf(checkIn, time.UTC)).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}
