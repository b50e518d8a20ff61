package repository

import (
	"context"

	"github.com/hotelpms/server/internal/models"
)

// BookingRepo defines the read side of the booking store used by detection
type BookingRepo interface {
	ListActiveBookings(ctx context.Context, propertyID string, filter models.BookingFilter) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListPropertyIDs(ctx context.Context) ([]string, error)
}

// BookingWriter is the single write the conflict engine makes to bookings
type BookingWriter interface {
	UpdateBookingAmount(ctx context.Context, bookingID string, amount float64) error
}

// PlatformRepo defines access to OTA calendar sync state
type PlatformRepo interface {
	ListPlatformSyncState(ctx context.Context, propertyID string) ([]*models.PlatformSyncRow, error)
	RequestResync(ctx context.Context, bookingID string) error
}

// RoomRepo defines room inventory and rate lookups
type RoomRepo interface {
	GetRoomRate(ctx context.Context, propertyID, roomNo string) (float64, error)
	ListRoomNumbers(ctx context.Context, propertyID string) ([]string, error)
}

// ConflictRepo defines the conflict store
type ConflictRepo interface {
	Upsert(ctx context.Context, conflict *models.Conflict) (*models.Conflict, error)
	GetByID(ctx context.Context, id string) (*models.Conflict, error)
	List(ctx context.Context, filter models.ConflictFilter) ([]*models.Conflict, int, error)
	Resolve(ctx context.Context, id string, resolution models.ConflictResolution, resolvedBy string) error
	Ignore(ctx context.Context, id, notes, ignoredBy string) error
	GetStats(ctx context.Context, propertyID string) (*models.ConflictStats, error)
}

// DetectionRunRepo persists detection run summaries
type DetectionRunRepo interface {
	SaveRun(ctx context.Context, run *models.DetectionRun) error
	LatestRun(ctx context.Context, propertyID string) (*models.DetectionRun, error)
}
