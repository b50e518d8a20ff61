package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hotelpms/server/internal/models"
)

// BookingRepository implements BookingRepo and BookingWriter
type BookingRepository struct {
	db *Database
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *Database) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, property_id, room_no, guest_name, check_in, check_out,
	cancelled, total_amount, source, booking_date`

// ListActiveBookings returns the property's non-cancelled bookings matching filter
func (r *BookingRepository) ListActiveBookings(ctx context.Context, propertyID string, filter models.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = ? AND cancelled = ?`
	args := []interface{}{propertyID, false}

	// Stay dates are stored as YYYY-MM-DD so string comparison orders them
	if !filter.CheckInFrom.IsZero() {
		query += ` AND check_in >= ?`
		args = append(args, models.FormatDate(filter.CheckInFrom))
	}
	if !filter.CheckOutFrom.IsZero() {
		query += ` AND check_out >= ?`
		args = append(args, models.FormatDate(filter.CheckOutFrom))
	}
	query += ` ORDER BY check_in, id`

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// GetBooking retrieves a booking by ID, returning nil when it does not exist
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	booking, err := scanBooking(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

// ListPropertyIDs returns every property that has bookings
func (r *BookingRepository) ListPropertyIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.query(ctx, `SELECT DISTINCT property_id FROM bookings ORDER BY property_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateBookingAmount stores a recomputed total amount
func (r *BookingRepository) UpdateBookingAmount(ctx context.Context, bookingID string, amount float64) error {
	result, err := r.db.exec(ctx,
		`UPDATE bookings SET total_amount = ?, updated_at = ? WHERE id = ?`,
		amount, time.Now().UTC(), bookingID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

func scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var roomNo sql.NullString
	var checkIn, checkOut string
	var totalAmount sql.NullFloat64
	var bookingDate sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.PropertyID,
		&roomNo,
		&booking.GuestName,
		&checkIn,
		&checkOut,
		&booking.Cancelled,
		&totalAmount,
		&booking.Source,
		&bookingDate,
	)
	if err != nil {
		return nil, err
	}

	if booking.CheckIn, err = models.ParseDate(checkIn); err != nil {
		return nil, fmt.Errorf("booking %s: invalid check_in %q: %w", booking.ID, checkIn, err)
	}
	if booking.CheckOut, err = models.ParseDate(checkOut); err != nil {
		return nil, fmt.Errorf("booking %s: invalid check_out %q: %w", booking.ID, checkOut, err)
	}
	if roomNo.Valid {
		booking.RoomNo = roomNo.String
	}
	if totalAmount.Valid {
		booking.TotalAmount = &totalAmount.Float64
	}
	if bookingDate.Valid {
		booking.BookingDate = &bookingDate.Time
	}

	return booking, nil
}
