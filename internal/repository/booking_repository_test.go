package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelpms/server/internal/models"
)

func insertBooking(t *testing.T, db *Database, id, propertyID, roomNo, checkIn, checkOut string, cancelled bool, amount interface{}, source string) {
	t.Helper()

	var room interface{}
	if roomNo != "" {
		room = roomNo
	}
	_, err := db.SQL().Exec(`
		INSERT INTO bookings (id, property_id, room_no, guest_name, check_in, check_out, cancelled, total_amount, source, booking_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, propertyID, room, "Guest "+id, checkIn, checkOut, cancelled, amount, source,
		time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
}

func TestBookingRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewBookingRepository(db)

	insertBooking(t, db, "bk-1", "prop-1", "101", "2024-01-10", "2024-01-15", false, 500.0, "direct")
	insertBooking(t, db, "bk-2", "prop-1", "101", "2024-01-02", "2024-01-05", false, 300.0, "airbnb")
	insertBooking(t, db, "bk-3", "prop-1", "", "2024-01-20", "2024-01-22", false, nil, "booking.com")
	insertBooking(t, db, "bk-4", "prop-1", "102", "2024-01-12", "2024-01-14", true, 200.0, "direct")
	insertBooking(t, db, "bk-5", "prop-2", "201", "2024-01-12", "2024-01-14", false, 200.0, "direct")

	t.Run("lists non-cancelled bookings of property", func(t *testing.T) {
		bookings, err := repo.ListActiveBookings(ctx, "prop-1", models.BookingFilter{})
		require.NoError(t, err)

		require.Len(t, bookings, 3)
		assert.Equal(t, "bk-2", bookings[0].ID)
		assert.Equal(t, "bk-1", bookings[1].ID)
		assert.Equal(t, "bk-3", bookings[2].ID)
	})

	t.Run("filters by check-out date", func(t *testing.T) {
		bookings, err := repo.ListActiveBookings(ctx, "prop-1", models.BookingFilter{
			CheckOutFrom: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		// check_out >= today keeps a booking checking out today
		assert.Len(t, bookings, 3)

		bookings, err = repo.ListActiveBookings(ctx, "prop-1", models.BookingFilter{
			CheckOutFrom: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Len(t, bookings, 2)
	})

	t.Run("filters by check-in date", func(t *testing.T) {
		bookings, err := repo.ListActiveBookings(ctx, "prop-1", models.BookingFilter{
			CheckInFrom: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		require.Len(t, bookings, 1)
		assert.Equal(t, "bk-3", bookings[0].ID)
	})

	t.Run("maps nullable columns", func(t *testing.T) {
		booking, err := repo.GetBooking(ctx, "bk-3")
		require.NoError(t, err)
		require.NotNil(t, booking)

		assert.Empty(t, booking.RoomNo)
		assert.Nil(t, booking.TotalAmount)
		assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), booking.CheckIn)
		assert.Equal(t, 2, booking.Nights())
		require.NotNil(t, booking.BookingDate)
	})

	t.Run("missing booking returns nil", func(t *testing.T) {
		booking, err := repo.GetBooking(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, booking)
	})

	t.Run("updates amount", func(t *testing.T) {
		require.NoError(t, repo.UpdateBookingAmount(ctx, "bk-3", 6000))

		booking, err := repo.GetBooking(ctx, "bk-3")
		require.NoError(t, err)
		require.NotNil(t, booking.TotalAmount)
		assert.Equal(t, 6000.0, *booking.TotalAmount)

		assert.ErrorIs(t, repo.UpdateBookingAmount(ctx, "nope", 1), models.ErrBookingNotFound)
	})

	t.Run("lists property ids", func(t *testing.T) {
		ids, err := repo.ListPropertyIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"prop-1", "prop-2"}, ids)
	})
}

func TestPlatformSyncRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPlatformSyncRepository(db)

	_, err := db.SQL().Exec(`
		INSERT INTO platform_sync_state (booking_id, property_id, platform, sync_status, last_sync_at, error_message, sync_attempts)
		VALUES ('bk-1', 'prop-1', 'airbnb', 'failed', ?, 'calendar rejected', 2),
		       ('bk-2', 'prop-1', 'booking.com', 'synced', NULL, NULL, 0)`,
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	rows, err := repo.ListPlatformSyncState(ctx, "prop-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SyncStatusFailed, rows[0].SyncStatus)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "calendar rejected", *rows[0].ErrorMessage)
	require.NotNil(t, rows[0].LastSyncAt)
	assert.Nil(t, rows[1].LastSyncAt)

	require.NoError(t, repo.RequestResync(ctx, "bk-1"))

	rows, err = repo.ListPlatformSyncState(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, rows[0].SyncStatus)
	assert.Equal(t, 3, rows[0].SyncAttempts)
	assert.NotNil(t, rows[0].ResyncRequestedAt)

	assert.ErrorIs(t, repo.RequestResync(ctx, "nope"), models.ErrBookingNotFound)
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	_, err := db.SQL().Exec(`INSERT INTO rooms (property_id, room_no, room_type, base_rate) VALUES
		('prop-1', '101', 'double', 2000), ('prop-1', '102', 'single', 1500)`)
	require.NoError(t, err)

	rate, err := repo.GetRoomRate(ctx, "prop-1", "101")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, rate)

	_, err = repo.GetRoomRate(ctx, "prop-1", "999")
	assert.ErrorIs(t, err, models.ErrRoomRateNotFound)

	rooms, err := repo.ListRoomNumbers(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102"}, rooms)
}
