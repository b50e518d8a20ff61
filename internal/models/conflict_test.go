package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictID(t *testing.T) {
	t.Run("is independent of participant order", func(t *testing.T) {
		a := ConflictID(ConflictTypeDoubleBooking, "bk-20", "bk-3")
		b := ConflictID(ConflictTypeDoubleBooking, "bk-3", "bk-20")

		assert.Equal(t, a, b)
		assert.Equal(t, "double_booking:bk-20:bk-3", a)
	})

	t.Run("differs by conflict type", func(t *testing.T) {
		assert.NotEqual(t,
			ConflictID(ConflictTypeSyncFailed, "bk-1"),
			ConflictID(ConflictTypePricingMismatch, "bk-1"),
		)
	})

	t.Run("skips empty participants", func(t *testing.T) {
		assert.Equal(t, "pricing_mismatch:bk-1", ConflictID(ConflictTypePricingMismatch, "bk-1", ""))
	})
}

func TestNewConflict(t *testing.T) {
	start := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("orders booking ids canonically", func(t *testing.T) {
		c := NewConflict("prop-1", ConflictTypeDoubleBooking, SeverityHigh, start, end, "b", "a")

		assert.Equal(t, "a", c.BookingID1)
		require.NotNil(t, c.BookingID2)
		assert.Equal(t, "b", *c.BookingID2)
		assert.Equal(t, ConflictStatusDetected, c.Status)
		assert.Equal(t, c.ID, ConflictID(ConflictTypeDoubleBooking, "a", "b"))
		assert.NotNil(t, c.Details)
	})

	t.Run("single participant has no second booking", func(t *testing.T) {
		c := NewConflict("prop-1", ConflictTypePricingMismatch, SeverityLow, start, end, "a")

		assert.Equal(t, "a", c.BookingID1)
		assert.Nil(t, c.BookingID2)
		assert.False(t, c.IsTerminal())
		assert.False(t, c.IsAutoResolvable())
	})
}

func TestBooking(t *testing.T) {
	t.Run("counts nights in half-open stay", func(t *testing.T) {
		b := &Booking{
			CheckIn:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			CheckOut: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
		}
		assert.Equal(t, 3, b.Nights())
	})

	t.Run("classifies provenance", func(t *testing.T) {
		assert.True(t, (&Booking{Source: "Direct"}).IsDirect())
		assert.True(t, (&Booking{Source: ""}).IsDirect())
		assert.False(t, (&Booking{Source: "airbnb"}).IsDirect())
		assert.Equal(t, "direct", (&Booking{Source: "walk_in"}).Platform())
	})

	t.Run("zero amount is missing", func(t *testing.T) {
		zero := 0.0
		amount := 120.0
		assert.False(t, (&Booking{}).HasAmount())
		assert.False(t, (&Booking{TotalAmount: &zero}).HasAmount())
		assert.True(t, (&Booking{TotalAmount: &amount}).HasAmount())
	})
}

func TestDateOf(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	// 20:00 UTC on Jan 9 is already Jan 10 in Bangkok
	ts := time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), DateOf(ts, loc))
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), DateOf(ts, nil))

	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", FormatDate(d))
}
