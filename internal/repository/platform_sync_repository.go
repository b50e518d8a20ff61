package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hotelpms/server/internal/models"
)

// PlatformSyncRepository implements PlatformRepo
type PlatformSyncRepository struct {
	db *Database
}

// NewPlatformSyncRepository creates a new platform sync state repository
func NewPlatformSyncRepository(db *Database) *PlatformSyncRepository {
	return &PlatformSyncRepository{db: db}
}

// ListPlatformSyncState returns the sync state rows of a property
func (r *PlatformSyncRepository) ListPlatformSyncState(ctx context.Context, propertyID string) ([]*models.PlatformSyncRow, error) {
	query := `
		SELECT booking_id, property_id, platform, sync_status, last_sync_at,
			error_message, sync_attempts, resync_requested_at
		FROM platform_sync_state
		WHERE property_id = ?
		ORDER BY booking_id
	`

	rows, err := r.db.query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.PlatformSyncRow
	for rows.Next() {
		row := &models.PlatformSyncRow{}
		var lastSyncAt, resyncRequestedAt sql.NullTime
		var errorMessage sql.NullString

		if err := rows.Scan(
			&row.BookingID,
			&row.PropertyID,
			&row.Platform,
			&row.SyncStatus,
			&lastSyncAt,
			&errorMessage,
			&row.SyncAttempts,
			&resyncRequestedAt,
		); err != nil {
			return nil, err
		}

		if lastSyncAt.Valid {
			row.LastSyncAt = &lastSyncAt.Time
		}
		if errorMessage.Valid {
			row.ErrorMessage = &errorMessage.String
		}
		if resyncRequestedAt.Valid {
			row.ResyncRequestedAt = &resyncRequestedAt.Time
		}

		result = append(result, row)
	}
	return result, rows.Err()
}

// RequestResync queues the booking for another push to its platform
func (r *PlatformSyncRepository) RequestResync(ctx context.Context, bookingID string) error {
	query := `
		UPDATE platform_sync_state
		SET sync_status = ?, sync_attempts = sync_attempts + 1, resync_requested_at = ?
		WHERE booking_id = ?
	`
	result, err := r.db.exec(ctx, query, models.SyncStatusPending, time.Now().UTC(), bookingID)
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
