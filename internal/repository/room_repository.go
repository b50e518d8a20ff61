package repository

import (
	"context"
	"database/sql"

	"github.com/hotelpms/server/internal/models"
)

// RoomRepository implements RoomRepo
type RoomRepository struct {
	db *Database
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *Database) *RoomRepository {
	return &RoomRepository{db: db}
}

// GetRoomRate returns the nightly base rate of a room
func (r *RoomRepository) GetRoomRate(ctx context.Context, propertyID, roomNo string) (float64, error) {
	var rate float64
	err := r.db.queryRow(ctx,
		`SELECT base_rate FROM rooms WHERE property_id = ? AND room_no = ?`,
		propertyID, roomNo,
	).Scan(&rate)

	if err == sql.ErrNoRows {
		return 0, models.ErrRoomRateNotFound
	}
	if err != nil {
		return 0, err
	}
	return rate, nil
}

// ListRoomNumbers returns the property's room inventory
func (r *RoomRepository) ListRoomNumbers(ctx context.Context, propertyID string) ([]string, error) {
	rows, err := r.db.query(ctx,
		`SELECT room_no FROM rooms WHERE property_id = ? ORDER BY room_no`,
		propertyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var roomNo string
		if err := rows.Scan(&roomNo); err != nil {
			return nil, err
		}
		rooms = append(rooms, roomNo)
	}
	return rooms, rows.Err()
}
