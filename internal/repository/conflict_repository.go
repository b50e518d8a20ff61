package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hotelpms/server/internal/models"
)

// ConflictRepository implements ConflictRepo and DetectionRunRepo
type ConflictRepository struct {
	db *Database
}

// NewConflictRepository creates a new conflict repository
func NewConflictRepository(db *Database) *ConflictRepository {
	return &ConflictRepository{db: db}
}

const conflictColumns = `id, property_id, conflict_type, severity, status,
	conflict_date_start, conflict_date_end, room_no, booking_id_1, booking_id_2,
	description, details, suggested_resolution,
	resolved_by, resolved_at, resolution_action, resolution_notes,
	created_at, updated_at`

// Upsert inserts a newly detected conflict or refreshes the detail fields of an
// existing one. Status and resolution columns are never written on the update
// path, so a resolved or ignored conflict stays closed when detected again.
func (r *ConflictRepository) Upsert(ctx context.Context, conflict *models.Conflict) (*models.Conflict, error) {
	details, err := json.Marshal(conflict.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}

	var resolution sql.NullString
	autoResolvable := false
	if conflict.SuggestedResolution != nil {
		data, err := json.Marshal(conflict.SuggestedResolution)
		if err != nil {
			return nil, fmt.Errorf("encode suggested resolution: %w", err)
		}
		resolution = sql.NullString{String: string(data), Valid: true}
		autoResolvable = conflict.SuggestedResolution.AutoResolvable
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO booking_conflicts (
			id, property_id, conflict_type, severity, status,
			conflict_date_start, conflict_date_end, room_no, booking_id_1, booking_id_2,
			description, details, suggested_resolution, auto_resolvable,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			severity = excluded.severity,
			conflict_date_start = excluded.conflict_date_start,
			conflict_date_end = excluded.conflict_date_end,
			room_no = excluded.room_no,
			booking_id_1 = excluded.booking_id_1,
			booking_id_2 = excluded.booking_id_2,
			description = excluded.description,
			details = excluded.details,
			suggested_resolution = excluded.suggested_resolution,
			auto_resolvable = excluded.auto_resolvable,
			updated_at = excluded.updated_at
	`
	_, err = r.db.exec(ctx, query,
		conflict.ID,
		conflict.PropertyID,
		conflict.ConflictType,
		conflict.Severity,
		models.ConflictStatusDetected,
		models.FormatDate(conflict.ConflictDateStart),
		models.FormatDate(conflict.ConflictDateEnd),
		conflict.RoomNo,
		conflict.BookingID1,
		conflict.BookingID2,
		conflict.Description,
		string(details),
		resolution,
		autoResolvable,
		now,
		now,
	)
	if err != nil {
		return nil, err
	}

	stored, err := r.GetByID(ctx, conflict.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("conflict %s missing after upsert", conflict.ID)
	}
	return stored, nil
}

// GetByID retrieves a conflict by its ID, returning nil when it does not exist
func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM booking_conflicts WHERE id = ?`

	conflict, err := scanConflict(r.db.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conflict, err
}

// List returns conflicts matching filter, most severe first, plus the total count
func (r *ConflictRepository) List(ctx context.Context, filter models.ConflictFilter) ([]*models.Conflict, int, error) {
	where := []string{"property_id = ?"}
	args := []interface{}{filter.PropertyID}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where = append(where, "conflict_type = ?")
		args = append(args, filter.Type)
	}
	if filter.AutoResolvableOnly {
		where = append(where, "auto_resolvable = ?")
		args = append(args, true)
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM booking_conflicts`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataQuery := `SELECT ` + conflictColumns + ` FROM booking_conflicts` + whereClause + `
		ORDER BY CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			conflict_date_start, id`
	if filter.Take > 0 {
		dataQuery += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Take, filter.Skip)
	}

	rows, err := r.db.query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	conflicts := []*models.Conflict{}
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, 0, err
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, total, rows.Err()
}

// Resolve moves a detected conflict to resolved
func (r *ConflictRepository) Resolve(ctx context.Context, id string, resolution models.ConflictResolution, resolvedBy string) error {
	return r.close(ctx, id, models.ConflictStatusResolved, resolution.Action, resolution.Notes, resolvedBy)
}

// Ignore moves a detected conflict to ignored
func (r *ConflictRepository) Ignore(ctx context.Context, id, notes, ignoredBy string) error {
	return r.close(ctx, id, models.ConflictStatusIgnored, "ignore", notes, ignoredBy)
}

// close performs the detected -> terminal transition in a single statement so
// concurrent resolvers cannot both succeed.
func (r *ConflictRepository) close(ctx context.Context, id, status, action, notes, by string) error {
	var notesValue sql.NullString
	if notes != "" {
		notesValue = sql.NullString{String: notes, Valid: true}
	}

	now := time.Now().UTC()
	query := `
		UPDATE booking_conflicts
		SET status = ?, resolved_by = ?, resolved_at = ?, resolution_action = ?,
			resolution_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.exec(ctx, query, status, by, now, action, notesValue, now, id, models.ConflictStatusDetected)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.ErrConflictNotFound
	}
	return models.ErrConflictClosed
}

// GetStats returns conflict counts grouped by type, severity and status
func (r *ConflictRepository) GetStats(ctx context.Context, propertyID string) (*models.ConflictStats, error) {
	query := `
		SELECT conflict_type, severity, status, COUNT(*)
		FROM booking_conflicts
		WHERE property_id = ?
		GROUP BY conflict_type, severity, status
	`

	rows, err := r.db.query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := models.NewConflictStats(propertyID)
	for rows.Next() {
		var conflictType, severity, status string
		var count int
		if err := rows.Scan(&conflictType, &severity, &status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByType[conflictType] += count
		stats.BySeverity[severity] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.queryRow(ctx,
		`SELECT COUNT(*) FROM booking_conflicts WHERE property_id = ? AND status = ? AND auto_resolvable = ?`,
		propertyID, models.ConflictStatusDetected, true,
	).Scan(&stats.AutoResolvable)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// SaveRun records a detection run summary
func (r *ConflictRepository) SaveRun(ctx context.Context, run *models.DetectionRun) error {
	failed, err := json.Marshal(run.FailedDetectors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conflict_detection_runs (
			id, property_id, started_at, finished_at, detected_count,
			persisted_count, persist_failures, failed_detectors, cancelled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.exec(ctx, query,
		run.ID,
		run.PropertyID,
		run.StartedAt,
		run.FinishedAt,
		run.DetectedCount,
		run.PersistedCount,
		run.PersistFailures,
		string(failed),
		run.Cancelled,
	)
	return err
}

// LatestRun returns the most recent detection run of a property, or nil
func (r *ConflictRepository) LatestRun(ctx context.Context, propertyID string) (*models.DetectionRun, error) {
	query := `
		SELECT id, property_id, started_at, finished_at, detected_count,
			persisted_count, persist_failures, failed_detectors, cancelled
		FROM conflict_detection_runs
		WHERE property_id = ?
		ORDER BY started_at DESC
		LIMIT 1
	`

	run := &models.DetectionRun{}
	var finishedAt sql.NullTime
	var failed string
	err := r.db.queryRow(ctx, query, propertyID).Scan(
		&run.ID,
		&run.PropertyID,
		&run.StartedAt,
		&finishedAt,
		&run.DetectedCount,
		&run.PersistedCount,
		&run.PersistFailures,
		&failed,
		&run.Cancelled,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.FailedDetectors = []models.DetectorFailure{}
	if err := json.Unmarshal([]byte(failed), &run.FailedDetectors); err != nil {
		return nil, fmt.Errorf("decode failed detectors: %w", err)
	}
	return run, nil
}

// scanConflict scans a single row into a Conflict
func scanConflict(row scanner) (*models.Conflict, error) {
	conflict := &models.Conflict{}
	var start, end, details string
	var bookingID2, suggested sql.NullString
	var resolvedBy, resolutionAction, resolutionNotes sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&conflict.ID,
		&conflict.PropertyID,
		&conflict.ConflictType,
		&conflict.Severity,
		&conflict.Status,
		&start,
		&end,
		&conflict.RoomNo,
		&conflict.BookingID1,
		&bookingID2,
		&conflict.Description,
		&details,
		&suggested,
		&resolvedBy,
		&resolvedAt,
		&resolutionAction,
		&resolutionNotes,
		&conflict.CreatedAt,
		&conflict.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conflict.ConflictDateStart, err = models.ParseDate(start); err != nil {
		return nil, fmt.Errorf("conflict %s: invalid start date: %w", conflict.ID, err)
	}
	if conflict.ConflictDateEnd, err = models.ParseDate(end); err != nil {
		return nil, fmt.Errorf("conflict %s: invalid end date: %w", conflict.ID, err)
	}

	conflict.Details = map[string]interface{}{}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &conflict.Details); err != nil {
			return nil, fmt.Errorf("conflict %s: decode details: %w", conflict.ID, err)
		}
	}
	if suggested.Valid {
		conflict.SuggestedResolution = &models.SuggestedResolution{}
		if err := json.Unmarshal([]byte(suggested.String), conflict.SuggestedResolution); err != nil {
			return nil, fmt.Errorf("conflict %s: decode suggested resolution: %w", conflict.ID, err)
		}
	}

	if bookingID2.Valid {
		conflict.BookingID2 = &bookingID2.String
	}
	if resolvedBy.Valid {
		conflict.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		conflict.ResolvedAt = &resolvedAt.Time
	}
	if resolutionAction.Valid {
		conflict.ResolutionAction = &resolutionAction.String
	}
	if resolutionNotes.Valid {
		conflict.ResolutionNotes = &resolutionNotes.String
	}

	return conflict, nil
}
