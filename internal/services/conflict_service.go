package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
)

var validStatuses = map[string]bool{
	models.ConflictStatusDetected: true,
	models.ConflictStatusResolved: true,
	models.ConflictStatusIgnored:  true,
}

var validTypes = map[string]bool{
	models.ConflictTypeDoubleBooking:        true,
	models.ConflictTypeSyncFailed:           true,
	models.ConflictTypeAvailabilityMismatch: true,
	models.ConflictTypePricingMismatch:      true,
}

// ConflictService is the entry point used by the HTTP API, the CLI and the scheduler
type ConflictService struct {
	detection    *ConflictDetectionService
	autoResolver *AutoResolverService
	conflictRepo repository.ConflictRepo
	runRepo      repository.DetectionRunRepo
	publisher    EventPublisher
	metrics      *observability.ConflictMetrics
	logger       *observability.Logger
}

// NewConflictService creates a new ConflictService
func NewConflictService(
	detection *ConflictDetectionService,
	autoResolver *AutoResolverService,
	conflictRepo repository.ConflictRepo,
	runRepo repository.DetectionRunRepo,
) *ConflictService {
	return &ConflictService{
		detection:    detection,
		autoResolver: autoResolver,
		conflictRepo: conflictRepo,
		runRepo:      runRepo,
		logger:       observability.GetLogger().WithField("component", "conflict_service"),
	}
}

// SetEventPublisher sets the hub for conflict events on this service and its workers
func (s *ConflictService) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
	s.detection.SetEventPublisher(publisher)
	s.autoResolver.SetEventPublisher(publisher)
}

// SetMetrics sets the metrics instruments on this service and its workers
func (s *ConflictService) SetMetrics(metrics *observability.ConflictMetrics) {
	s.metrics = metrics
	s.detection.SetMetrics(metrics)
	s.autoResolver.SetMetrics(metrics)
}

// DetectConflicts runs a detection pass for a property
func (s *ConflictService) DetectConflicts(ctx context.Context, propertyID string) (*models.DetectionReport, error) {
	return s.detection.DetectConflicts(ctx, propertyID)
}

// AutoResolveConflicts applies automated fixes for a property
func (s *ConflictService) AutoResolveConflicts(ctx context.Context, propertyID string) (int, error) {
	return s.autoResolver.AutoResolveConflicts(ctx, propertyID)
}

// ResolveConflict closes a detected conflict as resolved
func (s *ConflictService) ResolveConflict(ctx context.Context, conflictID string, resolution models.ConflictResolution, resolvedBy string) (*models.Conflict, error) {
	resolution.Action = strings.TrimSpace(resolution.Action)
	if resolution.Action == "" {
		return nil, models.ErrInvalidResolution
	}
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, models.ErrResolverRequired
	}

	ctx, span := observability.StartServiceSpan(ctx, "ConflictService", "ResolveConflict")
	defer span.End()
	span.SetAttributes(observability.ConflictID(conflictID))

	if err := s.conflictRepo.Resolve(ctx, conflictID, resolution, resolvedBy); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordResolution(ctx, resolution.Action, models.ConflictStatusResolved, false)

	conflict, err := s.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"conflict_id": conflictID,
		"action":      resolution.Action,
		"resolved_by": resolvedBy,
	}).Info("Conflict resolved")

	s.notifyStatus(conflict, WSTypeConflictResolved, resolution.Action, resolvedBy)
	observability.SetSuccess(span)
	return conflict, nil
}

// IgnoreConflict closes a detected conflict as ignored
func (s *ConflictService) IgnoreConflict(ctx context.Context, conflictID, notes, ignoredBy string) (*models.Conflict, error) {
	if strings.TrimSpace(ignoredBy) == "" {
		return nil, models.ErrResolverRequired
	}

	ctx, span := observability.StartServiceSpan(ctx, "ConflictService", "IgnoreConflict")
	defer span.End()
	span.SetAttributes(observability.ConflictID(conflictID))

	if err := s.conflictRepo.Ignore(ctx, conflictID, notes, ignoredBy); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordResolution(ctx, "ignore", models.ConflictStatusIgnored, false)

	conflict, err := s.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"conflict_id": conflictID,
		"ignored_by":  ignoredBy,
	}).Info("Conflict ignored")

	s.notifyStatus(conflict, WSTypeConflictIgnored, "", ignoredBy)
	observability.SetSuccess(span)
	return conflict, nil
}

// GetConflict returns a single conflict
func (s *ConflictService) GetConflict(ctx context.Context, conflictID string) (*models.Conflict, error) {
	conflict, err := s.conflictRepo.GetByID(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	if conflict == nil {
		return nil, models.ErrConflictNotFound
	}
	return conflict, nil
}

// GetConflicts returns all conflicts of a property, optionally with one status.
// An empty status returns every status.
func (s *ConflictService) GetConflicts(ctx context.Context, propertyID, status string) ([]*models.Conflict, error) {
	conflicts, _, err := s.ListConflicts(ctx, models.ConflictFilter{PropertyID: propertyID, Status: status})
	return conflicts, err
}

// ListConflicts returns a page of conflicts and the total matching count
func (s *ConflictService) ListConflicts(ctx context.Context, filter models.ConflictFilter) ([]*models.Conflict, int, error) {
	if filter.PropertyID == "" {
		return nil, 0, models.ErrEmptyPropertyID
	}
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("%w: unknown status %q", models.ErrInvalidFilter, filter.Status)
	}
	if filter.Type != "" && !validTypes[filter.Type] {
		return nil, 0, fmt.Errorf("%w: unknown conflict type %q", models.ErrInvalidFilter, filter.Type)
	}
	if filter.Skip < 0 || filter.Take < 0 {
		return nil, 0, fmt.Errorf("%w: skip and take must not be negative", models.ErrInvalidFilter)
	}

	conflicts, total, err := s.conflictRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conflicts: %w", err)
	}
	if conflicts == nil {
		conflicts = []*models.Conflict{}
	}
	return conflicts, total, nil
}

// GetConflictStats returns aggregate counts for a property
func (s *ConflictService) GetConflictStats(ctx context.Context, propertyID string) (*models.ConflictStats, error) {
	if propertyID == "" {
		return nil, models.ErrEmptyPropertyID
	}
	stats, err := s.conflictRepo.GetStats(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict stats: %w", err)
	}
	return stats, nil
}

// LatestRun returns the most recent detection run of a property, or nil
func (s *ConflictService) LatestRun(ctx context.Context, propertyID string) (*models.DetectionRun, error) {
	if propertyID == "" {
		return nil, models.ErrEmptyPropertyID
	}
	run, err := s.runRepo.LatestRun(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest detection run: %w", err)
	}
	return run, nil
}

func (s *ConflictService) notifyStatus(c *models.Conflict, msgType, action, by string) {
	if s.publisher == nil {
		return
	}
	s.publisher.BroadcastToTopic(PropertyTopic(c.PropertyID), WSMessage{
		Type: msgType,
		Payload: ConflictStatusPayload{
			PropertyID: c.PropertyID,
			ConflictID: c.ID,
			Status:     c.Status,
			Action:     action,
			By:         by,
		},
	})
}
