package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
)

// ConflictDetectionService runs all detectors for a property and stores the results
type ConflictDetectionService struct {
	detectors    []Detector
	advisor      *ResolutionAdvisor
	conflictRepo repository.ConflictRepo
	runRepo      repository.DetectionRunRepo
	publisher    EventPublisher
	metrics      *observability.ConflictMetrics
	logger       *observability.Logger
	location     *time.Location
	timeout      time.Duration
	now          func() time.Time
}

type detectorResult struct {
	candidates []Candidate
	err        error
}

// NewConflictDetectionService creates a new ConflictDetectionService.
// location decides which calendar day "today" is for the property.
func NewConflictDetectionService(
	conflictRepo repository.ConflictRepo,
	runRepo repository.DetectionRunRepo,
	advisor *ResolutionAdvisor,
	location *time.Location,
	detectors ...Detector,
) *ConflictDetectionService {
	if location == nil {
		location = time.UTC
	}
	return &ConflictDetectionService{
		detectors:    detectors,
		advisor:      advisor,
		conflictRepo: conflictRepo,
		runRepo:      runRepo,
		location:     location,
		now:          time.Now,
		logger:       observability.GetLogger().WithField("component", "conflict_detection"),
	}
}

// SetEventPublisher sets the hub notified after each detection pass
func (s *ConflictDetectionService) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// SetMetrics sets the metrics instruments
func (s *ConflictDetectionService) SetMetrics(metrics *observability.ConflictMetrics) {
	s.metrics = metrics
}

// SetClock overrides the time source
func (s *ConflictDetectionService) SetClock(now func() time.Time) {
	s.now = now
}

// SetTimeout bounds each detection pass. Zero disables the bound.
func (s *ConflictDetectionService) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Today returns the property's current date at midnight UTC
func (s *ConflictDetectionService) Today() time.Time {
	return models.DateOf(s.now(), s.location)
}

// DetectConflicts runs every detector for the property and upserts what they find.
// A failing detector only loses its own conflicts; the call fails with
// ErrDetectionFailed when no detector succeeded.
func (s *ConflictDetectionService) DetectConflicts(ctx context.Context, propertyID string) (*models.DetectionReport, error) {
	if propertyID == "" {
		return nil, models.ErrEmptyPropertyID
	}

	ctx, span := observability.StartServiceSpan(ctx, "ConflictDetectionService", "DetectConflicts")
	defer span.End()
	span.SetAttributes(observability.PropertyID(propertyID))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	today := s.Today()
	run := models.NewDetectionRun(propertyID)
	logger := s.logger.WithContext(ctx).WithField("property_id", propertyID).WithField("run_id", run.ID)

	results := s.runDetectors(ctx, propertyID, today)

	var candidates []Candidate
	for i, result := range results {
		name := s.detectors[i].Name()
		if result.err != nil {
			err := fmt.Errorf("%w: %s detector: %v", models.ErrDetectionFailed, name, result.err)
			run.FailedDetectors = append(run.FailedDetectors, models.DetectorFailure{Detector: name, Error: result.err.Error()})
			logger.WithField("detector", name).Errorf("Detector failed: %v", err)
			s.metrics.RecordDetectorFailure(ctx, propertyID, name)
			observability.AddEvent(span, "detector_failed", observability.Detector(name))
			continue
		}
		candidates = append(candidates, result.candidates...)
	}
	run.DetectedCount = len(candidates)

	if len(s.detectors) > 0 && len(run.FailedDetectors) == len(s.detectors) {
		run.Cancelled = ctx.Err() != nil
		s.finishRun(ctx, run, logger)

		names := make([]string, 0, len(run.FailedDetectors))
		for _, f := range run.FailedDetectors {
			names = append(names, f.Detector)
		}
		err := fmt.Errorf("%w: all detectors failed for property %s (%s)",
			models.ErrDetectionFailed, propertyID, strings.Join(names, ", "))
		observability.RecordError(span, err)
		return nil, err
	}

	conflicts := make([]*models.Conflict, 0, len(candidates))
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}

		c := candidate.Conflict
		c.SuggestedResolution = s.advisor.Suggest(candidate, today)

		stored, err := s.conflictRepo.Upsert(ctx, c)
		if err != nil {
			run.PersistFailures++
			logger.WithField("conflict_id", c.ID).Errorf("%v: %v", models.ErrPersistenceFailed, err)
			s.metrics.RecordPersistFailure(ctx, propertyID)
			continue
		}

		conflicts = append(conflicts, stored)
		s.metrics.RecordConflictDetected(ctx, propertyID, stored.ConflictType, stored.Severity)
	}

	run.PersistedCount = len(conflicts)
	run.Cancelled = ctx.Err() != nil
	s.finishRun(ctx, run, logger)

	report := &models.DetectionReport{Run: run, Conflicts: conflicts}
	s.metrics.RecordDetectionRun(ctx, propertyID, time.Since(start), report.Partial())
	s.notifyDetected(report)

	span.SetAttributes(
		attribute.Int("conflicts.detected", run.DetectedCount),
		attribute.Int("conflicts.persisted", run.PersistedCount),
		attribute.Bool("detection.partial", report.Partial()),
	)
	observability.SetSuccess(span)

	logger.WithFields(map[string]interface{}{
		"detected":         run.DetectedCount,
		"persisted":        run.PersistedCount,
		"failed_detectors": len(run.FailedDetectors),
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("Conflict detection completed")

	return report, nil
}

// runDetectors runs each detector in its own goroutine. Detectors not yet
// started when ctx is done are recorded as failed with the context error.
func (s *ConflictDetectionService) runDetectors(ctx context.Context, propertyID string, today time.Time) []detectorResult {
	results := make([]detectorResult, len(s.detectors))

	var wg sync.WaitGroup
	for i, detector := range s.detectors {
		if err := ctx.Err(); err != nil {
			results[i].err = err
			continue
		}

		wg.Add(1)
		go func(i int, detector Detector) {
			defer wg.Done()

			dctx, span := observability.StartServiceSpan(ctx, "Detector", detector.Name())
			defer span.End()

			candidates, err := detector.Detect(dctx, propertyID, today)
			if err != nil {
				observability.RecordError(span, err)
				results[i].err = err
				return
			}
			span.SetAttributes(attribute.Int("conflicts.found", len(candidates)))
			observability.SetSuccess(span)
			results[i].candidates = candidates
		}(i, detector)
	}
	wg.Wait()

	return results
}

func (s *ConflictDetectionService) finishRun(ctx context.Context, run *models.DetectionRun, logger *observability.Logger) {
	run.Finish()
	if s.runRepo == nil {
		return
	}
	// The run summary is written even when the pass was cancelled
	if err := s.runRepo.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warnf("Failed to save detection run: %v", err)
	}
}

func (s *ConflictDetectionService) notifyDetected(report *models.DetectionReport) {
	if s.publisher == nil {
		return
	}

	failed := make([]string, 0, len(report.Run.FailedDetectors))
	for _, f := range report.Run.FailedDetectors {
		failed = append(failed, f.Detector)
	}

	s.publisher.BroadcastToTopic(PropertyTopic(report.Run.PropertyID), WSMessage{
		Type: WSTypeConflictsDetected,
		Payload: ConflictsDetectedPayload{
			PropertyID:      report.Run.PropertyID,
			RunID:           report.Run.ID,
			Detected:        report.Run.DetectedCount,
			Persisted:       report.Run.PersistedCount,
			FailedDetectors: failed,
			Partial:         report.Partial(),
		},
	})
}
