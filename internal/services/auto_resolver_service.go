package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
)

// AutoResolverService applies the fixes the advisor marked as safe to automate
type AutoResolverService struct {
	conflictRepo  repository.ConflictRepo
	bookingRepo   repository.BookingRepo
	bookingWriter repository.BookingWriter
	platformRepo  repository.PlatformRepo
	roomRepo      repository.RoomRepo
	publisher     EventPublisher
	metrics       *observability.ConflictMetrics
	logger        *observability.Logger
}

// NewAutoResolverService creates a new AutoResolverService
func NewAutoResolverService(
	conflictRepo repository.ConflictRepo,
	bookingRepo repository.BookingRepo,
	bookingWriter repository.BookingWriter,
	platformRepo repository.PlatformRepo,
	roomRepo repository.RoomRepo,
) *AutoResolverService {
	return &AutoResolverService{
		conflictRepo:  conflictRepo,
		bookingRepo:   bookingRepo,
		bookingWriter: bookingWriter,
		platformRepo:  platformRepo,
		roomRepo:      roomRepo,
		logger:        observability.GetLogger().WithField("component", "auto_resolver"),
	}
}

// SetEventPublisher sets the hub notified after a batch
func (s *AutoResolverService) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// SetMetrics sets the metrics instruments
func (s *AutoResolverService) SetMetrics(metrics *observability.ConflictMetrics) {
	s.metrics = metrics
}

// AutoResolveConflicts fixes every detected, auto-resolvable conflict of the
// property and marks it resolved by the system. Failures are logged and the
// conflict is left detected. Returns how many conflicts were resolved.
func (s *AutoResolverService) AutoResolveConflicts(ctx context.Context, propertyID string) (int, error) {
	if propertyID == "" {
		return 0, models.ErrEmptyPropertyID
	}

	ctx, span := observability.StartServiceSpan(ctx, "AutoResolverService", "AutoResolveConflicts")
	defer span.End()
	span.SetAttributes(observability.PropertyID(propertyID))

	conflicts, _, err := s.conflictRepo.List(ctx, models.ConflictFilter{
		PropertyID:         propertyID,
		Status:             models.ConflictStatusDetected,
		AutoResolvableOnly: true,
	})
	if err != nil {
		observability.RecordError(span, err)
		return 0, fmt.Errorf("failed to list auto-resolvable conflicts: %w", err)
	}

	logger := s.logger.WithContext(ctx).WithField("property_id", propertyID)

	resolved := 0
	for _, c := range conflicts {
		if ctx.Err() != nil {
			logger.Warnf("Auto-resolution interrupted: %v", ctx.Err())
			break
		}
		// Double bookings always need a human decision
		if c.ConflictType == models.ConflictTypeDoubleBooking || !c.IsAutoResolvable() {
			continue
		}

		clog := logger.WithField("conflict_id", c.ID)
		action := c.SuggestedResolution.Action

		notes, err := s.apply(ctx, c)
		if errors.Is(err, models.ErrUnsupportedAutoResolution) {
			clog.Warnf("Skipping conflict: %v (%s)", err, action)
			continue
		}
		if err != nil {
			clog.Errorf("Auto-resolution failed: %v", err)
			continue
		}

		err = s.conflictRepo.Resolve(ctx, c.ID, models.ConflictResolution{Action: action, Notes: notes}, models.ResolverSystem)
		if err != nil {
			// Someone may have closed it while the fix ran
			clog.Warnf("Failed to mark conflict resolved: %v", err)
			continue
		}

		resolved++
		s.metrics.RecordResolution(ctx, action, models.ConflictStatusResolved, true)
		clog.Infof("Conflict auto-resolved with %s", action)
	}

	span.SetAttributes(attribute.Int("conflicts.resolved", resolved))
	observability.SetSuccess(span)

	if resolved > 0 && s.publisher != nil {
		s.publisher.BroadcastToTopic(PropertyTopic(propertyID), WSMessage{
			Type:    WSTypeAutoResolved,
			Payload: AutoResolvedPayload{PropertyID: propertyID, ResolvedCount: resolved},
		})
	}

	return resolved, nil
}

// apply performs the side effect of the suggested action and returns the
// resolution notes to record.
func (s *AutoResolverService) apply(ctx context.Context, c *models.Conflict) (string, error) {
	switch c.SuggestedResolution.Action {
	case models.ActionRetrySync:
		if err := s.platformRepo.RequestResync(ctx, c.BookingID1); err != nil {
			return "", fmt.Errorf("failed to request resync for booking %s: %w", c.BookingID1, err)
		}
		return "Platform resync requested", nil

	case models.ActionUpdatePricing:
		return s.updatePricing(ctx, c)
	}

	return "", models.ErrUnsupportedAutoResolution
}

func (s *AutoResolverService) updatePricing(ctx context.Context, c *models.Conflict) (string, error) {
	booking, err := s.bookingRepo.GetBooking(ctx, c.BookingID1)
	if err != nil {
		return "", fmt.Errorf("failed to load booking %s: %w", c.BookingID1, err)
	}
	if booking == nil {
		return "", fmt.Errorf("%w: %s", models.ErrBookingNotFound, c.BookingID1)
	}
	if booking.HasAmount() {
		return fmt.Sprintf("Total already set to %.2f", *booking.TotalAmount), nil
	}

	room := strings.TrimSpace(booking.RoomNo)
	if room == "" {
		return "", fmt.Errorf("%w: booking %s has no room", models.ErrRoomRateNotFound, booking.ID)
	}

	rate, err := s.roomRepo.GetRoomRate(ctx, booking.PropertyID, room)
	if err != nil {
		return "", fmt.Errorf("failed to get rate for room %s: %w", room, err)
	}

	nights := booking.Nights()
	amount := float64(nights) * rate
	if amount <= 0 {
		return "", fmt.Errorf("%w: room %s prices booking %s at %.2f (%d nights x %.2f)",
			models.ErrRoomRateNotFound, room, booking.ID, amount, nights, rate)
	}
	if err := s.bookingWriter.UpdateBookingAmount(ctx, booking.ID, amount); err != nil {
		return "", fmt.Errorf("failed to update booking amount: %w", err)
	}

	return fmt.Sprintf("Total set to %.2f (%d nights x %.2f)", amount, nights, rate), nil
}
