package app

import (
	"fmt"
	"time"

	"github.com/hotelpms/server/internal/config"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
	"github.com/hotelpms/server/internal/services"
)

// App holds the wired conflict engine shared by the server and the CLI
type App struct {
	Config    *config.Config
	DB        *repository.Database
	Hub       *services.WebSocketHub
	Detection *services.ConflictDetectionService
	Conflicts *services.ConflictService
	Scheduler *services.ConflictScheduler
}

// New builds repositories, detectors and services over an open database.
// The hub is created but not started.
func New(cfg *config.Config, db *repository.Database) (*App, error) {
	location, err := cfg.Detection.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	bookingRepo := repository.NewBookingRepository(db)
	platformRepo := repository.NewPlatformSyncRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	conflictRepo := repository.NewConflictRepository(db)

	placeholders := cfg.Detection.PlaceholderRooms
	if len(placeholders) == 0 {
		placeholders = services.DefaultPlaceholderRooms
	}

	detection := services.NewConflictDetectionService(
		conflictRepo,
		conflictRepo,
		services.NewResolutionAdvisor(services.AdvisorPolicy{DirectPrecedence: cfg.Detection.DirectPrecedence}),
		location,
		services.NewDoubleBookingDetector(bookingRepo, placeholders),
		services.NewSyncConflictDetector(bookingRepo, platformRepo),
		services.NewAvailabilityConflictDetector(bookingRepo, roomRepo, placeholders),
		services.NewPricingConflictDetector(bookingRepo),
	)
	detection.SetTimeout(cfg.Detection.Timeout())

	rates := services.NewRoomRateCache(roomRepo, 5*time.Minute)
	autoResolver := services.NewAutoResolverService(conflictRepo, bookingRepo, bookingRepo, platformRepo, rates)
	conflictService := services.NewConflictService(detection, autoResolver, conflictRepo, conflictRepo)

	hub := services.NewWebSocketHub()
	conflictService.SetEventPublisher(hub)

	scheduler := services.NewConflictScheduler(conflictService, bookingRepo, services.SchedulerConfig{
		Interval:    cfg.Detection.Interval(),
		Concurrency: cfg.Detection.Concurrency,
		AutoResolve: cfg.Detection.AutoResolve,
		PropertyIDs: cfg.Detection.PropertyIDs,
	})
	scheduler.SetWebSocketHub(hub)

	return &App{
		Config:    cfg,
		DB:        db,
		Hub:       hub,
		Detection: detection,
		Conflicts: conflictService,
		Scheduler: scheduler,
	}, nil
}

// EnableMetrics attaches the conflict metrics instruments
func (a *App) EnableMetrics() error {
	metrics, err := observability.NewConflictMetrics()
	if err != nil {
		return err
	}
	a.Conflicts.SetMetrics(metrics)
	return nil
}
