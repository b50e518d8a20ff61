package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
)

// DetectionRunner is the part of ConflictService the scheduler drives
type DetectionRunner interface {
	DetectConflicts(ctx context.Context, propertyID string) (*models.DetectionReport, error)
	AutoResolveConflicts(ctx context.Context, propertyID string) (int, error)
}

// SchedulerConfig holds the scheduler settings
type SchedulerConfig struct {
	Interval    time.Duration
	Concurrency int
	AutoResolve bool
	PropertyIDs []string // empty means every property with bookings
}

// SchedulerStatus represents the current status of the conflict scheduler
type SchedulerStatus struct {
	Running           bool      `json:"running"`
	Enabled           bool      `json:"enabled"`
	LastRun           time.Time `json:"lastRun,omitempty"`
	LastRunDuration   string    `json:"lastRunDuration,omitempty"`
	PropertiesTotal   int       `json:"propertiesTotal"`
	PropertiesScanned int       `json:"propertiesScanned"`
	ConflictsDetected int       `json:"conflictsDetected"`
	ConflictsResolved int       `json:"conflictsResolved"`
	PartialRuns       int       `json:"partialRuns"`
	Errors            []string  `json:"errors,omitempty"`
	Progress          float64   `json:"progress"`
	NextScheduledRun  time.Time `json:"nextScheduledRun,omitempty"`
}

// ConflictScheduler periodically runs detection across properties
type ConflictScheduler struct {
	runner      DetectionRunner
	bookingRepo repository.BookingRepo
	config      SchedulerConfig
	wsHub       EventPublisher
	logger      *observability.Logger

	mu         sync.RWMutex
	enabled    bool
	running    bool
	stopChan   chan struct{}
	status     SchedulerStatus
	ticker     *time.Ticker
	cancelPass context.CancelFunc
	passDone   chan struct{}
}

// NewConflictScheduler creates a new ConflictScheduler
func NewConflictScheduler(runner DetectionRunner, bookingRepo repository.BookingRepo, config SchedulerConfig) *ConflictScheduler {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &ConflictScheduler{
		runner:      runner,
		bookingRepo: bookingRepo,
		config:      config,
		stopChan:    make(chan struct{}),
		logger:      observability.GetLogger().WithField("component", "conflict_scheduler"),
		status: SchedulerStatus{
			Errors: []string{},
		},
	}
}

// SetWebSocketHub sets the WebSocket hub for progress notifications
func (s *ConflictScheduler) SetWebSocketHub(hub EventPublisher) {
	s.wsHub = hub
}

func (s *ConflictScheduler) notify(msgType string, currentProperty string) {
	if s.wsHub == nil {
		return
	}

	s.mu.RLock()
	payload := SchedulerProgressPayload{
		Running:           s.status.Running,
		PropertiesTotal:   s.status.PropertiesTotal,
		PropertiesScanned: s.status.PropertiesScanned,
		ConflictsDetected: s.status.ConflictsDetected,
		ConflictsResolved: s.status.ConflictsResolved,
		Progress:          s.status.Progress,
		CurrentPropertyID: currentProperty,
	}
	s.mu.RUnlock()

	s.wsHub.BroadcastToTopic(TopicScheduler, WSMessage{
		Type:    msgType,
		Payload: payload,
	})
}

// Start begins the background detection loop
func (s *ConflictScheduler) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.enabled = true
	s.status.Enabled = true
	s.stopChan = make(chan struct{})
	s.ticker = time.NewTicker(s.config.Interval)
	ticker, stop := s.ticker, s.stopChan
	s.status.NextScheduledRun = time.Now().Add(s.config.Interval)
	s.mu.Unlock()

	s.logger.Infof("Conflict scheduler started (runs every %s)", s.config.Interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.status.NextScheduledRun = time.Now().Add(s.config.Interval)
				s.mu.Unlock()
				s.RunOnce(context.Background())
			case <-stop:
				ticker.Stop()
				s.logger.Info("Conflict scheduler stopped")
				return
			}
		}
	}()
}

// Stop stops the scheduler loop, cancels a scan in progress and waits for it
// to return.
func (s *ConflictScheduler) Stop() {
	s.mu.Lock()
	if s.ticker != nil {
		s.enabled = false
		s.status.Enabled = false
		s.status.NextScheduledRun = time.Time{}
		s.ticker = nil
		close(s.stopChan)
	}
	cancel, done := s.cancelPass, s.passDone
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsEnabled returns whether the scheduler loop is active
func (s *ConflictScheduler) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// IsRunning returns whether a scan is currently in progress
func (s *ConflictScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStatus returns the current scheduler status
func (s *ConflictScheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.Errors = append([]string(nil), s.status.Errors...)
	return status
}

// RunNow triggers an immediate scan in the background
func (s *ConflictScheduler) RunNow() {
	go s.RunOnce(context.Background())
}

// RunOnce scans every property and returns the resulting status. It returns
// immediately with the current status when a scan is already running.
func (s *ConflictScheduler) RunOnce(ctx context.Context) SchedulerStatus {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Conflict scan already running, skipping")
		return s.GetStatus()
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancelPass, s.passDone = cancel, done
	s.running = true
	s.status.Running = true
	s.status.PropertiesTotal = 0
	s.status.PropertiesScanned = 0
	s.status.ConflictsDetected = 0
	s.status.ConflictsResolved = 0
	s.status.PartialRuns = 0
	s.status.Progress = 0
	s.status.Errors = []string{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancelPass, s.passDone = nil, nil
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	startTime := time.Now()
	ctx, span := observability.StartServiceSpan(ctx, "ConflictScheduler", "RunOnce")
	defer span.End()

	propertyIDs, err := s.propertyIDs(ctx)
	if err != nil {
		observability.RecordError(span, err)
		s.addError(fmt.Sprintf("failed to list properties: %v", err))
	}

	s.mu.Lock()
	s.status.PropertiesTotal = len(propertyIDs)
	s.mu.Unlock()
	s.logger.Infof("Starting conflict scan of %d properties", len(propertyIDs))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, propertyID := range propertyIDs {
		propertyID := propertyID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.addError(fmt.Sprintf("scan cancelled before property %s: %v", propertyID, err))
				return err
			}
			return s.scanProperty(ctx, propertyID)
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
	} else {
		observability.SetSuccess(span)
	}

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = startTime
	s.status.LastRunDuration = time.Since(startTime).Round(time.Millisecond).String()
	s.status.Progress = 100
	status := s.status
	s.mu.Unlock()

	s.notify(WSTypeSchedulerComplete, "")
	s.logger.WithFields(map[string]interface{}{
		"properties": status.PropertiesScanned,
		"detected":   status.ConflictsDetected,
		"resolved":   status.ConflictsResolved,
		"errors":     len(status.Errors),
	}).Infof("Conflict scan completed in %s", status.LastRunDuration)

	return s.GetStatus()
}

// scanProperty runs detection, then auto-resolution when enabled. Errors are
// recorded in the status and returned so the group reports the first one.
func (s *ConflictScheduler) scanProperty(ctx context.Context, propertyID string) error {
	detected, resolved, partial := 0, 0, false

	report, err := s.runner.DetectConflicts(ctx, propertyID)
	if err != nil {
		err = fmt.Errorf("property %s: %w", propertyID, err)
		s.addError(err.Error())
	} else {
		detected = len(report.Conflicts)
		partial = report.Partial()

		if s.config.AutoResolve {
			n, rerr := s.runner.AutoResolveConflicts(ctx, propertyID)
			if rerr != nil {
				err = fmt.Errorf("property %s: auto-resolve: %w", propertyID, rerr)
				s.addError(err.Error())
			}
			resolved = n
		}
	}

	s.mu.Lock()
	s.status.PropertiesScanned++
	s.status.ConflictsDetected += detected
	s.status.ConflictsResolved += resolved
	if partial {
		s.status.PartialRuns++
	}
	if s.status.PropertiesTotal > 0 {
		s.status.Progress = float64(s.status.PropertiesScanned) / float64(s.status.PropertiesTotal) * 100
	}
	s.mu.Unlock()

	s.notify(WSTypeSchedulerProgress, propertyID)
	return err
}

func (s *ConflictScheduler) propertyIDs(ctx context.Context) ([]string, error) {
	if len(s.config.PropertyIDs) > 0 {
		ids := append([]string(nil), s.config.PropertyIDs...)
		sort.Strings(ids)
		return ids, nil
	}
	return s.bookingRepo.ListPropertyIDs(ctx)
}

func (s *ConflictScheduler) addError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Errors = append(s.status.Errors, msg)
	s.logger.Error(msg)
}
