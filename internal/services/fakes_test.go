package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hotelpms/server/internal/models"
)

var errStoreDown = errors.New("store unavailable")

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(v float64) *float64 {
	return &v
}

func newBooking(id, room string, checkIn, checkOut time.Time) *models.Booking {
	return &models.Booking{
		ID:          id,
		PropertyID:  "prop-1",
		RoomNo:      room,
		GuestName:   "Guest " + id,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		TotalAmount: amount(1000),
		Source:      "direct",
	}
}

// fakeBookingRepo is an in-memory BookingRepo and BookingWriter
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings []*models.Booking
	err      error
}

func (r *fakeBookingRepo) ListActiveBookings(ctx context.Context, propertyID string, filter models.BookingFilter) ([]*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	var result []*models.Booking
	for _, b := range r.bookings {
		if b.PropertyID != propertyID || b.Cancelled {
			continue
		}
		if !filter.CheckInFrom.IsZero() && b.CheckIn.Before(filter.CheckInFrom) {
			continue
		}
		if !filter.CheckOutFrom.IsZero() && b.CheckOut.Before(filter.CheckOutFrom) {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}
	return result, nil
}

func (r *fakeBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) ListPropertyIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, b := range r.bookings {
		if !seen[b.PropertyID] {
			seen[b.PropertyID] = true
			ids = append(ids, b.PropertyID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeBookingRepo) UpdateBookingAmount(ctx context.Context, bookingID string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID == bookingID {
			b.TotalAmount = amount(value)
			return nil
		}
	}
	return models.ErrBookingNotFound
}

// fakePlatformRepo is an in-memory PlatformRepo
type fakePlatformRepo struct {
	mu      sync.Mutex
	rows    []*models.PlatformSyncRow
	resyncs []string
	err     error
}

func (r *fakePlatformRepo) ListPlatformSyncState(ctx context.Context, propertyID string) ([]*models.PlatformSyncRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var result []*models.PlatformSyncRow
	for _, row := range r.rows {
		if row.PropertyID == propertyID {
			cp := *row
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakePlatformRepo) RequestResync(ctx context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.BookingID == bookingID {
			now := time.Now().UTC()
			row.SyncStatus = models.SyncStatusPending
			row.SyncAttempts++
			row.ResyncRequestedAt = &now
			r.resyncs = append(r.resyncs, bookingID)
			return nil
		}
	}
	return models.ErrBookingNotFound
}

// fakeRoomRepo is an in-memory RoomRepo
type fakeRoomRepo struct {
	rates map[string]float64
	err   error
}

func (r *fakeRoomRepo) GetRoomRate(ctx context.Context, propertyID, roomNo string) (float64, error) {
	rate, ok := r.rates[roomNo]
	if !ok {
		return 0, models.ErrRoomRateNotFound
	}
	return rate, nil
}

func (r *fakeRoomRepo) ListRoomNumbers(ctx context.Context, propertyID string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	rooms := make([]string, 0, len(r.rates))
	for room := range r.rates {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms, nil
}

// fakeConflictRepo is an in-memory ConflictRepo and DetectionRunRepo with the
// same upsert and close semantics as the SQL store.
type fakeConflictRepo struct {
	mu        sync.Mutex
	conflicts map[string]*models.Conflict
	runs      []*models.DetectionRun
	failIDs   map[string]bool
	upserts   int
}

func newFakeConflictRepo() *fakeConflictRepo {
	return &fakeConflictRepo{
		conflicts: map[string]*models.Conflict{},
		failIDs:   map[string]bool{},
	}
}

func (r *fakeConflictRepo) Upsert(ctx context.Context, c *models.Conflict) (*models.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[c.ID] {
		return nil, errStoreDown
	}
	r.upserts++

	stored, ok := r.conflicts[c.ID]
	if !ok {
		cp := *c
		cp.Status = models.ConflictStatusDetected
		r.conflicts[c.ID] = &cp
		result := cp
		return &result, nil
	}

	stored.Severity = c.Severity
	stored.ConflictDateStart = c.ConflictDateStart
	stored.ConflictDateEnd = c.ConflictDateEnd
	stored.RoomNo = c.RoomNo
	stored.BookingID1 = c.BookingID1
	stored.BookingID2 = c.BookingID2
	stored.Description = c.Description
	stored.Details = c.Details
	stored.SuggestedResolution = c.SuggestedResolution
	stored.UpdatedAt = time.Now().UTC()
	result := *stored
	return &result, nil
}

func (r *fakeConflictRepo) GetByID(ctx context.Context, id string) (*models.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConflictRepo) List(ctx context.Context, filter models.ConflictFilter) ([]*models.Conflict, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Conflict
	for _, c := range r.conflicts {
		if c.PropertyID != filter.PropertyID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Type != "" && c.ConflictType != filter.Type {
			continue
		}
		if filter.AutoResolvableOnly && !c.IsAutoResolvable() {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (r *fakeConflictRepo) close(id, status string, resolution models.ConflictResolution, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok {
		return models.ErrConflictNotFound
	}
	if c.Status != models.ConflictStatusDetected {
		return models.ErrConflictClosed
	}
	now := time.Now().UTC()
	c.Status = status
	c.ResolvedBy = &by
	c.ResolvedAt = &now
	action := resolution.Action
	c.ResolutionAction = &action
	if resolution.Notes != "" {
		notes := resolution.Notes
		c.ResolutionNotes = &notes
	}
	return nil
}

func (r *fakeConflictRepo) Resolve(ctx context.Context, id string, resolution models.ConflictResolution, resolvedBy string) error {
	return r.close(id, models.ConflictStatusResolved, resolution, resolvedBy)
}

func (r *fakeConflictRepo) Ignore(ctx context.Context, id, notes, ignoredBy string) error {
	return r.close(id, models.ConflictStatusIgnored, models.ConflictResolution{Action: "ignore", Notes: notes}, ignoredBy)
}

func (r *fakeConflictRepo) GetStats(ctx context.Context, propertyID string) (*models.ConflictStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := models.NewConflictStats(propertyID)
	for _, c := range r.conflicts {
		if c.PropertyID != propertyID {
			continue
		}
		stats.Total++
		stats.ByType[c.ConflictType]++
		stats.BySeverity[c.Severity]++
		stats.ByStatus[c.Status]++
		if c.Status == models.ConflictStatusDetected && c.IsAutoResolvable() {
			stats.AutoResolvable++
		}
	}
	return stats, nil
}

func (r *fakeConflictRepo) SaveRun(ctx context.Context, run *models.DetectionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs = append(r.runs, &cp)
	return nil
}

func (r *fakeConflictRepo) LatestRun(ctx context.Context, propertyID string) (*models.DetectionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].PropertyID == propertyID {
			cp := *r.runs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConflictRepo) put(c *models.Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.conflicts[c.ID] = &cp
}

func (r *fakeConflictRepo) get(id string) *models.Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts[id]
}

func (r *fakeConflictRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conflicts)
}

// fakePublisher records published events
type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	messages []WSMessage
}

func (p *fakePublisher) BroadcastToTopic(topic string, msg WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		types = append(types, m.Type)
	}
	return types
}

// failingDetector always fails
type failingDetector struct {
	name string
}

func (d failingDetector) Name() string { return d.name }

func (d failingDetector) Detect(ctx context.Context, propertyID string, today time.Time) ([]Candidate, error) {
	return nil, errStoreDown
}

// fixture wires the detection stack over in-memory fakes
type fixture struct {
	bookings  *fakeBookingRepo
	platform  *fakePlatformRepo
	rooms     *fakeRoomRepo
	conflicts *fakeConflictRepo
	publisher *fakePublisher
	detection *ConflictDetectionService
	resolver  *AutoResolverService
	service   *ConflictService
}

func newFixture(today time.Time, extra ...Detector) *fixture {
	f := &fixture{
		bookings:  &fakeBookingRepo{},
		platform:  &fakePlatformRepo{},
		rooms:     &fakeRoomRepo{rates: map[string]float64{}},
		conflicts: newFakeConflictRepo(),
		publisher: &fakePublisher{},
	}

	detectors := []Detector{
		NewDoubleBookingDetector(f.bookings, DefaultPlaceholderRooms),
		NewSyncConflictDetector(f.bookings, f.platform),
		NewAvailabilityConflictDetector(f.bookings, f.rooms, DefaultPlaceholderRooms),
		NewPricingConflictDetector(f.bookings),
	}
	detectors = append(detectors, extra...)

	f.detection = NewConflictDetectionService(f.conflicts, f.conflicts, NewResolutionAdvisor(AdvisorPolicy{}), time.UTC, detectors...)
	f.detection.SetClock(func() time.Time { return today.Add(10 * time.Hour) })

	f.resolver = NewAutoResolverService(f.conflicts, f.bookings, f.bookings, f.platform, f.rooms)
	f.service = NewConflictService(f.detection, f.resolver, f.conflicts, f.conflicts)
	f.service.SetEventPublisher(f.publisher)
	return f
}
