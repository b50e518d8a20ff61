package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelpms/server/internal/config"
	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/repository"
	"github.com/hotelpms/server/internal/services"
)

const testAPIKey = "test-api-key"

func testConfig() *config.Config {
	return &config.Config{
		Security: config.Security{
			APIKey:         testAPIKey,
			APIKeyHeader:   "X-API-Key",
			OperatorHeader: "X-Operator",
		},
		Detection: config.Detection{
			IntervalMinutes: 15,
			Concurrency:     2,
			Timezone:        "UTC",
		},
	}
}

// setupApp wires the engine over a temporary SQLite database holding one
// double booking (A/B in room 101) and one unpriced booking (C in room 102)
func setupApp(t *testing.T) *App {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "app-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	today := time.Now().UTC().Truncate(24 * time.Hour)
	at := func(days int) string { return today.AddDate(0, 0, days).Format("2006-01-02") }

	_, err = db.SQL().Exec(`
		INSERT INTO rooms (property_id, room_no, base_rate) VALUES
			('prop-1', '101', 2000), ('prop-1', '102', 1500)`)
	require.NoError(t, err)

	_, err = db.SQL().Exec(`
		INSERT INTO bookings (id, property_id, room_no, guest_name, check_in, check_out, total_amount, source) VALUES
			('A', 'prop-1', '101', 'Guest A', ?, ?, 1000, 'direct'),
			('B', 'prop-1', '101', 'Guest B', ?, ?, 1200, 'direct'),
			('C', 'prop-1', '102', 'Guest C', ?, ?, NULL, 'direct')`,
		at(10), at(15), at(14), at(18), at(20), at(23))
	require.NoError(t, err)

	a, err := New(testConfig(), db)
	require.NoError(t, err)

	go a.Hub.Run()
	t.Cleanup(a.Hub.Shutdown)
	return a
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRouter_ConflictLifecycle(t *testing.T) {
	a := setupApp(t)
	router := a.Router(nil)
	alice := map[string]string{"X-Operator": "alice"}

	rec := doRequest(t, router, http.MethodPost, "/api/properties/prop-1/conflicts/detect", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.DetectionReport
	decode(t, rec, &report)
	assert.Len(t, report.Conflicts, 2)
	assert.Empty(t, report.Run.FailedDetectors)

	t.Run("lists and filters", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/properties/prop-1/conflicts?type=double_booking", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list models.ConflictListResponse
		decode(t, rec, &list)
		assert.Equal(t, 1, list.TotalCount)
		assert.Equal(t, 20, list.Take)
		require.Len(t, list.Conflicts, 1)
		assert.Equal(t, "double_booking:A:B", list.Conflicts[0].ID)

		rec = doRequest(t, router, http.MethodGet, "/api/properties/prop-1/conflicts?status=open", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(t, router, http.MethodGet, "/api/properties/prop-1/conflicts?skip=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("gets a single conflict", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/conflicts/double_booking:A:B", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var conflict models.Conflict
		decode(t, rec, &conflict)
		assert.Equal(t, models.SeverityHigh, conflict.Severity)
		require.NotNil(t, conflict.SuggestedResolution)

		rec = doRequest(t, router, http.MethodGet, "/api/conflicts/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("resolve requires an operator and is terminal", func(t *testing.T) {
		body := `{"action":"relocate_direct","notes":"moved guest B"}`

		rec := doRequest(t, router, http.MethodPost, "/api/conflicts/double_booking:A:B/resolve", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doRequest(t, router, http.MethodPost, "/api/conflicts/double_booking:A:B/resolve", `{"action":""}`, alice)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(t, router, http.MethodPost, "/api/conflicts/double_booking:A:B/resolve", body, alice)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var conflict models.Conflict
		decode(t, rec, &conflict)
		assert.Equal(t, models.ConflictStatusResolved, conflict.Status)
		require.NotNil(t, conflict.ResolvedBy)
		assert.Equal(t, "alice", *conflict.ResolvedBy)

		rec = doRequest(t, router, http.MethodPost, "/api/conflicts/double_booking:A:B/ignore", "", alice)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = doRequest(t, router, http.MethodPost, "/api/conflicts/nope/ignore", "", alice)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("auto-resolve prices the unpriced booking", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/api/properties/prop-1/conflicts/auto-resolve", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.AutoResolveResponse
		decode(t, rec, &resp)
		assert.Equal(t, 1, resp.ResolvedCount)

		booking, err := repository.NewBookingRepository(a.DB).GetBooking(context.Background(), "C")
		require.NoError(t, err)
		require.NotNil(t, booking.TotalAmount)
		assert.Equal(t, 4500.0, *booking.TotalAmount)
	})

	t.Run("stats and latest run", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/properties/prop-1/conflicts/stats", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats models.ConflictStats
		decode(t, rec, &stats)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 2, stats.ByStatus[models.ConflictStatusResolved])
		assert.Zero(t, stats.AutoResolvable)

		rec = doRequest(t, router, http.MethodGet, "/api/properties/prop-1/conflicts/runs/latest", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var run models.DetectionRun
		decode(t, rec, &run)
		assert.Equal(t, report.Run.ID, run.ID)

		rec = doRequest(t, router, http.MethodGet, "/api/properties/prop-9/conflicts/runs/latest", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_AuthAndHealth(t *testing.T) {
	a := setupApp(t)
	router := a.Router(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/properties/prop-1/conflicts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health models.HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Database)

	rec = doRequest(t, router, http.MethodGet, "/api/scheduler/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status services.SchedulerStatus
	decode(t, rec, &status)
	assert.False(t, status.Enabled)
}

func TestRouter_WebSocketReceivesDetection(t *testing.T) {
	a := setupApp(t)
	server := httptest.NewServer(a.Router(nil))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/conflicts?propertyId=prop-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return a.Hub.GetTopicSubscriberCount(services.PropertyTopic("prop-1")) == 1
	}, time.Second, 10*time.Millisecond)

	rec := doRequest(t, a.Router(nil), http.MethodPost, "/api/properties/prop-1/conflicts/detect", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg services.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.WSTypeConflictsDetected, msg.Type)
}
