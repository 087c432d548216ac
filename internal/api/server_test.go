package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garagebook/internal/booking"
	"garagebook/internal/database"
	"garagebook/internal/models"
	"garagebook/internal/schedule"
)

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	coord := booking.NewCoordinator(db, nil, &logger)
	lc := booking.NewLifecycle(db, nil, &logger)
	limits := schedule.Limits{MinSlotMinutes: 10, MaxSlotMinutes: 240, MaxGenerateDays: 90}
	svc := schedule.NewService(db, nil, limits, &logger)

	return NewHTTPServer(db, coord, lc, svc, nil, opts, &logger).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func openEveryDay() []models.DayRule {
	days := make([]models.DayRule, 7)
	for i := range days {
		days[i] = models.DayRule{
			Kind:         models.DayOpen,
			Intervals:    []models.Interval{{Start: "09:00", End: "12:00"}},
			SlotDuration: 60,
		}
	}
	return days
}

func setSchedule(t *testing.T, h http.Handler, garageID int64) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/garages/%d/schedule", garageID), SetScheduleRequest{
		Days:         openEveryDay(),
		GenerateDays: 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func listSlots(t *testing.T, h http.Handler, garageID int64) SlotsResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/garages/%d/slots", garageID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestScheduleAndListSlots(t *testing.T) {
	h := newTestServer(t, Options{})
	setSchedule(t, h, 1)

	resp := listSlots(t, h, 1)
	assert.Equal(t, int64(1), resp.GarageID)
	assert.Len(t, resp.Slots, 9, "three days of three hourly slots")

	var prev time.Time
	for _, slot := range resp.Slots {
		start, err := time.Parse(time.RFC3339, slot.Start)
		require.NoError(t, err)
		assert.False(t, start.Before(prev), "slots must be ordered")
		assert.Equal(t, 60, slot.DurationMinutes)
		prev = start
	}
}

func TestSetScheduleValidation(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := doJSON(t, h, http.MethodPut, "/api/garages/1/schedule", SetScheduleRequest{
		Days:         openEveryDay()[:3],
		GenerateDays: 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	days := openEveryDay()
	days[0].SlotDuration = 1
	rec = doJSON(t, h, http.MethodPut, "/api/garages/1/schedule", SetScheduleRequest{
		Days:         days,
		GenerateDays: 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveLifecycleRoundTrip(t *testing.T) {
	h := newTestServer(t, Options{})
	setSchedule(t, h, 1)

	slots := listSlots(t, h, 1)
	require.NotEmpty(t, slots.Slots)
	slotID := slots.Slots[0].ID

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		SlotID: slotID, DriverID: 5, VehicleID: 6, ServiceType: "mot",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pending", created["status"])
	bookingID := int64(created["id"].(float64))

	// The claimed slot disappears from the listing.
	after := listSlots(t, h, 1)
	for _, slot := range after.Slots {
		assert.NotEqual(t, slotID, slot.ID)
	}

	// Losing the race returns 409.
	rec = doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		SlotID: slotID, DriverID: 7, VehicleID: 8, ServiceType: "retest",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Accept, then cancel; the slot returns to the pool.
	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/bookings/%d/status", bookingID), TransitionRequest{Status: "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/bookings/%d/status", bookingID), TransitionRequest{Status: "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	final := listSlots(t, h, 1)
	found := false
	for _, slot := range final.Slots {
		if slot.ID == slotID {
			found = true
		}
	}
	assert.True(t, found, "cancelled slot is bookable again")

	// Cancelled is terminal.
	rec = doJSON(t, h, http.MethodPatch, fmt.Sprintf("/api/bookings/%d/status", bookingID), TransitionRequest{Status: "accepted"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveByTimeEndpoint(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		GarageID: 2, Date: "2025-06-02", StartTime: "14:00", EndTime: "15:00",
		DriverID: 5, VehicleID: 6, ServiceType: "mot",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Same triple conflicts once claimed.
	rec = doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		GarageID: 2, Date: "2025-06-02", StartTime: "14:00", EndTime: "15:00",
		DriverID: 9, VehicleID: 10, ServiceType: "mot",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A triple overlapping the claimed slot conflicts too.
	rec = doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		GarageID: 2, Date: "2025-06-02", StartTime: "14:30", EndTime: "15:30",
		DriverID: 9, VehicleID: 10, ServiceType: "mot",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserveByTimeOffScheduleRejected(t *testing.T) {
	h := newTestServer(t, Options{})
	setSchedule(t, h, 1)

	// 09:00-12:00 hourly is what the schedule offers; 20:00 is not on it.
	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		GarageID: 1, Date: time.Now().Format("2006-01-02"), StartTime: "20:00", EndTime: "21:00",
		DriverID: 5, VehicleID: 6, ServiceType: "mot",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestGetBookingByReference(t *testing.T) {
	h := newTestServer(t, Options{})
	setSchedule(t, h, 1)

	slots := listSlots(t, h, 1)
	require.NotEmpty(t, slots.Slots)
	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		SlotID: slots.Slots[0].ID, DriverID: 5, VehicleID: 6, ServiceType: "mot",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	reference := created["reference"].(string)

	rec = doJSON(t, h, http.MethodGet, "/api/bookings/ref/"+reference, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created["id"], got["id"])
	assert.Equal(t, true, got["active"])

	rec = doJSON(t, h, http.MethodGet, "/api/bookings/ref/no-such-reference", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveBadRequests(t *testing.T) {
	h := newTestServer(t, Options{})

	tests := []struct {
		name string
		body any
	}{
		{"empty body", map[string]any{}},
		{"unknown field", map[string]any{"slot": 1}},
		{"bad date", ReserveBookingRequest{GarageID: 1, Date: "02.06.2025", StartTime: "09:00", EndTime: "10:00", DriverID: 1, VehicleID: 1, ServiceType: "mot"}},
		{"bad service type", ReserveBookingRequest{SlotID: 1, DriverID: 1, VehicleID: 1, ServiceType: "wash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/bookings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUnknownSlotAndBooking(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		SlotID: 999, DriverID: 1, VehicleID: 1, ServiceType: "mot",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/bookings/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/bookings/999/status", TransitionRequest{Status: "accepted"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	h := newTestServer(t, Options{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/garages/1/slots", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/garages/1/slots", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Options{RatePerSecond: 1, RateBurst: 2})

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/garages/1/slots", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestExportBookings(t *testing.T) {
	h := newTestServer(t, Options{})
	setSchedule(t, h, 1)

	slots := listSlots(t, h, 1)
	require.NotEmpty(t, slots.Slots)
	rec := doJSON(t, h, http.MethodPost, "/api/bookings", ReserveBookingRequest{
		SlotID: slots.Slots[0].ID, DriverID: 5, VehicleID: 6, ServiceType: "mot",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/garages/1/bookings/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}
