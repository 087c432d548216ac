package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"garagebook/internal/booking"
	"garagebook/internal/metrics"
	"garagebook/internal/models"
)

// ReserveBookingRequest is the request body for POST /api/bookings.
// Either SlotID or the (GarageID, Date, StartTime, EndTime) quadruple must be
// given; the latter locates or creates the slot on demand.
type ReserveBookingRequest struct {
	SlotID      int64  `json:"slot_id,omitempty"`
	GarageID    int64  `json:"garage_id,omitempty"`
	Date        string `json:"date,omitempty"`       // YYYY-MM-DD
	StartTime   string `json:"start_time,omitempty"` // HH:MM
	EndTime     string `json:"end_time,omitempty"`   // HH:MM
	DriverID    int64  `json:"driver_id"`
	VehicleID   int64  `json:"vehicle_id"`
	ServiceType string `json:"service_type"` // mot, retest
}

// handleReserve creates a pending booking on a free slot.
// POST /api/bookings
func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reserve")

	var req ReserveBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reserveReq := booking.ReserveRequest{
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		ServiceType: models.ServiceType(req.ServiceType),
	}

	var b *models.Booking
	var err error
	switch {
	case req.SlotID > 0:
		b, err = s.coordinator.Reserve(r.Context(), req.SlotID, reserveReq)
	case req.Date != "":
		var date time.Time
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
			return
		}
		b, err = s.coordinator.ReserveByTime(r.Context(), req.GarageID, date, req.StartTime, req.EndTime, reserveReq)
	default:
		writeError(w, http.StatusBadRequest, "either slot_id or date with start_time and end_time is required")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse(b))
}

// handleGetBooking returns one booking.
// GET /api/bookings/{bookingID}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")

	bookingID, err := strconv.ParseInt(r.PathValue("bookingID"), 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	b, err := s.db.GetBooking(r.Context(), bookingID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(b))
}

// handleGetBookingByReference returns one booking by its public reference,
// the identifier handed to the driver at reservation time.
// GET /api/bookings/ref/{reference}
func (s *HTTPServer) handleGetBookingByReference(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking_by_reference")

	reference := r.PathValue("reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "invalid booking reference")
		return
	}

	b, err := s.db.GetBookingByReference(r.Context(), reference)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(b))
}

// TransitionRequest is the request body for PATCH /api/bookings/{id}/status.
type TransitionRequest struct {
	Status string `json:"status"`
}

// handleTransition moves a booking through its lifecycle.
// PATCH /api/bookings/{bookingID}/status
func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("transition")

	bookingID, err := strconv.ParseInt(r.PathValue("bookingID"), 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req TransitionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target := models.BookingStatus(req.Status)
	switch target {
	case models.StatusAccepted, models.StatusRejected, models.StatusCompleted, models.StatusCancelled:
	default:
		writeError(w, http.StatusBadRequest, "unknown target status")
		return
	}

	b, err := s.lifecycle.Transition(r.Context(), bookingID, target)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(b))
}
