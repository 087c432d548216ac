// Package api exposes the booking core over plain HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"garagebook/internal/booking"
	"garagebook/internal/cache"
	"garagebook/internal/database"
	"garagebook/internal/models"
	"garagebook/internal/schedule"
)

// HTTPServer serves the booking API.
type HTTPServer struct {
	db          *database.DB
	coordinator *booking.Coordinator
	lifecycle   *booking.Lifecycle
	schedule    *schedule.Service
	cache       *cache.SlotCache
	limiter     *rate.Limiter
	apiKey      string
	logger      *zerolog.Logger
}

// Options configures the HTTP server.
type Options struct {
	// APIKey, when non-empty, is required in the X-API-Key header.
	APIKey string
	// RatePerSecond and RateBurst bound request throughput.
	RatePerSecond float64
	RateBurst     int
}

// NewHTTPServer wires the handlers. cache may be nil.
func NewHTTPServer(
	db *database.DB,
	coordinator *booking.Coordinator,
	lifecycle *booking.Lifecycle,
	scheduleSvc *schedule.Service,
	slotCache *cache.SlotCache,
	opts Options,
	logger *zerolog.Logger,
) *HTTPServer {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	return &HTTPServer{
		db:          db,
		coordinator: coordinator,
		lifecycle:   lifecycle,
		schedule:    scheduleSvc,
		cache:       slotCache,
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
		apiKey:      opts.APIKey,
		logger:      logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/garages/{garageID}/slots", s.handleGarageSlots)
	mux.HandleFunc("PUT /api/garages/{garageID}/schedule", s.handleSetSchedule)
	mux.HandleFunc("GET /api/garages/{garageID}/bookings/export", s.handleExportBookings)
	mux.HandleFunc("POST /api/bookings", s.handleReserve)
	mux.HandleFunc("GET /api/bookings/{bookingID}", s.handleGetBooking)
	mux.HandleFunc("GET /api/bookings/ref/{reference}", s.handleGetBookingByReference)
	mux.HandleFunc("PATCH /api/bookings/{bookingID}/status", s.handleTransition)
	return s.middleware(mux)
}

func (s *HTTPServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps core errors onto HTTP statuses. Storage failures
// stay opaque; nothing partial was committed.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot unavailable")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "conflicting concurrent update")
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
