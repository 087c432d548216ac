// Package booking implements slot reservation and the booking status
// lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"garagebook/internal/database"
	"garagebook/internal/metrics"
	"garagebook/internal/models"
	"garagebook/internal/pattern"
)

// Store is the storage surface the booking components need.
type Store interface {
	GetSlot(ctx context.Context, slotID int64) (*models.TimeSlot, error)
	GetOrCreateSlot(ctx context.Context, garageID int64, start, end time.Time) (*models.TimeSlot, error)
	GetWeeklyPattern(ctx context.Context, garageID int64) (*models.WeeklyPattern, error)
	ListRestrictions(ctx context.Context, garageID int64) ([]models.Restriction, error)
	ReserveSlot(ctx context.Context, slotID int64, b *models.Booking) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID int64, from, to models.BookingStatus) error
	CancelBooking(ctx context.Context, bookingID int64, from models.BookingStatus) error
}

// Invalidator drops cached slot listings after the inventory changes.
type Invalidator interface {
	InvalidateGarage(ctx context.Context, garageID int64)
}

// Coordinator hands out exclusive slot claims. All mutual exclusion lives in
// the storage layer's guarded updates; the coordinator adds validation,
// references, and bookkeeping.
type Coordinator struct {
	store  Store
	cache  Invalidator
	logger *zerolog.Logger
}

// NewCoordinator creates a coordinator. cache may be nil.
func NewCoordinator(store Store, cache Invalidator, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, cache: cache, logger: logger}
}

// ReserveRequest carries the caller identifiers for a reservation.
type ReserveRequest struct {
	DriverID    int64
	VehicleID   int64
	ServiceType models.ServiceType
}

func (r *ReserveRequest) validate() error {
	if r.DriverID <= 0 {
		return &models.ValidationError{Field: "driver_id", Message: "required"}
	}
	if r.VehicleID <= 0 {
		return &models.ValidationError{Field: "vehicle_id", Message: "required"}
	}
	if !r.ServiceType.IsValid() {
		return &models.ValidationError{Field: "service_type", Message: fmt.Sprintf("unknown service type %q", r.ServiceType)}
	}
	return nil
}

// Reserve claims the slot and creates a pending booking. At most one of any
// number of concurrent calls for the same slot succeeds; the rest get
// database.ErrSlotUnavailable.
func (c *Coordinator) Reserve(ctx context.Context, slotID int64, req ReserveRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	b := &models.Booking{
		Reference:   uuid.NewString(),
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		ServiceType: req.ServiceType,
	}

	created, err := c.store.ReserveSlot(ctx, slotID, b)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			metrics.IncReservation("not_found")
		case errors.Is(err, database.ErrSlotUnavailable):
			metrics.IncReservation("conflict")
		default:
			metrics.IncReservation("error")
			c.logger.Error().Err(err).Int64("slot_id", slotID).Msg("reserve failed")
		}
		return nil, err
	}

	metrics.IncReservation("created")
	c.logger.Info().
		Int64("booking_id", created.ID).
		Int64("slot_id", slotID).
		Int64("driver_id", req.DriverID).
		Msg("slot reserved")

	if c.cache != nil {
		c.cache.InvalidateGarage(ctx, created.GarageID)
	}
	return created, nil
}

// ReserveByTime reserves by (date, start, end) instead of a slot id, creating
// the slot on demand for lazily generated schedules. When the garage has a
// stored pattern the triple must be one the pattern would generate for that
// date; without a pattern any non-overlapping triple is accepted. Once the
// slot row exists this collapses to the same atomic claim as Reserve.
func (c *Coordinator) ReserveByTime(ctx context.Context, garageID int64, date time.Time, startClock, endClock string, req ReserveRequest) (*models.Booking, error) {
	if garageID <= 0 {
		return nil, &models.ValidationError{Field: "garage_id", Message: "required"}
	}
	if err := models.ValidateInterval("slot", models.Interval{Start: startClock, End: endClock}); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	start, err := clockOnDate(date, startClock)
	if err != nil {
		return nil, err
	}
	end, err := clockOnDate(date, endClock)
	if err != nil {
		return nil, err
	}

	if err := c.checkAgainstPattern(ctx, garageID, date, start, end); err != nil {
		return nil, err
	}

	slot, err := c.store.GetOrCreateSlot(ctx, garageID, start, end)
	if err != nil {
		if errors.Is(err, database.ErrSlotUnavailable) {
			metrics.IncReservation("conflict")
			return nil, err
		}
		return nil, fmt.Errorf("locate slot: %w", err)
	}
	return c.Reserve(ctx, slot.ID, req)
}

// checkAgainstPattern rejects a (date, start, end) triple the garage's stored
// pattern would never generate. Garages without a pattern run lazily generated
// schedules and skip the check.
func (c *Coordinator) checkAgainstPattern(ctx context.Context, garageID int64, date, start, end time.Time) error {
	p, err := c.store.GetWeeklyPattern(ctx, garageID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load pattern: %w", err)
	}
	restrictions, err := c.store.ListRestrictions(ctx, garageID)
	if err != nil {
		return fmt.Errorf("load restrictions: %w", err)
	}

	candidates, err := pattern.Compile(p, restrictions, date, date)
	if err != nil {
		return fmt.Errorf("compile pattern: %w", err)
	}
	for i := range candidates {
		if candidates[i].StartTime.Equal(start) && candidates[i].EndTime.Equal(end) {
			return nil
		}
	}
	return &models.ValidationError{Field: "slot", Message: "time not offered by the garage's schedule"}
}

func clockOnDate(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: "time", Message: fmt.Sprintf("invalid time %q", clock)}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
