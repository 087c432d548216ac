package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"garagebook/internal/metrics"
	"garagebook/internal/models"
)

// ErrInvalidTransition is returned for a status change the lifecycle graph
// does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// Lifecycle governs booking status transitions and the slot release
// triggered by cancellation.
type Lifecycle struct {
	store       Store
	cache       Invalidator
	logger      *zerolog.Logger
	transitions map[models.BookingStatus][]models.BookingStatus
}

// NewLifecycle creates a lifecycle with the fixed transition graph:
// pending may be accepted, rejected, or cancelled; accepted may be completed
// or cancelled; rejected, completed, and cancelled are terminal.
func NewLifecycle(store Store, cache Invalidator, logger *zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		cache:  cache,
		logger: logger,
		transitions: map[models.BookingStatus][]models.BookingStatus{
			models.StatusPending:  {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
			models.StatusAccepted: {models.StatusCompleted, models.StatusCancelled},
		},
	}
}

// CanTransition checks whether the transition is allowed.
func (l *Lifecycle) CanTransition(from, to models.BookingStatus) bool {
	for _, s := range l.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves a booking to the target status. Cancellation releases the
// booking's slot within the same storage transaction; completion and
// rejection keep the slot consumed. Returns ErrInvalidTransition wrapped in
// enough context for the caller to report, and the updated booking on
// success.
func (l *Lifecycle) Transition(ctx context.Context, bookingID int64, target models.BookingStatus) (*models.Booking, error) {
	b, err := l.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if b.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, b.Status)
	}
	if !l.CanTransition(b.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}

	if target == models.StatusCancelled {
		err = l.store.CancelBooking(ctx, bookingID, b.Status)
	} else {
		err = l.store.UpdateBookingStatus(ctx, bookingID, b.Status, target)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(string(target))
	l.logger.Info().
		Int64("booking_id", bookingID).
		Str("from", string(b.Status)).
		Str("to", string(target)).
		Msg("booking transitioned")

	// Cache invalidation happens after the transaction commits; cancellation
	// put the slot back into the free pool.
	if target == models.StatusCancelled && l.cache != nil {
		l.cache.InvalidateGarage(ctx, b.GarageID)
	}

	return l.store.GetBooking(ctx, bookingID)
}
