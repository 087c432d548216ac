// Package schedule glues pattern compilation to the slot inventory: applying
// weekly patterns, materializing slots, and keeping the horizon topped up.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"garagebook/internal/metrics"
	"garagebook/internal/models"
	"garagebook/internal/pattern"
)

// Store is the storage surface the schedule service needs.
type Store interface {
	SaveWeeklyPattern(ctx context.Context, p *models.WeeklyPattern, restrictions []models.Restriction) error
	GetWeeklyPattern(ctx context.Context, garageID int64) (*models.WeeklyPattern, error)
	ListRestrictions(ctx context.Context, garageID int64) ([]models.Restriction, error)
	ListPatternGarages(ctx context.Context) ([]int64, error)
	MaterializeSlots(ctx context.Context, candidates []models.TimeSlot) (int64, error)
	DeleteExpiredFreeSlots(ctx context.Context, before time.Time) (int64, error)
}

// Invalidator drops cached slot listings after the inventory changes.
type Invalidator interface {
	InvalidateGarage(ctx context.Context, garageID int64)
}

// Limits bounds pattern submissions.
type Limits struct {
	MinSlotMinutes  int
	MaxSlotMinutes  int
	MaxGenerateDays int
}

// Service applies weekly patterns and materializes slots.
type Service struct {
	store  Store
	cache  Invalidator
	logger *zerolog.Logger
	limits Limits
	now    func() time.Time
}

// NewService creates a schedule service. cache may be nil.
func NewService(store Store, cache Invalidator, limits Limits, logger *zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		limits: limits,
		now:    time.Now,
	}
}

// ApplyWeeklyPattern validates and persists the garage's pattern atomically,
// then compiles and materializes slots for the next generateDays days.
// Existing slots, booked or not, are never touched.
func (s *Service) ApplyWeeklyPattern(ctx context.Context, p *models.WeeklyPattern, restrictions []models.Restriction, generateDays int) (int64, error) {
	if p.GarageID <= 0 {
		return 0, &models.ValidationError{Field: "garage_id", Message: "required"}
	}
	if err := p.Validate(s.limits.MinSlotMinutes, s.limits.MaxSlotMinutes); err != nil {
		return 0, err
	}
	for i := range restrictions {
		restrictions[i].GarageID = p.GarageID
		if err := restrictions[i].Validate(); err != nil {
			return 0, err
		}
	}
	if generateDays < 1 || generateDays > s.limits.MaxGenerateDays {
		return 0, &models.ValidationError{
			Field:   "generate_days",
			Message: fmt.Sprintf("must be between 1 and %d", s.limits.MaxGenerateDays),
		}
	}

	if err := s.store.SaveWeeklyPattern(ctx, p, restrictions); err != nil {
		return 0, fmt.Errorf("save pattern: %w", err)
	}

	inserted, err := s.materialize(ctx, p, restrictions, generateDays)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("garage_id", p.GarageID).
		Int("generate_days", generateDays).
		Int64("slots_inserted", inserted).
		Msg("weekly pattern applied")
	return inserted, nil
}

// RefreshGarage re-materializes slots for a garage from its stored pattern.
// Re-running over an already materialized range inserts nothing new.
func (s *Service) RefreshGarage(ctx context.Context, garageID int64, days int) (int64, error) {
	p, err := s.store.GetWeeklyPattern(ctx, garageID)
	if err != nil {
		return 0, err
	}
	restrictions, err := s.store.ListRestrictions(ctx, garageID)
	if err != nil {
		return 0, fmt.Errorf("load restrictions: %w", err)
	}
	return s.materialize(ctx, p, restrictions, days)
}

func (s *Service) materialize(ctx context.Context, p *models.WeeklyPattern, restrictions []models.Restriction, days int) (int64, error) {
	from := s.now()
	to := from.AddDate(0, 0, days-1)

	candidates, err := pattern.Compile(p, restrictions, from, to)
	if err != nil {
		return 0, fmt.Errorf("compile pattern: %w", err)
	}

	inserted, err := s.store.MaterializeSlots(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("materialize slots: %w", err)
	}

	metrics.AddSlotsGenerated(inserted)
	if inserted > 0 && s.cache != nil {
		s.cache.InvalidateGarage(ctx, p.GarageID)
	}
	return inserted, nil
}
