package schedule

import (
	"context"
	"time"
)

// WorkerConfig configures the background regeneration worker.
type WorkerConfig struct {
	// Interval between refresh runs.
	Interval time.Duration
	// HorizonDays is how far ahead slots are kept materialized.
	HorizonDays int
	// RetentionDays is how long past free slots are kept before pruning.
	RetentionDays int
}

// DefaultWorkerConfig returns sensible defaults: daily runs, a 30 day
// horizon, and 31 days of retention.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:      24 * time.Hour,
		HorizonDays:   30,
		RetentionDays: 31,
	}
}

// RunWorker tops up the materialized slot horizon for every garage with a
// stored pattern and prunes long-past free slots. Blocks until ctx is done.
// Materialization only inserts missing rows, so it interleaves safely with
// booking traffic.
func (s *Service) RunWorker(ctx context.Context, cfg WorkerConfig) {
	if cfg.Interval <= 0 {
		cfg = DefaultWorkerConfig()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", cfg.Interval).
		Int("horizon_days", cfg.HorizonDays).
		Msg("schedule worker started")

	for {
		s.runOnce(ctx, cfg)
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schedule worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) runOnce(ctx context.Context, cfg WorkerConfig) {
	garages, err := s.store.ListPatternGarages(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list garages failed")
		return
	}

	var refreshed int64
	for _, garageID := range garages {
		inserted, err := s.RefreshGarage(ctx, garageID, cfg.HorizonDays)
		if err != nil {
			s.logger.Error().Err(err).Int64("garage_id", garageID).Msg("refresh failed")
			continue
		}
		refreshed += inserted
	}

	cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)
	pruned, err := s.store.DeleteExpiredFreeSlots(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("prune failed")
	}

	s.logger.Info().
		Int("garages", len(garages)).
		Int64("slots_inserted", refreshed).
		Int64("slots_pruned", pruned).
		Msg("schedule refresh complete")
}
