package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garagebook/internal/models"
)

// MaterializeSlots upserts compiled slot candidates keyed by
// (garage_id, start_time, end_time). Existing rows are never touched, so a
// slot attached to an active booking survives any pattern change.
// Returns the number of newly inserted slots.
func (db *DB) MaterializeSlots(ctx context.Context, candidates []models.TimeSlot) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO time_slots (garage_id, start_time, end_time, is_available, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(garage_id, start_time, end_time) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	var inserted int64
	for _, c := range candidates {
		res, err := stmt.ExecContext(ctx, c.GarageID, c.StartTime, c.EndTime, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert slot %s: %w", c.StartTime.Format(time.RFC3339), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

const slotColumns = `id, garage_id, start_time, end_time, is_available, booking_id, version, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*models.TimeSlot, error) {
	var s models.TimeSlot
	var bookingID sql.NullInt64
	if err := row.Scan(
		&s.ID, &s.GarageID, &s.StartTime, &s.EndTime, &s.Available,
		&bookingID, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := bookingID.Int64
		s.BookingID = &id
	}
	return &s, nil
}

// GetSlot returns a slot by id.
func (db *DB) GetSlot(ctx context.Context, slotID int64) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, slotID)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

// FindSlotByTime returns the slot with the given identity triple, if any.
func (db *DB) FindSlotByTime(ctx context.Context, garageID int64, start, end time.Time) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM time_slots
		 WHERE garage_id = ? AND start_time = ? AND end_time = ?`,
		garageID, start, end)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return s, nil
}

// GetOrCreateSlot returns the slot with the given identity, creating it on
// demand for lazily generated schedules. A new slot must not intersect any
// existing slot's time, booked or free; two slots over the same wall-clock
// time would both be claimable. The unique index makes the create race-safe:
// concurrent callers converge on the same row.
func (db *DB) GetOrCreateSlot(ctx context.Context, garageID int64, start, end time.Time) (*models.TimeSlot, error) {
	s, err := db.FindSlotByTime(ctx, garageID, start, end)
	if err == nil {
		return s, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	neighbors, err := db.findSlotsInRange(ctx, garageID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	for i := range neighbors {
		if neighbors[i].Overlaps(start, end) {
			return nil, ErrSlotUnavailable
		}
	}

	now := time.Now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO time_slots (garage_id, start_time, end_time, is_available, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(garage_id, start_time, end_time) DO NOTHING`,
		garageID, start, end, now, now,
	); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return db.FindSlotByTime(ctx, garageID, start, end)
}

// findSlotsInRange returns every slot for the garage starting in [from, to),
// free or booked.
func (db *DB) findSlotsInRange(ctx context.Context, garageID int64, from, to time.Time) ([]models.TimeSlot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM time_slots
		 WHERE garage_id = ? AND start_time >= ? AND start_time < ?`,
		garageID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// FindAvailableSlots returns free slots for a garage ordered by start time.
func (db *DB) FindAvailableSlots(ctx context.Context, garageID int64, from, to time.Time) ([]models.TimeSlot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM time_slots
		 WHERE garage_id = ? AND is_available = 1 AND start_time >= ? AND start_time < ?
		 ORDER BY start_time`,
		garageID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// claimSlot flips a free slot to unavailable inside tx. The WHERE guard on
// is_available makes the check-and-claim a single atomic unit; exactly one of
// two concurrent claims can match the row.
func claimSlot(ctx context.Context, tx *sql.Tx, slotID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE time_slots
		SET is_available = 0, version = version + 1, updated_at = ?
		WHERE id = ? AND is_available = 1`,
		time.Now(), slotID,
	)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM time_slots WHERE id = ?", slotID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrSlotUnavailable
	}
	return nil
}

// releaseSlot reopens a slot inside tx, but only if the given booking is
// still its owner. A stale release that lost the slot to a newer booking
// matches no row.
func releaseSlot(ctx context.Context, tx *sql.Tx, slotID, bookingID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE time_slots
		SET is_available = 1, booking_id = NULL, version = version + 1, updated_at = ?
		WHERE id = ? AND booking_id = ?`,
		time.Now(), slotID, bookingID,
	)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// DeleteExpiredFreeSlots prunes free slots that ended before the cutoff.
// Slots referenced by a booking are kept for history.
func (db *DB) DeleteExpiredFreeSlots(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM time_slots
		WHERE is_available = 1 AND booking_id IS NULL AND end_time < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired slots: %w", err)
	}
	return res.RowsAffected()
}
