package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garagebook/internal/models"
)

// SaveWeeklyPattern replaces the garage's stored pattern and restrictions in a
// single transaction; a pattern update is never partially applied.
func (db *DB) SaveWeeklyPattern(ctx context.Context, p *models.WeeklyPattern, restrictions []models.Restriction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM garage_schedules WHERE garage_id = ?", p.GarageID,
	); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schedule_restrictions WHERE garage_id = ?", p.GarageID,
	); err != nil {
		return fmt.Errorf("clear restrictions: %w", err)
	}

	now := time.Now()
	for day, rule := range p.Days {
		if rule.Kind != models.DayOpen {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO garage_schedules (garage_id, day_of_week, seq, kind, created_at, updated_at)
				VALUES (?, ?, 0, ?, ?, ?)`,
				p.GarageID, day, string(rule.Kind), now, now,
			); err != nil {
				return fmt.Errorf("insert day %d: %w", day, err)
			}
			continue
		}

		for seq, iv := range rule.Intervals {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO garage_schedules (
					garage_id, day_of_week, seq, kind, start_time, end_time,
					slot_duration, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.GarageID, day, seq, string(models.DayOpen),
				iv.Start, iv.End, rule.SlotDuration, now, now,
			); err != nil {
				return fmt.Errorf("insert day %d interval %d: %w", day, seq, err)
			}
		}
	}

	for _, r := range restrictions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_restrictions (
				garage_id, kind, date, day_of_month, month, day_of_week,
				start_time, end_time, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.GarageID, string(r.Kind), r.Date, r.DayOfMonth, r.Month,
			r.DayOfWeek, r.Start, r.End, now,
		); err != nil {
			return fmt.Errorf("insert restriction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetWeeklyPattern loads the stored pattern for a garage.
// Days without stored rows default to closed.
func (db *DB) GetWeeklyPattern(ctx context.Context, garageID int64) (*models.WeeklyPattern, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, kind, start_time, end_time, slot_duration
		FROM garage_schedules
		WHERE garage_id = ?
		ORDER BY day_of_week, seq`,
		garageID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	p := &models.WeeklyPattern{GarageID: garageID}
	for i := range p.Days {
		p.Days[i] = models.DayRule{Kind: models.DayClosed}
	}

	found := false
	for rows.Next() {
		var day, slotDuration int
		var kind string
		var start, end sql.NullString
		if err := rows.Scan(&day, &kind, &start, &end, &slotDuration); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		found = true
		if day < 0 || day > 6 {
			continue
		}

		if models.DayRuleKind(kind) != models.DayOpen {
			p.Days[day] = models.DayRule{Kind: models.DayRuleKind(kind)}
			continue
		}
		p.Days[day].Kind = models.DayOpen
		p.Days[day].SlotDuration = slotDuration
		p.Days[day].Intervals = append(p.Days[day].Intervals, models.Interval{
			Start: start.String,
			End:   end.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListPatternGarages returns ids of garages that have a stored pattern.
func (db *DB) ListPatternGarages(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT DISTINCT garage_id FROM garage_schedules ORDER BY garage_id")
	if err != nil {
		return nil, fmt.Errorf("query garages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRestrictions returns the garage's stored restrictions.
func (db *DB) ListRestrictions(ctx context.Context, garageID int64) ([]models.Restriction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, garage_id, kind, date, day_of_month, month, day_of_week, start_time, end_time
		FROM schedule_restrictions
		WHERE garage_id = ?
		ORDER BY id`,
		garageID,
	)
	if err != nil {
		return nil, fmt.Errorf("query restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []models.Restriction
	for rows.Next() {
		var r models.Restriction
		var kind string
		var date sql.NullTime
		var dayOfWeek sql.NullInt64
		var start, end sql.NullString
		if err := rows.Scan(
			&r.ID, &r.GarageID, &kind, &date, &r.DayOfMonth, &r.Month,
			&dayOfWeek, &start, &end,
		); err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}
		r.Kind = models.RestrictionKind(kind)
		if date.Valid {
			d := date.Time
			r.Date = &d
		}
		if dayOfWeek.Valid {
			dw := int(dayOfWeek.Int64)
			r.DayOfWeek = &dw
		}
		r.Start = start.String
		r.End = end.String
		restrictions = append(restrictions, r)
	}
	return restrictions, rows.Err()
}
