package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"garagebook/internal/models"
)

// ReserveSlot atomically claims a free slot and creates its pending booking.
// The claim and the insert commit together or not at all. Returns ErrNotFound
// for an unknown slot and ErrSlotUnavailable when the claim loses the race.
func (db *DB) ReserveSlot(ctx context.Context, slotID int64, b *models.Booking) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := claimSlot(ctx, tx, slotID); err != nil {
		return nil, err
	}

	var garageID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT garage_id FROM time_slots WHERE id = ?", slotID,
	).Scan(&garageID); err != nil {
		return nil, fmt.Errorf("read slot garage: %w", err)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			reference, slot_id, garage_id, driver_id, vehicle_id,
			service_type, status, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		b.Reference, slotID, garageID, b.DriverID, b.VehicleID,
		string(b.ServiceType), string(models.StatusPending), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE time_slots SET booking_id = ? WHERE id = ?", bookingID, slotID,
	); err != nil {
		return nil, fmt.Errorf("link slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	created := *b
	created.ID = bookingID
	created.SlotID = slotID
	created.GarageID = garageID
	created.Status = models.StatusPending
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Version = 1
	return &created, nil
}

const bookingColumns = `id, reference, slot_id, garage_id, driver_id, vehicle_id,
	service_type, status, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var serviceType, status string
	if err := row.Scan(
		&b.ID, &b.Reference, &b.SlotID, &b.GarageID, &b.DriverID, &b.VehicleID,
		&serviceType, &status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	); err != nil {
		return nil, err
	}
	b.ServiceType = models.ServiceType(serviceType)
	b.Status = models.BookingStatus(status)
	return &b, nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetBookingByReference returns a booking by its public reference.
func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE reference = ?`, reference)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking by reference: %w", err)
	}
	return b, nil
}

// UpdateBookingStatus moves a booking from one status to another with a
// guarded single-row update. ErrConcurrentModification means the booking is
// no longer in the expected status.
func (db *DB) UpdateBookingStatus(ctx context.Context, bookingID int64, from, to models.BookingStatus) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now(), bookingID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
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

// CancelBooking marks a booking cancelled and releases its slot in one
// transaction; the booking can never end up cancelled with its slot still
// held, or the other way round.
func (db *DB) CancelBooking(ctx context.Context, bookingID int64, from models.BookingStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var slotID int64
	err = tx.QueryRowContext(ctx,
		"SELECT slot_id FROM bookings WHERE id = ?", bookingID,
	).Scan(&slotID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read booking: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(models.StatusCancelled), time.Now(), bookingID, string(from),
	)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConcurrentModification
	}

	if err := releaseSlot(ctx, tx, slotID, bookingID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListBookingsByGarage returns bookings created in [from, to) for reporting.
func (db *DB) ListBookingsByGarage(ctx context.Context, garageID int64, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE garage_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at`,
		garageID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
