package models

import "time"

// TimeSlot is a discrete bookable interval for one garage. Identity is the
// (GarageID, StartTime, EndTime) triple; materialization upserts on it.
type TimeSlot struct {
	ID        int64     `json:"id"`
	GarageID  int64     `json:"garage_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
	BookingID *int64    `json:"booking_id,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration returns the slot length.
func (s *TimeSlot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Overlaps reports whether the slot intersects [start, end).
func (s *TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}
