package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusAccepted  BookingStatus = "accepted"
	StatusRejected  BookingStatus = "rejected"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// ServiceType is the kind of inspection being booked.
type ServiceType string

const (
	ServiceMOT    ServiceType = "mot"
	ServiceRetest ServiceType = "retest"
)

// IsValid reports whether the service type is one of the known values.
func (t ServiceType) IsValid() bool {
	return t == ServiceMOT || t == ServiceRetest
}

// Booking is a driver's claim on one time slot.
type Booking struct {
	ID          int64         `json:"id"`
	Reference   string        `json:"reference"` // public uuid, stable across status changes
	SlotID      int64         `json:"slot_id"`
	GarageID    int64         `json:"garage_id"`
	DriverID    int64         `json:"driver_id"`
	VehicleID   int64         `json:"vehicle_id"`
	ServiceType ServiceType   `json:"service_type"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Version     int64         `json:"version"`
}

// IsActive reports whether the booking still holds its slot.
// Cancelled bookings give the slot back; every other status keeps it consumed.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// IsTerminal reports whether no further transitions are possible.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
