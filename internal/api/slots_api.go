package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"garagebook/internal/metrics"
	"garagebook/internal/models"
)

const (
	// MaxSlotsDaysRange is the maximum number of days in a slot listing request.
	MaxSlotsDaysRange = 90
	// DefaultSlotsDaysRange is used when no range is given.
	DefaultSlotsDaysRange = 7
)

// SlotResponse is one free slot in a listing.
type SlotResponse struct {
	ID              int64  `json:"id"`
	Start           string `json:"start"` // RFC 3339
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

// SlotsResponse is the response for GET /api/garages/{id}/slots.
type SlotsResponse struct {
	GarageID int64          `json:"garage_id"`
	Slots    []SlotResponse `json:"slots"`
	Period   struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"period"`
}

// handleGarageSlots lists free slots ordered by start time.
// GET /api/garages/{garageID}/slots?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleGarageSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("garage_slots")

	garageID, err := strconv.ParseInt(r.PathValue("garageID"), 10, 64)
	if err != nil || garageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid garage id")
		return
	}

	from, to, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, hit := s.cache.Get(r.Context(), garageID, from, to)
	if !hit {
		slots, err = s.db.FindAvailableSlots(r.Context(), garageID, from, to)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.cache.Set(r.Context(), garageID, from, to, slots)
	}

	resp := SlotsResponse{GarageID: garageID, Slots: make([]SlotResponse, 0, len(slots))}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			ID:              slot.ID,
			Start:           slot.StartTime.Format(time.RFC3339),
			End:             slot.EndTime.Format(time.RFC3339),
			DurationMinutes: int(slot.Duration().Minutes()),
		})
	}
	resp.Period.From = from.Format("2006-01-02")
	resp.Period.To = to.Format("2006-01-02")

	writeJSON(w, http.StatusOK, resp)
}

// parseDateRange resolves the [from, to) window covered by a listing or an
// export. to is exclusive: the returned end is the day after the "to" date.
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from time.Time
	var err error
	if fromStr == "" {
		now := time.Now()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	} else {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date; expected YYYY-MM-DD")
		}
	}

	var to time.Time
	if toStr == "" {
		to = from.AddDate(0, 0, DefaultSlotsDaysRange)
	} else {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date; expected YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before or equal to to")
	}
	if to.Sub(from) > MaxSlotsDaysRange*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", MaxSlotsDaysRange)
	}
	return from, to, nil
}

func bookingResponse(b *models.Booking) map[string]any {
	return map[string]any{
		"id":           b.ID,
		"reference":    b.Reference,
		"slot_id":      b.SlotID,
		"garage_id":    b.GarageID,
		"driver_id":    b.DriverID,
		"vehicle_id":   b.VehicleID,
		"service_type": b.ServiceType,
		"status":       b.Status,
		"active":       b.IsActive(),
		"created_at":   b.CreatedAt.Format(time.RFC3339),
		"updated_at":   b.UpdatedAt.Format(time.RFC3339),
	}
}
