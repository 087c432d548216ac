package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"garagebook/internal/metrics"
	"garagebook/internal/models"
)

// SetScheduleRequest is the request body for PUT /api/garages/{id}/schedule.
// Days holds exactly seven entries, Sunday first.
type SetScheduleRequest struct {
	Days         []models.DayRule     `json:"days"`
	Restrictions []models.Restriction `json:"restrictions,omitempty"`
	GenerateDays int                  `json:"generate_days"`
}

// SetScheduleResponse reports the materialization outcome.
type SetScheduleResponse struct {
	GarageID      int64 `json:"garage_id"`
	SlotsInserted int64 `json:"slots_inserted"`
}

// handleSetSchedule replaces a garage's weekly pattern and materializes slots
// for the requested number of days.
// PUT /api/garages/{garageID}/schedule
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_schedule")

	garageID, err := strconv.ParseInt(r.PathValue("garageID"), 10, 64)
	if err != nil || garageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid garage id")
		return
	}

	var req SetScheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Days) != 7 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must have exactly 7 entries, got %d", len(req.Days)))
		return
	}

	p := &models.WeeklyPattern{GarageID: garageID}
	copy(p.Days[:], req.Days)

	inserted, err := s.schedule.ApplyWeeklyPattern(r.Context(), p, req.Restrictions, req.GenerateDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SetScheduleResponse{GarageID: garageID, SlotsInserted: inserted})
}
