package api

import (
	"fmt"
	"net/http"
	"strconv"

	"garagebook/internal/export"
	"garagebook/internal/metrics"
)

// handleExportBookings streams a garage's bookings as an xlsx workbook.
// GET /api/garages/{garageID}/bookings/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")

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

	bookings, err := s.db.ListBookingsByGarage(r.Context(), garageID, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	filename := fmt.Sprintf("bookings_%d_%s.xlsx", garageID, from.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteBookings(w, garageID, bookings); err != nil {
		s.logger.Error().Err(err).Int64("garage_id", garageID).Msg("export failed")
	}
}
