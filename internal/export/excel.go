// Package export writes booking reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"garagebook/internal/models"
)

var bookingColumns = []string{
	"ID", "Reference", "Slot ID", "Driver ID", "Vehicle ID",
	"Service", "Status", "Created", "Updated",
}

// WriteBookings writes a garage's bookings as a single-sheet workbook.
func WriteBookings(w io.Writer, garageID int64, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("Garage %d", garageID)
	// Excel caps sheet names at 31 chars.
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	f.SetSheetName("Sheet1", sheet)

	if err := writeRow(f, sheet, 1, toRow(bookingColumns)); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(bookingColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID, b.Reference, b.SlotID, b.DriverID, b.VehicleID,
			string(b.ServiceType), string(b.Status),
			b.CreatedAt.Format("2006-01-02 15:04"),
			b.UpdatedAt.Format("2006-01-02 15:04"),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}
	return nil
}

func toRow(cols []string) []interface{} {
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}
