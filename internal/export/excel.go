// Package export renders the user's reservations as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rezerv/internal/model"
)

var header = []string{"Booking ID", "Service", "Date", "Time", "Status"}

// WriteBookings writes one row per booking to w as an .xlsx workbook.
// Service titles are resolved from services when available, falling back to
// the raw service id.
func WriteBookings(w io.Writer, bookings []model.Booking, services []model.Service) error {
	titles := make(map[string]string, len(services))
	for _, s := range services {
		titles[s.ID] = s.Title
	}

	f := excelize.NewFile()
	const sheet = "Reservations"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i, b := range bookings {
		title := titles[b.ServiceID]
		if title == "" {
			title = b.ServiceID
		}
		t := ""
		if len(b.SelectedTimes) > 0 {
			t = b.SelectedTimes[0]
		}
		row := []any{b.ID, title, b.SelectedDate, t, string(b.Status)}
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
