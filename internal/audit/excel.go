// Package audit exports booking records to Excel for managers.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"citabot/internal/models"
)

// BookingSource provides the rows to export.
type BookingSource interface {
	GetBookingsByDateRange(ctx context.Context, facilityID int64, from, to time.Time) ([]models.Booking, error)
}

// Exporter writes a bookings report as an xlsx workbook.
type Exporter struct {
	source BookingSource
	logger *zerolog.Logger
}

func NewExporter(source BookingSource, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

var reportColumns = []string{"Code", "Date", "Start", "End", "Staff ID", "Service ID", "Customer ID", "Status", "Created"}

// ExportBookings writes all bookings of the facility in [from, to) to w.
func (e *Exporter) ExportBookings(ctx context.Context, facilityID int64, from, to time.Time, w io.Writer) error {
	bookings, err := e.source.GetBookingsByDateRange(ctx, facilityID, from, to)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	sheet := "Bookings"
	file.SetSheetName("Sheet1", sheet)

	for col, name := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.BookingCode,
			b.StartTs.Format("2006-01-02"),
			b.StartTs.Format("15:04"),
			b.EndTs.Format("15:04"),
			b.StaffID,
			b.ServiceID,
			b.CustomerID,
			b.Status,
			b.CreatedAt.Format(time.RFC3339),
		}
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	e.logger.Info().Int("rows", len(bookings)).Int64("facility_id", facilityID).Msg("bookings exported")
	return file.Write(w)
}
