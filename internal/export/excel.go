package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"lagerstatus/internal/sweep"
)

// SheetName is the name of the reservations worksheet.
const SheetName = "Reservationer"

var reservationHeader = []string{
	"Rad", "Cell", "Artikel", "Reserverad av", "Namn", "Giltig till", "Dagar kvar", "Utgången",
}

// Workbook builds an xlsx workbook one row at a time.
type Workbook struct {
	file       *excelize.File
	sheet      string
	currentRow int
}

func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet makes name the active sheet. The first call renames the default sheet.
func (w *Workbook) AddSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes a bold header row.
func (w *Workbook) WriteHeader(columns []string) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.setRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
	if err := w.file.SetCellStyle(w.sheet, start, end, style); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

// WriteRow writes one data row.
func (w *Workbook) WriteRow(row []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if err := w.setRow(row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *Workbook) setRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(w.sheet, cell, &row)
}

func (w *Workbook) Save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *Workbook) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// Reservations builds a workbook listing entries.
func Reservations(entries []sweep.Entry) (*Workbook, error) {
	wb := NewWorkbook()
	if err := wb.AddSheet(SheetName); err != nil {
		_ = wb.Close()
		return nil, err
	}
	if err := wb.WriteHeader(reservationHeader); err != nil {
		_ = wb.Close()
		return nil, err
	}

	for _, e := range entries {
		row := []any{e.RowNumber, e.Cell, e.Item, e.ReservedBy}
		if e.Parsed {
			row = append(row, e.Name, e.ExpiryDate, e.DaysRemaining, yesNo(e.Expired))
		}
		if err := wb.WriteRow(row); err != nil {
			_ = wb.Close()
			return nil, fmt.Errorf("write row %d: %w", e.RowNumber, err)
		}
	}
	return wb, nil
}

// WriteReservations writes the reservations workbook to out.
func WriteReservations(out io.Writer, entries []sweep.Entry) error {
	wb, err := Reservations(entries)
	if err != nil {
		return err
	}
	defer wb.Close()
	return wb.Save(out)
}

func yesNo(b bool) string {
	if b {
		return "Ja"
	}
	return "Nej"
}
