package sweep

import (
	"context"

	"lagerstatus/internal/google"
	"lagerstatus/internal/reservation"
)

// Entry is one reserved row as shown on the dashboard.
type Entry struct {
	RowNumber     int    `json:"row"`
	Cell          string `json:"cell"`
	Item          string `json:"item"`
	ReservedBy    string `json:"reserved_by"`
	Parsed        bool   `json:"parsed"`
	Name          string `json:"name,omitempty"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	DaysRemaining int    `json:"days_remaining"`
	Expired       bool   `json:"expired"`
}

// List reads the sheet and classifies every reserved row without writing anything.
func (s *Sweeper) List(ctx context.Context) ([]Entry, error) {
	values, err := s.table.ReadRows(ctx)
	if err != nil {
		return nil, &FetchError{Status: google.StatusCode(err), Err: err}
	}

	now := s.now().In(s.cfg.Location)
	sheet := s.table.SheetName()
	rows := reservation.Candidates(values, s.cfg.HeaderRows, s.cfg.ReservationColumn)

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e := Entry{
			RowNumber:  row.RowNumber,
			Cell:       reservation.CellAddress(sheet, row.Column, row.RowNumber),
			ReservedBy: row.Annotation,
		}
		if row.Column != 0 && len(row.Values) > 0 {
			e.Item = row.Values[0]
		}
		if parsed, ok := reservation.Parse(row.Annotation, now); ok {
			e.Parsed = true
			e.Name = parsed.Name
			e.ExpiryDate = reservation.FormatDate(parsed.ExpiryDate)
			e.DaysRemaining = parsed.DaysRemaining
			e.Expired = parsed.Expired
		}
		entries = append(entries, e)
	}
	return entries, nil
}
