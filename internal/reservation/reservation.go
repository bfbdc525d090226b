// Package reservation parses the reservation annotations kept in the inventory sheet.
package reservation

import (
	"math"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

// annotationPattern matches "Reserverad av <name> till <YYYY-MM-DD>" anywhere in the cell.
var annotationPattern = regexp.MustCompile(`Reserverad av (.+?) till (\d{4}-\d{2}-\d{2})`)

// Row is one candidate row of the sheet.
type Row struct {
	// RowNumber is the 1-based sheet row, header rows included.
	RowNumber int
	// Column is the 0-based index of the reservation column.
	Column     int
	Annotation string
	// Values is the full row as read from the sheet.
	Values []string
}

// Parsed is a reservation annotation that matched the expected wording.
type Parsed struct {
	Name          string
	ExpiryDate    time.Time
	Expired       bool
	DaysRemaining int
}

// Parse classifies an annotation against the start of the day containing now.
// It returns false when the text does not match or the date is not a real
// calendar date. The expiry date is interpreted in now's location.
func Parse(annotation string, now time.Time) (*Parsed, bool) {
	if annotation == "" {
		return nil, false
	}
	m := annotationPattern.FindStringSubmatch(annotation)
	if m == nil {
		return nil, false
	}

	expiry, err := time.ParseInLocation(dateLayout, m[2], now.Location())
	if err != nil {
		return nil, false
	}

	today := StartOfDay(now)
	return &Parsed{
		Name:          m[1],
		ExpiryDate:    expiry,
		Expired:       expiry.Before(today),
		DaysRemaining: daysBetween(today, expiry),
	}, true
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(ub.Sub(ua).Hours() / 24))
}

// FormatDate renders a calendar date the way the sheet stores it.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
