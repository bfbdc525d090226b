package reservation

import (
	"fmt"
	"strings"
)

// ColumnIndex returns the index of the header equal to name, or -1.
func ColumnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Candidates returns the rows whose reservation column is non-empty after
// trimming. values holds headerRows header rows followed by data rows; the
// column is looked up in the last header row. A missing column yields no rows.
func Candidates(values [][]string, headerRows int, column string) []Row {
	if headerRows < 1 {
		headerRows = 1
	}
	if len(values) < headerRows {
		return nil
	}

	col := ColumnIndex(values[headerRows-1], column)
	if col < 0 {
		return nil
	}

	var rows []Row
	for i, row := range values[headerRows:] {
		if col >= len(row) {
			continue
		}
		if strings.TrimSpace(row[col]) == "" {
			continue
		}
		rows = append(rows, Row{
			RowNumber:  headerRows + i + 1,
			Column:     col,
			Annotation: row[col],
			Values:     row,
		})
	}
	return rows
}

// ColumnLetter converts a 0-based column index to its A1 letters (0 → A, 26 → AA).
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// CellAddress builds an A1 reference such as "Lager!B2".
func CellAddress(sheet string, column, row int) string {
	if sheet == "" {
		return fmt.Sprintf("%s%d", ColumnLetter(column), row)
	}
	return fmt.Sprintf("%s!%s%d", sheet, ColumnLetter(column), row)
}
