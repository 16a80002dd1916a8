// Package sheet models the spreadsheet input: ordered rows of cell strings
// addressed by resolved column indices.
package sheet

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Row is one spreadsheet record. Rows are immutable once read.
type Row []string

// Cell returns the cell at idx, or the empty string when the row is shorter
// than idx. Short rows are common at the tail of exported spreadsheets.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// Load reads a comma-delimited file into rows. Records may have varying
// field counts.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet: %w", err)
	}
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row(rec)
	}
	return rows, nil
}
