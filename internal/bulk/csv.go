package bulk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RawRow is one sanitized data row: every value is a trimmed non-empty
// string, empty cells are absent from Fields. Number is the 2-based
// spreadsheet row used in all reporting (row 1 is the header).
type RawRow struct {
	Number int
	Fields map[string]string

	columns map[string]bool
}

// Get returns the sanitized value for a header, or "" when the cell was
// empty or the column is missing.
func (r RawRow) Get(key string) string {
	return r.Fields[key]
}

// Has reports whether the file carries the named column at all, regardless
// of whether this row's cell is empty. The Support cost-center replacement
// semantics depend on this distinction.
func (r RawRow) Has(key string) bool {
	return r.columns[key]
}

// Parse tokenizes CSV text into sanitized rows keyed by header name. Quoted
// fields may contain commas, newlines and doubled quotes; rows shorter than
// the header are padded with empty cells; rows that are empty after trimming
// are dropped.
func Parse(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header row: %w", err)
	}

	headers := make([]string, len(header))
	columns := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
		columns[headers[i]] = true
	}

	var rows []RawRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV records: %w", err)
		}
		// The reader skips blank lines without yielding a record, so the
		// physical line of the record is the spreadsheet row number.
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(headers))
		blank := true
		for j, h := range headers {
			var v string
			if j < len(record) {
				v = strings.TrimSpace(record[j])
			}
			if v == "" {
				continue
			}
			blank = false
			fields[h] = v
		}
		if blank {
			continue
		}
		rows = append(rows, RawRow{Number: line, Fields: fields, columns: columns})
	}
	return rows, nil
}
