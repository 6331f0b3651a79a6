package importer

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned when the workbook has no sheets.
var ErrEmptyWorkbook = errors.New("excel workbook has no sheets")

// ParseXLSX reads question rows from the first sheet of an Excel workbook.
// Header and record rules match ParseCSV.
func ParseXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) < 2 {
		return nil, ErrTooFewLines
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}

	records := make([]Record, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		if rec, ok := buildRecord(header, rows[i], i); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ImportXLSX parses and validates a workbook with the same all-or-nothing
// contract as Import.
func ImportXLSX(r io.Reader) ([]Record, []string) {
	records, err := ParseXLSX(r)
	if err != nil {
		return nil, []string{err.Error()}
	}
	return finish(records)
}
