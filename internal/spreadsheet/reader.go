package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"alkalytics/pkg/contracts/domain"
)

// readWorkbook returns the cell texts of one sheet. Cells formatted as dates
// are rewritten to the canonical timestamp layout; other cells keep their
// unformatted value so number formats do not leak into the data.
func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	rows := make([][]string, len(formatted))
	for i, row := range formatted {
		out := make([]string, len(row))
		for j, shown := range row {
			out[j] = workbookCell(shown, cellAt(rowAt(raw, i), j))
		}
		rows[i] = out
	}

	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged cells of %q: %w", sheet, err)
	}
	if err := fillMergedHeaders(rows, merged); err != nil {
		return nil, err
	}
	return rows, nil
}

// headerRegion is the number of rows, from the first non-blank one, that
// may hold header cells.
const headerRegion = 2

// fillMergedHeaders copies the anchor text of every merged range that starts
// in the header region across the anchor's row. A title merged over
// sub-columns then prefixes all of them. Rows below the anchor and merged
// data cells stay blank.
func fillMergedHeaders(rows [][]string, merged []excelize.MergeCell) error {
	first := 0
	for first < len(rows) && isBlankRow(rows[first]) {
		first++
	}
	last := min(first+headerRegion, len(rows))

	for _, m := range merged {
		startCol, startRow, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			return fmt.Errorf("invalid merged range %q: %w", m.GetStartAxis(), err)
		}
		endCol, _, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			return fmt.Errorf("invalid merged range %q: %w", m.GetEndAxis(), err)
		}
		top := startRow - 1
		if top < first || top >= last {
			continue
		}
		row := rows[top]
		if len(row) < endCol {
			row = append(row, make([]string, endCol-len(row))...)
		}
		value := row[startCol-1]
		for c := startCol; c < endCol; c++ {
			row[c] = value
		}
		rows[top] = row
	}
	return nil
}

func workbookCell(shown, raw string) string {
	if raw == "" {
		return shown
	}
	if shown == raw {
		return raw
	}
	if !looksLikeDate(shown) {
		return raw
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return shown
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return shown
	}
	return t.Round(time.Second).Format(domain.TimeLayout)
}

// looksLikeDate reports whether a formatted cell shows a date or time
// rather than a decorated number such as "1,234.50" or "(3)".
func looksLikeDate(shown string) bool {
	if !strings.ContainsAny(shown, "/-:") {
		return false
	}
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(",$%() ", r) {
			return -1
		}
		return r
	}, shown)
	_, err := strconv.ParseFloat(stripped, 64)
	return err != nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		rows = append(rows, record)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func rowAt(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}
