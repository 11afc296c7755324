package spreadsheet

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/validation"
	"alkalytics/pkg/contracts/domain"
)

// HeaderMode selects how many leading rows form the header.
type HeaderMode int

const (
	// HeaderAuto uses two header rows when the second row holds only text.
	HeaderAuto HeaderMode = iota
	HeaderSingle
	HeaderDouble
)

func (m HeaderMode) String() string {
	switch m {
	case HeaderSingle:
		return "single"
	case HeaderDouble:
		return "double"
	default:
		return "auto"
	}
}

// Sheet is a normalized table. Every record carries every column, in
// column order.
type Sheet struct {
	SourceID string           `json:"sourceId"`
	Columns  []string         `json:"columns"`
	Records  []*domain.Record `json:"records"`
}

// HasColumn reports whether name is one of the sheet's columns
func (s *Sheet) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Options controls how a file is read.
type Options struct {
	Header HeaderMode
	// Sheet names the workbook sheet to read. Empty means the first sheet.
	Sheet string
}

// Normalize builds a Sheet from raw rows. It fails without emitting any
// records when there is no header.
func Normalize(sourceID string, rows [][]string, mode HeaderMode) (*Sheet, error) {
	start := 0
	for start < len(rows) && isBlankRow(rows[start]) {
		start++
	}
	rows = rows[start:]
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError("sheet has no rows", nil).
			WithContext("source", sourceID)
	}

	if mode == HeaderAuto {
		mode = detectHeaderMode(rows)
	}

	var header []string
	bodyStart := 1
	if mode == HeaderDouble && len(rows) > 1 {
		header = MergeHeaderRows(rows[0], rows[1])
		bodyStart = 2
	} else {
		header = append([]string(nil), rows[0]...)
	}

	if !hasName(header) {
		return nil, apperrors.NewParsingError("header row is empty", nil).
			WithContext("source", sourceID)
	}

	width := len(header)
	for _, r := range rows[bodyStart:] {
		width = max(width, len(r))
	}
	for len(header) < width {
		header = append(header, "")
	}
	names := ResolveColumnNames(header)

	columns := make([]string, 0, len(names))
	present := make(map[string]bool, len(names))
	for _, name := range names {
		if !present[name] {
			present[name] = true
			columns = append(columns, name)
		}
	}

	records := make([]*domain.Record, 0, len(rows)-bodyStart)
	for _, row := range rows[bodyStart:] {
		rec := &domain.Record{}
		for _, c := range columns {
			rec.Set(c, domain.Null())
		}
		for i, name := range names {
			if !rec.Value(name).IsNull() {
				continue
			}
			rec.Set(name, NormalizeValue(cellAt(row, i)))
		}
		records = append(records, rec)
	}

	return &Sheet{
		SourceID: sourceID,
		Columns:  columns,
		Records:  FilterRows(records),
	}, nil
}

// detectHeaderMode treats the second row as a header continuation when it
// has at least one name and no numeric or date cells.
func detectHeaderMode(rows [][]string) HeaderMode {
	if len(rows) < 2 {
		return HeaderSingle
	}
	named := false
	for _, cell := range rows[1] {
		switch NormalizeValue(cell).Kind() {
		case domain.KindNumber, domain.KindTime:
			return HeaderSingle
		case domain.KindText:
			named = true
		}
	}
	if named {
		return HeaderDouble
	}
	return HeaderSingle
}

func hasName(header []string) bool {
	for _, h := range header {
		if !isPlaceholder(h) {
			return true
		}
	}
	return false
}

// Normalizer reads spreadsheet files from disk
type Normalizer struct {
	logger    *slog.Logger
	validator *validation.FileValidator
}

// NewNormalizer creates a normalizer that logs under the spreadsheet component
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "spreadsheet"))
	return &Normalizer{
		logger:    logger,
		validator: validation.NewFileValidator(logger),
	}
}

// ReadFile reads and normalizes the file at path. sourceID labels the
// result and defaults to the file's base name.
func (n *Normalizer) ReadFile(ctx context.Context, path, sourceID string, opts Options) (*Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sourceID == "" {
		sourceID = filepath.Base(path)
	}

	kind, err := n.validator.ValidateSpreadsheetFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("unsupported spreadsheet", err).
			WithContext("source", sourceID)
	}

	var rows [][]string
	switch kind {
	case validation.KindCSV:
		rows, err = readCSV(path)
	default:
		rows, err = readWorkbook(path, opts.Sheet)
	}
	if err != nil {
		n.logger.Error("Failed to read spreadsheet",
			slog.String("source", sourceID),
			slog.String("error", err.Error()))
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot read %s", sourceID), err).
			WithContext("source", sourceID)
	}

	sheet, err := Normalize(sourceID, rows, opts.Header)
	if err != nil {
		n.logger.Error("Failed to normalize spreadsheet",
			slog.String("source", sourceID),
			slog.String("error", err.Error()))
		return nil, err
	}

	n.logger.Info("Spreadsheet normalized",
		slog.String("source", sourceID),
		slog.String("header", opts.Header.String()),
		slog.Int("columns", len(sheet.Columns)),
		slog.Int("records", len(sheet.Records)))
	return sheet, nil
}
