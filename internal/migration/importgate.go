package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alkalytics/internal/docstore"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/spreadsheet"
	"alkalytics/pkg/contracts/domain"
)

// ImportResult reports what one experiment sheet contributed.
type ImportResult struct {
	Inserted   []domain.Experiment
	Duplicates int
	// Undated counts rows skipped because they carry no date.
	Undated int
}

// ImportExperiments stores the sheet's experiments whose identity is new.
// Re-importing the same sheet inserts nothing.
func (e *Engine) ImportExperiments(ctx context.Context, sheet *spreadsheet.Sheet) (ImportResult, error) {
	var res ImportResult
	dateCol := dateColumn(sheet.Columns)
	uploaded := e.now().UTC()
	staged := make(map[string]bool)
	var docs []*domain.Record

	for i, row := range sheet.Records {
		date, ok := canonicalDate(row.Value(dateCol))
		if !ok {
			res.Undated++
			continue
		}

		id := experimentID(row, date, i+1)
		if staged[id] {
			res.Duplicates++
			e.logger.InfoContext(ctx, "Experiment repeated within sheet, skipping",
				slog.String("experiment_id", id),
				slog.String("source", sheet.SourceID))
			continue
		}
		n, err := e.experiments.Count(ctx, docstore.Where(docstore.Eq(domain.FieldExperimentID, id)))
		if err != nil {
			return res, apperrors.NewStorageError("failed to check experiment identity", err)
		}
		if n > 0 {
			res.Duplicates++
			e.logger.InfoContext(ctx, "Experiment already exists, skipping",
				slog.String("experiment_id", id),
				slog.String("source", sheet.SourceID))
			continue
		}

		staged[id] = true
		docs = append(docs, experimentDocument(row, id, dateCol, date, uploaded))
	}

	if res.Undated > 0 {
		e.logger.WarnContext(ctx, "Skipped experiment rows without a date",
			slog.String("source", sheet.SourceID),
			slog.String("date_column", dateCol),
			slog.Int("rows", res.Undated))
	}
	if len(docs) == 0 {
		return res, nil
	}

	if _, err := e.experiments.InsertMany(ctx, docs); err != nil {
		return res, apperrors.NewStorageError("failed to insert experiments", err)
	}
	for _, d := range docs {
		res.Inserted = append(res.Inserted, domain.Experiment{Record: d})
	}
	e.logger.InfoContext(ctx, "Experiments imported",
		slog.String("source", sheet.SourceID),
		slog.Int("inserted", len(docs)),
		slog.Int("duplicates", res.Duplicates))
	return res, nil
}

// dateColumn picks the first column naming a date that is not an upload stamp.
func dateColumn(columns []string) string {
	for _, c := range columns {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "date") && !strings.Contains(lc, "upload") {
			return c
		}
	}
	return domain.FieldDate
}

// canonicalDate renders a date cell as YYYY-MM-DD. Text that is not a
// recognised date is kept as written.
func canonicalDate(v domain.Value) (string, bool) {
	switch v.Kind() {
	case domain.KindTime:
		t, _ := v.TimeValue()
		return t.Format(domain.DateLayout), true
	case domain.KindText:
		s := strings.TrimSpace(v.String())
		if t, ok := spreadsheet.ParseTime(s); ok {
			return t.Format(domain.DateLayout), true
		}
		return s, s != ""
	case domain.KindNumber:
		return v.String(), true
	default:
		return "", false
	}
}

// experimentID builds "#<seq> <date>", or EXP-<date>-<ordinal> when the row
// has no sequence number.
func experimentID(row *domain.Record, date string, ordinal int) string {
	seq := strings.TrimSpace(row.Text(domain.FieldSeq))
	if seq == "" {
		return fmt.Sprintf("EXP-%s-%d", date, ordinal)
	}
	return fmt.Sprintf("#%s %s", strings.TrimPrefix(seq, "#"), date)
}

func experimentDocument(row *domain.Record, id, dateCol, date string, uploaded time.Time) *domain.Record {
	doc := domain.NewRecord(domain.FieldExperimentID, id)
	row.Range(func(name string, v domain.Value) bool {
		switch name {
		case domain.FieldExperimentID, domain.FieldUploadTimestamp:
		case dateCol:
			doc.Set(name, domain.Text(date))
		default:
			doc.Set(name, v)
		}
		return true
	})
	if !doc.Has(domain.FieldDate) {
		doc.Set(domain.FieldDate, domain.Text(date))
	}
	doc.Set(domain.FieldUploadTimestamp, domain.Time(uploaded))
	return doc
}
