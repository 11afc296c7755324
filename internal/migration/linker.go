package migration

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"alkalytics/internal/docstore"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/spreadsheet"
	"alkalytics/pkg/contracts/domain"
)

// Outcome is the result kind of resolving a data sheet's experiment.
type Outcome int

const (
	Unresolved Outcome = iota
	Resolved
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unresolved"
	}
}

// Resolution is the tri-state answer of Resolve. ExperimentID is set only
// when Outcome is Resolved; Candidates only when it is Ambiguous.
type Resolution struct {
	Outcome      Outcome
	ExperimentID string
	Candidates   []string
}

// Resolve finds the experiment dated date. It never picks among several
// candidates.
func (e *Engine) Resolve(ctx context.Context, date, sourceID string) (Resolution, error) {
	matches, err := e.experiments.Find(ctx,
		docstore.Where(docstore.Eq(domain.FieldDate, date)),
		docstore.WithProjection(domain.FieldExperimentID),
	)
	if err != nil {
		return Resolution{}, apperrors.NewStorageError("failed to look up experiments by date", err)
	}

	switch len(matches) {
	case 0:
		return Resolution{Outcome: Unresolved}, nil
	case 1:
		return Resolution{Outcome: Resolved, ExperimentID: matches[0].Text(domain.FieldExperimentID)}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Text(domain.FieldExperimentID)
	}
	e.logger.InfoContext(ctx, "Data sheet matches several experiments",
		slog.String("source", sourceID),
		slog.String("date", date),
		slog.Any("candidates", ids))
	return Resolution{Outcome: Ambiguous, Candidates: ids}, nil
}

// SheetResult reports what one data sheet contributed.
type SheetResult struct {
	Date       string
	Resolution Resolution
	Inserted   int
}

// ImportDataSheet links sheet to the experiment sharing its date and stores
// its rows. Unresolved and ambiguous sheets store nothing.
func (e *Engine) ImportDataSheet(ctx context.Context, sheet *spreadsheet.Sheet) (SheetResult, error) {
	date, ok := DeriveSheetDate(sheet)
	if !ok {
		e.logger.WarnContext(ctx, "Could not determine date of data sheet",
			slog.String("source", sheet.SourceID))
		return SheetResult{}, nil
	}

	res, err := e.Resolve(ctx, date, sheet.SourceID)
	if err != nil {
		return SheetResult{Date: date}, err
	}
	out := SheetResult{Date: date, Resolution: res}
	if res.Outcome != Resolved {
		if res.Outcome == Unresolved {
			e.logger.WarnContext(ctx, "No experiment matches data sheet date, skipping",
				slog.String("source", sheet.SourceID),
				slog.String("date", date))
		}
		return out, nil
	}

	out.Inserted, err = e.insertData(ctx, sheet, res.ExperimentID)
	return out, err
}

var filenameDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4}|\d{4}/\d{2}/\d{2}`)

var filenameLayouts = []string{"2006-01-02", "01-02-2006", "2006/01/02"}

// DeriveSheetDate returns the YYYY-MM-DD date of a data sheet: the date of
// the first timestamp in its Time column, else a date in the source name.
func DeriveSheetDate(sheet *spreadsheet.Sheet) (string, bool) {
	for _, r := range sheet.Records {
		v := r.Value(domain.FieldTime)
		if t, ok := v.TimeValue(); ok {
			return t.Format(domain.DateLayout), true
		}
		if s, ok := v.Str(); ok {
			if t, ok := spreadsheet.ParseTime(s); ok {
				return t.Format(domain.DateLayout), true
			}
		}
	}

	match := filenameDate.FindString(filepath.Base(sheet.SourceID))
	if match == "" {
		return "", false
	}
	for _, layout := range filenameLayouts {
		if t, err := time.Parse(layout, match); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

// insertData stores every row of sheet under experimentID.
func (e *Engine) insertData(ctx context.Context, sheet *spreadsheet.Sheet, experimentID string) (int, error) {
	docs := dataDocuments(sheet, experimentID, e.now())
	if len(docs) == 0 {
		e.logger.WarnContext(ctx, "Data sheet has no rows to import",
			slog.String("source", sheet.SourceID))
		return 0, nil
	}
	if _, err := e.data.InsertMany(ctx, docs); err != nil {
		return 0, apperrors.NewStorageError("failed to insert data records", err)
	}
	e.logger.InfoContext(ctx, "Data records imported",
		slog.String("source", sheet.SourceID),
		slog.String("experiment_id", experimentID),
		slog.Int("records", len(docs)))
	return len(docs), nil
}

// dataDocuments builds DataRecord documents. Row identity is
// "#<seq> <Time>", or DATA-<n>-<yyyymmddHHMMSS> when either part is missing.
func dataDocuments(sheet *spreadsheet.Sheet, experimentID string, now time.Time) []*domain.Record {
	stamp := now.Format("20060102150405")
	docs := make([]*domain.Record, 0, len(sheet.Records))
	for i, row := range sheet.Records {
		seq, at := row.Value(domain.FieldSeq), row.Value(domain.FieldTime)
		id := fmt.Sprintf("DATA-%d-%s", i+1, stamp)
		if !seq.IsNull() && !at.IsNull() {
			id = fmt.Sprintf("#%s %s", seq, at)
		}

		doc := domain.NewRecord(
			domain.FieldDataSheetID, id,
			domain.FieldExperimentID, experimentID,
		)
		row.Range(func(name string, v domain.Value) bool {
			if name != domain.FieldDataSheetID && name != domain.FieldExperimentID {
				doc.Set(name, v)
			}
			return true
		})
		docs = append(docs, doc)
	}
	return docs
}
