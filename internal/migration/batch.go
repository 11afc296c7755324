package migration

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
	"alkalytics/internal/spreadsheet"
	"alkalytics/pkg/contracts/domain"
)

// Source is a spreadsheet file to migrate. Name identifies it in results
// and defaults to the file's base name.
type Source struct {
	Path string
	Name string
}

// FileError reports a source that could not be read.
type FileError struct {
	SourceID string `json:"sourceId"`
	Message  string `json:"message"`
}

// BatchResult is everything one ImportBatch run produced. It is returned by
// value; nothing about a run is kept on the Engine.
type BatchResult struct {
	ImportedExperiments []domain.Experiment    `json:"importedExperiments"`
	DuplicatesSkipped   int                    `json:"duplicatesSkipped"`
	DataSheetsImported  int                    `json:"dataSheetsImported"`
	DataRecordsImported int                    `json:"dataRecordsImported"`
	AmbiguousLinks      []domain.AmbiguousLink `json:"ambiguousLinks"`
	UnresolvedSheets    []string               `json:"unresolvedSheets"`
	FileErrors          []FileError            `json:"fileErrors"`
}

func (r *BatchResult) counts() infrastructure.MigrationCounts {
	return infrastructure.MigrationCounts{
		Experiments: len(r.ImportedExperiments),
		Duplicates:  r.DuplicatesSkipped,
		DataRecords: r.DataRecordsImported,
		Ambiguous:   len(r.AmbiguousLinks),
		Unresolved:  len(r.UnresolvedSheets),
		FileErrors:  len(r.FileErrors),
	}
}

// ImportBatch imports every experiment sheet, then links each data sheet.
// Sources are processed one at a time. A source that cannot be read is
// reported in FileErrors and its siblings continue; a store failure ends
// the run and is returned along with the partial result.
func (e *Engine) ImportBatch(ctx context.Context, experimentSources, dataSources []Source) (res BatchResult, err error) {
	ctx, span := infrastructure.StartSpan(ctx, "migration.import_batch",
		attribute.Int("experiment_files", len(experimentSources)),
		attribute.Int("data_files", len(dataSources)))
	defer func() {
		e.metrics.RecordMigration(ctx, res.counts())
		infrastructure.EndSpan(span, err)
	}()

	for _, src := range experimentSources {
		sheet, err := e.read(ctx, src, spreadsheet.HeaderAuto, &res)
		if err != nil {
			return res, err
		}
		if sheet == nil {
			continue
		}
		imported, err := e.ImportExperiments(ctx, sheet)
		res.ImportedExperiments = append(res.ImportedExperiments, imported.Inserted...)
		res.DuplicatesSkipped += imported.Duplicates
		if err != nil {
			return res, err
		}
	}

	for _, src := range dataSources {
		sheet, err := e.read(ctx, src, spreadsheet.HeaderSingle, &res)
		if err != nil {
			return res, err
		}
		if sheet == nil {
			continue
		}
		linked, err := e.ImportDataSheet(ctx, sheet)
		if err != nil {
			return res, err
		}
		switch linked.Resolution.Outcome {
		case Resolved:
			res.DataSheetsImported++
			res.DataRecordsImported += linked.Inserted
		case Ambiguous:
			res.AmbiguousLinks = append(res.AmbiguousLinks, domain.AmbiguousLink{
				SourceID:               sheet.SourceID,
				Date:                   linked.Date,
				CandidateExperimentIDs: linked.Resolution.Candidates,
			})
		default:
			res.UnresolvedSheets = append(res.UnresolvedSheets, sheet.SourceID)
		}
	}

	e.logger.InfoContext(ctx, "Migration run complete",
		slog.Int("experiments_imported", len(res.ImportedExperiments)),
		slog.Int("duplicates_skipped", res.DuplicatesSkipped),
		slog.Int("data_records_imported", res.DataRecordsImported),
		slog.Int("ambiguous", len(res.AmbiguousLinks)),
		slog.Int("unresolved", len(res.UnresolvedSheets)),
		slog.Int("file_errors", len(res.FileErrors)))
	return res, nil
}

// read normalizes src. A file that cannot be read is recorded as a
// FileError and yields a nil sheet; only context errors are returned.
func (e *Engine) read(ctx context.Context, src Source, mode spreadsheet.HeaderMode, res *BatchResult) (*spreadsheet.Sheet, error) {
	sheet, err := e.normalizer.ReadFile(ctx, src.Path, src.Name, spreadsheet.Options{Header: mode})
	if err == nil {
		return sheet, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Cause != nil {
			msg += ": " + appErr.Cause.Error()
		}
	}
	e.logger.ErrorContext(ctx, "Failed to process file",
		slog.String("source", name),
		slog.String("error", err.Error()))
	res.FileErrors = append(res.FileErrors, FileError{SourceID: name, Message: msg})
	return nil, nil
}
