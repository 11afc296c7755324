package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"alkalytics/internal/archive"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/files"
	"alkalytics/internal/infrastructure"
	"alkalytics/internal/migration"
	api "alkalytics/pkg/contracts/api/v1"
)

const (
	uploadMessage       = "Files processed successfully."
	manualUploadMessage = "Linked data inserted successfully."
)

// Migrator is the part of migration.Engine the upload service drives.
type Migrator interface {
	ImportBatch(ctx context.Context, experimentSources, dataSources []migration.Source) (migration.BatchResult, error)
	LinkExplicitFile(ctx context.Context, src migration.Source, experimentID string) (int, error)
}

// UploadService turns uploaded spreadsheets into migration runs
type UploadService struct {
	migrator   Migrator
	archiver   archive.Archiver
	scratchDir string
	logger     *slog.Logger
}

// NewUploadService creates an upload service. A nil archiver disables
// archiving.
func NewUploadService(migrator Migrator, archiver archive.Archiver, scratchDir string, logger *slog.Logger) *UploadService {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &UploadService{
		migrator:   migrator,
		archiver:   archiver,
		scratchDir: scratchDir,
		logger:     infrastructure.WithComponent(logger, "upload_service"),
	}
}

// Upload decodes the request's files into a scratch directory, imports the
// experiment files and links the data files. The scratch directory is
// removed before Upload returns.
func (s *UploadService) Upload(ctx context.Context, req api.UploadRequest) (resp *api.UploadResponse, err error) {
	if len(req.ExperimentFiles) == 0 && len(req.DataFiles) == 0 {
		return nil, apperrors.ErrNoFiles
	}

	ctx, span := infrastructure.StartSpan(ctx, "upload.process",
		attribute.Int("experiment_files", len(req.ExperimentFiles)),
		attribute.Int("data_files", len(req.DataFiles)))
	defer func() { infrastructure.EndSpan(span, err) }()

	scratch, err := files.NewScratch(s.scratchDir, s.logger)
	if err != nil {
		return nil, err
	}
	defer s.closeScratch(ctx, scratch)

	payloads := append(append([]api.FilePayload{}, req.ExperimentFiles...), req.DataFiles...)
	decoded, err := scratch.DecodeAll(ctx, uploads(payloads))
	if err != nil {
		return nil, err
	}
	s.archive(ctx, decoded)

	expFiles := decoded[:len(req.ExperimentFiles)]
	dataFiles := decoded[len(req.ExperimentFiles):]

	result, err := s.migrator.ImportBatch(ctx, sources(expFiles), sources(dataFiles))
	if err != nil {
		s.logger.ErrorContext(ctx, "Upload batch failed",
			slog.String("error", err.Error()),
			slog.Int("experiments_imported", len(result.ImportedExperiments)))
		return nil, err
	}

	byName := make(map[string]api.FilePayload, len(dataFiles))
	for i, f := range dataFiles {
		byName[f.Name] = req.DataFiles[i]
	}

	resp = &api.UploadResponse{
		Status:              api.StatusSuccess,
		Message:             uploadMessage,
		ImportedExperiments: make([]string, 0, len(result.ImportedExperiments)),
		DuplicatesSkipped:   result.DuplicatesSkipped,
		DataSheetsImported:  result.DataSheetsImported,
		DataRecordsImported: result.DataRecordsImported,
		AmbiguousData:       make([]api.AmbiguousData, 0, len(result.AmbiguousLinks)),
		UnresolvedSheets:    nonNil(result.UnresolvedSheets),
		FileErrors:          fileErrors(result.FileErrors),
	}
	for _, exp := range result.ImportedExperiments {
		resp.ImportedExperiments = append(resp.ImportedExperiments, exp.ID())
	}
	for _, link := range result.AmbiguousLinks {
		a := api.AmbiguousData{DataID: link.SourceID, Date: link.Date, MatchingExp: link.CandidateExperimentIDs}
		if p, ok := byName[link.SourceID]; ok {
			a.DataFile = &p
		}
		resp.AmbiguousData = append(resp.AmbiguousData, a)
	}

	s.logger.InfoContext(ctx, "Upload processed",
		slog.Int("experiments", len(resp.ImportedExperiments)),
		slog.Int("duplicates", resp.DuplicatesSkipped),
		slog.Int("data_records", resp.DataRecordsImported),
		slog.Int("ambiguous", len(resp.AmbiguousData)),
		slog.Int("file_errors", len(resp.FileErrors)))
	return resp, nil
}

// ManualUpload links each file to the experiment the client chose for it.
// Files that cannot be parsed are reported and their siblings continue; a
// store failure ends the request.
func (s *UploadService) ManualUpload(ctx context.Context, req api.ManualUploadRequest) (resp *api.ManualUploadResponse, err error) {
	if len(req.LinkedData) == 0 {
		return nil, apperrors.ErrNoFiles
	}

	ctx, span := infrastructure.StartSpan(ctx, "upload.manual",
		attribute.Int("data_files", len(req.LinkedData)))
	defer func() { infrastructure.EndSpan(span, err) }()

	scratch, err := files.NewScratch(s.scratchDir, s.logger)
	if err != nil {
		return nil, err
	}
	defer s.closeScratch(ctx, scratch)

	payloads := make([]api.FilePayload, len(req.LinkedData))
	for i, l := range req.LinkedData {
		payloads[i] = l.FilePayload
	}
	decoded, err := scratch.DecodeAll(ctx, uploads(payloads))
	if err != nil {
		return nil, err
	}
	s.archive(ctx, decoded)

	resp = &api.ManualUploadResponse{Status: api.StatusSuccess, Message: manualUploadMessage, FileErrors: []api.FileError{}}
	for i, f := range decoded {
		n, err := s.migrator.LinkExplicitFile(ctx, migration.Source{Path: f.Path, Name: f.Name}, req.LinkedData[i].LinkedID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrTypeParsing) || apperrors.IsType(err, apperrors.ErrTypeValidation) {
				resp.FileErrors = append(resp.FileErrors, api.FileError{SourceID: f.Name, Message: err.Error()})
				continue
			}
			return nil, err
		}
		resp.InsertedRecords += n
	}

	s.logger.InfoContext(ctx, "Manual upload processed",
		slog.Int("files", len(decoded)),
		slog.Int("inserted", resp.InsertedRecords),
		slog.Int("file_errors", len(resp.FileErrors)))
	return resp, nil
}

// archive copies raw uploads to the archive. Failures are logged and never
// fail the request.
func (s *UploadService) archive(ctx context.Context, decoded []files.File) {
	ctx, requestID := infrastructure.EnsureTraceID(ctx)
	for _, f := range decoded {
		if err := s.archiver.Archive(ctx, requestID, f); err != nil {
			s.logger.WarnContext(ctx, "Failed to archive upload",
				slog.String("file", f.Name),
				slog.String("error", err.Error()))
		}
	}
}

func (s *UploadService) closeScratch(ctx context.Context, scratch *files.Scratch) {
	if err := scratch.Close(); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove scratch directory",
			slog.String("dir", scratch.Dir()),
			slog.String("error", err.Error()))
	}
}

func uploads(payloads []api.FilePayload) []files.Upload {
	out := make([]files.Upload, len(payloads))
	for i, p := range payloads {
		out[i] = files.Upload{Name: p.Filename, Content: p.Content}
	}
	return out
}

func sources(decoded []files.File) []migration.Source {
	out := make([]migration.Source, len(decoded))
	for i, f := range decoded {
		out[i] = migration.Source{Path: f.Path, Name: f.Name}
	}
	return out
}

func fileErrors(errs []migration.FileError) []api.FileError {
	out := make([]api.FileError, len(errs))
	for i, e := range errs {
		out[i] = api.FileError{SourceID: e.SourceID, Message: e.Message}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
