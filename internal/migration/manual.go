package migration

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
	"alkalytics/internal/spreadsheet"
)

// LinkExplicit stores sheet's rows under experimentID without any date
// matching. It is how a sheet reported as ambiguous re-enters the store.
func (e *Engine) LinkExplicit(ctx context.Context, sheet *spreadsheet.Sheet, experimentID string) (n int, err error) {
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		return 0, apperrors.NewValidationErr("experiment id is required")
	}

	ctx, span := infrastructure.StartSpan(ctx, "migration.link_explicit",
		attribute.String("experiment.id", experimentID),
		attribute.String("source", sheet.SourceID))
	defer func() { infrastructure.EndSpan(span, err) }()

	e.logger.InfoContext(ctx, "Linking data sheet to chosen experiment",
		slog.String("source", sheet.SourceID),
		slog.String("experiment_id", experimentID))

	n, err = e.insertData(ctx, sheet, experimentID)
	if err == nil {
		e.metrics.RecordMigration(ctx, infrastructure.MigrationCounts{DataRecords: n})
	}
	return n, err
}

// LinkExplicitFile reads src as a data sheet and links it to experimentID.
func (e *Engine) LinkExplicitFile(ctx context.Context, src Source, experimentID string) (int, error) {
	sheet, err := e.normalizer.ReadFile(ctx, src.Path, src.Name, spreadsheet.Options{Header: spreadsheet.HeaderSingle})
	if err != nil {
		return 0, err
	}
	return e.LinkExplicit(ctx, sheet, experimentID)
}
