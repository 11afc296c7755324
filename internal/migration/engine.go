package migration

import (
	"log/slog"
	"time"

	"alkalytics/internal/docstore"
	"alkalytics/internal/infrastructure"
	"alkalytics/internal/spreadsheet"
	"alkalytics/pkg/contracts/domain"
)

// Engine runs migrations against a document store
type Engine struct {
	experiments docstore.Collection
	data        docstore.Collection
	normalizer  *spreadsheet.Normalizer
	logger      *slog.Logger
	metrics     *infrastructure.BusinessMetrics
	now         func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics records run tallies on m
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the ingestion clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a migration engine over db
func NewEngine(db docstore.Database, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		experiments: db.Collection(domain.CollectionExperiments),
		data:        db.Collection(domain.CollectionData),
		normalizer:  spreadsheet.NewNormalizer(logger),
		logger:      logger.With(slog.String("component", "migration")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
