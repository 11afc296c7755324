package efficiency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"alkalytics/internal/config"
	"alkalytics/internal/docstore"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
	"alkalytics/pkg/contracts/domain"
)

// Static experiment attributes read by the formulas.
const (
	AttrFinalVolumeHCl  = "Final volume (L) HCL"
	AttrFinalVolumeNaOH = "Final volume (L) NaOH"
	AttrStacks          = "# of Stacks"
)

// Status of a calculation
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRepeated Status = "repeated"
)

// Result is the outcome of Calculate. Record is the stored record after the
// call. Computed holds the metrics written by this call, nil where the metric
// could not be computed; Failures explains each of those.
type Result struct {
	Status   Status
	Record   *domain.EfficiencyRecord
	Computed map[string]*float64
	Failures map[string]string
}

// Cache computes efficiency metrics and memoizes them per experiment and
// time interval.
type Cache struct {
	efficiencies  docstore.Collection
	experiments   docstore.Collection
	data          docstore.Collection
	formulas      Formulas
	zeroOnFailure bool
	logger        *slog.Logger
	metrics       *infrastructure.BusinessMetrics
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithMetrics records calculation counters on m
func WithMetrics(m *infrastructure.BusinessMetrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates a cache over db
func NewCache(db docstore.Database, cfg config.EfficiencyConfig, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		efficiencies:  db.Collection(domain.CollectionEfficiencies),
		experiments:   db.Collection(domain.CollectionExperiments),
		data:          db.Collection(domain.CollectionData),
		formulas:      Formulas{WindowMinutes: cfg.WindowMinutes},
		zeroOnFailure: cfg.ZeroOnFailure,
		logger:        logger.With(slog.String("component", "efficiency")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate computes the selected metrics of an experiment over a time
// interval and merges them into the stored record for that key.
//
// intervalMinutes > 0 uses the first n minutes of data, < 0 the last n
// minutes and 0 the whole experiment. Metrics already stored with a value
// are not recomputed; when every selected metric is stored the call returns
// StatusRepeated without writing.
func (c *Cache) Calculate(ctx context.Context, experimentID string, selected []string, intervalMinutes int) (res Result, err error) {
	started := time.Now()
	ctx, span := infrastructure.StartSpan(ctx, "efficiency.calculate",
		attribute.String("experiment.id", experimentID),
		attribute.Int("interval_minutes", intervalMinutes))
	defer func() {
		if err == nil {
			c.metrics.RecordEfficiency(ctx, string(res.Status), failedNames(res.Failures), time.Since(started))
		}
		infrastructure.EndSpan(span, err)
	}()

	selected, err = validateSelection(experimentID, selected)
	if err != nil {
		return Result{}, err
	}

	key := domain.EfficiencyKey(experimentID, intervalMinutes)
	existing, err := c.load(ctx, key)
	if err != nil {
		return Result{}, err
	}

	var missing []string
	for _, m := range selected {
		if _, done := existing.Computed(m); !done {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		c.logger.InfoContext(ctx, "Efficiencies already computed",
			slog.String("key", key),
			slog.Any("metrics", selected))
		return Result{Status: StatusRepeated, Record: existing}, nil
	}

	expDoc, err := c.experiments.FindOne(ctx, docstore.Where(docstore.Eq(domain.FieldExperimentID, experimentID)))
	if errors.Is(err, docstore.ErrNotFound) {
		return Result{}, apperrors.NewNotFoundError("experiment " + experimentID)
	}
	if err != nil {
		return Result{}, apperrors.NewStorageError("failed to load experiment", err)
	}
	exp := domain.Experiment{Record: expDoc}

	run := &calculation{cache: c, experimentID: experimentID, interval: intervalMinutes, exp: exp}
	res = Result{
		Status:   StatusSuccess,
		Computed: make(map[string]*float64, len(missing)),
		Failures: make(map[string]string),
	}

	for _, m := range missing {
		if m == domain.MetricOverall {
			continue
		}
		v, err := run.compute(ctx, m)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrTypeStorage) || apperrors.IsType(err, apperrors.ErrTypeNotFound) {
				return Result{}, err
			}
			res.Failures[m] = err.Error()
			res.Computed[m] = nil
			c.logger.WarnContext(ctx, "Efficiency metric not computable",
				slog.String("experiment_id", experimentID),
				slog.String("metric", m),
				slog.String("error", err.Error()))
			continue
		}
		res.Computed[m] = &v
	}

	if contains(missing, domain.MetricOverall) {
		var parts []float64
		for _, m := range domain.ComponentMetrics {
			if v, ok := res.Computed[m]; ok {
				if v != nil {
					parts = append(parts, *v)
				}
			} else if v, ok := existing.Computed(m); ok {
				parts = append(parts, v)
			}
		}
		if v, ok := OverallEfficiency(parts); ok {
			res.Computed[domain.MetricOverall] = &v
		} else {
			res.Computed[domain.MetricOverall] = nil
			res.Failures[domain.MetricOverall] = fmt.Sprintf("requires all %d component efficiencies, have %d", len(domain.ComponentMetrics), len(parts))
		}
	}

	if c.zeroOnFailure {
		for m := range res.Failures {
			zero := 0.0
			res.Computed[m] = &zero
		}
	}

	if err := c.store(ctx, key, experimentID, intervalMinutes, res.Computed); err != nil {
		return Result{}, err
	}

	merged := existing
	if merged.ID == "" {
		merged = &domain.EfficiencyRecord{
			ID:              key,
			ExperimentID:    experimentID,
			IntervalMinutes: intervalMinutes,
			Metrics:         make(map[string]*float64),
		}
	}
	for m, v := range res.Computed {
		merged.Metrics[m] = v
	}
	res.Record = merged

	c.logger.InfoContext(ctx, "Efficiencies computed",
		slog.String("key", key),
		slog.Int("computed", len(res.Computed)-len(res.Failures)),
		slog.Int("failed", len(res.Failures)))
	return res, nil
}

// List returns every stored efficiency record.
func (c *Cache) List(ctx context.Context) ([]*domain.EfficiencyRecord, error) {
	docs, err := c.efficiencies.Find(ctx, nil, docstore.WithSort(docstore.Asc(domain.FieldDocID)))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list efficiencies", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.NewNotFoundError("efficiency calculations")
	}
	out := make([]*domain.EfficiencyRecord, len(docs))
	for i, d := range docs {
		out[i] = domain.EfficiencyFromRecord(d)
	}
	return out, nil
}

// Series returns the experiment's samples for an interval selector, ordered
// by time, without the final recorded sample.
func (c *Cache) Series(ctx context.Context, experimentID string, intervalMinutes int) ([]Sample, error) {
	base := docstore.Where(docstore.Eq(domain.FieldExperimentID, experimentID))
	filter := base

	if intervalMinutes != 0 {
		order := docstore.Asc(domain.FieldTime)
		if intervalMinutes < 0 {
			order = docstore.Desc(domain.FieldTime)
		}
		edge, err := c.data.FindOne(ctx, append(base, docstore.Exists(domain.FieldTime, true)),
			docstore.WithSort(order), docstore.WithProjection(domain.FieldTime))
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("data for experiment " + experimentID)
		}
		if err != nil {
			return nil, apperrors.NewStorageError("failed to load data bounds", err)
		}
		at, ok := edge.Value(domain.FieldTime).TimeValue()
		if !ok {
			return nil, apperrors.NewComputationError("data timestamps are not dates", nil)
		}
		span := time.Duration(intervalMinutes) * time.Minute
		if intervalMinutes > 0 {
			filter = append(filter, docstore.Lte(domain.FieldTime, at.Add(span)))
		} else {
			filter = append(filter, docstore.Gte(domain.FieldTime, at.Add(span)))
		}
	}

	fields := append([]string{domain.FieldTime}, Channels...)
	docs, err := c.data.Find(ctx, filter,
		docstore.WithSort(docstore.Asc(domain.FieldTime)),
		docstore.WithProjection(fields...))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load data", err)
	}
	if intervalMinutes == 0 && len(docs) == 0 {
		return nil, apperrors.NewNotFoundError("data for experiment " + experimentID)
	}
	if len(docs) > 0 {
		docs = docs[:len(docs)-1]
	}
	return SamplesFromRecords(docs), nil
}

func (c *Cache) load(ctx context.Context, key string) (*domain.EfficiencyRecord, error) {
	doc, err := c.efficiencies.FindOne(ctx, docstore.Where(docstore.Eq(domain.FieldDocID, key)))
	if errors.Is(err, docstore.ErrNotFound) {
		return &domain.EfficiencyRecord{Metrics: map[string]*float64{}}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to load efficiency record", err)
	}
	return domain.EfficiencyFromRecord(doc), nil
}

// store upserts the computed metrics; interval 0 also mirrors them onto the
// experiment.
func (c *Cache) store(ctx context.Context, key, experimentID string, interval int, computed map[string]*float64) error {
	metrics := &domain.Record{}
	for _, m := range domain.AllMetrics {
		if v, ok := computed[m]; ok {
			metrics.Set(m, domain.ValueOf(v))
		}
	}

	set := domain.NewRecord(
		domain.FieldExperimentID, experimentID,
		domain.FieldTimeInterval, interval,
	)
	metrics.Range(func(name string, v domain.Value) bool {
		set.Set(name, v)
		return true
	})

	if _, err := c.efficiencies.UpdateOne(ctx,
		docstore.Where(docstore.Eq(domain.FieldDocID, key)),
		docstore.Update{Set: set},
		docstore.WithUpsert(),
	); err != nil {
		return apperrors.NewStorageError("failed to store efficiencies", err)
	}

	if interval != 0 {
		return nil
	}
	if _, err := c.experiments.UpdateOne(ctx,
		docstore.Where(docstore.Eq(domain.FieldExperimentID, experimentID)),
		docstore.Update{Set: metrics},
	); err != nil {
		return apperrors.NewStorageError("failed to update experiment efficiencies", err)
	}
	return nil
}

// calculation fetches each input series at most once per Calculate call.
type calculation struct {
	cache        *Cache
	experimentID string
	interval     int
	exp          domain.Experiment

	series   []Sample
	seriesOK bool
	tail     []Sample
	tailOK   bool
}

func (r *calculation) compute(ctx context.Context, metric string) (float64, error) {
	f := r.cache.formulas
	switch metric {
	case domain.MetricCurrentEfficiencyHCl, domain.MetricCurrentEfficiencyNaOH:
		compound, volumeAttr := HCl, AttrFinalVolumeHCl
		if metric == domain.MetricCurrentEfficiencyNaOH {
			compound, volumeAttr = NaOH, AttrFinalVolumeNaOH
		}
		volume, vok := r.exp.Number(volumeAttr)
		stacks, sok := r.exp.Number(AttrStacks)
		if !vok || !sok {
			return 0, fmt.Errorf("experiment is missing %q or %q", volumeAttr, AttrStacks)
		}
		series, err := r.loadSeries(ctx)
		if err != nil {
			return 0, err
		}
		return f.CurrentEfficiency(series, compound, volume, stacks)

	case domain.MetricVoltageDrop:
		series, err := r.loadSeries(ctx)
		if err != nil {
			return 0, err
		}
		return f.VoltageDropEfficiency(series)

	case domain.MetricReaction:
		volHCl, hok := r.exp.Number(AttrFinalVolumeHCl)
		volNaOH, nok := r.exp.Number(AttrFinalVolumeNaOH)
		if !hok || !nok {
			return 0, fmt.Errorf("experiment is missing %q or %q", AttrFinalVolumeHCl, AttrFinalVolumeNaOH)
		}
		if !r.tailOK {
			tail, err := r.cache.Series(ctx, r.experimentID, -ReactionSliceMinutes)
			if err != nil {
				return 0, err
			}
			r.tail, r.tailOK = tail, true
		}
		return ReactionEfficiency(r.tail, volHCl, volNaOH)
	}
	return 0, fmt.Errorf("unknown metric %q", metric)
}

func (r *calculation) loadSeries(ctx context.Context) ([]Sample, error) {
	if !r.seriesOK {
		series, err := r.cache.Series(ctx, r.experimentID, r.interval)
		if err != nil {
			return nil, err
		}
		r.series, r.seriesOK = series, true
	}
	return r.series, nil
}

func validateSelection(experimentID string, selected []string) ([]string, error) {
	if experimentID == "" {
		return nil, apperrors.NewValidationErr("experiment id is required")
	}
	if len(selected) == 0 {
		return nil, apperrors.NewValidationErr("at least one efficiency must be selected")
	}
	out := make([]string, 0, len(selected))
	for _, m := range selected {
		if !domain.IsMetric(m) {
			return nil, apperrors.NewValidationErr(fmt.Sprintf("unknown efficiency %q", m))
		}
		if !contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func failedNames(failures map[string]string) []string {
	var out []string
	for _, m := range domain.AllMetrics {
		if _, ok := failures[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
