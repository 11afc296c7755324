package efficiency

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkalytics/internal/config"
	"alkalytics/internal/docstore"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/shared/testutil"
	"alkalytics/pkg/contracts/domain"
)

const testExperiment = "#1 2024-08-02"

type cacheFixture struct {
	db    *docstore.MemoryDatabase
	cache *Cache
}

func newFixture(t *testing.T, cfg config.EfficiencyConfig, attrs ...any) cacheFixture {
	t.Helper()
	ctx := context.Background()
	db := seedExperiment(t, attrs...)

	var docs []*domain.Record
	for i := 0; i < 12; i++ {
		docs = append(docs, domain.NewRecord(
			domain.FieldExperimentID, testExperiment,
			domain.FieldTime, seriesStart.Add(time.Duration(i)*time.Minute),
			ChannelHClConductivity, 0.035,
			ChannelNaOHConductivity, 0.0184,
			ChannelCurrent, 2,
			ChannelStackVoltage, 2,
			ChannelTotalVoltage, 4,
		))
	}
	_, err := db.Collection(domain.CollectionData).InsertMany(ctx, docs)
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	return cacheFixture{db: db, cache: NewCache(db, cfg, logger)}
}

func seedExperiment(t *testing.T, attrs ...any) *docstore.MemoryDatabase {
	t.Helper()
	db := docstore.NewMemory()
	if attrs == nil {
		attrs = []any{AttrFinalVolumeHCl, 1, AttrFinalVolumeNaOH, 1, AttrStacks, 1}
	}
	kv := append([]any{domain.FieldExperimentID, testExperiment, domain.FieldDate, "2024-08-02"}, attrs...)
	_, err := db.Collection(domain.CollectionExperiments).InsertOne(context.Background(), domain.NewRecord(kv...))
	require.NoError(t, err)
	return db
}

func metric(t *testing.T, rec *domain.EfficiencyRecord, name string) float64 {
	t.Helper()
	v, ok := rec.Computed(name)
	require.True(t, ok, "%s not computed", name)
	return v
}

func TestCalculateAllMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{WindowMinutes: 5})

	res, err := f.cache.Calculate(ctx, testExperiment, domain.AllMetrics, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Computed, len(domain.AllMetrics))

	reaction := 39.997 / 36.4609 * 100
	assert.InDelta(t, 0, metric(t, res.Record, domain.MetricCurrentEfficiencyHCl), 1e-9)
	assert.InDelta(t, 0, metric(t, res.Record, domain.MetricCurrentEfficiencyNaOH), 1e-9)
	assert.InDelta(t, 50, metric(t, res.Record, domain.MetricVoltageDrop), 1e-9)
	assert.InEpsilon(t, reaction, metric(t, res.Record, domain.MetricReaction), 1e-9)
	assert.InEpsilon(t, (50+reaction)/4, metric(t, res.Record, domain.MetricOverall), 1e-9)

	stored, err := f.db.Collection(domain.CollectionEfficiencies).FindOne(ctx,
		docstore.Where(docstore.Eq(domain.FieldDocID, testExperiment+" 0")))
	require.NoError(t, err)
	assert.Equal(t, testExperiment, stored.Text(domain.FieldExperimentID))

	exp, err := f.db.Collection(domain.CollectionExperiments).FindOne(ctx,
		docstore.Where(docstore.Eq(domain.FieldExperimentID, testExperiment)))
	require.NoError(t, err)
	v, ok := exp.Value(domain.MetricVoltageDrop).Float()
	require.True(t, ok)
	assert.InDelta(t, 50, v, 1e-9)
}

func TestCalculateRepeated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{})

	first, err := f.cache.Calculate(ctx, testExperiment, domain.AllMetrics, 5)
	require.NoError(t, err)
	before, err := json.Marshal(first.Record)
	require.NoError(t, err)

	again, err := f.cache.Calculate(ctx, testExperiment, []string{domain.MetricReaction, domain.MetricOverall}, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusRepeated, again.Status)
	assert.Empty(t, again.Computed)

	after, err := json.Marshal(again.Record)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	n, err := f.db.Collection(domain.CollectionEfficiencies).Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exp, err := f.db.Collection(domain.CollectionExperiments).FindOne(ctx,
		docstore.Where(docstore.Eq(domain.FieldExperimentID, testExperiment)))
	require.NoError(t, err)
	assert.False(t, exp.Has(domain.MetricReaction), "non-zero intervals are not mirrored")
}

func TestCalculateMergesIncrementally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{})

	_, err := f.cache.Calculate(ctx, testExperiment, []string{domain.MetricVoltageDrop}, 0)
	require.NoError(t, err)

	res, err := f.cache.Calculate(ctx, testExperiment, []string{domain.MetricVoltageDrop, domain.MetricReaction}, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Len(t, res.Computed, 1)
	assert.Contains(t, res.Computed, domain.MetricReaction)

	res, err = f.cache.Calculate(ctx, testExperiment, []string{domain.MetricOverall}, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Computed[domain.MetricOverall])
	assert.Contains(t, res.Failures[domain.MetricOverall], "have 2")

	assert.InDelta(t, 50, metric(t, res.Record, domain.MetricVoltageDrop), 1e-9)
	_, ok := res.Record.Computed(domain.MetricOverall)
	assert.False(t, ok)
	assert.Contains(t, res.Record.Metrics, domain.MetricOverall)
}

func TestCalculateFailures(t *testing.T) {
	ctx := context.Background()
	noStacks := []any{AttrFinalVolumeHCl, 1, AttrFinalVolumeNaOH, 1}

	t.Run("not computable is stored as null", func(t *testing.T) {
		f := newFixture(t, config.EfficiencyConfig{}, noStacks...)
		res, err := f.cache.Calculate(ctx, testExperiment, domain.AllMetrics, 0)
		require.NoError(t, err)

		assert.Nil(t, res.Computed[domain.MetricCurrentEfficiencyHCl])
		assert.Nil(t, res.Computed[domain.MetricOverall])
		assert.NotNil(t, res.Computed[domain.MetricVoltageDrop])
		assert.Len(t, res.Failures, 3)

		stored, err := f.db.Collection(domain.CollectionEfficiencies).FindOne(ctx,
			docstore.Where(docstore.Eq(domain.FieldDocID, testExperiment+" 0")))
		require.NoError(t, err)
		assert.True(t, stored.Value(domain.MetricCurrentEfficiencyNaOH).IsNull())
		assert.True(t, stored.Has(domain.MetricCurrentEfficiencyNaOH))
	})

	t.Run("failures recomputed on the next call", func(t *testing.T) {
		f := newFixture(t, config.EfficiencyConfig{}, noStacks...)
		_, err := f.cache.Calculate(ctx, testExperiment, []string{domain.MetricCurrentEfficiencyHCl}, 0)
		require.NoError(t, err)

		res, err := f.cache.Calculate(ctx, testExperiment, []string{domain.MetricCurrentEfficiencyHCl}, 0)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, res.Status)
	})

	t.Run("zero on failure", func(t *testing.T) {
		f := newFixture(t, config.EfficiencyConfig{ZeroOnFailure: true}, noStacks...)
		res, err := f.cache.Calculate(ctx, testExperiment, domain.AllMetrics, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, metric(t, res.Record, domain.MetricCurrentEfficiencyHCl))
		assert.Equal(t, 0.0, metric(t, res.Record, domain.MetricOverall))
		assert.Len(t, res.Failures, 3)
	})
}

func TestCalculateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{})

	tests := []struct {
		name       string
		experiment string
		metrics    []string
		want       apperrors.ErrorType
	}{
		{"missing id", "", domain.AllMetrics, apperrors.ErrTypeValidation},
		{"no metrics", testExperiment, nil, apperrors.ErrTypeValidation},
		{"unknown metric", testExperiment, []string{"Coulomb Efficiency"}, apperrors.ErrTypeValidation},
		{"unknown experiment", "#9 2024-08-09", domain.AllMetrics, apperrors.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cache.Calculate(ctx, tt.experiment, tt.metrics, 0)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.want), "got %v", err)
		})
	}

	t.Run("experiment without data", func(t *testing.T) {
		db := seedExperiment(t)
		c := NewCache(db, config.EfficiencyConfig{}, nil)
		_, err := c.Calculate(ctx, testExperiment, []string{domain.MetricVoltageDrop}, 0)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})
}

func TestSeriesSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{})

	tests := []struct {
		name     string
		interval int
		first    int
		count    int
	}{
		{"whole experiment drops the final sample", 0, 0, 11},
		{"leading minutes", 5, 0, 5},
		{"trailing minutes", -5, 6, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := f.cache.Series(ctx, testExperiment, tt.interval)
			require.NoError(t, err)
			require.Len(t, series, tt.count)
			assert.True(t, series[0].Time.Equal(seriesStart.Add(time.Duration(tt.first)*time.Minute)))
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.EfficiencyConfig{})

	_, err := f.cache.List(ctx)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = f.cache.Calculate(ctx, testExperiment, []string{domain.MetricVoltageDrop}, 0)
	require.NoError(t, err)
	_, err = f.cache.Calculate(ctx, testExperiment, []string{domain.MetricVoltageDrop}, 5)
	require.NoError(t, err)

	records, err := f.cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, testExperiment+" 0", records[0].ID)
	assert.Equal(t, 5, records[1].IntervalMinutes)
}
