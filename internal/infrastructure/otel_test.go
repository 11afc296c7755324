package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"alkalytics/internal/config"
)

func TestInitializeOTel(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.TelemetryConfig
		wantTracer  bool
		wantMetrics bool
		wantErr     bool
	}{
		{
			name: "tracing disabled",
			cfg:  config.TelemetryConfig{ServiceName: "alkalytics", TraceExporter: "none"},
		},
		{
			name:        "stdout tracing with metrics",
			cfg:         config.TelemetryConfig{ServiceName: "alkalytics", TraceExporter: "stdout", EnableMetrics: true, SampleRatio: 1},
			wantTracer:  true,
			wantMetrics: true,
		},
		{
			name:    "unknown exporter",
			cfg:     config.TelemetryConfig{TraceExporter: "jaeger"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())

			assert.Equal(t, tt.wantTracer, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			if tt.wantMetrics {
				rec := httptest.NewRecorder()
				providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestBusinessMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMigration(ctx, MigrationCounts{Experiments: 2, Duplicates: 1, DataRecords: 40, Ambiguous: 1})
	m.RecordEfficiency(ctx, "success", []string{"Reaction Efficiency"}, 20*time.Millisecond)
	m.RecordEfficiency(ctx, "repeated", nil, time.Millisecond)
	m.RecordHTTPRequest(ctx, http.MethodPost, "/api/upload", http.StatusOK, time.Second)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["migration_experiments_imported_total"])
	assert.Equal(t, int64(1), sums["migration_duplicates_skipped_total"])
	assert.Equal(t, int64(40), sums["migration_data_records_imported_total"])
	assert.Equal(t, int64(1), sums["migration_ambiguous_links_total"])
	assert.Equal(t, int64(2), sums["efficiency_calculations_total"])
	assert.Equal(t, int64(1), sums["efficiency_metric_failures_total"])
	assert.Equal(t, int64(1), sums["http_requests_total"])
}

func TestNilBusinessMetrics(t *testing.T) {
	var m *BusinessMetrics
	assert.NotPanics(t, func() {
		m.RecordMigration(context.Background(), MigrationCounts{Experiments: 1})
		m.RecordEfficiency(context.Background(), "success", nil, 0)
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, 0)
	})
}

func TestSpans(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))
	EndSpan(span, assert.AnError)

	assert.Empty(t, TraceIDFromContext(context.Background()))
}
