package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"alkalytics/internal/config"
	"alkalytics/pkg/contracts"
)

// MeterName is the instrumentation scope for all application metrics and spans.
const MeterName = "alkalytics"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics from the telemetry config and
// installs them as the global providers.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(contracts.Version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	switch cfg.TraceExporter {
	case "none", "":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		)
		providers.TracerProvider = tp
		otel.SetTracerProvider(tp)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if cfg.EnableMetrics {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(contracts.Version))
		providers.PrometheusHTTP = promhttp.Handler()
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// BusinessMetrics holds the application counters. A nil *BusinessMetrics
// records nothing.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ExperimentsImported metric.Int64Counter
	DuplicatesSkipped   metric.Int64Counter
	DataRecordsImported metric.Int64Counter
	AmbiguousLinks      metric.Int64Counter
	UnresolvedSheets    metric.Int64Counter
	FileErrors          metric.Int64Counter

	EfficiencyCalculations metric.Int64Counter
	EfficiencyFailures     metric.Int64Counter
	EfficiencyDuration     metric.Float64Histogram
}

// CreateBusinessMetrics registers the application instruments on meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests"},
		{&m.ExperimentsImported, "migration_experiments_imported_total", "Experiments inserted by migration runs"},
		{&m.DuplicatesSkipped, "migration_duplicates_skipped_total", "Experiment rows skipped because the identity already exists"},
		{&m.DataRecordsImported, "migration_data_records_imported_total", "Data records inserted"},
		{&m.AmbiguousLinks, "migration_ambiguous_links_total", "Data sheets matching more than one experiment"},
		{&m.UnresolvedSheets, "migration_unresolved_sheets_total", "Data sheets matching no experiment"},
		{&m.FileErrors, "migration_file_errors_total", "Uploaded files that could not be normalized"},
		{&m.EfficiencyCalculations, "efficiency_calculations_total", "Efficiency calculations by status"},
		{&m.EfficiencyFailures, "efficiency_metric_failures_total", "Metrics that could not be computed"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.EfficiencyDuration, err = meter.Float64Histogram(
		"efficiency_calculation_duration_seconds",
		metric.WithDescription("Efficiency calculation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// MigrationCounts is the tally of one migration run.
type MigrationCounts struct {
	Experiments int
	Duplicates  int
	DataRecords int
	Ambiguous   int
	Unresolved  int
	FileErrors  int
}

// RecordMigration adds a run's tally to the migration counters.
func (m *BusinessMetrics) RecordMigration(ctx context.Context, c MigrationCounts) {
	if m == nil {
		return
	}
	m.ExperimentsImported.Add(ctx, int64(c.Experiments))
	m.DuplicatesSkipped.Add(ctx, int64(c.Duplicates))
	m.DataRecordsImported.Add(ctx, int64(c.DataRecords))
	m.AmbiguousLinks.Add(ctx, int64(c.Ambiguous))
	m.UnresolvedSheets.Add(ctx, int64(c.Unresolved))
	m.FileErrors.Add(ctx, int64(c.FileErrors))
}

// RecordEfficiency records one calculation and the metrics it failed on.
func (m *BusinessMetrics) RecordEfficiency(ctx context.Context, status string, failed []string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EfficiencyCalculations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.EfficiencyDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	for _, name := range failed {
		m.EfficiencyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("metric", name)))
	}
}

// RecordHTTPRequest records a finished request
func (m *BusinessMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// Tracer returns the application tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(MeterName)
}

// StartSpan starts a span on the application tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceIDFromContext returns the OpenTelemetry trace ID of the current span
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
