package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"

	"alkalytics/internal/archive"
	"alkalytics/internal/config"
	"alkalytics/internal/docstore"
	"alkalytics/internal/efficiency"
	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
	customMiddleware "alkalytics/internal/middleware"
	"alkalytics/internal/migration"
	"alkalytics/internal/services"
	handlers "alkalytics/internal/transport/http"
	"alkalytics/pkg/contracts"
)

const AppName = "Alkalytics"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         docstore.Database
	Engine        *migration.Engine
	Cache         *efficiency.Cache
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apperrors.ErrorHandler
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Upload     *services.UploadService
	Efficiency *services.EfficiencyService
	Health     *services.HealthService
}

// NewApplication loads configuration and the process logger, then builds
// the application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(ctx, cfg, logger)
}

// New wires every component from cfg. The caller owns the returned
// application and must call Stop to release the store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("store_driver", cfg.Store.Driver))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	meter := otelProviders.Meter
	if meter == nil {
		meter = otel.Meter(infrastructure.MeterName)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	store, err := docstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open document store", err).
			WithContext("driver", cfg.Store.Driver)
	}

	a := &Application{
		Config:        cfg,
		Store:         store,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := a.initializeServices(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices creates the engines and the services on top of them
func (a *Application) initializeServices(ctx context.Context) error {
	archiver, err := archive.New(ctx, a.Config.Archive, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create upload archive: %w", err)
	}

	a.Engine = migration.NewEngine(a.Store, a.Logger, migration.WithMetrics(a.Metrics))
	a.Cache = efficiency.NewCache(a.Store, a.Config.Efficiency, a.Logger, efficiency.WithMetrics(a.Metrics))

	a.Services = &ServiceContainer{
		Upload:     services.NewUploadService(a.Engine, archiver, a.Config.GetScratchDir(), a.Logger),
		Efficiency: services.NewEfficiencyService(a.Cache, a.Config.Efficiency.DefaultIntervalMinutes, a.Logger),
		Health: services.NewHealthService(
			services.BuildInfo{Version: contracts.Version, BuildTime: contracts.BuildTime},
			a.Store, a.Config.Store.Driver, a.Config.Store.PingTimeout, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// RequestID → RealIP → Telemetry → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Telemetry(a.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	var exporter http.Handler
	if a.OTelProviders != nil {
		exporter = a.OTelProviders.PrometheusHTTP
	}
	r.Handle("/metrics", handlers.NewMetricsHandler(exporter, a.ErrorHandler))

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewRequestValidator()
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	uploadHandler := handlers.NewUploadHandler(a.Services.Upload, validator, a.Logger, a.ErrorHandler)
	efficiencyHandler := handlers.NewEfficiencyHandler(a.Services.Efficiency, validator, a.Logger, a.ErrorHandler)
	clientLogHandler := handlers.NewClientLogHandler(validator, a.Logger, a.ErrorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.Config.Server.ReadTimeout))
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)
			r.Get("/efficiencies", efficiencyHandler.List)
			r.With(customMiddleware.BodyLimit(64<<10)).Post("/logs", clientLogHandler.Handle)
		})

		// Uploads carry whole workbooks and may run for a while
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.BodyLimit(a.Config.Server.MaxUploadBytes))
			r.Post("/upload", uploadHandler.Upload)
			r.Post("/manual-upload", uploadHandler.ManualUpload)
			r.Post("/calculate-efficiencies", efficiencyHandler.Calculate)
		})
	})
}

// getCORSConfig builds the CORS policy from the security section
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{customMiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure is logged and
// cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	timeout := a.Config.Store.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, stop := context.WithTimeout(ctx, timeout)
	defer stop()
	if err := a.Store.Ping(pingCtx); err != nil {
		return apperrors.NewStorageError("document store is unreachable", err)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return nil
}

// Stop shuts the server down, then flushes telemetry and closes the store.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing document store", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(ctx)
}
