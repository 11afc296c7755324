package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version     string
	buildTime   string
	store       Pinger
	storeDriver string
	pingTimeout time.Duration
	startTime   time.Time
	logger      *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// BuildInfo is version metadata set at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
}

// NewHealthService creates a health service. A non-positive pingTimeout
// defaults to two seconds.
func NewHealthService(build BuildInfo, store Pinger, storeDriver string, pingTimeout time.Duration, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}
	logger.Info("HealthService initialized",
		slog.String("version", build.Version),
		slog.String("store_driver", storeDriver))

	return &HealthService{
		version:     build.Version,
		buildTime:   build.BuildTime,
		store:       store,
		storeDriver: storeDriver,
		pingTimeout: pingTimeout,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// Health states reported in HealthStatus.Status and ServiceHealth.Status.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck pings the document store.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  map[string]ServiceHealth{"store": hs.checkStore(ctx)},
	}
	for _, s := range status.Services {
		if s.Status != StatusReady {
			status.Status = StatusNotReady
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]any {
	result := map[string]any{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"store_driver": hs.storeDriver,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "store not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, hs.pingTimeout)
	defer cancel()

	if err := hs.store.Ping(ctx); err != nil {
		hs.logger.WarnContext(ctx, "Store ping failed",
			slog.String("driver", hs.storeDriver),
			slog.String("error", err.Error()))
		return ServiceHealth{Status: StatusNotReady, Message: "store unreachable: " + err.Error()}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: hs.storeDriver + " store is reachable",
		Uptime:  time.Since(hs.startTime).String(),
	}
}
