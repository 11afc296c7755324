package http

import (
	"context"

	"alkalytics/internal/services"
	api "alkalytics/pkg/contracts/api/v1"
)

// UploadService defines the upload operations the handlers call
type UploadService interface {
	Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResponse, error)
	ManualUpload(ctx context.Context, req api.ManualUploadRequest) (*api.ManualUploadResponse, error)
}

// EfficiencyService defines the efficiency operations the handlers call
type EfficiencyService interface {
	Calculate(ctx context.Context, req api.CalculateEfficienciesRequest) (*api.CalculateEfficienciesResponse, error)
	List(ctx context.Context) (*api.EfficienciesResponse, error)
}

// HealthService defines the health checks the handlers expose
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]any
}
