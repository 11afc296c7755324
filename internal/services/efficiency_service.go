package services

import (
	"context"
	"log/slog"

	"alkalytics/internal/efficiency"
	"alkalytics/internal/infrastructure"
	api "alkalytics/pkg/contracts/api/v1"
	"alkalytics/pkg/contracts/domain"
)

const (
	calculatedMessage = "Efficiency factors computed successfully"
	repeatedMessage   = "Efficiency factors in this request have already been computed"
)

// Calculator is the part of efficiency.Cache the service drives.
type Calculator interface {
	Calculate(ctx context.Context, experimentID string, selected []string, intervalMinutes int) (efficiency.Result, error)
	List(ctx context.Context) ([]*domain.EfficiencyRecord, error)
}

// EfficiencyService computes and lists efficiency records
type EfficiencyService struct {
	calc            Calculator
	defaultInterval int
	logger          *slog.Logger
}

// NewEfficiencyService creates an efficiency service
func NewEfficiencyService(calc Calculator, defaultInterval int, logger *slog.Logger) *EfficiencyService {
	return &EfficiencyService{
		calc:            calc,
		defaultInterval: defaultInterval,
		logger:          infrastructure.WithComponent(logger, "efficiency_service"),
	}
}

// Calculate computes the selected metrics, reusing stored values.
func (s *EfficiencyService) Calculate(ctx context.Context, req api.CalculateEfficienciesRequest) (*api.CalculateEfficienciesResponse, error) {
	interval := s.defaultInterval
	if req.TimeInterval != nil {
		interval = *req.TimeInterval
	}

	res, err := s.calc.Calculate(ctx, req.ExperimentID, req.SelectedEfficiencies, interval)
	if err != nil {
		return nil, err
	}

	resp := &api.CalculateEfficienciesResponse{
		Status:          string(res.Status),
		Message:         calculatedMessage,
		ExperimentID:    req.ExperimentID,
		IntervalMinutes: interval,
		Metrics:         map[string]*float64{},
		Failures:        res.Failures,
	}
	if res.Status == efficiency.StatusRepeated {
		resp.Message = repeatedMessage
	}
	if res.Record != nil {
		resp.ID = res.Record.ID
		resp.Metrics = res.Record.Metrics
	}
	if len(res.Failures) > 0 {
		s.logger.WarnContext(ctx, "Some efficiencies could not be computed",
			slog.String("experiment_id", req.ExperimentID),
			slog.Int("interval_minutes", interval),
			slog.Any("failures", res.Failures))
	}
	return resp, nil
}

// List returns every stored efficiency record
func (s *EfficiencyService) List(ctx context.Context) (*api.EfficienciesResponse, error) {
	records, err := s.calc.List(ctx)
	if err != nil {
		return nil, err
	}
	return &api.EfficienciesResponse{Status: api.StatusSuccess, Data: records}, nil
}
