package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"alkalytics/internal/config"
	"alkalytics/internal/docstore"
	"alkalytics/internal/efficiency"
	apperrors "alkalytics/internal/errors"
	api "alkalytics/pkg/contracts/api/v1"
	"alkalytics/pkg/contracts/domain"
)

type mockCalculator struct {
	mock.Mock
}

func (m *mockCalculator) Calculate(ctx context.Context, experimentID string, selected []string, interval int) (efficiency.Result, error) {
	args := m.Called(ctx, experimentID, selected, interval)
	return args.Get(0).(efficiency.Result), args.Error(1)
}

func (m *mockCalculator) List(ctx context.Context) ([]*domain.EfficiencyRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EfficiencyRecord), args.Error(1)
}

func ptr(f float64) *float64 { return &f }

func TestEfficiencyServiceCalculate(t *testing.T) {
	record := &domain.EfficiencyRecord{
		ID:              "#1 2024-08-02 5",
		ExperimentID:    "#1 2024-08-02",
		IntervalMinutes: 5,
		Metrics: map[string]*float64{
			domain.MetricVoltageDrop: ptr(50),
			domain.MetricReaction:    nil,
		},
	}
	zero := 0

	tests := []struct {
		name            string
		defaultInterval int
		interval        *int
		wantInterval    int
		result          efficiency.Result
		wantMessage     string
	}{
		{
			name:            "omitted interval uses the whole experiment",
			defaultInterval: config.Default().Efficiency.DefaultIntervalMinutes,
			wantInterval:    0,
			result: efficiency.Result{
				Status:   efficiency.StatusSuccess,
				Record:   record,
				Failures: map[string]string{domain.MetricReaction: "missing NaOH conductivity"},
			},
			wantMessage: "Efficiency factors computed successfully",
		},
		{
			name:            "omitted interval uses configured default",
			defaultInterval: -15,
			wantInterval:    -15,
			result: efficiency.Result{
				Status:   efficiency.StatusSuccess,
				Record:   record,
				Failures: map[string]string{domain.MetricReaction: "missing NaOH conductivity"},
			},
			wantMessage: "Efficiency factors computed successfully",
		},
		{
			name:            "explicit interval overrides default",
			defaultInterval: 5,
			interval:        &zero,
			wantInterval:    0,
			result:          efficiency.Result{Status: efficiency.StatusRepeated, Record: record},
			wantMessage:     "Efficiency factors in this request have already been computed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := &mockCalculator{}
			selected := []string{domain.MetricVoltageDrop, domain.MetricReaction}
			calc.On("Calculate", mock.Anything, "#1 2024-08-02", selected, tt.wantInterval).Return(tt.result, nil)
			svc := NewEfficiencyService(calc, tt.defaultInterval, slog.Default())

			resp, err := svc.Calculate(context.Background(), api.CalculateEfficienciesRequest{
				ExperimentID:         "#1 2024-08-02",
				SelectedEfficiencies: selected,
				TimeInterval:         tt.interval,
			})
			require.NoError(t, err)
			calc.AssertExpectations(t)

			assert.Equal(t, string(tt.result.Status), resp.Status)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, tt.wantInterval, resp.IntervalMinutes)
			assert.Equal(t, "#1 2024-08-02", resp.ExperimentID)
			assert.Equal(t, record.ID, resp.ID)
			assert.Equal(t, record.Metrics, resp.Metrics)
			assert.Equal(t, tt.result.Failures, resp.Failures)
		})
	}
}

func TestEfficiencyServiceCalculateError(t *testing.T) {
	calc := &mockCalculator{}
	calc.On("Calculate", mock.Anything, "#9", mock.Anything, 5).
		Return(efficiency.Result{}, apperrors.NewNotFoundError("experiment #9"))
	svc := NewEfficiencyService(calc, 5, slog.Default())

	_, err := svc.Calculate(context.Background(), api.CalculateEfficienciesRequest{
		ExperimentID:         "#9",
		SelectedEfficiencies: []string{domain.MetricOverall},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestEfficiencyServiceList(t *testing.T) {
	db := docstore.NewMemory()
	cache := efficiency.NewCache(db, config.EfficiencyConfig{WindowMinutes: 5}, slog.Default())
	svc := NewEfficiencyService(cache, 5, slog.Default())
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = db.Collection(domain.CollectionEfficiencies).InsertOne(ctx, domain.NewRecord(
		domain.FieldDocID, "#1 2024-08-02 5",
		domain.FieldExperimentID, "#1 2024-08-02",
		domain.FieldTimeInterval, 5,
		domain.MetricVoltageDrop, 50.0,
	))
	require.NoError(t, err)

	resp, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 5, resp.Data[0].IntervalMinutes)
	v, ok := resp.Data[0].Computed(domain.MetricVoltageDrop)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}
