package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/middleware"
	"alkalytics/internal/services"
	"alkalytics/internal/shared/testutil"
	api "alkalytics/pkg/contracts/api/v1"
	"alkalytics/pkg/contracts/domain"
)

type mockUploadService struct {
	mock.Mock
}

func (m *mockUploadService) Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UploadResponse), args.Error(1)
}

func (m *mockUploadService) ManualUpload(ctx context.Context, req api.ManualUploadRequest) (*api.ManualUploadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ManualUploadResponse), args.Error(1)
}

type mockEfficiencyService struct {
	mock.Mock
}

func (m *mockEfficiencyService) Calculate(ctx context.Context, req api.CalculateEfficienciesRequest) (*api.CalculateEfficienciesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.CalculateEfficienciesResponse), args.Error(1)
}

func (m *mockEfficiencyService) List(ctx context.Context) (*api.EfficienciesResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.EfficienciesResponse), args.Error(1)
}

type mockHealthService struct {
	mock.Mock
}

func (m *mockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *mockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *mockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *mockHealthService) Version() map[string]any {
	return m.Called().Get(0).(map[string]any)
}

func newErrorHandler(t *testing.T) *apperrors.ErrorHandler {
	logger, _ := testutil.NewTestLogger(t)
	return apperrors.NewErrorHandler(logger, false)
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validContent = "IyxEYXRlCjEsMjAyNC0wOC0wMgo="

func TestUploadHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *mockUploadService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "success",
			body: `{"experimentFiles":[{"filename":"exp.csv","mimetype":"text/csv","content":"` + validContent + `"}]}`,
			setup: func(m *mockUploadService) {
				m.On("Upload", mock.Anything, mock.MatchedBy(func(req api.UploadRequest) bool {
					return len(req.ExperimentFiles) == 1 && req.ExperimentFiles[0].Filename == "exp.csv"
				})).Return(&api.UploadResponse{
					Status:              api.StatusSuccess,
					Message:             "Files processed successfully.",
					ImportedExperiments: []string{"#1 2024-08-02"},
					AmbiguousData:       []api.AmbiguousData{},
				}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "no files",
			body: `{"experimentFiles":[],"dataFiles":[]}`,
			setup: func(m *mockUploadService) {
				m.On("Upload", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNoFiles)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "NO_FILES",
		},
		{
			name:       "malformed json",
			body:       `{"experimentFiles":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing filename",
			body:       `{"dataFiles":[{"content":"` + validContent + `"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "content not base64",
			body:       `{"dataFiles":[{"filename":"run.csv","content":"%%%"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "storage failure",
			body: `{"experimentFiles":[{"filename":"exp.csv","content":"` + validContent + `"}]}`,
			setup: func(m *mockUploadService) {
				m.On("Upload", mock.Anything, mock.Anything).
					Return(nil, apperrors.NewStorageError("failed to insert experiments", nil))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   string(apperrors.ErrTypeStorage),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUploadService{}
			if tt.setup != nil {
				tt.setup(svc)
			}
			logger, _ := testutil.NewTestLogger(t)
			h := NewUploadHandler(svc, middleware.NewRequestValidator(), logger, newErrorHandler(t))

			rec := do(h.Upload, http.MethodPost, "/api/upload", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			} else {
				assert.Equal(t, "success", body["status"])
			}
			if tt.setup == nil {
				svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
			} else {
				svc.AssertExpectations(t)
			}
		})
	}
}

func TestManualUploadHandler(t *testing.T) {
	svc := &mockUploadService{}
	svc.On("ManualUpload", mock.Anything, mock.MatchedBy(func(req api.ManualUploadRequest) bool {
		return len(req.LinkedData) == 1 && req.LinkedData[0].LinkedID == "#2 2024-08-02" &&
			req.LinkedData[0].Filename == "run.csv"
	})).Return(&api.ManualUploadResponse{Status: api.StatusSuccess, InsertedRecords: 12, FileErrors: []api.FileError{}}, nil)

	logger, _ := testutil.NewTestLogger(t)
	h := NewUploadHandler(svc, middleware.NewRequestValidator(), logger, newErrorHandler(t))

	rec := do(h.ManualUpload, http.MethodPost, "/api/manual-upload",
		`{"linkedData":[{"filename":"run.csv","content":"`+validContent+`","linkedId":"#2 2024-08-02"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12.0, decode(t, rec)["insertedRecords"])

	rec = do(h.ManualUpload, http.MethodPost, "/api/manual-upload",
		`{"linkedData":[{"filename":"run.csv","content":"`+validContent+`"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNumberOfCalls(t, "ManualUpload", 1)
}

func TestEfficiencyHandlerCalculate(t *testing.T) {
	v := 50.0
	tests := []struct {
		name       string
		body       string
		result     *api.CalculateEfficienciesResponse
		err        error
		wantStatus int
	}{
		{
			name: "computed",
			body: `{"experimentId":"#1 2024-08-02","selectedEfficiencies":["Voltage Drop Efficiency"],"timeInterval":5}`,
			result: &api.CalculateEfficienciesResponse{
				Status:  api.StatusSuccess,
				Message: "Efficiency factors computed successfully",
				Metrics: map[string]*float64{domain.MetricVoltageDrop: &v},
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown experiment",
			body:       `{"experimentId":"#9","selectedEfficiencies":["Overall Efficiency"]}`,
			err:        apperrors.NewNotFoundError("experiment #9"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty selection",
			body:       `{"experimentId":"#1 2024-08-02","selectedEfficiencies":[]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockEfficiencyService{}
			if tt.result != nil || tt.err != nil {
				svc.On("Calculate", mock.Anything, mock.Anything).Return(tt.result, tt.err)
			}
			logger, _ := testutil.NewTestLogger(t)
			h := NewEfficiencyHandler(svc, middleware.NewRequestValidator(), logger, newErrorHandler(t))

			rec := do(h.Calculate, http.MethodPost, "/api/calculate-efficiencies", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.result != nil {
				metrics := decode(t, rec)["metrics"].(map[string]any)
				assert.Equal(t, 50.0, metrics[domain.MetricVoltageDrop])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestEfficiencyHandlerCalculatePassesInterval(t *testing.T) {
	svc := &mockEfficiencyService{}
	svc.On("Calculate", mock.Anything, mock.MatchedBy(func(req api.CalculateEfficienciesRequest) bool {
		return req.TimeInterval != nil && *req.TimeInterval == -5
	})).Return(&api.CalculateEfficienciesResponse{Status: api.StatusRepeated}, nil)
	logger, _ := testutil.NewTestLogger(t)
	h := NewEfficiencyHandler(svc, middleware.NewRequestValidator(), logger, newErrorHandler(t))

	rec := do(h.Calculate, http.MethodPost, "/api/calculate-efficiencies",
		`{"experimentId":"#1 2024-08-02","selectedEfficiencies":["Reaction Efficiency"],"timeInterval":-5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "repeated", decode(t, rec)["status"])
}

func TestEfficiencyHandlerList(t *testing.T) {
	rec := domain.EfficiencyFromRecord(domain.NewRecord(
		domain.FieldDocID, "#1 2024-08-02 5",
		domain.FieldExperimentID, "#1 2024-08-02",
		domain.FieldTimeInterval, 5,
		domain.MetricReaction, nil,
	))

	svc := &mockEfficiencyService{}
	svc.On("List", mock.Anything).Return(&api.EfficienciesResponse{
		Status: api.StatusSuccess,
		Data:   []*domain.EfficiencyRecord{rec},
	}, nil).Once()
	svc.On("List", mock.Anything).Return(nil, apperrors.NewNotFoundError("efficiency calculations")).Once()

	logger, _ := testutil.NewTestLogger(t)
	h := NewEfficiencyHandler(svc, middleware.NewRequestValidator(), logger, newErrorHandler(t))

	got := do(h.List, http.MethodGet, "/api/efficiencies", "")
	require.Equal(t, http.StatusOK, got.Code)
	body := decode(t, got)
	assert.Equal(t, "success", body["status"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, "#1 2024-08-02 5", first["_id"])
	assert.Contains(t, first, domain.MetricReaction)
	assert.Nil(t, first[domain.MetricReaction])

	got = do(h.List, http.MethodGet, "/api/efficiencies", "")
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestHealthHandler(t *testing.T) {
	svc := &mockHealthService{}
	svc.On("HealthCheck", mock.Anything).Return(services.HealthStatus{Status: "ok", Version: "0.4.0"})
	svc.On("LivenessCheck", mock.Anything).Return(services.HealthStatus{Status: "alive"})
	svc.On("Version").Return(map[string]any{"version": "0.4.0"})
	svc.On("ReadinessCheck", mock.Anything).Return(services.HealthStatus{
		Status:   "not_ready",
		Services: map[string]services.ServiceHealth{"store": {Status: "not_ready", Message: "store unreachable"}},
	})

	logger, _ := testutil.NewTestLogger(t)
	h := NewHealthHandler(svc, logger)

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{"health", h.HealthCheck, http.StatusOK, "status", "ok"},
		{"live", h.LivenessCheck, http.StatusOK, "status", "alive"},
		{"version", h.Version, http.StatusOK, "version", "0.4.0"},
		{"ready reports store outage", h.ReadinessCheck, http.StatusServiceUnavailable, "status", "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.handler, http.MethodGet, "/api/health", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantValue, decode(t, rec)[tt.wantField])
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	disabled := NewMetricsHandler(nil, newErrorHandler(t))
	rec := httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP http_requests_total\n"))
	})
	rec = httptest.NewRecorder()
	NewMetricsHandler(exporter, newErrorHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestClientLogHandler(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewClientLogHandler(middleware.NewRequestValidator(), logger, newErrorHandler(t))

	rec := do(h.Handle, http.MethodPost, "/api/logs", `{"level":"warn","message":"upload widget failed","source":"upload.tsx"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.True(t, handler.ContainsMessage("upload widget failed"))

	rec = do(h.Handle, http.MethodPost, "/api/logs", `{"level":"fatal","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
