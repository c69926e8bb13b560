package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/services/batch"
	"github.com/upb/llm-router/services/complexity"
	"github.com/upb/llm-router/services/discovery"
	"github.com/upb/llm-router/services/performance"
	"github.com/upb/llm-router/services/profile"
	"github.com/upb/llm-router/services/resources"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/services/scoring"
	"github.com/upb/llm-router/services/transport"
	"go.uber.org/zap"
)

// fakeClient serves static model lists and canned generations
type fakeClient struct {
	modelsByURL map[string][]string
}

func (f *fakeClient) ListModels(ctx context.Context, baseURL string) ([]string, error) {
	names, ok := f.modelsByURL[baseURL]
	if !ok {
		return nil, transport.ErrBackendUnavailable
	}
	return names, nil
}

func (f *fakeClient) Generate(ctx context.Context, baseURL string, req *transport.GenerateRequest) (*transport.GenerateResponse, error) {
	return &transport.GenerateResponse{Text: "generated text", CompletionTokens: 10, TokensPerSecond: 40}, nil
}

// testServices bundles the wired service graph the handlers sit on
type testServices struct {
	discovery *discovery.Service
	tracker   *performance.Tracker
	router    *routing.Service
	executor  *batch.Executor
}

func newTestServices(modelsByURL map[string][]string) testServices {
	logger := zap.NewNop()

	descriptors := make([]config.BackendDescriptor, 0, len(modelsByURL))
	for url := range modelsByURL {
		descriptors = append(descriptors, config.BackendDescriptor{
			URL: url, Name: url, PriorityTier: 1, Kind: "local",
		})
	}

	client := &fakeClient{modelsByURL: modelsByURL}
	disc := discovery.New(descriptors, client, discovery.DefaultConfig(), logger)
	tracker := performance.NewTracker(nil, performance.DefaultConfig(), logger)
	engine := scoring.NewEngine(disc, profile.NewProfiler(), tracker, scoring.DefaultConfig(), logger)
	classifier := complexity.NewClassifier(logger)
	router := routing.New(classifier, engine, disc, tracker, client, routing.DefaultConfig(), logger)
	executor := batch.NewExecutor(nil, batch.DefaultConfig(), batch.DefaultBreakerConfig(), logger)

	return testServices{discovery: disc, tracker: tracker, router: router, executor: executor}
}

func defaultModels() map[string][]string {
	return map[string][]string{"http://s1": {"llama3:8b", "llama3:70b"}}
}

func TestHandleHealth(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewHealthHandler(nil, svc.discovery, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleReadiness(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewHealthHandler(nil, svc.discovery, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// No reachable backend means not ready
	down := newTestServices(map[string][]string{})
	h = NewHealthHandler(nil, down.discovery, zap.NewNop())
	rec = httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleListBackends(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewBackendHandler(svc.discovery, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleListBackends(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://s1")
}

func TestHandleModelIndex(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewBackendHandler(svc.discovery, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleModelIndex(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backends/models", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llama3:70b")
}

func TestHandleModelMetrics(t *testing.T) {
	svc := newTestServices(defaultModels())
	svc.tracker.Record(context.Background(), "local", "llama3:8b", 1.0, 50, true, "")

	h := NewMetricsHandler(svc.tracker, zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleModelMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/models", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llama3:8b")
}

func TestHandleTopPerformersQueryParams(t *testing.T) {
	svc := newTestServices(defaultModels())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.tracker.Record(ctx, "local", "llama3:8b", 1.0, 100, true, "")
		svc.tracker.Record(ctx, "local", "llama3:70b", 2.0, 40, true, "")
	}

	h := NewMetricsHandler(svc.tracker, zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleTopPerformers(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/top?limit=1&min_samples=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []performance.ModelStanding `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1, "limit query parameter is honored")
}

func TestHandleInsights(t *testing.T) {
	svc := newTestServices(defaultModels())
	svc.tracker.Record(context.Background(), "local", "llama3:8b", 1.0, 50, false, "timeout")

	h := NewMetricsHandler(svc.tracker, zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleInsights(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/insights", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeout")
}

func TestHandleRoute(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewRouteHandler(svc.router, zap.NewNop())

	body := strings.NewReader(`{"task": "write a function that adds two numbers"}`)
	rec := httptest.NewRecorder()
	h.HandleRoute(rec, httptest.NewRequest(http.MethodPost, "/api/v1/route", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llama3")
	assert.Contains(t, rec.Body.String(), "complexity_level")
}

func TestHandleRouteInvalidBody(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewRouteHandler(svc.router, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleRoute(rec, httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleRoute(rec, httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(`{"task": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRouteNoBackends(t *testing.T) {
	svc := newTestServices(map[string][]string{})
	h := NewRouteHandler(svc.router, zap.NewNop())

	body := strings.NewReader(`{"task": "summarize this document"}`)
	rec := httptest.NewRecorder()
	h.HandleRoute(rec, httptest.NewRequest(http.MethodPost, "/api/v1/route", body))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGenerate(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewRouteHandler(svc.router, zap.NewNop())

	body := strings.NewReader(`{"task": "explain why the sky is blue"}`)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/generate", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "generated text")
}

func TestHandleBatch(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewBatchHandler(svc.executor, svc.router, zap.NewNop())

	body := strings.NewReader(`{"tasks": ["say hi", "say hello"]}`)
	rec := httptest.NewRecorder()
	h.HandleBatch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/batch", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data BatchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Succeeded)
}

func TestHandleResources(t *testing.T) {
	estimator := resources.NewEstimator(nil, profile.NewProfiler(), resources.DefaultConfig(), zap.NewNop())
	h := NewResourceHandler(estimator, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleResources(rec, httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "estimated_capacity")
}

func TestHandleBatchValidation(t *testing.T) {
	svc := newTestServices(defaultModels())
	h := NewBatchHandler(svc.executor, svc.router, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleBatch(rec, httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(`{"tasks": []}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
