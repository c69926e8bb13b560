package handlers

import (
	"net/http"
	"strconv"

	"github.com/upb/llm-router/services/performance"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// Query parameter defaults for the metrics read API
const (
	defaultTopLimit              = 5
	defaultMinSamples            = 3
	defaultUnderperformThreshold = 40.0
)

// MetricsHandler exposes performance tracker projections read-only
type MetricsHandler struct {
	tracker *performance.Tracker
	logger  *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(tracker *performance.Tracker, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// HandleModelMetrics handles GET /api/v1/metrics/models
func (h *MetricsHandler) HandleModelMetrics(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.tracker.AllMetrics())
}

// HandleTopPerformers handles GET /api/v1/metrics/top?limit=&min_samples=
func (h *MetricsHandler) HandleTopPerformers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTopLimit)
	minSamples := queryInt(r, "min_samples", defaultMinSamples)

	_ = utils.WriteOK(w, h.tracker.TopPerformers(limit, minSamples))
}

// HandleUnderperformers handles GET /api/v1/metrics/underperformers?threshold=&min_samples=
func (h *MetricsHandler) HandleUnderperformers(w http.ResponseWriter, r *http.Request) {
	threshold := queryFloat(r, "threshold", defaultUnderperformThreshold)
	minSamples := queryInt(r, "min_samples", defaultMinSamples)

	_ = utils.WriteOK(w, h.tracker.Underperformers(threshold, minSamples))
}

// HandleInsights handles GET /api/v1/metrics/insights
func (h *MetricsHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.tracker.GlobalInsights())
}

// queryInt parses an integer query parameter with a fallback
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// queryFloat parses a float query parameter with a fallback
func queryFloat(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
