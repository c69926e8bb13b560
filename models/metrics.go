package models

import "time"

// MetricsWindowSize bounds the rolling sample windows kept per model.
const MetricsWindowSize = 100

// PerformanceMetrics holds rolling statistics for a (backend kind, model)
// pair. Owned by the performance tracker; persisted across restarts.
type PerformanceMetrics struct {
	// BackendKind groups backends ("local", "remote")
	BackendKind string `json:"backend_kind"`

	// Model is the model name the stats apply to
	Model string `json:"model"`

	// TotalRequests counts every completed or failed call
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests counts calls that completed without error
	SuccessfulRequests int64 `json:"successful_requests"`

	// FailedRequests counts calls that errored or timed out
	FailedRequests int64 `json:"failed_requests"`

	// RecentDurations is a bounded window of call durations in seconds
	RecentDurations []float64 `json:"recent_durations"`

	// RecentTokensPerSec is a bounded window of observed throughput
	RecentTokensPerSec []float64 `json:"recent_tokens_per_sec"`

	// ErrorCounts tallies failures by error kind
	ErrorCounts map[string]int `json:"error_counts"`

	// PerformanceScore is the composite 0..100 score recomputed after
	// every update
	PerformanceScore float64 `json:"performance_score"`

	// LastUsedAt is when the pair last served a request
	LastUsedAt time.Time `json:"last_used_at"`
}

// MetricsKey builds the map key used for a (kind, model) pair.
func MetricsKey(kind, model string) string {
	return kind + ":" + model
}

// Key returns the tracker map key for this entry.
func (m *PerformanceMetrics) Key() string {
	return MetricsKey(m.BackendKind, m.Model)
}

// SuccessRate returns the fraction of successful requests, 0 when no
// requests were recorded yet.
func (m *PerformanceMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}

// AvgTokensPerSec averages the rolling throughput window.
func (m *PerformanceMetrics) AvgTokensPerSec() float64 {
	if len(m.RecentTokensPerSec) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.RecentTokensPerSec {
		sum += v
	}
	return sum / float64(len(m.RecentTokensPerSec))
}

// Clone returns a deep copy safe for copy-on-read handout.
func (m *PerformanceMetrics) Clone() PerformanceMetrics {
	c := *m
	c.RecentDurations = append([]float64(nil), m.RecentDurations...)
	c.RecentTokensPerSec = append([]float64(nil), m.RecentTokensPerSec...)
	c.ErrorCounts = make(map[string]int, len(m.ErrorCounts))
	for k, v := range m.ErrorCounts {
		c.ErrorCounts[k] = v
	}
	return c
}
