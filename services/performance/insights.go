package performance

import (
	"sort"

	"github.com/upb/llm-router/models"
)

// ModelStanding summarizes one (kind, model) pair for read APIs
type ModelStanding struct {
	BackendKind      string  `json:"backend_kind"`
	Model            string  `json:"model"`
	PerformanceScore float64 `json:"performance_score"`
	SuccessRate      float64 `json:"success_rate"`
	AvgTokensPerSec  float64 `json:"avg_tokens_per_sec"`
	TotalRequests    int64   `json:"total_requests"`
}

// Insights is a global projection over all tracked pairs
type Insights struct {
	TrackedPairs    int            `json:"tracked_pairs"`
	TotalRequests   int64          `json:"total_requests"`
	OverallSuccess  float64        `json:"overall_success_rate"`
	ErrorBreakdown  map[string]int `json:"error_breakdown"`
	BusiestModel    string         `json:"busiest_model,omitempty"`
	StrongestModel  string         `json:"strongest_model,omitempty"`
	WeakestModel    string         `json:"weakest_model,omitempty"`
}

// standing converts a metrics entry into its projection
func standing(m *models.PerformanceMetrics) ModelStanding {
	return ModelStanding{
		BackendKind:      m.BackendKind,
		Model:            m.Model,
		PerformanceScore: m.PerformanceScore,
		SuccessRate:      m.SuccessRate(),
		AvgTokensPerSec:  m.AvgTokensPerSec(),
		TotalRequests:    m.TotalRequests,
	}
}

// TopPerformers returns the n best-scoring pairs with enough history to
// be meaningful.
func (t *Tracker) TopPerformers(n, minSamples int) []ModelStanding {
	return t.rank(n, minSamples, func(a, b ModelStanding) bool {
		return a.PerformanceScore > b.PerformanceScore
	})
}

// Underperformers returns pairs whose score sits below the threshold
func (t *Tracker) Underperformers(threshold float64, minSamples int) []ModelStanding {
	all := t.rank(0, minSamples, func(a, b ModelStanding) bool {
		return a.PerformanceScore < b.PerformanceScore
	})

	out := make([]ModelStanding, 0)
	for _, s := range all {
		if s.PerformanceScore < threshold {
			out = append(out, s)
		}
	}
	return out
}

// GlobalInsights aggregates feedback across every tracked pair
func (t *Tracker) GlobalInsights() Insights {
	t.mu.RLock()
	defer t.mu.RUnlock()

	insights := Insights{
		TrackedPairs:   len(t.metrics),
		ErrorBreakdown: make(map[string]int),
	}

	var successful int64
	var busiest, strongest, weakest *models.PerformanceMetrics

	for _, m := range t.metrics {
		insights.TotalRequests += m.TotalRequests
		successful += m.SuccessfulRequests
		for kind, count := range m.ErrorCounts {
			insights.ErrorBreakdown[kind] += count
		}

		if busiest == nil || m.TotalRequests > busiest.TotalRequests {
			busiest = m
		}
		if m.TotalRequests > 0 {
			if strongest == nil || m.PerformanceScore > strongest.PerformanceScore {
				strongest = m
			}
			if weakest == nil || m.PerformanceScore < weakest.PerformanceScore {
				weakest = m
			}
		}
	}

	if insights.TotalRequests > 0 {
		insights.OverallSuccess = float64(successful) / float64(insights.TotalRequests)
	}
	if busiest != nil {
		insights.BusiestModel = busiest.Model
	}
	if strongest != nil {
		insights.StrongestModel = strongest.Model
	}
	if weakest != nil {
		insights.WeakestModel = weakest.Model
	}

	return insights
}

// rank sorts qualifying standings with the given less function and trims
// to n when n > 0.
func (t *Tracker) rank(n, minSamples int, less func(a, b ModelStanding) bool) []ModelStanding {
	t.mu.RLock()
	standings := make([]ModelStanding, 0, len(t.metrics))
	for _, m := range t.metrics {
		if m.TotalRequests >= int64(minSamples) {
			standings = append(standings, standing(m))
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(standings, func(i, j int) bool { return less(standings[i], standings[j]) })

	if n > 0 && len(standings) > n {
		standings = standings[:n]
	}
	return standings
}
