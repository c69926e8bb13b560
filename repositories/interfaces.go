package repositories

import (
	"context"

	"github.com/upb/llm-router/models"
)

// MetricsStore persists performance metrics across restarts. A nil store
// is valid: the tracker then runs in-memory only.
type MetricsStore interface {
	// UpsertMetrics writes one (kind, model) entry, replacing any
	// existing row for the same pair
	UpsertMetrics(ctx context.Context, m *models.PerformanceMetrics) error

	// LoadAll returns every persisted entry
	LoadAll(ctx context.Context) ([]*models.PerformanceMetrics, error)
}
