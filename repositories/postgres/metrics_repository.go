package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

// MetricsRepository implements repositories.MetricsStore on PostgreSQL
type MetricsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *sql.DB, logger *zap.Logger) repositories.MetricsStore {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertMetrics writes one (kind, model) entry
func (r *MetricsRepository) UpsertMetrics(ctx context.Context, m *models.PerformanceMetrics) error {
	durations, err := json.Marshal(m.RecentDurations)
	if err != nil {
		return fmt.Errorf("failed to marshal durations: %w", err)
	}
	throughput, err := json.Marshal(m.RecentTokensPerSec)
	if err != nil {
		return fmt.Errorf("failed to marshal throughput: %w", err)
	}
	errorCounts, err := json.Marshal(m.ErrorCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal error counts: %w", err)
	}

	query := `
		INSERT INTO model_metrics (
			backend_kind, model, total_requests, successful_requests, failed_requests,
			recent_durations, recent_tokens_per_sec, error_counts, performance_score, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (backend_kind, model) DO UPDATE SET
			total_requests = EXCLUDED.total_requests,
			successful_requests = EXCLUDED.successful_requests,
			failed_requests = EXCLUDED.failed_requests,
			recent_durations = EXCLUDED.recent_durations,
			recent_tokens_per_sec = EXCLUDED.recent_tokens_per_sec,
			error_counts = EXCLUDED.error_counts,
			performance_score = EXCLUDED.performance_score,
			last_used_at = EXCLUDED.last_used_at
	`

	_, err = r.db.ExecContext(ctx, query,
		m.BackendKind,
		m.Model,
		m.TotalRequests,
		m.SuccessfulRequests,
		m.FailedRequests,
		durations,
		throughput,
		errorCounts,
		m.PerformanceScore,
		m.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s: %w", m.Key(), err)
	}

	r.logger.Debug("metrics persisted",
		zap.String("backend_kind", m.BackendKind),
		zap.String("model", m.Model))
	return nil
}

// LoadAll returns every persisted entry
func (r *MetricsRepository) LoadAll(ctx context.Context) ([]*models.PerformanceMetrics, error) {
	query := `
		SELECT backend_kind, model, total_requests, successful_requests, failed_requests,
		       recent_durations, recent_tokens_per_sec, error_counts, performance_score, last_used_at
		FROM model_metrics
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	defer rows.Close()

	var out []*models.PerformanceMetrics
	for rows.Next() {
		m := &models.PerformanceMetrics{}
		var durations, throughput, errorCounts []byte
		var lastUsed sql.NullTime

		err := rows.Scan(
			&m.BackendKind,
			&m.Model,
			&m.TotalRequests,
			&m.SuccessfulRequests,
			&m.FailedRequests,
			&durations,
			&throughput,
			&errorCounts,
			&m.PerformanceScore,
			&lastUsed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}

		if err := json.Unmarshal(durations, &m.RecentDurations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal durations for %s: %w", m.Key(), err)
		}
		if err := json.Unmarshal(throughput, &m.RecentTokensPerSec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal throughput for %s: %w", m.Key(), err)
		}
		if err := json.Unmarshal(errorCounts, &m.ErrorCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error counts for %s: %w", m.Key(), err)
		}
		if m.ErrorCounts == nil {
			m.ErrorCounts = make(map[string]int)
		}
		if lastUsed.Valid {
			m.LastUsedAt = lastUsed.Time
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metrics rows: %w", err)
	}
	return out, nil
}
