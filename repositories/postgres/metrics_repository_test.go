package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

func TestUpsertMetrics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMetricsRepository(db, zap.NewNop())

	m := &models.PerformanceMetrics{
		BackendKind:        "local",
		Model:              "llama3:8b",
		TotalRequests:      10,
		SuccessfulRequests: 9,
		FailedRequests:     1,
		RecentDurations:    []float64{1.2, 0.8},
		RecentTokensPerSec: []float64{45, 52},
		ErrorCounts:        map[string]int{"timeout": 1},
		PerformanceScore:   82.5,
		LastUsedAt:         time.Now(),
	}

	mock.ExpectExec("INSERT INTO model_metrics").
		WithArgs(
			m.BackendKind, m.Model, m.TotalRequests, m.SuccessfulRequests, m.FailedRequests,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), m.PerformanceScore, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpsertMetrics(context.Background(), m)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAllRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMetricsRepository(db, zap.NewNop())

	durations, _ := json.Marshal([]float64{1.5, 2.0})
	throughput, _ := json.Marshal([]float64{30, 40})
	errorCounts, _ := json.Marshal(map[string]int{"connection": 2})
	lastUsed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"backend_kind", "model", "total_requests", "successful_requests", "failed_requests",
		"recent_durations", "recent_tokens_per_sec", "error_counts", "performance_score", "last_used_at",
	}).AddRow("remote", "llama3:70b", int64(25), int64(23), int64(2), durations, throughput, errorCounts, 77.25, lastUsed)

	mock.ExpectQuery("SELECT backend_kind, model").WillReturnRows(rows)

	loaded, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	m := loaded[0]
	assert.Equal(t, "remote", m.BackendKind)
	assert.Equal(t, "llama3:70b", m.Model)
	assert.Equal(t, int64(25), m.TotalRequests)
	assert.InDelta(t, 77.25, m.PerformanceScore, 1e-9)
	assert.Equal(t, []float64{1.5, 2.0}, m.RecentDurations)
	assert.Equal(t, []float64{30, 40}, m.RecentTokensPerSec)
	assert.Equal(t, map[string]int{"connection": 2}, m.ErrorCounts)
	assert.Equal(t, lastUsed, m.LastUsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAllEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewMetricsRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT backend_kind, model").WillReturnRows(sqlmock.NewRows([]string{
		"backend_kind", "model", "total_requests", "successful_requests", "failed_requests",
		"recent_durations", "recent_tokens_per_sec", "error_counts", "performance_score", "last_used_at",
	}))

	loaded, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
