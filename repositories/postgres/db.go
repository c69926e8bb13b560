package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/upb/llm-router/config"
	"go.uber.org/zap"
)

// Open connects to PostgreSQL using the metrics database configuration
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("database connection established", zap.String("connection", cfg.LogString()))
	return db, nil
}

// InitSchema creates the metrics table when it does not exist yet
func InitSchema(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS model_metrics (
			backend_kind          TEXT NOT NULL,
			model                 TEXT NOT NULL,
			total_requests        BIGINT NOT NULL DEFAULT 0,
			successful_requests   BIGINT NOT NULL DEFAULT 0,
			failed_requests       BIGINT NOT NULL DEFAULT 0,
			recent_durations      JSONB NOT NULL DEFAULT '[]',
			recent_tokens_per_sec JSONB NOT NULL DEFAULT '[]',
			error_counts          JSONB NOT NULL DEFAULT '{}',
			performance_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_used_at          TIMESTAMPTZ,
			PRIMARY KEY (backend_kind, model)
		)
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create model_metrics table: %w", err)
	}
	return nil
}
