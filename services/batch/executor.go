package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// skippedReason is recorded on items the breaker rejected
const skippedReason = "circuit breaker open"

// Config holds executor concurrency bounds
type Config struct {
	// BaseConcurrency is the minimum parallelism regardless of what the
	// resource estimator reports
	BaseConcurrency int

	// MaxConcurrency is the absolute ceiling
	MaxConcurrency int
}

// DefaultConfig returns sensible executor defaults
func DefaultConfig() Config {
	return Config{
		BaseConcurrency: 2,
		MaxConcurrency:  50,
	}
}

// Worker processes one batch item
type Worker func(ctx context.Context, item any) (any, error)

// CapacityEstimator reports how many concurrent requests the host can take
type CapacityEstimator interface {
	Snapshot(ctx context.Context) models.ResourceSnapshot
}

// Executor runs batches of items through a worker with bounded concurrency
// and a per-run circuit breaker. The breaker guards the whole run: once the
// backend is clearly failing, remaining items are skipped instead of
// attempted.
type Executor struct {
	estimator  CapacityEstimator
	cfg        Config
	breakerCfg BreakerConfig
	logger     *zap.Logger
}

// NewExecutor creates a batch executor
func NewExecutor(estimator CapacityEstimator, cfg Config, breakerCfg BreakerConfig, logger *zap.Logger) *Executor {
	if cfg.BaseConcurrency < 1 {
		cfg.BaseConcurrency = 1
	}
	if cfg.MaxConcurrency < cfg.BaseConcurrency {
		cfg.MaxConcurrency = cfg.BaseConcurrency
	}
	return &Executor{
		estimator:  estimator,
		cfg:        cfg,
		breakerCfg: breakerCfg,
		logger:     logger,
	}
}

// RunBatch processes items and returns exactly one result per item, in
// input order. Items are submitted in order; each waits for a concurrency
// slot before the breaker is consulted, so once the breaker opens every
// remaining item is skipped deterministically.
func (e *Executor) RunBatch(ctx context.Context, items []any, worker Worker) []models.BatchResult {
	runID := uuid.NewString()
	start := time.Now()

	results := make([]models.BatchResult, len(items))
	if len(items) == 0 {
		return results
	}

	concurrency := e.concurrency(ctx, len(items))
	breaker := NewCircuitBreaker(e.breakerCfg, e.logger)

	e.logger.Info("batch run starting",
		zap.String("run_id", runID),
		zap.Int("items", len(items)),
		zap.Int("concurrency", concurrency))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		results[i] = models.BatchResult{Index: i, Item: item}

		if ctx.Err() != nil {
			results[i].Skipped = true
			results[i].Error = ctx.Err().Error()
			continue
		}

		sem <- struct{}{}

		if !breaker.Allow() {
			<-sem
			results[i].Skipped = true
			results[i].Error = skippedReason
			continue
		}

		wg.Add(1)
		go func(i int, item any) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := worker(ctx, item)
			if err != nil {
				breaker.RecordFailure()
				results[i].Error = err.Error()
				return
			}

			breaker.RecordSuccess()
			results[i].Success = true
			results[i].Output = out
		}(i, item)
	}

	wg.Wait()

	succeeded, failed, skipped := tally(results)
	e.logger.Info("batch run complete",
		zap.String("run_id", runID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.String("breaker_state", string(breaker.State())),
		zap.Duration("took", time.Since(start)))

	return results
}

// concurrency derives the slot count from estimated host capacity, clamped
// to the configured bounds and the batch size
func (e *Executor) concurrency(ctx context.Context, itemCount int) int {
	c := e.cfg.BaseConcurrency
	if e.estimator != nil {
		if cap := e.estimator.Snapshot(ctx).EstimatedCapacity; cap > c {
			c = cap
		}
	}
	if c > e.cfg.MaxConcurrency {
		c = e.cfg.MaxConcurrency
	}
	if c > itemCount {
		c = itemCount
	}
	if c < 1 {
		c = 1
	}
	return c
}

func tally(results []models.BatchResult) (succeeded, failed, skipped int) {
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Success:
			succeeded++
		default:
			failed++
		}
	}
	return
}
