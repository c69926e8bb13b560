package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// fakeEstimator reports a fixed parallel-request budget
type fakeEstimator struct {
	capacity int
}

func (f *fakeEstimator) Snapshot(ctx context.Context) models.ResourceSnapshot {
	return models.ResourceSnapshot{EstimatedCapacity: f.capacity}
}

func intItems(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = i + 1
	}
	return items
}

func TestRunBatchSkipsAfterBreakerOpens(t *testing.T) {
	// Serial execution keeps outcome order deterministic
	e := NewExecutor(nil, Config{BaseConcurrency: 1, MaxConcurrency: 1}, DefaultBreakerConfig(), zap.NewNop())

	worker := func(ctx context.Context, item any) (any, error) {
		n := item.(int)
		if n >= 3 && n <= 7 {
			return nil, errors.New("backend exploded")
		}
		return fmt.Sprintf("done-%d", n), nil
	}

	results := e.RunBatch(context.Background(), intItems(10), worker)
	require.Len(t, results, 10)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i+1, r.Item)
	}

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, "done-2", results[1].Output)

	for i := 2; i <= 6; i++ {
		assert.False(t, results[i].Success, "item %d failed for real", i+1)
		assert.False(t, results[i].Skipped)
		assert.Equal(t, "backend exploded", results[i].Error)
	}

	// Five consecutive failures open the breaker; the rest never run
	for i := 7; i <= 9; i++ {
		assert.True(t, results[i].Skipped, "item %d must be skipped", i+1)
		assert.Equal(t, skippedReason, results[i].Error)
	}
}

func TestRunBatchOneResultPerItem(t *testing.T) {
	e := NewExecutor(&fakeEstimator{capacity: 4}, DefaultConfig(), BreakerConfig{
		FailureRateThreshold: 1.0,
		ConsecutiveFailures:  1000,
		MinSamples:           1000,
	}, zap.NewNop())

	var calls atomic.Int64
	worker := func(ctx context.Context, item any) (any, error) {
		calls.Add(1)
		if item.(int)%2 == 0 {
			return nil, errors.New("even items fail")
		}
		return item, nil
	}

	results := e.RunBatch(context.Background(), intItems(20), worker)
	require.Len(t, results, 20)
	assert.EqualValues(t, 20, calls.Load())

	for i, r := range results {
		assert.Equal(t, i, r.Index, "results keep input order")
		assert.Equal(t, (i+1)%2 == 1, r.Success)
	}
}

func TestRunBatchEmpty(t *testing.T) {
	e := NewExecutor(nil, DefaultConfig(), DefaultBreakerConfig(), zap.NewNop())

	results := e.RunBatch(context.Background(), nil, func(ctx context.Context, item any) (any, error) {
		t.Fatal("worker must not run for an empty batch")
		return nil, nil
	})
	assert.Empty(t, results)
}

func TestRunBatchCancelledContext(t *testing.T) {
	e := NewExecutor(nil, DefaultConfig(), DefaultBreakerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.RunBatch(ctx, intItems(3), func(ctx context.Context, item any) (any, error) {
		return item, nil
	})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Skipped)
	}
}

func TestConcurrencyClamping(t *testing.T) {
	cfg := Config{BaseConcurrency: 2, MaxConcurrency: 8}

	tests := []struct {
		name     string
		capacity int
		items    int
		expected int
	}{
		{"estimator raises the base", 5, 100, 5},
		{"ceiling wins over capacity", 100, 100, 8},
		{"base wins over tiny capacity", 0, 100, 2},
		{"never more slots than items", 5, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(&fakeEstimator{capacity: tt.capacity}, cfg, DefaultBreakerConfig(), zap.NewNop())
			assert.Equal(t, tt.expected, e.concurrency(context.Background(), tt.items))
		})
	}
}
