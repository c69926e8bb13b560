package resources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/profile"
	"go.uber.org/zap"
)

// fakeIndexer serves a fixed model index
type fakeIndexer struct {
	index map[string][]models.Backend
}

func (f *fakeIndexer) Index(ctx context.Context) map[string][]models.Backend {
	return f.index
}

func newTestEstimator(indexer ModelIndexer, run commandRunner) *Estimator {
	e := NewEstimator(indexer, profile.NewProfiler(), DefaultConfig(), zap.NewNop())
	e.run = run
	e.memInfo = "/nonexistent/meminfo"
	return e
}

func noGPU(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, errors.New("nvidia-smi not found")
}

func TestSnapshotWithLocalGPUs(t *testing.T) {
	e := newTestEstimator(nil, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("24576\n24576\n"), nil
	})

	snap := e.Snapshot(context.Background())

	assert.Equal(t, 2, snap.GPUCount)
	assert.InDelta(t, 48.0, snap.TotalGPUMemoryGB, 0.01)
	assert.Equal(t, models.ResourceMaximum, snap.Level)

	// base 12 scaled by 1.8 for the second GPU, plus possible core bonus,
	// but never above the ceiling
	assert.GreaterOrEqual(t, snap.EstimatedCapacity, 21)
	assert.LessOrEqual(t, snap.EstimatedCapacity, 50)
}

func TestSnapshotInfersFromLargestServableModel(t *testing.T) {
	indexer := &fakeIndexer{index: map[string][]models.Backend{
		"llama3:8b":  {{Name: "s1"}},
		"llama3:70b": {{Name: "s2"}},
	}}
	e := newTestEstimator(indexer, noGPU)

	snap := e.Snapshot(context.Background())

	assert.Equal(t, 1, snap.GPUCount)
	assert.InDelta(t, 40.0, snap.TotalGPUMemoryGB, 0.01, "70B-capable backend implies a 40GB-class GPU")
	assert.Equal(t, models.ResourceHigh, snap.Level)
}

func TestSnapshotNeverFails(t *testing.T) {
	e := newTestEstimator(&fakeIndexer{index: map[string][]models.Backend{}}, noGPU)

	snap := e.Snapshot(context.Background())

	assert.NotEmpty(t, snap.Level)
	assert.GreaterOrEqual(t, snap.EstimatedCapacity, 1)
}

func TestSnapshotIsCachedWithinTTL(t *testing.T) {
	calls := 0
	e := newTestEstimator(nil, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte("8192\n"), nil
	})

	first := e.Snapshot(context.Background())
	second := e.Snapshot(context.Background())

	assert.Equal(t, 1, calls, "second call must hit the cache")
	assert.Equal(t, first.CollectedAt, second.CollectedAt)

	e.Invalidate()
	e.Snapshot(context.Background())
	assert.Equal(t, 2, calls)
}

func TestCapacityCeiling(t *testing.T) {
	e := newTestEstimator(nil, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		// 8 GPUs of 80GB: uncapped scaling would explode past the ceiling
		return []byte("81920\n81920\n81920\n81920\n81920\n81920\n81920\n81920\n"), nil
	})

	snap := e.Snapshot(context.Background())
	assert.Equal(t, 50, snap.EstimatedCapacity)
}

func TestCapacityFloor(t *testing.T) {
	cfg := Config{TTL: time.Minute, CapacityCeiling: 50}
	e := NewEstimator(nil, nil, cfg, zap.NewNop())
	e.run = noGPU
	e.memInfo = "/nonexistent/meminfo"

	snap := e.Snapshot(context.Background())
	assert.Equal(t, models.ResourceMinimal, snap.Level)
	assert.GreaterOrEqual(t, snap.EstimatedCapacity, 1)
}
