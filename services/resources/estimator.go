package resources

import (
	"bufio"
	"context"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// Config holds estimator tuning knobs
type Config struct {
	// TTL is how long a snapshot stays valid
	TTL time.Duration

	// CapacityCeiling is the absolute parallel-request cap
	CapacityCeiling int
}

// DefaultConfig returns sensible estimator defaults
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		CapacityCeiling: 50,
	}
}

// multiGPUFactor is the capacity multiplier per additional GPU. Less than
// 2x to account for coordination overhead.
const multiGPUFactor = 1.8

// baseCapacity maps each resource level to a parallel-request budget
var baseCapacity = map[models.ResourceLevel]int{
	models.ResourceMinimal: 1,
	models.ResourceLow:     2,
	models.ResourceMedium:  4,
	models.ResourceHigh:    8,
	models.ResourceMaximum: 12,
}

// ModelIndexer supplies the model→servers view used to infer server-side
// GPU class when no local GPU is visible.
type ModelIndexer interface {
	Index(ctx context.Context) map[string][]models.Backend
}

// SizeEstimator extracts a parameter-count estimate from a model name
type SizeEstimator interface {
	Profile(name string) *models.ModelProfile
}

// commandRunner abstracts vendor CLI execution for testing
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Estimator probes local hardware and infers backend capacity, producing
// TTL-cached resource snapshots. It never fails: when every probe comes
// up empty it returns a conservative minimal snapshot.
type Estimator struct {
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	indexer  ModelIndexer
	profiler SizeEstimator
	run      commandRunner
	memInfo  string
	cached   *models.ResourceSnapshot
}

// NewEstimator creates a resource estimator. indexer and profiler are
// optional; without them server-side inference is skipped.
func NewEstimator(indexer ModelIndexer, profiler SizeEstimator, cfg Config, logger *zap.Logger) *Estimator {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CapacityCeiling <= 0 {
		cfg.CapacityCeiling = DefaultConfig().CapacityCeiling
	}
	return &Estimator{
		cfg:      cfg,
		logger:   logger,
		indexer:  indexer,
		profiler: profiler,
		run:      execCommand,
		memInfo:  "/proc/meminfo",
	}
}

// Snapshot returns the current resource snapshot, recomputing when the
// cached one has expired.
func (e *Estimator) Snapshot(ctx context.Context) models.ResourceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cached != nil && time.Since(e.cached.CollectedAt) < e.cfg.TTL {
		return *e.cached
	}

	snap := e.collect(ctx)
	e.cached = &snap

	e.logger.Info("resource snapshot refreshed",
		zap.String("level", string(snap.Level)),
		zap.Int("gpus", snap.GPUCount),
		zap.Float64("gpu_memory_gb", snap.TotalGPUMemoryGB),
		zap.Int("cpu_cores", snap.CPUCores),
		zap.Float64("ram_gb", snap.TotalRAMGB),
		zap.Int("capacity", snap.EstimatedCapacity))

	return snap
}

// Invalidate forces the next Snapshot call to re-probe
func (e *Estimator) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cached = nil
}

// collect probes hardware and derives the capacity budget
func (e *Estimator) collect(ctx context.Context) models.ResourceSnapshot {
	snap := models.ResourceSnapshot{
		CPUCores:    runtime.NumCPU(),
		TotalRAMGB:  e.probeRAM(),
		CollectedAt: time.Now(),
	}

	gpuCount, gpuMemGB := e.probeGPUs(ctx)
	if gpuCount == 0 {
		// No local GPU: infer server-side GPU class from the largest
		// model any backend can serve.
		gpuCount, gpuMemGB = e.inferFromBackends(ctx)
	}
	snap.GPUCount = gpuCount
	snap.TotalGPUMemoryGB = gpuMemGB

	snap.Level = classify(snap)
	snap.EstimatedCapacity = e.capacity(snap)

	return snap
}

// probeGPUs queries the NVIDIA CLI for GPU count and total VRAM
func (e *Estimator) probeGPUs(ctx context.Context) (int, float64) {
	out, err := e.run(ctx, "nvidia-smi", "--query-gpu=memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, 0
	}

	var count int
	var totalMB float64
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		mb, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		count++
		totalMB += mb
	}

	return count, totalMB / 1024
}

// inferFromBackends estimates remote GPU class from the largest model
// served anywhere. A 70B-capable backend implies a 40GB-class GPU.
func (e *Estimator) inferFromBackends(ctx context.Context) (int, float64) {
	if e.indexer == nil || e.profiler == nil {
		return 0, 0
	}

	var largest float64
	for model := range e.indexer.Index(ctx) {
		if size := e.profiler.Profile(model).SizeBillionParams; size > largest {
			largest = size
		}
	}

	switch {
	case largest >= 60:
		return 1, 40
	case largest >= 30:
		return 1, 24
	case largest >= 13:
		return 1, 16
	case largest > 0:
		return 1, 8
	default:
		return 0, 0
	}
}

// probeRAM reads total system memory in GB
func (e *Estimator) probeRAM() float64 {
	f, err := os.Open(e.memInfo)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0
		}
		return kb / (1024 * 1024)
	}
	return 0
}

// classify buckets a snapshot into a coarse resource level
func classify(snap models.ResourceSnapshot) models.ResourceLevel {
	switch {
	case snap.TotalGPUMemoryGB >= 64 || (snap.GPUCount >= 2 && snap.TotalGPUMemoryGB >= 40):
		return models.ResourceMaximum
	case snap.TotalGPUMemoryGB >= 24:
		return models.ResourceHigh
	case snap.TotalGPUMemoryGB >= 8:
		return models.ResourceMedium
	case snap.TotalGPUMemoryGB > 0 || snap.TotalRAMGB >= 16:
		return models.ResourceLow
	default:
		return models.ResourceMinimal
	}
}

// capacity derives the parallel-request budget from the snapshot
func (e *Estimator) capacity(snap models.ResourceSnapshot) int {
	base := baseCapacity[snap.Level]
	if base == 0 {
		base = 1
	}

	budget := float64(base)

	// Each extra GPU multiplies capacity, discounted for coordination
	if snap.GPUCount > 1 {
		budget *= math.Pow(multiGPUFactor, float64(snap.GPUCount-1))
	}

	// High core counts help batch admission even without more GPUs
	if snap.CPUCores >= 32 {
		budget *= 1.5
	} else if snap.CPUCores >= 16 {
		budget *= 1.25
	}

	capacity := int(budget)
	if capacity < 1 {
		capacity = 1
	}
	if capacity > e.cfg.CapacityCeiling {
		capacity = e.cfg.CapacityCeiling
	}
	return capacity
}
