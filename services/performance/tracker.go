package performance

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

// referenceTokensPerSec is the throughput that earns the full speed bonus
const referenceTokensPerSec = 100.0

// Config holds tracker tuning knobs
type Config struct {
	// FlushEvery is how many updates trigger a persistence flush
	FlushEvery int
}

// DefaultConfig returns sensible tracker defaults
func DefaultConfig() Config {
	return Config{FlushEvery: 10}
}

// Tracker maintains rolling per-(backend kind, model) statistics and the
// composite performance score the scoring engine consumes. Entries are
// never deleted, only capped in window size.
type Tracker struct {
	mu      sync.RWMutex
	cfg     Config
	store   repositories.MetricsStore // may be nil
	logger  *zap.Logger
	metrics map[string]*models.PerformanceMetrics
	dirty   map[string]struct{}
	updates int
}

// NewTracker creates a tracker. Call Load before first use when a store
// is configured.
func NewTracker(store repositories.MetricsStore, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.FlushEvery < 1 {
		cfg.FlushEvery = DefaultConfig().FlushEvery
	}
	return &Tracker{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: make(map[string]*models.PerformanceMetrics),
		dirty:   make(map[string]struct{}),
	}
}

// Load reloads all persisted metrics. The tracker is not ready until Load
// returns; with a nil store it is a no-op.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	entries, err := t.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range entries {
		t.metrics[m.Key()] = m
	}

	t.logger.Info("performance metrics loaded", zap.Int("entries", len(entries)))
	return nil
}

// Record updates the stats for a completed or failed call and recomputes
// the performance score.
func (t *Tracker) Record(ctx context.Context, kind, model string, durationSec float64, tokens int, success bool, errorKind string) {
	t.mu.Lock()

	m := t.getOrCreateLocked(kind, model)
	m.TotalRequests++
	m.LastUsedAt = time.Now()

	if success {
		m.SuccessfulRequests++
		m.RecentDurations = appendBounded(m.RecentDurations, durationSec)
		if durationSec > 0 && tokens > 0 {
			m.RecentTokensPerSec = appendBounded(m.RecentTokensPerSec, float64(tokens)/durationSec)
		}
	} else {
		m.FailedRequests++
		if errorKind == "" {
			errorKind = "unknown"
		}
		m.ErrorCounts[errorKind]++
	}

	m.PerformanceScore = computeScore(m)

	t.dirty[m.Key()] = struct{}{}
	t.updates++
	shouldFlush := t.updates%t.cfg.FlushEvery == 0

	t.mu.Unlock()

	if shouldFlush {
		if err := t.Flush(ctx); err != nil {
			t.logger.Warn("metrics flush failed", zap.Error(err))
		}
	}
}

// GetMetrics returns a copy of the stats for a pair, creating a
// zero-valued entry on first access. It never errors.
func (t *Tracker) GetMetrics(kind, model string) models.PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getOrCreateLocked(kind, model).Clone()
}

// Score returns the tracked performance score in [0,100] and whether
// enough samples exist for it to be trustworthy.
func (t *Tracker) Score(kind, model string, minSamples int) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.metrics[models.MetricsKey(kind, model)]
	if !ok || m.TotalRequests < int64(minSamples) {
		return 0, false
	}
	return m.PerformanceScore, true
}

// AllMetrics returns copies of every tracked entry
func (t *Tracker) AllMetrics() []models.PerformanceMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.PerformanceMetrics, 0, len(t.metrics))
	for _, m := range t.metrics {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Flush persists every dirty entry. With a nil store it is a no-op.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	t.mu.Lock()
	pending := make([]models.PerformanceMetrics, 0, len(t.dirty))
	for key := range t.dirty {
		if m, ok := t.metrics[key]; ok {
			pending = append(pending, m.Clone())
		}
	}
	t.dirty = make(map[string]struct{})
	t.mu.Unlock()

	for i := range pending {
		if err := t.store.UpsertMetrics(ctx, &pending[i]); err != nil {
			// Re-mark so the next flush retries
			t.mu.Lock()
			t.dirty[pending[i].Key()] = struct{}{}
			t.mu.Unlock()
			return err
		}
	}
	return nil
}

// Close flushes outstanding updates on shutdown
func (t *Tracker) Close(ctx context.Context) error {
	return t.Flush(ctx)
}

// getOrCreateLocked returns the entry for a pair, creating a zero-valued
// one when missing. Caller must hold the write lock.
func (t *Tracker) getOrCreateLocked(kind, model string) *models.PerformanceMetrics {
	key := models.MetricsKey(kind, model)
	if m, ok := t.metrics[key]; ok {
		return m
	}

	m := &models.PerformanceMetrics{
		BackendKind: kind,
		Model:       model,
		ErrorCounts: make(map[string]int),
	}
	t.metrics[key] = m
	return m
}

// appendBounded appends to a rolling window, dropping the oldest sample
// once the window is full.
func appendBounded(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) > models.MetricsWindowSize {
		window = window[len(window)-models.MetricsWindowSize:]
	}
	return window
}

// computeScore reproduces the canonical score formula:
// up to 50 points for success rate, up to 30 for throughput normalized
// against a 100 tok/s reference, up to 20 for duration stability.
func computeScore(m *models.PerformanceMetrics) float64 {
	score := 50 * m.SuccessRate()

	if avg := m.AvgTokensPerSec(); avg > 0 {
		speed := 30 * avg / referenceTokensPerSec
		if speed > 30 {
			speed = 30
		}
		score += speed
	}

	// Stability needs at least two samples for a meaningful variance
	if len(m.RecentDurations) >= 2 {
		cv := coefficientOfVariation(m.RecentDurations)
		stability := 20 * math.Max(0, 1-cv)
		score += stability
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// coefficientOfVariation is stddev/mean of the samples, 0 for a zero mean
func coefficientOfVariation(samples []float64) float64 {
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range samples {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(samples))

	return math.Sqrt(variance) / mean
}
