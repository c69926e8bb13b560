package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/transport"
	"go.uber.org/zap"
)

// Config holds discovery tuning knobs
type Config struct {
	// TTL is how long a discovery pass stays valid
	TTL time.Duration

	// ProbeTimeout bounds each backend probe
	ProbeTimeout time.Duration
}

// DefaultConfig returns sensible discovery defaults
func DefaultConfig() Config {
	return Config{
		TTL:          30 * time.Second,
		ProbeTimeout: 2 * time.Second,
	}
}

// Service owns the backend registry and keeps it fresh. Backends are
// created once from configuration and refreshed in place; an unreachable
// backend is marked unavailable, never deleted.
//
// Refreshes are single-flighted: the mutex serializes them, so concurrent
// callers during a refresh wait for the in-flight result instead of
// issuing duplicate probe rounds.
type Service struct {
	mu          sync.Mutex
	cfg         Config
	client      transport.Client
	logger      *zap.Logger
	backends    []*models.Backend
	index       map[string][]*models.Backend
	lastRefresh time.Time
}

// New creates a discovery service from configured backend descriptors
func New(descriptors []config.BackendDescriptor, client transport.Client, cfg Config, logger *zap.Logger) *Service {
	backends := make([]*models.Backend, 0, len(descriptors))
	for _, d := range descriptors {
		backends = append(backends, &models.Backend{
			URL:          d.URL,
			Name:         d.Name,
			PriorityTier: d.PriorityTier,
			Kind:         d.Kind,
		})
	}

	return &Service{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		backends: backends,
		index:    make(map[string][]*models.Backend),
	}
}

// DiscoverAll returns a snapshot of every configured backend, refreshing
// first when the cache is stale. It never fails; when everything is
// unreachable it degrades to all backends marked unavailable.
func (s *Service) DiscoverAll(ctx context.Context) map[string]models.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshLocked(ctx)

	out := make(map[string]models.Backend, len(s.backends))
	for _, b := range s.backends {
		out[b.Name] = b.Clone()
	}
	return out
}

// ServersForModel returns the available backends serving the given model,
// sorted by priority tier then probe latency.
func (s *Service) ServersForModel(ctx context.Context, model string) []models.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshLocked(ctx)

	servers := s.index[model]
	out := make([]models.Backend, 0, len(servers))
	for _, b := range servers {
		out = append(out, b.Clone())
	}
	return out
}

// Index returns a snapshot of the model→servers index over available
// backends only.
func (s *Service) Index(ctx context.Context) map[string][]models.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshLocked(ctx)

	out := make(map[string][]models.Backend, len(s.index))
	for model, servers := range s.index {
		copies := make([]models.Backend, 0, len(servers))
		for _, b := range servers {
			copies = append(copies, b.Clone())
		}
		out[model] = copies
	}
	return out
}

// Invalidate forces the next call to re-probe regardless of TTL
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRefresh = time.Time{}
}

// refreshLocked re-probes all backends when the cache is stale. Caller
// must hold s.mu.
func (s *Service) refreshLocked(ctx context.Context) {
	if time.Since(s.lastRefresh) < s.cfg.TTL && !s.lastRefresh.IsZero() {
		return
	}

	start := time.Now()

	// Probe every backend concurrently; one unreachable backend never
	// blocks the rest.
	var wg sync.WaitGroup
	for _, b := range s.backends {
		wg.Add(1)
		go func(b *models.Backend) {
			defer wg.Done()
			s.probe(ctx, b)
		}(b)
	}
	wg.Wait()

	s.rebuildIndexLocked()
	s.lastRefresh = time.Now()

	available := 0
	for _, b := range s.backends {
		if b.IsAvailable {
			available++
		}
	}
	s.logger.Info("discovery pass complete",
		zap.Int("backends", len(s.backends)),
		zap.Int("available", available),
		zap.Int("models", len(s.index)),
		zap.Duration("took", time.Since(start)))
}

// probe queries one backend's model list and records the outcome. On
// failure the previous model list is kept (stale) but the backend is
// flagged unavailable.
func (s *Service) probe(ctx context.Context, b *models.Backend) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	names, err := s.client.ListModels(probeCtx, b.URL)
	b.LastCheckedAt = time.Now()

	if err != nil {
		b.IsAvailable = false
		s.logger.Warn("backend probe failed",
			zap.String("backend", b.Name),
			zap.String("url", b.URL),
			zap.Error(err))
		return
	}

	b.IsAvailable = true
	b.ResponseTime = time.Since(start)
	b.AvailableModels = names
}

// rebuildIndexLocked recomputes the model→servers index from available
// backends, sorted by priority tier then latency. Caller must hold s.mu.
func (s *Service) rebuildIndexLocked() {
	index := make(map[string][]*models.Backend)
	for _, b := range s.backends {
		if !b.IsAvailable {
			continue
		}
		for _, model := range b.AvailableModels {
			index[model] = append(index[model], b)
		}
	}

	for _, servers := range index {
		sort.SliceStable(servers, func(i, j int) bool {
			if servers[i].PriorityTier != servers[j].PriorityTier {
				return servers[i].PriorityTier < servers[j].PriorityTier
			}
			return servers[i].ResponseTime < servers[j].ResponseTime
		})
	}

	s.index = index
}
