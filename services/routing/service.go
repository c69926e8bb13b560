package routing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/complexity"
	"github.com/upb/llm-router/services/discovery"
	"github.com/upb/llm-router/services/performance"
	"github.com/upb/llm-router/services/scoring"
	"github.com/upb/llm-router/services/transport"
	"go.uber.org/zap"
)

var (
	// ErrEmptyTask is returned when a request carries no task text
	ErrEmptyTask = errors.New("task text is required")

	// ErrAllAttemptsFailed is returned when every candidate backend failed
	ErrAllAttemptsFailed = errors.New("all generation attempts failed")
)

// maxFallbacks bounds the alternatives listed on a selection
const maxFallbacks = 3

// Config holds routing tuning knobs
type Config struct {
	// MaxAttempts bounds generation attempts across all fallbacks
	MaxAttempts int

	// BaseBackoff seeds the exponential retry delay
	BaseBackoff time.Duration

	// CallTimeout bounds each outbound generation attempt
	CallTimeout time.Duration
}

// DefaultConfig returns sensible routing defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		CallTimeout: 2 * time.Minute,
	}
}

// Request describes one routing problem
type Request struct {
	// Task is the free-text task to route
	Task string `json:"task" validate:"required"`

	// TaskType optionally declares the kind of work; inferred when empty
	TaskType string `json:"task_type,omitempty"`

	// PreferredModel optionally biases selection toward a model
	PreferredModel string `json:"preferred_model,omitempty"`

	// QualityRequirement expresses the speed/quality trade-off
	QualityRequirement models.QualityRequirement `json:"quality_requirement,omitempty"`
}

// ExecuteResult is the outcome of a routed generation call
type ExecuteResult struct {
	// Selection is the routing decision that drove the call
	Selection *models.Selection `json:"selection"`

	// Model is the model that actually produced the output; it differs
	// from the selection when a fallback served the request
	Model string `json:"model"`

	// ServerName names the backend that served the request
	ServerName string `json:"server_name"`

	// Text is the generated output
	Text string `json:"text"`

	// TokensPerSecond is the observed generation throughput
	TokensPerSecond float64 `json:"tokens_per_second"`

	// Duration is the total wall time of the winning attempt
	Duration time.Duration `json:"duration"`

	// Attempts counts generation attempts including the winning one
	Attempts int `json:"attempts"`
}

// Service is the routing facade: it classifies a task, scores candidates
// and produces a selection, and optionally executes it with fallback.
type Service struct {
	classifier *complexity.Classifier
	engine     *scoring.Engine
	discovery  *discovery.Service
	tracker    *performance.Tracker
	client     transport.Client
	cfg        Config
	logger     *zap.Logger

	// sleep is swapped in tests to avoid real backoff delays
	sleep func(time.Duration)
}

// New creates the routing facade
func New(classifier *complexity.Classifier, engine *scoring.Engine, disc *discovery.Service, tracker *performance.Tracker, client transport.Client, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	return &Service{
		classifier: classifier,
		engine:     engine,
		discovery:  disc,
		tracker:    tracker,
		client:     client,
		cfg:        cfg,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Route classifies the task and returns the best (model, server) pair with
// ranked fallbacks. It does not call any backend beyond discovery probes.
func (s *Service) Route(ctx context.Context, req Request) (*models.Selection, error) {
	if req.Task == "" {
		return nil, ErrEmptyTask
	}

	result := s.classifier.Classify(req.Task, req.TaskType, req.PreferredModel)

	candidates, err := s.engine.SelectModel(ctx, scoring.Request{
		Task:               req.Task,
		TaskType:           result.TaskType,
		PreferredModel:     req.PreferredModel,
		QualityRequirement: req.QualityRequirement,
	})
	if err != nil {
		return nil, err
	}

	best := s.adjustForComplexity(candidates, result.Level)

	fallbacks := make([]string, 0, maxFallbacks)
	for _, c := range candidates {
		if c.Model == best.Model || containsModel(fallbacks, c.Model) {
			continue
		}
		fallbacks = append(fallbacks, c.Model)
		if len(fallbacks) == maxFallbacks {
			break
		}
	}

	selection := &models.Selection{
		Model:                  best.Model,
		ServerURL:              best.Server.URL,
		ServerName:             best.Server.Name,
		Tier:                   s.engine.TierOf(best.Model),
		Scores:                 best.Scores,
		ComplexityLevel:        result.Level,
		Reason:                 best.Reason,
		FallbackModels:         fallbacks,
		RecommendedTemperature: result.RecommendedTemperature,
		RecommendedMaxTokens:   result.RecommendedMaxTokens,
	}

	s.logger.Info("task routed",
		zap.String("model", selection.Model),
		zap.String("server", selection.ServerName),
		zap.String("complexity", string(result.Level)),
		zap.String("tier", string(selection.Tier)),
		zap.Float64("score", best.Scores.Total))

	return selection, nil
}

// Execute routes the task and runs it, walking fallback models with
// exponential backoff until one succeeds or the attempt budget runs out.
// Every attempt's outcome feeds the performance tracker.
func (s *Service) Execute(ctx context.Context, req Request) (*ExecuteResult, error) {
	selection, err := s.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	order := append([]string{selection.Model}, selection.FallbackModels...)

	attempts := 0
	var lastErr error
	for _, model := range order {
		if attempts >= s.cfg.MaxAttempts {
			break
		}

		servers := s.discovery.ServersForModel(ctx, model)
		for _, server := range servers {
			if attempts >= s.cfg.MaxAttempts {
				break
			}
			if attempts > 0 {
				s.sleep(backoff(s.cfg.BaseBackoff, attempts))
			}
			attempts++

			callCtx := ctx
			var cancel context.CancelFunc
			if s.cfg.CallTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
			}

			start := time.Now()
			resp, genErr := s.client.Generate(callCtx, server.URL, &transport.GenerateRequest{
				Model:       model,
				Prompt:      req.Task,
				Temperature: selection.RecommendedTemperature,
				MaxTokens:   selection.RecommendedMaxTokens,
			})
			elapsed := time.Since(start)
			if cancel != nil {
				cancel()
			}

			if genErr != nil {
				lastErr = genErr
				s.tracker.Record(ctx, server.Kind, model, elapsed.Seconds(), 0, false, errorKind(genErr))
				s.logger.Warn("generation attempt failed",
					zap.String("model", model),
					zap.String("server", server.Name),
					zap.Int("attempt", attempts),
					zap.Error(genErr))

				if !transport.IsRetryable(genErr) {
					break
				}
				continue
			}

			s.tracker.Record(ctx, server.Kind, model, elapsed.Seconds(), resp.CompletionTokens, true, "")

			return &ExecuteResult{
				Selection:       selection,
				Model:           model,
				ServerName:      server.Name,
				Text:            resp.Text,
				TokensPerSecond: resp.TokensPerSecond,
				Duration:        elapsed,
				Attempts:        attempts,
			}, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrAllAttemptsFailed, attempts, lastErr)
	}
	return nil, fmt.Errorf("%w: no reachable server for %q or its fallbacks", ErrAllAttemptsFailed, selection.Model)
}

// adjustForComplexity nudges the ranked pick toward a tier that matches the
// task: hard tasks never land on a fast-tier model when a stronger one is
// available, and trivial tasks never burn a powerful one when a cheaper
// candidate exists.
func (s *Service) adjustForComplexity(candidates []scoring.Candidate, level models.ComplexityLevel) scoring.Candidate {
	best := candidates[0]
	bestTier := s.engine.TierOf(best.Model)

	if level.AtLeast(models.ComplexityVeryComplex) && bestTier == models.TierFast {
		for _, c := range candidates[1:] {
			if s.engine.TierOf(c.Model) != models.TierFast {
				return c
			}
		}
	}

	if level == models.ComplexityTrivial && bestTier == models.TierPowerful {
		for _, c := range candidates[1:] {
			if s.engine.TierOf(c.Model) != models.TierPowerful {
				return c
			}
		}
	}

	return best
}

// backoff computes the delay before the nth retry with up to 50% jitter
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// errorKind buckets an error for the tracker's breakdown
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, transport.ErrModelNotServed):
		return "model_rejected"
	case errors.Is(err, transport.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func containsModel(list []string, model string) bool {
	for _, m := range list {
		if m == model {
			return true
		}
	}
	return false
}
