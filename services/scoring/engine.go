package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/discovery"
	"github.com/upb/llm-router/services/performance"
	"github.com/upb/llm-router/services/profile"
	"go.uber.org/zap"
)

// ErrNoCandidates is returned when no server serves any model at all.
// This is the only way selection itself fails.
var ErrNoCandidates = errors.New("no model candidates available on any server")

// weightSet is one linear combination of score components
type weightSet struct {
	capability  float64
	performance float64
	speed       float64
	quality     float64
}

// balancedWeights is the default combination
var balancedWeights = weightSet{capability: 0.35, performance: 0.30, speed: 0.15, quality: 0.20}

// speedWeights applies when the caller prefers fast answers
var speedWeights = weightSet{capability: 0.25, performance: 0.20, speed: 0.40, quality: 0.15}

// preferredModelBonus multiplies the total of an explicitly requested model
const preferredModelBonus = 1.15

// adjustmentRule applies a multiplicative bonus or penalty to models whose
// name matches a substring on a given task type. Kept as data so the
// known-mismatch list can be tuned without touching the math.
type adjustmentRule struct {
	nameSubstring string
	taskType      string // "" matches any type
	exceptType    string // rule is skipped for this type
	multiplier    float64
	note          string
}

var adjustmentRules = []adjustmentRule{
	// Multilingual-tuned models drift languages on non-code prose tasks
	{nameSubstring: "qwen", exceptType: "code", multiplier: 0.85, note: "language drift risk"},
	{nameSubstring: "glm", exceptType: "code", multiplier: 0.9, note: "language drift risk"},
	// Code-tuned models suit code tasks
	{nameSubstring: "coder", taskType: "code", multiplier: 1.1, note: "code-tuned"},
	{nameSubstring: "codellama", taskType: "code", multiplier: 1.1, note: "code-tuned"},
	// Code-tuned models are weak general conversationalists
	{nameSubstring: "coder", taskType: "chat", multiplier: 0.8, note: "code-tuned on chat"},
}

// requiredCapabilities derives the capability set a task type demands
var requiredCapabilities = map[string][]models.Capability{
	"code":          {models.CapabilityCodeGeneration},
	"reasoning":     {models.CapabilityReasoning, models.CapabilityFactual},
	"translation":   {models.CapabilityMultilingual},
	"summarization": {models.CapabilitySummarization, models.CapabilityGeneral},
	"vision":        {models.CapabilityVision},
	"chat":          {models.CapabilityGeneral},
	"general":       {models.CapabilityGeneral},
}

// Config holds scoring tuning knobs
type Config struct {
	// QualityFloor drops candidates whose quality prior is below it,
	// unless the caller prefers speed
	QualityFloor float64

	// MinPerformanceSamples gates tracked performance vs. the prior
	MinPerformanceSamples int
}

// DefaultConfig returns sensible scoring defaults
func DefaultConfig() Config {
	return Config{
		QualityFloor:          0.45,
		MinPerformanceSamples: 3,
	}
}

// Request describes one selection problem
type Request struct {
	Task               string
	TaskType           string
	PreferredModel     string
	QualityRequirement models.QualityRequirement
}

// Candidate is one scored (model, server) pair
type Candidate struct {
	Model  string
	Server models.Backend
	Scores models.ScoreBreakdown
	Reason string
}

// Engine ranks every (available server, model) pair for a request
type Engine struct {
	discovery *discovery.Service
	profiler  *profile.Profiler
	tracker   *performance.Tracker
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates a scoring engine
func NewEngine(disc *discovery.Service, profiler *profile.Profiler, tracker *performance.Tracker, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		discovery: disc,
		profiler:  profiler,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

// SelectModel scores all candidates and returns them ranked best-first.
// It errors only when zero candidates exist anywhere.
func (e *Engine) SelectModel(ctx context.Context, req Request) ([]Candidate, error) {
	index := e.discovery.Index(ctx)
	if len(index) == 0 {
		return nil, ErrNoCandidates
	}

	taskType := req.TaskType
	if taskType == "" {
		taskType = "general"
	}
	required := requiredCapabilities[taskType]
	if len(required) == 0 {
		required = requiredCapabilities["general"]
	}

	preferSpeed := req.QualityRequirement == models.QualityFast
	weights := balancedWeights
	if preferSpeed {
		weights = speedWeights
	}

	candidates := make([]Candidate, 0, len(index))
	for model, servers := range index {
		prof := e.profiler.Profile(model)

		// Quality floor: silently excluded, not an error
		if prof.BaseQualityScore < e.cfg.QualityFloor && !preferSpeed {
			continue
		}

		for _, server := range servers {
			c := e.score(model, server, prof, required, taskType, weights)

			if req.PreferredModel != "" && matchesPreferred(model, req.PreferredModel) {
				c.Scores.Total *= preferredModelBonus
			}

			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %d models all below quality floor", ErrNoCandidates, len(index))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Scores.Total > candidates[j].Scores.Total
	})

	e.logger.Debug("model selection ranked",
		zap.String("task_type", taskType),
		zap.Int("candidates", len(candidates)),
		zap.String("best_model", candidates[0].Model),
		zap.String("best_server", candidates[0].Server.Name))

	return candidates, nil
}

// TierOf buckets a model into a coarse capability tier by parameter count
func (e *Engine) TierOf(model string) models.Tier {
	size := e.profiler.Profile(model).SizeBillionParams
	switch {
	case size < 8:
		return models.TierFast
	case size < 35:
		return models.TierBalanced
	default:
		return models.TierPowerful
	}
}

// score computes one candidate's breakdown
func (e *Engine) score(model string, server models.Backend, prof *models.ModelProfile, required []models.Capability, taskType string, weights weightSet) Candidate {
	var capSum float64
	for _, cap := range required {
		capSum += prof.CapabilityScore(cap)
	}
	capability := capSum / float64(len(required))

	// Tracked performance once enough samples exist, quality-prior
	// fallback before that
	var perfScore float64
	if tracked, ok := e.tracker.Score(server.Kind, model, e.cfg.MinPerformanceSamples); ok {
		perfScore = tracked / 100
	} else {
		perfScore = prof.BaseQualityScore * 0.8
	}

	speed := prof.BaseSpeedScore * latencyFactor(server.ResponseTime)
	quality := prof.BaseQualityScore

	total := weights.capability*capability +
		weights.performance*perfScore +
		weights.speed*speed +
		weights.quality*quality

	// Known model/task-type adjustments
	for _, rule := range adjustmentRules {
		if !strings.Contains(strings.ToLower(model), rule.nameSubstring) {
			continue
		}
		if rule.taskType != "" && rule.taskType != taskType {
			continue
		}
		if rule.exceptType != "" && rule.exceptType == taskType {
			continue
		}
		total *= rule.multiplier
	}

	scores := models.ScoreBreakdown{
		Total:       total,
		Capability:  capability,
		Performance: perfScore,
		Speed:       speed,
		Quality:     quality,
	}

	return Candidate{
		Model:  model,
		Server: server,
		Scores: scores,
		Reason: buildReason(scores),
	}
}

// latencyFactor discounts the speed prior by measured probe latency
func latencyFactor(rt time.Duration) float64 {
	factor := 1 - rt.Seconds()/2
	if factor < 0.3 {
		return 0.3
	}
	return factor
}

// matchesPreferred accepts exact names and bare-name prefixes, so a
// preference for "llama3" matches "llama3:8b".
func matchesPreferred(model, preferred string) bool {
	if model == preferred {
		return true
	}
	return strings.HasPrefix(model, preferred+":")
}

// buildReason summarizes which components carried the pick
func buildReason(s models.ScoreBreakdown) string {
	var strong []string
	if s.Capability >= 0.7 {
		strong = append(strong, "strong capability fit")
	}
	if s.Performance >= 0.7 {
		strong = append(strong, "proven performance")
	}
	if s.Speed >= 0.7 {
		strong = append(strong, "fast responses")
	}
	if s.Quality >= 0.7 {
		strong = append(strong, "high quality prior")
	}
	if len(strong) == 0 {
		return "best available balance of capability, performance and speed"
	}
	return strings.Join(strong, ", ")
}
