package profile

import (
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/upb/llm-router/models"
)

// defaultSizeBillions is assumed when a model name carries no size hint
const defaultSizeBillions = 7.0

// profileCacheSize bounds the memoization cache
const profileCacheSize = 512

// sizePattern matches size markers like "7b", "13B", "0.5b" in model names
var sizePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[bB]\b`)

// capabilityRule maps a name substring to an inferred capability score.
// Rules are data so they can be tested and swapped independently.
type capabilityRule struct {
	substring  string
	capability models.Capability
	score      float64
}

var capabilityRules = []capabilityRule{
	{"coder", models.CapabilityCodeGeneration, 0.9},
	{"code", models.CapabilityCodeGeneration, 0.85},
	{"starcoder", models.CapabilityCodeGeneration, 0.9},
	{"deepseek", models.CapabilityCodeGeneration, 0.8},
	{"vision", models.CapabilityVision, 0.9},
	{"llava", models.CapabilityVision, 0.9},
	{"bakllava", models.CapabilityVision, 0.85},
	{"qwen", models.CapabilityMultilingual, 0.85},
	{"aya", models.CapabilityMultilingual, 0.9},
	{"glm", models.CapabilityMultilingual, 0.8},
	{"yi", models.CapabilityMultilingual, 0.75},
	{"instruct", models.CapabilityGeneral, 0.75},
	{"chat", models.CapabilityGeneral, 0.75},
}

// Profiler derives static model profiles from model names alone. Pure and
// deterministic; results are memoized by full model name.
type Profiler struct {
	cache *lru.Cache[string, *models.ModelProfile]
}

// NewProfiler creates a profiler with a bounded memoization cache
func NewProfiler() *Profiler {
	cache, _ := lru.New[string, *models.ModelProfile](profileCacheSize)
	return &Profiler{cache: cache}
}

// Profile returns the capability profile for a model name, computing and
// caching it on first sight. No I/O is performed.
func (p *Profiler) Profile(name string) *models.ModelProfile {
	if cached, ok := p.cache.Get(name); ok {
		return cached
	}

	prof := compute(name)
	p.cache.Add(name, prof)
	return prof
}

// compute builds a profile from name heuristics. This is a best-effort
// seed for the scorer, not ground truth.
func compute(name string) *models.ModelProfile {
	lower := strings.ToLower(name)
	size := extractSize(lower)

	scores := map[models.Capability]float64{
		models.CapabilityGeneral: 0.6,
	}
	for _, rule := range capabilityRules {
		if strings.Contains(lower, rule.substring) && scores[rule.capability] < rule.score {
			scores[rule.capability] = rule.score
		}
	}

	// Large models get reasoning and factual boosts regardless of name
	if size >= 30 {
		if scores[models.CapabilityReasoning] < 0.85 {
			scores[models.CapabilityReasoning] = 0.85
		}
		if scores[models.CapabilityFactual] < 0.8 {
			scores[models.CapabilityFactual] = 0.8
		}
	} else {
		sizeScore := 0.3 + size/60
		if scores[models.CapabilityReasoning] < sizeScore {
			scores[models.CapabilityReasoning] = sizeScore
		}
	}

	speed := 1 - size/30
	if speed < 0.1 {
		speed = 0.1
	}
	quality := 0.3 + size/20
	if quality > 0.95 {
		quality = 0.95
	}

	return &models.ModelProfile{
		Name:              name,
		SizeBillionParams: size,
		CapabilityScores:  scores,
		BaseSpeedScore:    speed,
		BaseQualityScore:  quality,
	}
}

// extractSize pulls the parameter count in billions out of a lowercased
// model name, defaulting to a mid-size assumption.
func extractSize(lower string) float64 {
	matches := sizePattern.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return defaultSizeBillions
	}

	// Use the last match: names like "llama3-v2-70b" put the size at the end
	raw := matches[len(matches)-1][1]
	size, err := strconv.ParseFloat(raw, 64)
	if err != nil || size <= 0 {
		return defaultSizeBillions
	}
	return size
}
