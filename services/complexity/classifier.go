package complexity

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// cacheSize bounds the classification cache
const cacheSize = 256

// cacheKeyPrefixLen is how much of the task text keys the cache
const cacheKeyPrefixLen = 100

// keywordMatcher is a level or type keyword compiled to whole-word form,
// so "hi" never matches inside "this".
type keywordMatcher struct {
	re *regexp.Regexp
}

func compileKeyword(kw string) keywordMatcher {
	return keywordMatcher{re: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)}
}

func (m keywordMatcher) matches(text string) bool {
	return m.re.MatchString(text)
}

// Classifier maps free-text tasks to complexity tiers and sampling
// recommendations. Classification is a deterministic pipeline over the
// data tables in tables.go; results are cached by task prefix.
type Classifier struct {
	cache         *lru.Cache[string, *models.ComplexityResult]
	levelMatchers [][]keywordMatcher // parallel to levelTable
	typeMatchers  [][]keywordMatcher // parallel to typeTable
	logger        *zap.Logger
}

// NewClassifier creates a classifier with compiled keyword tables
func NewClassifier(logger *zap.Logger) *Classifier {
	cache, _ := lru.New[string, *models.ComplexityResult](cacheSize)

	c := &Classifier{
		cache:  cache,
		logger: logger,
	}

	c.levelMatchers = make([][]keywordMatcher, len(levelTable))
	for i, entry := range levelTable {
		for _, kw := range entry.keywords {
			c.levelMatchers[i] = append(c.levelMatchers[i], compileKeyword(kw))
		}
	}

	c.typeMatchers = make([][]keywordMatcher, len(typeTable))
	for i, entry := range typeTable {
		for _, kw := range entry.keywords {
			c.typeMatchers[i] = append(c.typeMatchers[i], compileKeyword(kw))
		}
	}

	return c
}

// Classify analyzes a task. declaredType and model may be empty; the type
// is inferred from keywords when not declared, and model only widens the
// cache key.
func (c *Classifier) Classify(task, declaredType, model string) *models.ComplexityResult {
	key := cacheKey(task, declaredType, model)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	result := c.classify(task, declaredType)
	c.cache.Add(key, result)
	return result
}

// InferType returns the task type inferred from keywords, defaulting to
// "general".
func (c *Classifier) InferType(task string) string {
	lower := strings.ToLower(task)
	for i, entry := range typeTable {
		for _, m := range c.typeMatchers[i] {
			if m.matches(lower) {
				return entry.taskType
			}
		}
	}
	return "general"
}

// classify runs the full pipeline: base level from keywords, independent
// multipliers, clamp, re-map, recommendations.
func (c *Classifier) classify(task, declaredType string) *models.ComplexityResult {
	lower := strings.ToLower(task)

	taskType := declaredType
	if taskType == "" {
		taskType = c.InferType(task)
	}

	base := c.baseScore(lower)

	score := base
	score *= c.patternMultiplier(lower)
	score *= lengthMultiplier(task)
	score *= requirementsMultiplier(lower)
	score *= typeMultiplier(taskType)

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	level := levelForScore(score)

	result := &models.ComplexityResult{
		Level:                  level,
		Score:                  score,
		EstimatedMinutes:       minutesTable[level],
		TaskType:               taskType,
		RecommendedTier:        tierTable[level],
		RecommendedTemperature: recommendedTemperature(taskType, level),
		RecommendedMaxTokens:   tokenBudgets[level],
	}

	if level.AtLeast(models.ComplexityModerate) {
		result.WarningMessage = fmt.Sprintf(
			"task classified as %s (score %.1f); expect roughly %d minutes and consider splitting it into smaller steps",
			level, score, result.EstimatedMinutes)
	}

	return result
}

// baseScore finds the highest-severity keyword match across ordered tiers
func (c *Classifier) baseScore(lower string) float64 {
	for i, entry := range levelTable {
		for _, m := range c.levelMatchers[i] {
			if m.matches(lower) {
				return entry.baseScore
			}
		}
	}

	for _, entry := range levelTable {
		if entry.level == defaultLevel {
			return entry.baseScore
		}
	}
	return 2
}

// patternMultiplier multiplies in every matching structural pattern
func (c *Classifier) patternMultiplier(lower string) float64 {
	mult := 1.0
	for _, p := range patternMultipliers {
		if p.pattern.MatchString(lower) {
			mult *= p.multiplier
		}
	}
	return mult
}

// lengthMultiplier skews longer prompts harder
func lengthMultiplier(task string) float64 {
	switch n := len(task); {
	case n > 800:
		return 1.4
	case n > 400:
		return 1.2
	case n < 40:
		return 0.9
	default:
		return 1.0
	}
}

// requirementsMultiplier counts list items and conjunction words
func requirementsMultiplier(lower string) float64 {
	count := len(listItemPattern.FindAllString(lower, -1))
	count += len(conjunctionPattern.FindAllString(lower, -1))

	switch {
	case count >= 5:
		return 1.5
	case count >= 3:
		return 1.3
	case count >= 1:
		return 1.1
	default:
		return 1.0
	}
}

// typeMultiplier weights by task type, defaulting to neutral
func typeMultiplier(taskType string) float64 {
	if mult, ok := taskTypeMultipliers[taskType]; ok {
		return mult
	}
	return 1.0
}

// recommendedTemperature is lower for code and for hard tasks
func recommendedTemperature(taskType string, level models.ComplexityLevel) float64 {
	if taskType == "code" {
		return 0.2
	}
	if level.AtLeast(models.ComplexityComplex) {
		return 0.3
	}
	if taskType == "chat" {
		return 0.8
	}
	return 0.7
}

// cacheKey builds the bounded cache key
func cacheKey(task, declaredType, model string) string {
	prefix := task
	if len(prefix) > cacheKeyPrefixLen {
		prefix = prefix[:cacheKeyPrefixLen]
	}
	return prefix + "|" + declaredType + "|" + model
}
