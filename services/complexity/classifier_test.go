package complexity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

func TestClassifySimpleCodeTask(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	result := c.Classify("write a function that adds two numbers", "", "")

	assert.Equal(t, models.ComplexitySimple, result.Level)
	assert.Equal(t, "code", result.TaskType)
	assert.Empty(t, result.WarningMessage)
	assert.Equal(t, models.TierFast, result.RecommendedTier)
	assert.Equal(t, 0.2, result.RecommendedTemperature, "code tasks get a low temperature")
}

func TestClassifyExtremeTask(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	result := c.Classify("build a complete e-commerce platform with payments and admin dashboard", "", "")

	assert.Equal(t, models.ComplexityExtreme, result.Level)
	assert.Greater(t, result.EstimatedMinutes, 30)
	assert.NotEmpty(t, result.WarningMessage)
	assert.Equal(t, models.TierPowerful, result.RecommendedTier)
	assert.Equal(t, 10.0, result.Score, "score clamps at 10")
}

func TestClassifyTrivialGreeting(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	result := c.Classify("hello", "", "")
	assert.Equal(t, models.ComplexityTrivial, result.Level)
	assert.Equal(t, "chat", result.TaskType)
}

func TestShortKeywordsMatchWholeWordsOnly(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	// "this" contains "hi" but must not classify as a greeting
	result := c.Classify("refactor this parser module for readability", "", "")
	assert.NotEqual(t, models.ComplexityTrivial, result.Level)
}

func TestDeclaredTypeOverridesInference(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	result := c.Classify("write a function that adds two numbers", "chat", "")
	assert.Equal(t, "chat", result.TaskType)
}

func TestScoreClampedToRange(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	long := strings.Repeat("build a complete distributed real-time machine learning platform framework game; also ", 20)
	result := c.Classify(long, "code", "")

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 10.0)
	assert.Equal(t, models.ComplexityExtreme, result.Level)
}

func TestRequirementsMultiplier(t *testing.T) {
	flat := requirementsMultiplier("implement a parser")
	stacked := requirementsMultiplier("implement a parser, also add tests, then write docs, additionally benchmark it")

	assert.Equal(t, 1.0, flat)
	assert.Greater(t, stacked, flat)
}

func TestConjunctionDoesNotMatchInsideWords(t *testing.T) {
	// "authentication" contains "then" but is a single requirement
	assert.Equal(t, 1.0, requirementsMultiplier("design an authentication flow"))
}

func TestListItemsCountAsRequirements(t *testing.T) {
	task := "implement the following:\n- parse input\n- validate schema\n- emit report\n- add metrics\n- wire alerts"
	assert.Equal(t, 1.5, requirementsMultiplier(strings.ToLower(task)))
}

func TestClassifyDeterministicAndCached(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	first := c.Classify("implement a parser for config files", "", "llama3:8b")
	second := c.Classify("implement a parser for config files", "", "llama3:8b")
	assert.Same(t, first, second, "cache hit expected")

	fresh := NewClassifier(zap.NewNop()).Classify("implement a parser for config files", "", "llama3:8b")
	require.NotNil(t, fresh)
	assert.Equal(t, *first, *fresh, "classification must be deterministic")
}

func TestInferType(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	tests := []struct {
		task     string
		expected string
	}{
		{"debug the crashing script", "code"},
		{"translate this to spanish", "translation"},
		{"summarize the meeting notes", "summarization"},
		{"explain why the sky is blue", "reasoning"},
		{"good morning everyone", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.InferType(tt.task))
		})
	}
}

func TestWarningOnlyAboveSimple(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	assert.Empty(t, c.Classify("rename this variable", "", "").WarningMessage)
	assert.NotEmpty(t, c.Classify("implement a streaming parser with backpressure and concurrent workers", "", "").WarningMessage)
}
