package complexity

import (
	"regexp"

	"github.com/upb/llm-router/models"
)

// Classification heuristics live in data tables so they can be swapped or
// unit-tested independently of the scoring math.

// levelKeywords maps each complexity tier to its trigger keywords. Tiers
// are checked hardest-first; the highest-severity match sets the base
// level.
type levelEntry struct {
	level     models.ComplexityLevel
	baseScore float64
	keywords  []string
}

var levelTable = []levelEntry{
	{models.ComplexityExtreme, 9.5, []string{
		"e-commerce platform", "entire platform", "operating system",
		"compiler", "full saas", "production-ready system", "platform with",
	}},
	{models.ComplexityVeryComplex, 8, []string{
		"build a complete", "from scratch", "entire system", "full stack",
		"microservice architecture", "distributed system",
	}},
	{models.ComplexityComplex, 6, []string{
		"architecture", "design a system", "optimize", "concurrent",
		"scalable", "authentication system", "database schema",
	}},
	{models.ComplexityModerate, 4, []string{
		"implement", "refactor", "api endpoint", "integrate", "migrate",
		"parse", "algorithm",
	}},
	{models.ComplexitySimple, 2, []string{
		"write a function", "fix typo", "rename", "small script",
		"convert", "format", "one-liner",
	}},
	{models.ComplexityTrivial, 1, []string{
		"hi", "hello", "thanks", "what time", "yes or no",
	}},
}

// defaultLevel applies when no keyword matches
const defaultLevel = models.ComplexitySimple

// patternMultiplier bumps the score for structurally demanding requests
type patternMultiplier struct {
	pattern    *regexp.Regexp
	multiplier float64
}

var patternMultipliers = []patternMultiplier{
	{regexp.MustCompile(`\bgame\b`), 1.4},
	{regexp.MustCompile(`\bframework\b`), 1.4},
	{regexp.MustCompile(`\bplatform\b`), 1.4},
	{regexp.MustCompile(`\breal[- ]?time\b`), 1.3},
	{regexp.MustCompile(`\bmachine learning\b|\bneural\b`), 1.3},
	{regexp.MustCompile(`\bsecurity\b|\bencryption\b`), 1.2},
}

// conjunctionPattern counts words that signal multiple stacked
// requirements, matched on word boundaries so "then" never counts inside
// "authentication".
var conjunctionPattern = regexp.MustCompile(`\b(?:also|then|additionally|as well as|plus|after that|furthermore)\b`)

// listItemPattern matches bullet or numbered list items
var listItemPattern = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+`)

// taskTypeMultipliers weight the score by what kind of work is asked for
var taskTypeMultipliers = map[string]float64{
	"code":          1.3,
	"reasoning":     1.2,
	"general":       1.0,
	"translation":   0.8,
	"summarization": 0.7,
	"chat":          0.5,
}

// typeKeywords infer a task type when the caller declares none. Checked
// in order; first match wins.
type typeEntry struct {
	taskType string
	keywords []string
}

var typeTable = []typeEntry{
	{"code", []string{
		"function", "code", "implement", "bug", "compile", "class",
		"script", "api", "refactor", "debug", "build", "program",
	}},
	{"translation", []string{"translate", "translation"}},
	{"summarization", []string{"summarize", "summary", "tl;dr"}},
	{"reasoning", []string{"why", "explain", "prove", "analyze", "compare"}},
	{"chat", []string{"hi", "hello", "how are you", "chat"}},
}

// scoreThresholds map a final score back onto a level
func levelForScore(score float64) models.ComplexityLevel {
	switch {
	case score < 1.5:
		return models.ComplexityTrivial
	case score < 3:
		return models.ComplexitySimple
	case score < 5:
		return models.ComplexityModerate
	case score < 7:
		return models.ComplexityComplex
	case score < 9:
		return models.ComplexityVeryComplex
	default:
		return models.ComplexityExtreme
	}
}

// estimatedMinutes per level
var minutesTable = map[models.ComplexityLevel]int{
	models.ComplexityTrivial:     1,
	models.ComplexitySimple:      5,
	models.ComplexityModerate:    15,
	models.ComplexityComplex:     30,
	models.ComplexityVeryComplex: 60,
	models.ComplexityExtreme:     120,
}

// tokenBudgets per level
var tokenBudgets = map[models.ComplexityLevel]int{
	models.ComplexityTrivial:     256,
	models.ComplexitySimple:      512,
	models.ComplexityModerate:    1024,
	models.ComplexityComplex:     2048,
	models.ComplexityVeryComplex: 4096,
	models.ComplexityExtreme:     8192,
}

// tierTable maps levels to recommended model tiers
var tierTable = map[models.ComplexityLevel]models.Tier{
	models.ComplexityTrivial:     models.TierFast,
	models.ComplexitySimple:      models.TierFast,
	models.ComplexityModerate:    models.TierBalanced,
	models.ComplexityComplex:     models.TierBalanced,
	models.ComplexityVeryComplex: models.TierPowerful,
	models.ComplexityExtreme:     models.TierPowerful,
}
