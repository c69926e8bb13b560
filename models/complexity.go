package models

// ComplexityLevel buckets how demanding a task is.
type ComplexityLevel string

const (
	ComplexityTrivial     ComplexityLevel = "trivial"
	ComplexitySimple      ComplexityLevel = "simple"
	ComplexityModerate    ComplexityLevel = "moderate"
	ComplexityComplex     ComplexityLevel = "complex"
	ComplexityVeryComplex ComplexityLevel = "very_complex"
	ComplexityExtreme     ComplexityLevel = "extreme"
)

// complexityRank orders levels from easiest to hardest.
var complexityRank = map[ComplexityLevel]int{
	ComplexityTrivial:     0,
	ComplexitySimple:      1,
	ComplexityModerate:    2,
	ComplexityComplex:     3,
	ComplexityVeryComplex: 4,
	ComplexityExtreme:     5,
}

// AtLeast reports whether l is as hard as or harder than other.
func (l ComplexityLevel) AtLeast(other ComplexityLevel) bool {
	return complexityRank[l] >= complexityRank[other]
}

// Tier is a coarse model-capability class used for quick routing decisions.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierPowerful Tier = "powerful"
)

// ComplexityResult is the classifier's verdict for a task. It is a pure
// function of the task text plus optional declared type.
type ComplexityResult struct {
	// Level is the final complexity bucket after multipliers
	Level ComplexityLevel `json:"level"`

	// Score is the raw complexity score clamped to [0,10]
	Score float64 `json:"score"`

	// EstimatedMinutes is a rough completion-time estimate
	EstimatedMinutes int `json:"estimated_minutes"`

	// TaskType is the declared or inferred task type
	TaskType string `json:"task_type"`

	// RecommendedTier suggests a model class for the task
	RecommendedTier Tier `json:"recommended_tier"`

	// RecommendedTemperature is the suggested sampling temperature
	RecommendedTemperature float64 `json:"recommended_temperature"`

	// RecommendedMaxTokens is the suggested generation budget
	RecommendedMaxTokens int `json:"recommended_max_tokens"`

	// WarningMessage is set for levels above simple
	WarningMessage string `json:"warning_message,omitempty"`
}
