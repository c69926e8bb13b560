package models

// QualityRequirement expresses the caller's speed/quality trade-off.
type QualityRequirement string

const (
	QualityFast     QualityRequirement = "fast"
	QualityBalanced QualityRequirement = "balanced"
	QualityHigh     QualityRequirement = "high"
)

// ScoreBreakdown exposes the components behind a selection's total score.
type ScoreBreakdown struct {
	Total       float64 `json:"total"`
	Capability  float64 `json:"capability"`
	Performance float64 `json:"performance"`
	Speed       float64 `json:"speed"`
	Quality     float64 `json:"quality"`
}

// Selection is the router's chosen (model, server) pair plus its
// justification and fallbacks. Constructed per request, never persisted.
type Selection struct {
	// Model is the chosen model name
	Model string `json:"model"`

	// ServerURL is the base URL of the chosen backend
	ServerURL string `json:"server_url"`

	// ServerName is the friendly name of the chosen backend
	ServerName string `json:"server_name"`

	// Tier is the coarse capability class of the chosen model, adjusted
	// for task complexity
	Tier Tier `json:"tier"`

	// Scores breaks down how the pick won
	Scores ScoreBreakdown `json:"scores"`

	// ComplexityLevel is the classified complexity of the task
	ComplexityLevel ComplexityLevel `json:"complexity_level"`

	// Reason summarizes which score components were strong
	Reason string `json:"reason"`

	// FallbackModels lists up to 3 next-ranked alternatives
	FallbackModels []string `json:"fallback_models"`

	// RecommendedTemperature comes from the complexity classifier
	RecommendedTemperature float64 `json:"recommended_temperature"`

	// RecommendedMaxTokens comes from the complexity classifier
	RecommendedMaxTokens int `json:"recommended_max_tokens"`
}

// BatchResult is the per-item outcome of a batch run. A batch always
// returns exactly one result per input item.
type BatchResult struct {
	// Index is the item's position in the input slice
	Index int `json:"index"`

	// Item is the original input item
	Item any `json:"original_item"`

	// Output is the worker's result when the item completed
	Output any `json:"output,omitempty"`

	// Success reports whether the worker completed without error
	Success bool `json:"success"`

	// Error describes the failure when Success is false
	Error string `json:"error,omitempty"`

	// Skipped is true when the circuit breaker rejected the item before
	// it was attempted
	Skipped bool `json:"skipped,omitempty"`
}
