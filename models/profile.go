package models

// Capability is a tagged competency of a model, scored 0..1.
type Capability string

const (
	CapabilityCodeGeneration Capability = "code_generation"
	CapabilityReasoning      Capability = "reasoning"
	CapabilityFactual        Capability = "factual"
	CapabilityMultilingual   Capability = "multilingual"
	CapabilityVision         Capability = "vision"
	CapabilitySummarization  Capability = "summarization"
	CapabilityGeneral        Capability = "general"
)

// ModelProfile is a static, name-derived estimate of what a model can do.
// Profiles are immutable once computed and only seed the scorer until real
// performance data accumulates.
type ModelProfile struct {
	// Name is the full model name as reported by the backend
	Name string `json:"name"`

	// SizeBillionParams is the parameter count estimated from the name
	SizeBillionParams float64 `json:"size_billion_params"`

	// CapabilityScores maps each inferred capability to a 0..1 score
	CapabilityScores map[Capability]float64 `json:"capability_scores"`

	// BaseSpeedScore is the size-derived speed prior (0..1)
	BaseSpeedScore float64 `json:"base_speed_score"`

	// BaseQualityScore is the size-derived quality prior (0..1)
	BaseQualityScore float64 `json:"base_quality_score"`
}

// CapabilityScore returns the profile's score for a capability, or a modest
// default when the capability was never inferred for this model.
func (p *ModelProfile) CapabilityScore(c Capability) float64 {
	if score, ok := p.CapabilityScores[c]; ok {
		return score
	}
	return 0.3
}
