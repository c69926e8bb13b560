package models

import "time"

// Backend represents a single model-serving endpoint (local or remote).
// Instances are owned by the discovery service; everyone else receives
// copies and must treat them as read-only snapshots.
type Backend struct {
	// URL is the base URL of the backend (e.g., "http://localhost:11434")
	URL string `json:"url"`

	// Name is the operator-friendly identifier for the backend
	Name string `json:"name"`

	// PriorityTier orders backends when several serve the same model.
	// Lower values win.
	PriorityTier int `json:"priority_tier"`

	// Kind groups backends for metrics purposes ("local" or "remote")
	Kind string `json:"kind"`

	// AvailableModels is the model list reported by the last successful probe
	AvailableModels []string `json:"available_models"`

	// IsAvailable reports whether the last probe succeeded
	IsAvailable bool `json:"is_available"`

	// LastCheckedAt is when the backend was last probed
	LastCheckedAt time.Time `json:"last_checked_at"`

	// ResponseTime is the round-trip time of the last successful probe
	ResponseTime time.Duration `json:"response_time"`
}

// Clone returns a deep copy safe to hand out to callers.
func (b *Backend) Clone() Backend {
	c := *b
	c.AvailableModels = append([]string(nil), b.AvailableModels...)
	return c
}

// HasModel reports whether the backend currently serves the given model.
func (b *Backend) HasModel(model string) bool {
	for _, m := range b.AvailableModels {
		if m == model {
			return true
		}
	}
	return false
}
