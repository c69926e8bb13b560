package models

import "time"

// ResourceLevel is a coarse bucket summarizing available compute.
type ResourceLevel string

const (
	ResourceMinimal ResourceLevel = "minimal"
	ResourceLow     ResourceLevel = "low"
	ResourceMedium  ResourceLevel = "medium"
	ResourceHigh    ResourceLevel = "high"
	ResourceMaximum ResourceLevel = "maximum"
)

// ResourceSnapshot describes the compute available to the router at a point
// in time. Recomputed on a TTL by the resource estimator; read-only to
// everyone else.
type ResourceSnapshot struct {
	// Level is the coarse resource bucket
	Level ResourceLevel `json:"level"`

	// GPUCount is the number of usable GPUs
	GPUCount int `json:"gpu_count"`

	// TotalGPUMemoryGB sums VRAM across GPUs
	TotalGPUMemoryGB float64 `json:"total_gpu_memory_gb"`

	// CPUCores is the logical core count
	CPUCores int `json:"cpu_cores"`

	// TotalRAMGB is the total system memory
	TotalRAMGB float64 `json:"total_ram_gb"`

	// EstimatedCapacity is the parallel-request budget derived from the
	// hardware above
	EstimatedCapacity int `json:"estimated_capacity"`

	// CollectedAt is when the snapshot was computed
	CollectedAt time.Time `json:"collected_at"`
}
