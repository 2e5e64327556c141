package models

// CapabilityType identifies a kind of work an agent can perform.
// The set is open: rosters may declare any type, and tasks reference
// capabilities by the same names.
type CapabilityType string

// Well-known capability types used by the default roster and the
// simulation driver. Nothing in the orchestrator is restricted to these.
const (
	CapabilityNLP      CapabilityType = "nlp"
	CapabilityQuantum  CapabilityType = "quantum"
	CapabilityVision   CapabilityType = "vision"
	CapabilityCodegen  CapabilityType = "codegen"
	CapabilityAnalysis CapabilityType = "analysis"
)

// Capability levels are bounded to this range. The learning controller
// clamps every adjustment to it.
const (
	MinCapabilityLevel = 1.0
	MaxCapabilityLevel = 10.0
)

// Capability describes one typed skill an agent offers.
type Capability struct {
	// Type is the kind of work this capability covers.
	Type CapabilityType `json:"type" yaml:"type"`
	// Level is the proficiency in [1,10]. Only the learning controller
	// mutates it after registration.
	Level float64 `json:"level" yaml:"level"`
	// Specializations are free-form refinements of the type.
	Specializations []string `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	// ResourceCost is the nominal resource price of exercising this capability.
	ResourceCost float64 `json:"resource_cost" yaml:"resource_cost"`
	// MaxConcurrentTasks is how many tasks this capability can serve at once.
	MaxConcurrentTasks int `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
}

// ClampLevel returns level forced into the valid capability range.
func ClampLevel(level float64) float64 {
	if level < MinCapabilityLevel {
		return MinCapabilityLevel
	}
	if level > MaxCapabilityLevel {
		return MaxCapabilityLevel
	}
	return level
}

// DefaultSpecializations returns the stock specializations assigned to
// agents spawned for a capability type during scale-up.
func DefaultSpecializations(t CapabilityType) []string {
	switch t {
	case CapabilityNLP:
		return []string{"summarization", "classification"}
	case CapabilityQuantum:
		return []string{"annealing", "circuit-synthesis"}
	case CapabilityVision:
		return []string{"detection", "segmentation"}
	case CapabilityCodegen:
		return []string{"refactoring", "test-generation"}
	case CapabilityAnalysis:
		return []string{"statistics", "forecasting"}
	default:
		return []string{"general"}
	}
}
