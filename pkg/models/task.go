package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and unassigned.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates the scheduler has bound agents to the task.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusProcessing indicates execution has started.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusProcessing,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is an end state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskPriority represents how urgent a task is.
type TaskPriority string

const (
	// PriorityLow is background work.
	PriorityLow TaskPriority = "low"
	// PriorityMedium is the default priority.
	PriorityMedium TaskPriority = "medium"
	// PriorityHigh is expedited work.
	PriorityHigh TaskPriority = "high"
	// PriorityCritical is must-complete work; failures are retried.
	PriorityCritical TaskPriority = "critical"
)

// Valid returns true if the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Weight returns a numeric rank for display ordering. Higher is more urgent.
func (p TaskPriority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Task represents a unit of work submitted to the orchestrator.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Type is the kind of work, matched against history and display.
	Type string `json:"type"`
	// Priority is the urgency of the task.
	Priority TaskPriority `json:"priority"`
	// Complexity is the difficulty in [1,10]; agents need capability
	// levels at or above it.
	Complexity float64 `json:"complexity"`
	// RequiredCapabilities lists the capability types an agent must offer.
	// Must be non-empty.
	RequiredCapabilities []CapabilityType `json:"required_capabilities"`
	// Payload is opaque task data carried through unchanged.
	Payload map[string]any `json:"payload,omitempty"`
	// Dependencies lists task IDs this task depends on. Recorded for
	// external consumers only; scheduling does not gate on them.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// AssignedAgents holds the IDs of agents bound to this task.
	AssignedAgents []string `json:"assigned_agents,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// EstimatedDuration is the projected execution time.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// ActualDuration is the observed execution time, set on completion.
	ActualDuration time.Duration `json:"actual_duration,omitempty"`
	// RetryCount is how many times a critical failure has been requeued.
	RetryCount int `json:"retry_count,omitempty"`
}

// TaskSpec is the caller-supplied portion of a task. The orchestrator
// assigns ID, status, timestamps, and agent bindings.
type TaskSpec struct {
	// Type is the kind of work.
	Type string `json:"type"`
	// Priority defaults to medium when empty.
	Priority TaskPriority `json:"priority,omitempty"`
	// Complexity is clamped to [1,10]; zero defaults to 1.
	Complexity float64 `json:"complexity"`
	// RequiredCapabilities must be non-empty.
	RequiredCapabilities []CapabilityType `json:"required_capabilities"`
	// Payload is opaque task data.
	Payload map[string]any `json:"payload,omitempty"`
	// Dependencies are recorded but not enforced.
	Dependencies []string `json:"dependencies,omitempty"`
}
