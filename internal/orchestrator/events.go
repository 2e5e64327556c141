package orchestrator

import (
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskSubmitted indicates a task entered the registry.
	EventTaskSubmitted EventType = "task_submitted"
	// EventTaskAssigned indicates the scheduler bound agents to a task.
	EventTaskAssigned EventType = "task_assigned"
	// EventTaskStarted indicates execution began.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task finished successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed. Critical tasks may be
	// requeued after this event fires.
	EventTaskFailed EventType = "task_failed"
	// EventAgentSpawned indicates the scaling controller grew the pool.
	EventAgentSpawned EventType = "agent_spawned"
	// EventMetricsUpdated indicates a fresh metrics snapshot is available.
	EventMetricsUpdated EventType = "metrics_updated"
)

// Event is a point-in-time notification published to subscribers.
// Task, Agent, and Metrics are copies taken while the orchestrator lock
// was held; handlers may keep them without racing live state.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Task is a snapshot of the related task, if applicable.
	Task *models.Task
	// Agent is a snapshot of the related agent, if applicable.
	Agent *models.Agent
	// Metrics is a snapshot of system metrics, for metrics_updated events.
	Metrics *models.OrchestrationMetrics
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
