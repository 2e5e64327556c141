package models

import "time"

// OrchestrationMetrics is a derived snapshot of system health. It is
// recomputed on a fixed tick and after every terminal task transition,
// never mutated independently.
type OrchestrationMetrics struct {
	// TotalTasks counts every task ever submitted.
	TotalTasks int `json:"total_tasks"`
	// CompletedTasks counts tasks that finished successfully.
	CompletedTasks int `json:"completed_tasks"`
	// FailedTasks counts tasks in terminal failure.
	FailedTasks int `json:"failed_tasks"`
	// AverageTaskTime is the mean actual duration in milliseconds over
	// completed tasks.
	AverageTaskTime float64 `json:"average_task_time"`
	// SystemLoad is the fraction of agents busy or overloaded, in [0,1].
	SystemLoad float64 `json:"system_load"`
	// AgentUtilization is in-flight tasks over total pool capacity, in [0,1].
	AgentUtilization float64 `json:"agent_utilization"`
	// NetworkEfficiency is completed tasks over total tasks, in [0,1].
	NetworkEfficiency float64 `json:"network_efficiency"`
	// QueueLength is the number of pending tasks awaiting assignment.
	QueueLength int `json:"queue_length"`
	// UpdatedAt is when this snapshot was computed.
	UpdatedAt time.Time `json:"updated_at"`
}
