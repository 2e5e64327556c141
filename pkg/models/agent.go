package models

import "time"

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent has no tasks in flight.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusBusy indicates the agent has tasks in flight but spare capacity.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusOverloaded indicates the agent is at its concurrency bound.
	AgentStatusOverloaded AgentStatus = "overloaded"
	// AgentStatusOffline indicates the agent is unreachable and unschedulable.
	AgentStatusOffline AgentStatus = "offline"
	// AgentStatusMaintenance indicates the agent is parked and unschedulable.
	AgentStatusMaintenance AgentStatus = "maintenance"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusBusy, AgentStatusOverloaded,
		AgentStatusOffline, AgentStatusMaintenance:
		return true
	default:
		return false
	}
}

// Schedulable reports whether an agent in this status may receive work.
func (s AgentStatus) Schedulable() bool {
	return s == AgentStatusIdle || s == AgentStatusBusy
}

// Performance tracks an agent's rolling execution record.
type Performance struct {
	// TasksCompleted counts terminal outcomes handled by this agent.
	TasksCompleted int `json:"tasks_completed"`
	// AverageCompletionTime is the mean duration in milliseconds over the
	// recent history window.
	AverageCompletionTime float64 `json:"average_completion_time"`
	// SuccessRate is the fraction of recent tasks that succeeded, in [0,1].
	SuccessRate float64 `json:"success_rate"`
	// Efficiency combines success rate and speed into one scheduling signal.
	Efficiency float64 `json:"efficiency"`
	// LastActive is when the agent last started or finished a task.
	LastActive time.Time `json:"last_active"`
}

// Resources holds approximate utilization gauges in [0,1].
type Resources struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Network float64 `json:"network"`
}

// Location is a display-only 2D coordinate for topology views.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HistoryEntry records one task outcome in an agent's learning log.
type HistoryEntry struct {
	// TaskType is the type of the task that produced this entry.
	TaskType string `json:"task_type"`
	// Duration is the observed execution time in milliseconds.
	Duration float64 `json:"duration"`
	// Success records the outcome.
	Success bool `json:"success"`
	// Timestamp is when the outcome was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Adaptation records one capability level change made by the learning controller.
type Adaptation struct {
	// Capability is the capability type that was adjusted.
	Capability CapabilityType `json:"capability"`
	// Delta is the applied level change after clamping.
	Delta float64 `json:"delta"`
	// Timestamp is when the adjustment happened.
	Timestamp time.Time `json:"timestamp"`
}

// LearningData holds the bounded outcome history and adaptation log
// the learning controller works from.
type LearningData struct {
	TaskHistory []HistoryEntry `json:"task_history,omitempty"`
	Adaptations []Adaptation   `json:"adaptations,omitempty"`
}

// Agent represents a capability-bearing worker in the pool.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the human-readable agent name.
	Name string `json:"name"`
	// Capabilities lists what the agent can do, in declaration order.
	Capabilities []Capability `json:"capabilities"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// CurrentTasks holds the IDs of tasks currently assigned to the agent.
	CurrentTasks []string `json:"current_tasks,omitempty"`
	// Performance is the rolling execution record.
	Performance Performance `json:"performance"`
	// Resources holds the agent's utilization gauges.
	Resources Resources `json:"resources"`
	// Location is display-only topology data.
	Location Location `json:"location"`
	// Connections lists connected agent IDs. Display-only.
	Connections []string `json:"connections,omitempty"`
	// Learning holds the outcome history and adaptation log.
	Learning LearningData `json:"learning"`
}

// MaxConcurrentTasks returns the agent's concurrency bound: the maximum
// MaxConcurrentTasks across its capabilities, never less than 1.
func (a *Agent) MaxConcurrentTasks() int {
	max := 1
	for _, c := range a.Capabilities {
		if c.MaxConcurrentTasks > max {
			max = c.MaxConcurrentTasks
		}
	}
	return max
}

// HasCapacity reports whether the agent can take one more task.
func (a *Agent) HasCapacity() bool {
	return len(a.CurrentTasks) < a.MaxConcurrentTasks()
}

// Capability returns the agent's capability of the given type, or nil.
func (a *Agent) Capability(t CapabilityType) *Capability {
	for i := range a.Capabilities {
		if a.Capabilities[i].Type == t {
			return &a.Capabilities[i]
		}
	}
	return nil
}

// RecomputeStatus derives Status from the current task load.
// Offline and maintenance are sticky: they are only left via an explicit
// status change, never by load transitions.
func (a *Agent) RecomputeStatus() {
	if a.Status == AgentStatusOffline || a.Status == AgentStatusMaintenance {
		return
	}
	switch n := len(a.CurrentTasks); {
	case n == 0:
		a.Status = AgentStatusIdle
	case n >= a.MaxConcurrentTasks():
		a.Status = AgentStatusOverloaded
	default:
		a.Status = AgentStatusBusy
	}
}

// DropTask removes a task ID from CurrentTasks. Unknown IDs are ignored.
func (a *Agent) DropTask(taskID string) {
	for i, id := range a.CurrentTasks {
		if id == taskID {
			a.CurrentTasks = append(a.CurrentTasks[:i], a.CurrentTasks[i+1:]...)
			return
		}
	}
}
