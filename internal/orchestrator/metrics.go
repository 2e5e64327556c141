package orchestrator

import (
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// computeMetrics derives a fresh metrics snapshot from the pool and
// registry. Callers hold the orchestrator lock; the result is a value,
// never mutated after computation.
func computeMetrics(pool *AgentPool, registry *TaskRegistry, now time.Time) models.OrchestrationMetrics {
	total, completed, failed := registry.Counts()

	m := models.OrchestrationMetrics{
		TotalTasks:      total,
		CompletedTasks:  completed,
		FailedTasks:     failed,
		AverageTaskTime: registry.AverageCompletedMillis(),
		SystemLoad:      pool.SystemLoad(),
		QueueLength:     registry.QueueLength(),
		UpdatedAt:       now,
	}

	if capacity, used := pool.Capacity(); capacity > 0 {
		m.AgentUtilization = float64(used) / float64(capacity)
	}
	if total > 0 {
		m.NetworkEfficiency = float64(completed) / float64(total)
	}

	return m
}
