package orchestrator

import (
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// Learning constants. Gains are asymmetric: proficiency builds slowly and
// erodes even more slowly, so a single failure never undoes a streak.
const (
	// successLevelDelta is the capability gain per successful outcome.
	successLevelDelta = 0.01
	// failureLevelDelta is the capability loss per failed outcome.
	failureLevelDelta = -0.005
	// performanceWindow is how many recent history entries feed the
	// success rate and average completion time.
	performanceWindow = 10
	// defaultHistoryLimit bounds the per-agent task history log.
	defaultHistoryLimit = 50
)

// LearningController adjusts agent capability levels from task outcomes
// and maintains the rolling performance figures the scheduler scores on.
// It runs under the orchestrator lock.
type LearningController struct {
	// historyLimit bounds each agent's task history.
	historyLimit int
}

// NewLearningController creates a controller with the given history bound.
// A non-positive limit falls back to the default.
func NewLearningController(historyLimit int) *LearningController {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &LearningController{historyLimit: historyLimit}
}

// RecordOutcome applies one task outcome to one assigned agent: appends
// to the bounded history, nudges the levels of every required capability,
// and recomputes the rolling performance window.
func (lc *LearningController) RecordOutcome(agent *models.Agent, task *models.Task, success bool, duration time.Duration, now time.Time) {
	entry := models.HistoryEntry{
		TaskType:  task.Type,
		Duration:  float64(duration.Milliseconds()),
		Success:   success,
		Timestamp: now,
	}
	agent.Learning.TaskHistory = append(agent.Learning.TaskHistory, entry)
	if len(agent.Learning.TaskHistory) > lc.historyLimit {
		agent.Learning.TaskHistory = agent.Learning.TaskHistory[len(agent.Learning.TaskHistory)-lc.historyLimit:]
	}

	delta := successLevelDelta
	if !success {
		delta = failureLevelDelta
	}
	for _, req := range task.RequiredCapabilities {
		lc.adjustCapability(agent, req, delta, now)
	}

	lc.recomputePerformance(agent)
	agent.Performance.LastActive = now
}

// adjustCapability applies a clamped level change and records an
// adaptation entry only when the level actually moved.
func (lc *LearningController) adjustCapability(agent *models.Agent, t models.CapabilityType, delta float64, now time.Time) {
	c := agent.Capability(t)
	if c == nil {
		return
	}
	next := models.ClampLevel(c.Level + delta)
	applied := next - c.Level
	if applied == 0 {
		return
	}
	c.Level = next
	agent.Learning.Adaptations = append(agent.Learning.Adaptations, models.Adaptation{
		Capability: t,
		Delta:      applied,
		Timestamp:  now,
	})
}

// recomputePerformance derives SuccessRate, AverageCompletionTime, and
// Efficiency from the last performanceWindow history entries. Efficiency
// rewards success and penalizes runs slower than one second.
func (lc *LearningController) recomputePerformance(agent *models.Agent) {
	history := agent.Learning.TaskHistory
	if len(history) == 0 {
		return
	}
	if len(history) > performanceWindow {
		history = history[len(history)-performanceWindow:]
	}

	successes := 0
	var durationSum float64
	for _, e := range history {
		if e.Success {
			successes++
		}
		durationSum += e.Duration
	}

	perf := &agent.Performance
	perf.SuccessRate = float64(successes) / float64(len(history))
	perf.AverageCompletionTime = durationSum / float64(len(history))

	denom := perf.AverageCompletionTime / 1000
	if denom < 1 {
		denom = 1
	}
	perf.Efficiency = perf.SuccessRate * (1 / denom)
}
