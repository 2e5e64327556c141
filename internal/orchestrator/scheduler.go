package orchestrator

import (
	"github.com/lwestin/taskhive/pkg/models"
)

// Scoring weights for candidate ranking. Capability fit dominates, then
// track record, then current load, then resource headroom.
const (
	weightCapabilityMatch  = 0.4
	weightPerformance      = 0.3
	weightLoadInverse      = 0.2
	weightResourceHeadroom = 0.1
)

// resourceCeiling is the utilization level an agent may not cross when
// taking on a task of a given complexity.
const resourceCeiling = 0.9

// Scheduler matches pending tasks to eligible agents. It is a pure
// decision component: callers apply its choices under the orchestrator
// lock, so one scheduling pass at a time touches pool state.
type Scheduler struct {
	pool *AgentPool
}

// NewScheduler creates a Scheduler over the given pool.
func NewScheduler(pool *AgentPool) *Scheduler {
	return &Scheduler{pool: pool}
}

// Candidates returns the agents eligible for the task, in pool order.
// An agent qualifies when it offers every required capability at a level
// covering the task's complexity, has a spare concurrency slot, and has
// resource headroom for the projected cost.
func (s *Scheduler) Candidates(task *models.Task) []*models.Agent {
	var out []*models.Agent
	for _, a := range s.pool.List() {
		if s.eligible(a, task) {
			out = append(out, a)
		}
	}
	return out
}

// eligible applies the three candidate filters from the matching algorithm.
func (s *Scheduler) eligible(a *models.Agent, task *models.Task) bool {
	if !a.Status.Schedulable() || !a.HasCapacity() {
		return false
	}
	for _, req := range task.RequiredCapabilities {
		c := a.Capability(req)
		if c == nil || c.Level < task.Complexity {
			return false
		}
	}
	projected := 0.1 * task.Complexity
	if a.Resources.CPU+projected >= resourceCeiling {
		return false
	}
	if a.Resources.Memory+projected >= resourceCeiling {
		return false
	}
	return true
}

// Score ranks a candidate for a task. Assumes the agent already passed
// the eligibility filter.
func (s *Scheduler) Score(a *models.Agent, task *models.Task) float64 {
	var capSum float64
	for _, req := range task.RequiredCapabilities {
		if c := a.Capability(req); c != nil {
			capSum += c.Level / models.MaxCapabilityLevel
		}
	}
	capabilityMatch := capSum / float64(len(task.RequiredCapabilities))

	performance := (a.Performance.SuccessRate + a.Performance.Efficiency) / 2

	loadInverse := 1 - float64(len(a.CurrentTasks))/float64(a.MaxConcurrentTasks())

	headroom := 1 - maxResource(a.Resources)

	return weightCapabilityMatch*capabilityMatch +
		weightPerformance*performance +
		weightLoadInverse*loadInverse +
		weightResourceHeadroom*headroom
}

// Select returns the best-scoring candidate for the task, or nil when no
// agent is eligible. Ties break toward the lowest agent ID so scheduling
// is deterministic.
func (s *Scheduler) Select(task *models.Task) *models.Agent {
	var best *models.Agent
	var bestScore float64
	for _, a := range s.Candidates(task) {
		score := s.Score(a, task)
		if best == nil || score > bestScore {
			best = a
			bestScore = score
		}
	}
	return best
}

// UnmetCapability returns the first required capability type no agent in
// the pool can serve at the task's complexity, regardless of load. When
// every type is nominally covered (the shortage is capacity or resources,
// not skills), it falls back to the first requirement.
func (s *Scheduler) UnmetCapability(task *models.Task) models.CapabilityType {
	for _, req := range task.RequiredCapabilities {
		covered := false
		for _, a := range s.pool.List() {
			if c := a.Capability(req); c != nil && c.Level >= task.Complexity {
				covered = true
				break
			}
		}
		if !covered {
			return req
		}
	}
	return task.RequiredCapabilities[0]
}

// maxResource returns the highest of the three utilization gauges.
func maxResource(r models.Resources) float64 {
	max := r.CPU
	if r.Memory > max {
		max = r.Memory
	}
	if r.Network > max {
		max = r.Network
	}
	return max
}
