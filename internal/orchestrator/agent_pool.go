package orchestrator

import (
	"fmt"
	"sort"

	"github.com/lwestin/taskhive/pkg/models"
)

// AgentPool owns the set of agents and their status and resource state.
// It is not safe for concurrent use on its own: every mutation path runs
// under the Orchestrator's lock, which is what preserves the capacity
// invariant (an agent never holds more tasks than its concurrency bound).
type AgentPool struct {
	// agents maps agent IDs to agent state.
	agents map[string]*models.Agent
}

// NewAgentPool creates an empty AgentPool.
func NewAgentPool() *AgentPool {
	return &AgentPool{
		agents: make(map[string]*models.Agent),
	}
}

// Register adds an agent to the pool. The agent's status is derived from
// its current task load unless it was registered offline or in maintenance.
func (p *AgentPool) Register(a *models.Agent) error {
	if a.ID == "" {
		return fmt.Errorf("register agent: empty ID")
	}
	if _, ok := p.agents[a.ID]; ok {
		return fmt.Errorf("register agent %s: %w", a.ID, ErrDuplicateAgent)
	}
	a.RecomputeStatus()
	p.agents[a.ID] = a
	return nil
}

// Get returns the agent with the given ID, or ErrAgentNotFound.
func (p *AgentPool) Get(id string) (*models.Agent, error) {
	a, ok := p.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return a, nil
}

// List returns all agents sorted by ID for deterministic iteration.
func (p *AgentPool) List() []*models.Agent {
	agents := make([]*models.Agent, 0, len(p.agents))
	for _, a := range p.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// Remove deletes an agent from the pool. Removal is rejected while the
// agent has tasks in flight; allowing it would orphan those tasks.
func (p *AgentPool) Remove(id string) error {
	a, ok := p.agents[id]
	if !ok {
		return fmt.Errorf("remove agent %s: %w", id, ErrAgentNotFound)
	}
	if len(a.CurrentTasks) > 0 {
		return fmt.Errorf("remove agent %s with %d active tasks: %w",
			id, len(a.CurrentTasks), ErrAgentBusy)
	}
	delete(p.agents, id)
	return nil
}

// SetStatus forces an agent into an explicit status, e.g. offline or
// maintenance. Load-derived statuses are recomputed on the next transition.
func (p *AgentPool) SetStatus(id string, status models.AgentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("set status on agent %s: invalid status %q", id, status)
	}
	a, ok := p.agents[id]
	if !ok {
		return fmt.Errorf("set status on agent %s: %w", id, ErrAgentNotFound)
	}
	a.Status = status
	return nil
}

// Count returns the number of agents in the pool.
func (p *AgentPool) Count() int {
	return len(p.agents)
}

// SystemLoad returns the fraction of agents that are busy or overloaded.
// An empty pool reports zero load.
func (p *AgentPool) SystemLoad() float64 {
	if len(p.agents) == 0 {
		return 0
	}
	loaded := 0
	for _, a := range p.agents {
		if a.Status == models.AgentStatusBusy || a.Status == models.AgentStatusOverloaded {
			loaded++
		}
	}
	return float64(loaded) / float64(len(p.agents))
}

// Capacity returns the total task capacity and the number of tasks in
// flight across the pool.
func (p *AgentPool) Capacity() (total, used int) {
	for _, a := range p.agents {
		total += a.MaxConcurrentTasks()
		used += len(a.CurrentTasks)
	}
	return total, used
}
