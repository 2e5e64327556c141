package orchestrator

import (
	"math"
	"testing"

	"github.com/lwestin/taskhive/pkg/models"
)

func schedAgent(id string, level float64, slots int) *models.Agent {
	return &models.Agent{
		ID:   id,
		Name: "agent-" + id,
		Capabilities: []models.Capability{
			{Type: models.CapabilityNLP, Level: level, MaxConcurrentTasks: slots},
		},
		Status: models.AgentStatusIdle,
		Performance: models.Performance{
			SuccessRate: 1,
			Efficiency:  1,
		},
		Resources: models.Resources{CPU: 0.1, Memory: 0.1, Network: 0.1},
	}
}

func schedTask(complexity float64, caps ...models.CapabilityType) *models.Task {
	if len(caps) == 0 {
		caps = []models.CapabilityType{models.CapabilityNLP}
	}
	return &models.Task{
		ID:                   "task-1",
		Type:                 "analysis",
		Priority:             models.PriorityMedium,
		Complexity:           complexity,
		RequiredCapabilities: caps,
		Status:               models.TaskStatusPending,
	}
}

func TestScheduler_CandidateFilters(t *testing.T) {
	tests := []struct {
		name string
		prep func(*models.Agent)
		want bool
	}{
		{
			"eligible idle agent",
			func(a *models.Agent) {},
			true,
		},
		{
			"level below complexity",
			func(a *models.Agent) { a.Capabilities[0].Level = 4 },
			false,
		},
		{
			"missing capability type",
			func(a *models.Agent) { a.Capabilities[0].Type = models.CapabilityVision },
			false,
		},
		{
			"offline agent",
			func(a *models.Agent) { a.Status = models.AgentStatusOffline },
			false,
		},
		{
			"maintenance agent",
			func(a *models.Agent) { a.Status = models.AgentStatusMaintenance },
			false,
		},
		{
			"busy with spare slot",
			func(a *models.Agent) {
				a.CurrentTasks = []string{"other"}
				a.RecomputeStatus()
			},
			true,
		},
		{
			"at concurrency bound",
			func(a *models.Agent) {
				a.CurrentTasks = []string{"x", "y"}
				a.RecomputeStatus()
			},
			false,
		},
		{
			"cpu headroom exhausted",
			func(a *models.Agent) { a.Resources.CPU = 0.45 },
			false,
		},
		{
			"memory headroom exhausted",
			func(a *models.Agent) { a.Resources.Memory = 0.45 },
			false,
		},
		{
			"network load alone does not filter",
			func(a *models.Agent) { a.Resources.Network = 0.95 },
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewAgentPool()
			agent := schedAgent("a1", 8, 2)
			tt.prep(agent)
			if err := pool.Register(agent); err != nil {
				t.Fatalf("register: %v", err)
			}

			scheduler := NewScheduler(pool)
			// Complexity 5: projected resource cost is 0.5.
			got := len(scheduler.Candidates(schedTask(5))) == 1
			if got != tt.want {
				t.Errorf("eligibility = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_ScoreFormula(t *testing.T) {
	pool := NewAgentPool()
	agent := schedAgent("a1", 8, 4)
	agent.CurrentTasks = []string{"x"}
	agent.Performance.SuccessRate = 0.9
	agent.Performance.Efficiency = 0.7
	agent.Resources = models.Resources{CPU: 0.2, Memory: 0.3, Network: 0.4}
	if err := pool.Register(agent); err != nil {
		t.Fatalf("register: %v", err)
	}

	scheduler := NewScheduler(pool)
	got := scheduler.Score(agent, schedTask(5))

	// capabilityMatch = 8/10, performance = (0.9+0.7)/2,
	// loadInverse = 1 - 1/4, resourceHeadroom = 1 - 0.4.
	want := 0.4*0.8 + 0.3*0.8 + 0.2*0.75 + 0.1*0.6
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestScheduler_SelectPrefersHigherScore(t *testing.T) {
	pool := NewAgentPool()
	weak := schedAgent("a-weak", 6, 2)
	strong := schedAgent("a-strong", 9, 2)
	for _, a := range []*models.Agent{weak, strong} {
		if err := pool.Register(a); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	scheduler := NewScheduler(pool)
	picked := scheduler.Select(schedTask(5))
	if picked == nil || picked.ID != "a-strong" {
		t.Errorf("selected %v, want a-strong", picked)
	}
}

func TestScheduler_SelectTieBreaksOnLowestID(t *testing.T) {
	pool := NewAgentPool()
	// Identical agents except for their IDs.
	for _, id := range []string{"b", "a", "c"} {
		if err := pool.Register(schedAgent(id, 7, 2)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	scheduler := NewScheduler(pool)
	picked := scheduler.Select(schedTask(5))
	if picked == nil || picked.ID != "a" {
		t.Errorf("tie-break selected %v, want a", picked)
	}
}

func TestScheduler_SelectNoCandidates(t *testing.T) {
	pool := NewAgentPool()
	if err := pool.Register(schedAgent("a1", 5, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}

	scheduler := NewScheduler(pool)
	if picked := scheduler.Select(schedTask(9)); picked != nil {
		t.Errorf("expected no candidate, got %s", picked.ID)
	}
}

func TestScheduler_MultiCapabilityRequirement(t *testing.T) {
	pool := NewAgentPool()
	generalist := &models.Agent{
		ID: "generalist",
		Capabilities: []models.Capability{
			{Type: models.CapabilityNLP, Level: 7, MaxConcurrentTasks: 2},
			{Type: models.CapabilityVision, Level: 6, MaxConcurrentTasks: 2},
		},
		Status:      models.AgentStatusIdle,
		Performance: models.Performance{SuccessRate: 1, Efficiency: 1},
		Resources:   models.Resources{CPU: 0.1, Memory: 0.1, Network: 0.1},
	}
	specialist := schedAgent("specialist", 9, 2)

	for _, a := range []*models.Agent{generalist, specialist} {
		if err := pool.Register(a); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	scheduler := NewScheduler(pool)
	task := schedTask(5, models.CapabilityNLP, models.CapabilityVision)

	candidates := scheduler.Candidates(task)
	if len(candidates) != 1 || candidates[0].ID != "generalist" {
		t.Fatalf("candidates = %v, want only generalist", candidates)
	}

	// capabilityMatch averages over the required capabilities.
	want := 0.4*((0.7+0.6)/2) + 0.3*1 + 0.2*1 + 0.1*0.9
	if got := scheduler.Score(generalist, task); math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestScheduler_UnmetCapability(t *testing.T) {
	pool := NewAgentPool()
	if err := pool.Register(schedAgent("a1", 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}
	scheduler := NewScheduler(pool)

	// quantum is entirely absent from the pool.
	task := schedTask(5, models.CapabilityNLP, models.CapabilityQuantum)
	if got := scheduler.UnmetCapability(task); got != models.CapabilityQuantum {
		t.Errorf("unmet = %q, want quantum", got)
	}

	// Every type nominally covered: fall back to the first requirement.
	covered := schedTask(5, models.CapabilityNLP)
	if got := scheduler.UnmetCapability(covered); got != models.CapabilityNLP {
		t.Errorf("unmet = %q, want nlp fallback", got)
	}

	// Level too low counts as unmet even though the type exists.
	hard := schedTask(9, models.CapabilityNLP)
	if got := scheduler.UnmetCapability(hard); got != models.CapabilityNLP {
		t.Errorf("unmet = %q, want nlp", got)
	}
}
