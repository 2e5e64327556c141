package orchestrator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/lwestin/taskhive/pkg/models"
)

// Scaling constants.
const (
	// defaultMaxPoolSize caps pool growth.
	defaultMaxPoolSize = 20
	// defaultScaleThreshold is the system load above which a scheduling
	// miss triggers a spawn.
	defaultScaleThreshold = 0.8
	// spawnedLevelBase and spawnedLevelSpread bound the initial
	// proficiency of spawned agents to [5,8].
	spawnedLevelBase   = 5.0
	spawnedLevelSpread = 3.0
	// spawnedMaxConcurrent is the concurrency bound for spawned agents.
	spawnedMaxConcurrent = 3
)

// AgentSpawner builds new agents when the scaling controller decides the
// pool must grow. Spawned agents start idle with empty history and a
// randomized-but-bounded proficiency in their primary capability.
type AgentSpawner struct {
	rng *rand.Rand
}

// NewAgentSpawner creates a spawner using the given rng.
func NewAgentSpawner(rng *rand.Rand) *AgentSpawner {
	return &AgentSpawner{rng: rng}
}

// Spawn creates a fresh agent whose primary capability serves the unmet
// requirement. Performance starts at the optimistic prior so the new
// agent is immediately schedulable and earns a real record from outcomes.
func (s *AgentSpawner) Spawn(primary models.CapabilityType) *models.Agent {
	id := uuid.New().String()[:8]

	return &models.Agent{
		ID:   id,
		Name: fmt.Sprintf("auto-%s-%s", primary, id),
		Capabilities: []models.Capability{
			{
				Type:               primary,
				Level:              spawnedLevelBase + s.rng.Float64()*spawnedLevelSpread,
				Specializations:    models.DefaultSpecializations(primary),
				ResourceCost:       0.2,
				MaxConcurrentTasks: spawnedMaxConcurrent,
			},
		},
		Status: models.AgentStatusIdle,
		Performance: models.Performance{
			SuccessRate: 1,
			Efficiency:  1,
		},
		Resources: models.Resources{
			CPU:     0.05 + s.rng.Float64()*0.1,
			Memory:  0.05 + s.rng.Float64()*0.1,
			Network: 0.05 + s.rng.Float64()*0.1,
		},
		Location: models.Location{
			X: s.rng.Float64(),
			Y: s.rng.Float64(),
		},
	}
}
