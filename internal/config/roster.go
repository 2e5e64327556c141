package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/lwestin/taskhive/pkg/models"
)

// rosterFile is the on-disk YAML structure of an agent roster.
type rosterFile struct {
	Agents []rosterAgent `yaml:"agents"`
}

// rosterAgent describes one agent entry in the roster.
type rosterAgent struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Status       string             `yaml:"status"`
	Capabilities []rosterCapability `yaml:"capabilities"`
	Resources    rosterResources    `yaml:"resources"`
	Location     rosterLocation     `yaml:"location"`
}

// rosterCapability describes one capability entry.
type rosterCapability struct {
	Type               string   `yaml:"type"`
	Level              float64  `yaml:"level"`
	Specializations    []string `yaml:"specializations"`
	ResourceCost       float64  `yaml:"resource_cost"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
}

type rosterResources struct {
	CPU     float64 `yaml:"cpu"`
	Memory  float64 `yaml:"memory"`
	Network float64 `yaml:"network"`
}

type rosterLocation struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// LoadRoster reads an agent roster from a YAML file and returns the
// agents ready for registration. Omitted fields get working defaults:
// status idle, one task slot per capability, default specializations for
// the capability type, and an optimistic performance prior so fresh
// agents are not starved of work.
func LoadRoster(path string) ([]*models.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML.
func ParseRoster(data []byte) ([]*models.Agent, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}

	agents := make([]*models.Agent, 0, len(file.Agents))
	for i, entry := range file.Agents {
		agent, err := buildAgent(entry)
		if err != nil {
			return nil, fmt.Errorf("roster agent %d: %w", i, err)
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// buildAgent converts a roster entry into a model agent, applying
// defaults and validating required fields.
func buildAgent(entry rosterAgent) (*models.Agent, error) {
	if entry.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if len(entry.Capabilities) == 0 {
		return nil, fmt.Errorf("agent %s has no capabilities", entry.ID)
	}

	status := models.AgentStatus(entry.Status)
	if entry.Status == "" {
		status = models.AgentStatusIdle
	}
	if !status.Valid() {
		return nil, fmt.Errorf("agent %s has invalid status %q", entry.ID, entry.Status)
	}

	name := entry.Name
	if name == "" {
		name = entry.ID
	}

	caps := make([]models.Capability, 0, len(entry.Capabilities))
	for _, c := range entry.Capabilities {
		if c.Type == "" {
			return nil, fmt.Errorf("agent %s has a capability without a type", entry.ID)
		}
		capType := models.CapabilityType(c.Type)
		slots := c.MaxConcurrentTasks
		if slots < 1 {
			slots = 1
		}
		specs := c.Specializations
		if len(specs) == 0 {
			specs = models.DefaultSpecializations(capType)
		}
		caps = append(caps, models.Capability{
			Type:               capType,
			Level:              models.ClampLevel(c.Level),
			Specializations:    specs,
			ResourceCost:       c.ResourceCost,
			MaxConcurrentTasks: slots,
		})
	}

	return &models.Agent{
		ID:           entry.ID,
		Name:         name,
		Capabilities: caps,
		Status:       status,
		Performance: models.Performance{
			SuccessRate: 1,
			Efficiency:  1,
		},
		Resources: models.Resources{
			CPU:     entry.Resources.CPU,
			Memory:  entry.Resources.Memory,
			Network: entry.Resources.Network,
		},
		Location: models.Location{X: entry.Location.X, Y: entry.Location.Y},
	}, nil
}
