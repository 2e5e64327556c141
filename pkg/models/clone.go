package models

// Clone returns a deep copy of the agent. Snapshots handed to event
// subscribers and query callers are clones so they never alias live
// orchestrator state.
func (a *Agent) Clone() *Agent {
	c := *a
	c.Capabilities = append([]Capability(nil), a.Capabilities...)
	for i := range c.Capabilities {
		c.Capabilities[i].Specializations = append([]string(nil), a.Capabilities[i].Specializations...)
	}
	c.CurrentTasks = append([]string(nil), a.CurrentTasks...)
	c.Connections = append([]string(nil), a.Connections...)
	c.Learning.TaskHistory = append([]HistoryEntry(nil), a.Learning.TaskHistory...)
	c.Learning.Adaptations = append([]Adaptation(nil), a.Learning.Adaptations...)
	return &c
}

// Clone returns a deep copy of the task. Payload values are copied at
// the map level only; payload contents are treated as opaque and immutable.
func (t *Task) Clone() *Task {
	c := *t
	c.RequiredCapabilities = append([]CapabilityType(nil), t.RequiredCapabilities...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.AssignedAgents = append([]string(nil), t.AssignedAgents...)
	if t.Payload != nil {
		c.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
