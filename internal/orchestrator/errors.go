// Package orchestrator matches tasks to capability-bearing agents, tracks
// execution, adapts agent proficiency from outcomes, and grows the pool
// under sustained load.
package orchestrator

import "errors"

var (
	// ErrAgentNotFound is returned when an agent ID is not in the pool.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentBusy is returned when removing an agent that still has
	// tasks in flight. Draining first is the caller's job.
	ErrAgentBusy = errors.New("agent has tasks in flight")
	// ErrDuplicateAgent is returned when registering an agent ID twice.
	ErrDuplicateAgent = errors.New("agent already registered")
	// ErrTaskNotFound is returned when a task ID is not in the registry.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoCapabilities is returned when a task spec names no required
	// capabilities.
	ErrNoCapabilities = errors.New("task requires at least one capability")
	// ErrNotRunning is returned when submitting to an orchestrator that
	// has not been started or has been stopped.
	ErrNotRunning = errors.New("orchestrator is not running")
)
