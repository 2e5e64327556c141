package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// DispatchResult is the outcome reported by a Dispatcher.
type DispatchResult struct {
	// Success records whether the work completed successfully.
	Success bool
	// Duration is how long execution took.
	Duration time.Duration
}

// Dispatcher is the seam between scheduling and actual work execution.
// The orchestrator treats Dispatch as an opaque asynchronous operation it
// awaits; a production deployment replaces the simulator with a call out
// to real workers.
type Dispatcher interface {
	// Dispatch runs the task on the bound agents and reports the outcome.
	// It blocks until the work finishes or ctx is cancelled.
	Dispatch(ctx context.Context, task *models.Task, agents []*models.Agent) (DispatchResult, error)
}

// Simulated execution parameters.
const (
	// millisPerComplexity scales task complexity into a base duration.
	millisPerComplexity = 1000
	// maxJitterMillis bounds the random jitter added to the base duration.
	maxJitterMillis = 500
	// minSuccessProbability keeps the simulation live: even agents with a
	// collapsed success rate keep a small chance of recovering.
	minSuccessProbability = 0.1
)

// SimulatedDispatcher models execution without doing real work: duration
// is derived from task complexity plus bounded jitter, and the outcome is
// a Bernoulli draw against the mean success rate of the bound agents.
// Clock and RNG are injected so tests are reproducible.
type SimulatedDispatcher struct {
	clock Clock

	// mu guards rng; Dispatch runs on per-task goroutines.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedDispatcher creates a simulator over the given clock and rng.
func NewSimulatedDispatcher(clock Clock, rng *rand.Rand) *SimulatedDispatcher {
	return &SimulatedDispatcher{clock: clock, rng: rng}
}

// Dispatch implements Dispatcher.
func (d *SimulatedDispatcher) Dispatch(ctx context.Context, task *models.Task, agents []*models.Agent) (DispatchResult, error) {
	duration := d.estimate(task)

	select {
	case <-ctx.Done():
		return DispatchResult{}, ctx.Err()
	case <-d.clock.After(duration):
	}

	return DispatchResult{
		Success:  d.draw(successProbability(agents)),
		Duration: duration,
	}, nil
}

func (d *SimulatedDispatcher) estimate(task *models.Task) time.Duration {
	d.mu.Lock()
	jitter := d.rng.Intn(maxJitterMillis)
	d.mu.Unlock()

	millis := int(task.Complexity*millisPerComplexity) + jitter
	return time.Duration(millis) * time.Millisecond
}

// draw performs a Bernoulli trial with probability p.
func (d *SimulatedDispatcher) draw(p float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() < p
}

// successProbability is the mean success rate of the bound agents,
// floored so simulated agents never become permanently unable to succeed.
func successProbability(agents []*models.Agent) float64 {
	if len(agents) == 0 {
		return minSuccessProbability
	}
	var sum float64
	for _, a := range agents {
		sum += a.Performance.SuccessRate
	}
	p := sum / float64(len(agents))
	if p < minSuccessProbability {
		return minSuccessProbability
	}
	return p
}
