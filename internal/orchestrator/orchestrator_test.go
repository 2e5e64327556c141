package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// stubDispatcher returns scripted results immediately, optionally holding
// each dispatch until released through the gate.
type stubDispatcher struct {
	mu       sync.Mutex
	script   []DispatchResult
	fallback DispatchResult
	gate     chan struct{}
}

func (d *stubDispatcher) Dispatch(ctx context.Context, task *models.Task, agents []*models.Agent) (DispatchResult, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return DispatchResult{}, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.script) > 0 {
		result := d.script[0]
		d.script = d.script[1:]
		return result, nil
	}
	return d.fallback, nil
}

func newTestOrchestrator(t *testing.T, d Dispatcher, opts ...Option) *Orchestrator {
	t.Helper()
	all := append([]Option{
		WithDispatcher(d),
		WithRand(rand.New(rand.NewSource(7))),
		// Keep the periodic tick out of the way; tick behavior has its
		// own fake-clock test.
		WithTickInterval(time.Hour),
	}, opts...)

	o := New(all...)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(o.Stop)
	return o
}

func idleAgent(id string, capType models.CapabilityType, level float64, slots int) *models.Agent {
	return &models.Agent{
		ID:   id,
		Name: "agent-" + id,
		Capabilities: []models.Capability{
			{Type: capType, Level: level, MaxConcurrentTasks: slots},
		},
		Status:      models.AgentStatusIdle,
		Performance: models.Performance{SuccessRate: 1, Efficiency: 1},
		Resources:   models.Resources{CPU: 0.1, Memory: 0.1, Network: 0.1},
	}
}

func collectEvents(o *Orchestrator, types ...EventType) <-chan Event {
	ch := make(chan Event, 64)
	for _, t := range types {
		o.Subscribe(t, func(e Event) { ch <- e })
	}
	return ch
}

func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func waitTaskStatus(t *testing.T, o *Orchestrator, id string, want models.TaskStatus) *models.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		task, err := o.Task(id)
		if err != nil {
			t.Fatalf("task %s: %v", id, err)
		}
		if task.Status == want {
			return task
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s stuck in %s, want %s", id, task.Status, want)
		}
		time.Sleep(time.Millisecond)
	}
}

// Scenario: a single idle agent covering the requirement picks up the
// task in one scheduling pass and runs it to completion.
func TestOrchestrator_AssignsAndCompletes(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true, Duration: 5 * time.Second}}
	o := newTestOrchestrator(t, dispatcher)

	events := collectEvents(o, EventTaskSubmitted, EventTaskAssigned, EventTaskStarted, EventTaskCompleted)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityQuantum, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := o.SubmitTask(models.TaskSpec{
		Type:                 "entangle",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityQuantum},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Submission, assignment, and start are all part of the synchronous
	// scheduling pass and arrive in lifecycle order.
	waitEvent(t, events, EventTaskSubmitted)
	assigned := waitEvent(t, events, EventTaskAssigned)
	if assigned.Agent == nil || assigned.Agent.ID != "a1" {
		t.Errorf("assigned to %v, want a1", assigned.Agent)
	}
	waitEvent(t, events, EventTaskStarted)
	waitEvent(t, events, EventTaskCompleted)

	task := waitTaskStatus(t, o, id, models.TaskStatusCompleted)
	if task.ActualDuration != 5*time.Second {
		t.Errorf("actual duration = %v, want 5s", task.ActualDuration)
	}
	if len(task.AssignedAgents) != 1 || task.AssignedAgents[0] != "a1" {
		t.Errorf("assigned agents = %v, want [a1]", task.AssignedAgents)
	}

	agents := o.Agents()
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}
	a := agents[0]
	if a.Status != models.AgentStatusIdle {
		t.Errorf("agent status = %q, want idle after completion", a.Status)
	}
	if len(a.CurrentTasks) != 0 {
		t.Errorf("agent still holds tasks: %v", a.CurrentTasks)
	}
	if a.Performance.TasksCompleted != 1 {
		t.Errorf("tasks completed = %d, want 1", a.Performance.TasksCompleted)
	}
	if len(a.Learning.TaskHistory) != 1 || !a.Learning.TaskHistory[0].Success {
		t.Errorf("unexpected task history: %+v", a.Learning.TaskHistory)
	}
}

// Scenario: no eligible agent plus high system load spawns a new agent
// with the unmet capability; the too-hard task stays pending.
func TestOrchestrator_ScalesUnderLoad(t *testing.T) {
	gate := make(chan struct{})
	dispatcher := &stubDispatcher{
		fallback: DispatchResult{Success: true, Duration: time.Second},
		gate:     gate,
	}
	o := newTestOrchestrator(t, dispatcher)
	defer close(gate)

	events := collectEvents(o, EventAgentSpawned)

	// One agent with a single slot; occupying it pushes system load to 1.
	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 5, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := o.SubmitTask(models.TaskSpec{
		Type:                 "filler",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	}); err != nil {
		t.Fatalf("submit filler: %v", err)
	}

	// Complexity 9 exceeds every level in the pool: zero candidates,
	// load 1.0 > 0.8, so the controller spawns.
	hardID, err := o.SubmitTask(models.TaskSpec{
		Type:                 "hard",
		Complexity:           9,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit hard: %v", err)
	}

	spawned := waitEvent(t, events, EventAgentSpawned)
	if spawned.Agent == nil {
		t.Fatal("spawn event carries no agent")
	}
	c := spawned.Agent.Capability(models.CapabilityNLP)
	if c == nil {
		t.Fatal("spawned agent lacks the unmet capability")
	}
	if c.Level < 5 || c.Level > 8 {
		t.Errorf("spawned level = %v, want within [5,8]", c.Level)
	}
	if len(c.Specializations) == 0 {
		t.Error("spawned agent has no default specializations")
	}

	if got := len(o.Agents()); got != 2 {
		t.Errorf("pool size = %d, want 2", got)
	}

	// The spawned proficiency is below 9, so the hard task stays pending.
	hard, err := o.Task(hardID)
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if hard.Status != models.TaskStatusPending {
		t.Errorf("hard task status = %q, want pending", hard.Status)
	}
	queue := o.TaskQueue()
	if len(queue) != 1 || queue[0].ID != hardID {
		t.Errorf("queue = %v, want only the hard task", queue)
	}
}

func TestOrchestrator_NoScalingBelowLoadThreshold(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true, Duration: time.Second}}
	o := newTestOrchestrator(t, dispatcher)

	// Idle agent: load 0. The miss must not spawn.
	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 5, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := o.SubmitTask(models.TaskSpec{
		Type:                 "hard",
		Complexity:           9,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := len(o.Agents()); got != 1 {
		t.Errorf("pool size = %d, want 1 (no spawn below threshold)", got)
	}
	task, _ := o.Task(id)
	if task.Status != models.TaskStatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
}

// Scenario: a failed critical task re-enters the queue ahead of
// previously pending work, with its assignment cleared.
func TestOrchestrator_CriticalFailureRequeuesAtFront(t *testing.T) {
	dispatcher := &stubDispatcher{
		script: []DispatchResult{
			{Success: false, Duration: time.Second},
			{Success: true, Duration: time.Second},
			{Success: true, Duration: time.Second},
		},
	}
	// Pool capped at 1 so the second task genuinely waits in the queue.
	o := newTestOrchestrator(t, dispatcher, WithMaxPoolSize(1))

	events := collectEvents(o, EventTaskFailed, EventTaskCompleted)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	criticalID, err := o.SubmitTask(models.TaskSpec{
		Type:                 "critical-work",
		Priority:             models.PriorityCritical,
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit critical: %v", err)
	}
	// Second task waits behind the single slot.
	laterID, err := o.SubmitTask(models.TaskSpec{
		Type:                 "later-work",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit later: %v", err)
	}

	failed := waitEvent(t, events, EventTaskFailed)
	if failed.Task == nil || failed.Task.ID != criticalID {
		t.Fatalf("failed event for %v, want %s", failed.Task, criticalID)
	}

	// The requeued critical task must complete before the one that was
	// already pending.
	first := waitEvent(t, events, EventTaskCompleted)
	if first.Task.ID != criticalID {
		t.Errorf("first completion = %s, want critical task %s", first.Task.ID, criticalID)
	}
	second := waitEvent(t, events, EventTaskCompleted)
	if second.Task.ID != laterID {
		t.Errorf("second completion = %s, want %s", second.Task.ID, laterID)
	}

	critical := waitTaskStatus(t, o, criticalID, models.TaskStatusCompleted)
	if critical.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", critical.RetryCount)
	}
}

func TestOrchestrator_RetryCeilingStopsCriticalLoop(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: false, Duration: time.Second}}
	o := newTestOrchestrator(t, dispatcher, WithRetryLimit(2))

	events := collectEvents(o, EventTaskFailed)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := o.SubmitTask(models.TaskSpec{
		Type:                 "doomed",
		Priority:             models.PriorityCritical,
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Initial attempt plus two retries.
	for i := 0; i < 3; i++ {
		waitEvent(t, events, EventTaskFailed)
	}

	task := waitTaskStatus(t, o, id, models.TaskStatusFailed)
	if task.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", task.RetryCount)
	}
	if got := len(o.TaskQueue()); got != 0 {
		t.Errorf("queue length = %d, want 0 after terminal failure", got)
	}

	// Non-critical failures are terminal immediately.
	plainID, err := o.SubmitTask(models.TaskSpec{
		Type:                 "plain",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	})
	if err != nil {
		t.Fatalf("submit plain: %v", err)
	}
	plain := waitTaskStatus(t, o, plainID, models.TaskStatusFailed)
	if plain.RetryCount != 0 {
		t.Errorf("plain retry count = %d, want 0", plain.RetryCount)
	}
}

// Scenario: removing an agent with tasks in flight is rejected and the
// pool is unchanged.
func TestOrchestrator_RemoveBusyAgentRejected(t *testing.T) {
	gate := make(chan struct{})
	dispatcher := &stubDispatcher{
		fallback: DispatchResult{Success: true, Duration: time.Second},
		gate:     gate,
	}
	o := newTestOrchestrator(t, dispatcher)

	events := collectEvents(o, EventTaskCompleted)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := o.SubmitTask(models.TaskSpec{
		Type:                 "work",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := o.RemoveAgent("a1"); !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}
	if got := len(o.Agents()); got != 1 {
		t.Errorf("pool size = %d after rejected removal, want 1", got)
	}

	close(gate)
	waitEvent(t, events, EventTaskCompleted)

	if err := o.RemoveAgent("a1"); err != nil {
		t.Errorf("remove after drain: %v", err)
	}
}

// The capacity invariant: an agent never holds more tasks than its bound,
// and excess work queues.
func TestOrchestrator_CapacityInvariant(t *testing.T) {
	gate := make(chan struct{})
	dispatcher := &stubDispatcher{
		fallback: DispatchResult{Success: true, Duration: time.Second},
		gate:     gate,
	}
	// Pool capped at 1 so the overflow queues instead of spawning.
	o := newTestOrchestrator(t, dispatcher, WithMaxPoolSize(1))
	defer close(gate)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := o.SubmitTask(models.TaskSpec{
			Type:                 "work",
			Complexity:           5,
			RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	agents := o.Agents()
	if n := len(agents[0].CurrentTasks); n != 2 {
		t.Errorf("agent holds %d tasks, want exactly its bound of 2", n)
	}
	if agents[0].Status != models.AgentStatusOverloaded {
		t.Errorf("agent status = %q, want overloaded at the bound", agents[0].Status)
	}
	if got := len(o.TaskQueue()); got != 1 {
		t.Errorf("queue length = %d, want 1 overflow task", got)
	}
}

func TestOrchestrator_MetricsIdempotentAndMonotonic(t *testing.T) {
	dispatcher := &stubDispatcher{
		script: []DispatchResult{
			{Success: true, Duration: 2 * time.Second},
			{Success: false, Duration: time.Second},
		},
	}
	o := newTestOrchestrator(t, dispatcher)

	events := collectEvents(o, EventTaskCompleted, EventTaskFailed)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := o.SubmitTask(models.TaskSpec{
			Type:                 "work",
			Complexity:           5,
			RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	// The two dispatches run concurrently, so the terminal events can
	// arrive in either order.
	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for terminal events")
		}
	}

	first := o.Metrics()
	second := o.Metrics()
	if first != second {
		t.Errorf("metrics changed without state change:\n%+v\n%+v", first, second)
	}

	if first.TotalTasks != 2 {
		t.Errorf("total tasks = %d, want 2", first.TotalTasks)
	}
	if first.CompletedTasks+first.FailedTasks > first.TotalTasks {
		t.Errorf("completed+failed (%d+%d) exceeds total %d",
			first.CompletedTasks, first.FailedTasks, first.TotalTasks)
	}
	if first.CompletedTasks != 1 || first.FailedTasks != 1 {
		t.Errorf("completed/failed = %d/%d, want 1/1", first.CompletedTasks, first.FailedTasks)
	}
	if first.AverageTaskTime != 2000 {
		t.Errorf("average task time = %v, want 2000ms over completed tasks", first.AverageTaskTime)
	}
	if first.NetworkEfficiency != 0.5 {
		t.Errorf("network efficiency = %v, want 0.5", first.NetworkEfficiency)
	}
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true}}
	o := newTestOrchestrator(t, dispatcher)

	if _, err := o.SubmitTask(models.TaskSpec{Type: "x", Complexity: 5}); !errors.Is(err, ErrNoCapabilities) {
		t.Errorf("expected ErrNoCapabilities, got %v", err)
	}
}

func TestOrchestrator_SubmitAfterStopRejected(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true}}
	o := New(WithDispatcher(dispatcher), WithTickInterval(time.Hour))

	if _, err := o.SubmitTask(testSpec()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before start, got %v", err)
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}
	o.Stop()

	if _, err := o.SubmitTask(testSpec()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after stop, got %v", err)
	}

	// Stop twice is safe.
	o.Stop()
}

func TestOrchestrator_TickRefreshesMetricsAndDriftsResources(t *testing.T) {
	clock := newFakeClock()
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true}}
	o := New(
		WithDispatcher(dispatcher),
		WithClock(clock),
		WithRand(rand.New(rand.NewSource(3))),
		WithTickInterval(time.Second),
	)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	events := collectEvents(o, EventMetricsUpdated)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}
	before := o.Agents()[0].Resources

	waitForWaiters(t, clock, 1)
	clock.Advance(time.Second)

	e := waitEvent(t, events, EventMetricsUpdated)
	if e.Metrics == nil {
		t.Fatal("metrics event carries no snapshot")
	}

	after := o.Agents()[0].Resources
	if before == after {
		t.Error("tick did not drift resource gauges")
	}
	for _, v := range []float64{after.CPU, after.Memory, after.Network} {
		if v < 0.05 || v > 0.95 {
			t.Errorf("gauge %v outside [0.05, 0.95]", v)
		}
	}
}

func TestOrchestrator_DependenciesRecordedNotEnforced(t *testing.T) {
	dispatcher := &stubDispatcher{fallback: DispatchResult{Success: true, Duration: time.Second}}
	o := newTestOrchestrator(t, dispatcher)

	events := collectEvents(o, EventTaskCompleted)

	if err := o.RegisterAgent(idleAgent("a1", models.CapabilityNLP, 8, 2)); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Depends on a task that does not even exist; scheduling proceeds anyway.
	id, err := o.SubmitTask(models.TaskSpec{
		Type:                 "dependent",
		Complexity:           5,
		RequiredCapabilities: []models.CapabilityType{models.CapabilityNLP},
		Dependencies:         []string{"ghost-task"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitEvent(t, events, EventTaskCompleted)
	task, _ := o.Task(id)
	if len(task.Dependencies) != 1 || task.Dependencies[0] != "ghost-task" {
		t.Errorf("dependencies not preserved: %v", task.Dependencies)
	}
}
