package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lwestin/taskhive/pkg/models"
)

// Orchestrator coordinates the whole flow: submit -> enqueue -> match ->
// execute -> learn -> scale, with metrics and events on every transition.
//
// A single mutex serializes every mutation path (submission, completion
// callbacks, the periodic tick), which is what upholds the capacity
// invariant: no two scheduling decisions ever race over one agent's
// slots. Dispatch waits happen outside the lock, so execution never
// blocks new submissions. Events are gathered while locked and published
// after release; handlers therefore run unlocked but still in submission
// order on the mutating goroutine.
type Orchestrator struct {
	pool      *AgentPool
	registry  *TaskRegistry
	scheduler *Scheduler
	learner   *LearningController
	spawner   *AgentSpawner
	bus       *EventBus

	dispatcher Dispatcher
	clock      Clock
	logger     *DebugLogger

	tickInterval   time.Duration
	maxPoolSize    int
	retryLimit     int
	scaleThreshold float64

	// mu serializes all state mutation. rng and metrics are guarded by it.
	mu sync.Mutex
	// pubMu keeps event publication in the same order state changes were
	// made, without holding mu across subscriber callbacks.
	pubMu   sync.Mutex
	rng     *rand.Rand
	metrics models.OrchestrationMetrics
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Orchestrator. The pool starts empty; register agents
// (or load a roster) before submitting work. Start must be called before
// SubmitTask.
func New(opts ...Option) *Orchestrator {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.clock == nil {
		options.clock = NewRealClock()
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if options.dispatcher == nil {
		// The simulator gets a derived rng so its draws (made on per-task
		// goroutines) never race the orchestrator's own source.
		options.dispatcher = NewSimulatedDispatcher(
			options.clock, rand.New(rand.NewSource(options.rng.Int63())))
	}
	if options.logger == nil {
		options.logger = NopLogger()
	}
	setPackageLogger(options.logger)

	pool := NewAgentPool()
	return &Orchestrator{
		pool:           pool,
		registry:       NewTaskRegistry(),
		scheduler:      NewScheduler(pool),
		learner:        NewLearningController(options.historyLimit),
		spawner:        NewAgentSpawner(options.rng),
		bus:            NewEventBus(),
		dispatcher:     options.dispatcher,
		clock:          options.clock,
		logger:         options.logger,
		tickInterval:   options.tickInterval,
		maxPoolSize:    options.maxPoolSize,
		retryLimit:     options.retryLimit,
		scaleThreshold: options.scaleThreshold,
		rng:            options.rng,
	}
}

// Start launches the periodic tick and enables submissions. It returns
// an error if the orchestrator is already running.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("start: orchestrator already running")
	}
	o.running = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.metrics = computeMetrics(o.pool, o.registry, o.clock.Now())
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run()

	o.logger.Log("[orchestrator] started, tick=%s maxPool=%d", o.tickInterval, o.maxPoolSize)
	return nil
}

// Stop disables submissions, cancels in-flight dispatches, and waits for
// all orchestrator goroutines to exit. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
	o.logger.Log("[orchestrator] stopped")
}

// run is the tick loop: resource drift, metrics refresh, and another
// chance for pending tasks to schedule.
func (o *Orchestrator) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.clock.After(o.tickInterval):
			o.tick()
		}
	}
}

// tick performs one periodic pass.
func (o *Orchestrator) tick() {
	o.mu.Lock()
	o.driftResourcesLocked()
	events := o.drainQueueLocked()
	events = append(events, o.refreshMetricsLocked())
	o.flushLocked(events)
}

// SubmitTask validates the spec, enqueues a pending task, and runs one
// scheduling pass. It returns the task ID immediately; completion is
// observed later via events or queries.
func (o *Orchestrator) SubmitTask(spec models.TaskSpec) (string, error) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return "", ErrNotRunning
	}

	task, err := o.registry.Submit(spec, o.clock.Now())
	if err != nil {
		o.mu.Unlock()
		return "", err
	}
	o.logger.Log("[orchestrator] submitted task %s type=%s priority=%s complexity=%.1f",
		task.ID, task.Type, task.Priority, task.Complexity)

	events := []Event{o.taskEvent(EventTaskSubmitted, task, "task submitted")}
	events = append(events, o.schedulePassLocked(task)...)
	events = append(events, o.refreshMetricsLocked())
	o.flushLocked(events)
	return task.ID, nil
}

// RegisterAgent adds an agent to the pool and gives pending tasks a
// chance to schedule onto the new capacity.
func (o *Orchestrator) RegisterAgent(a *models.Agent) error {
	o.mu.Lock()
	if err := o.pool.Register(a); err != nil {
		o.mu.Unlock()
		return err
	}
	o.logger.Log("[orchestrator] registered agent %s (%s)", a.ID, a.Name)
	events := o.drainQueueLocked()
	events = append(events, o.refreshMetricsLocked())
	o.flushLocked(events)
	return nil
}

// RemoveAgent deletes an agent from the pool. Removal is rejected while
// the agent has tasks in flight.
func (o *Orchestrator) RemoveAgent(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pool.Remove(id)
}

// SetAgentStatus forces an agent status, e.g. offline for maintenance
// windows. Pending tasks are rescheduled when an agent comes back.
func (o *Orchestrator) SetAgentStatus(id string, status models.AgentStatus) error {
	o.mu.Lock()
	if err := o.pool.SetStatus(id, status); err != nil {
		o.mu.Unlock()
		return err
	}
	var events []Event
	if status.Schedulable() {
		events = o.drainQueueLocked()
	}
	o.flushLocked(events)
	return nil
}

// Agents returns a snapshot of every agent, sorted by ID.
func (o *Orchestrator) Agents() []*models.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.Agent, 0, o.pool.Count())
	for _, a := range o.pool.List() {
		out = append(out, a.Clone())
	}
	return out
}

// Tasks returns a snapshot of every task in submission order.
func (o *Orchestrator) Tasks() []*models.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	tasks := o.registry.List()
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Task returns a snapshot of one task.
func (o *Orchestrator) Task(id string) (*models.Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// TaskQueue returns a snapshot of the pending queue in consumption order.
func (o *Orchestrator) TaskQueue() []*models.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	queue := o.registry.Queue()
	out := make([]*models.Task, 0, len(queue))
	for _, t := range queue {
		out = append(out, t.Clone())
	}
	return out
}

// Metrics returns the most recently computed metrics snapshot. The value
// only changes when state changes: querying twice without an intervening
// transition yields equal results.
func (o *Orchestrator) Metrics() models.OrchestrationMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics
}

// Subscribe registers an event handler and returns an unsubscribe
// function. Handlers run synchronously and must not call back into the
// orchestrator.
func (o *Orchestrator) Subscribe(t EventType, h Handler) func() {
	return o.bus.Subscribe(t, h)
}

// schedulePassLocked runs one matching pass for a task: filter, score,
// select, bind, and hand off to execution. When no agent qualifies it
// escalates to the scaling controller and, failing that, leaves the task
// pending in the queue. Caller holds o.mu.
func (o *Orchestrator) schedulePassLocked(task *models.Task) []Event {
	if task.Status != models.TaskStatusPending {
		return nil
	}

	var events []Event
	agent := o.scheduler.Select(task)
	if agent == nil {
		spawnEvents, spawned := o.maybeScaleLocked(task)
		events = append(events, spawnEvents...)
		if !spawned {
			o.logger.Log("[scheduler] no candidate for task %s, left pending", task.ID)
			return events
		}
		agent = o.scheduler.Select(task)
		if agent == nil {
			return events
		}
	}

	now := o.clock.Now()
	task.Status = models.TaskStatusAssigned
	task.AssignedAgents = []string{agent.ID}
	task.EstimatedDuration = time.Duration(task.Complexity*millisPerComplexity) * time.Millisecond
	agent.CurrentTasks = append(agent.CurrentTasks, task.ID)
	agent.RecomputeStatus()
	agent.Performance.LastActive = now
	o.registry.Dequeue(task.ID)

	o.logger.Log("[scheduler] bound task %s to agent %s (score=%.3f)",
		task.ID, agent.ID, o.scheduler.Score(agent, task))

	events = append(events, Event{
		Type:      EventTaskAssigned,
		Task:      task.Clone(),
		Agent:     agent.Clone(),
		Message:   fmt.Sprintf("assigned to %s", agent.Name),
		Timestamp: now,
	})
	events = append(events, o.startExecutionLocked(task)...)
	return events
}

// startExecutionLocked marks the task processing and launches the
// dispatch goroutine. The dispatcher sees clones, so it never races the
// learning controller's mutations. Caller holds o.mu.
func (o *Orchestrator) startExecutionLocked(task *models.Task) []Event {
	task.Status = models.TaskStatusProcessing

	agents := make([]*models.Agent, 0, len(task.AssignedAgents))
	for _, id := range task.AssignedAgents {
		if a, err := o.pool.Get(id); err == nil {
			agents = append(agents, a.Clone())
		}
	}
	taskCopy := task.Clone()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		result, err := o.dispatcher.Dispatch(o.ctx, taskCopy, agents)
		if err != nil {
			// Cancelled during shutdown; the task stays processing and is
			// dropped with the process, matching the no-persistence model.
			o.logger.Log("[executor] dispatch for task %s aborted: %v", taskCopy.ID, err)
			return
		}
		o.completeTask(taskCopy.ID, result)
	}()

	return []Event{o.taskEvent(EventTaskStarted, task, "execution started")}
}

// completeTask is the single re-entry point from execution back into
// shared state. It updates the task, releases agent slots, feeds the
// learning controller, applies the critical-retry policy, refreshes
// metrics, and reschedules pending work onto the freed capacity.
func (o *Orchestrator) completeTask(taskID string, result DispatchResult) {
	o.mu.Lock()

	task, err := o.registry.Get(taskID)
	if err != nil || task.Status != models.TaskStatusProcessing {
		// Stale callback; nothing to do.
		o.mu.Unlock()
		return
	}

	now := o.clock.Now()
	task.ActualDuration = result.Duration

	for _, id := range task.AssignedAgents {
		agent, err := o.pool.Get(id)
		if err != nil {
			continue
		}
		agent.DropTask(task.ID)
		agent.RecomputeStatus()
		agent.Performance.TasksCompleted++
		o.learner.RecordOutcome(agent, task, result.Success, result.Duration, now)
	}

	var events []Event
	if result.Success {
		task.Status = models.TaskStatusCompleted
		o.logger.Log("[executor] task %s completed in %s", task.ID, result.Duration)
		events = append(events, o.taskEvent(EventTaskCompleted, task,
			fmt.Sprintf("completed in %s", result.Duration)))
	} else {
		task.Status = models.TaskStatusFailed
		events = append(events, o.taskEvent(EventTaskFailed, task, "execution failed"))

		if task.Priority == models.PriorityCritical && task.RetryCount < o.retryLimit {
			task.RetryCount++
			task.Status = models.TaskStatusPending
			task.AssignedAgents = nil
			task.ActualDuration = 0
			o.registry.RequeueFront(task.ID)
			o.logger.Log("[executor] critical task %s requeued (retry %d/%d)",
				task.ID, task.RetryCount, o.retryLimit)
		} else {
			o.logger.Log("[executor] task %s failed terminally", task.ID)
		}
	}

	events = append(events, o.drainQueueLocked()...)
	events = append(events, o.refreshMetricsLocked())
	o.flushLocked(events)
}

// maybeScaleLocked grows the pool when a scheduling miss coincides with
// sustained load. Returns the emitted events and whether a spawn
// happened. Caller holds o.mu.
func (o *Orchestrator) maybeScaleLocked(task *models.Task) ([]Event, bool) {
	load := o.pool.SystemLoad()
	if load <= o.scaleThreshold || o.pool.Count() >= o.maxPoolSize {
		return nil, false
	}

	primary := o.scheduler.UnmetCapability(task)
	agent := o.spawner.Spawn(primary)
	if err := o.pool.Register(agent); err != nil {
		o.logger.Log("[scaling] spawn failed: %v", err)
		return nil, false
	}

	o.logger.Log("[scaling] load=%.2f, spawned agent %s for capability %s (level %.2f)",
		load, agent.ID, primary, agent.Capabilities[0].Level)

	return []Event{{
		Type:      EventAgentSpawned,
		Agent:     agent.Clone(),
		Message:   fmt.Sprintf("spawned for %s under load %.2f", primary, load),
		Timestamp: o.clock.Now(),
	}}, true
}

// drainQueueLocked retries a scheduling pass for every pending task in
// queue order. Caller holds o.mu.
func (o *Orchestrator) drainQueueLocked() []Event {
	var events []Event
	for _, task := range o.registry.Queue() {
		events = append(events, o.schedulePassLocked(task)...)
	}
	return events
}

// refreshMetricsLocked recomputes the stored snapshot and returns the
// corresponding metrics_updated event. Caller holds o.mu.
func (o *Orchestrator) refreshMetricsLocked() Event {
	o.metrics = computeMetrics(o.pool, o.registry, o.clock.Now())
	snapshot := o.metrics
	return Event{
		Type:      EventMetricsUpdated,
		Metrics:   &snapshot,
		Timestamp: snapshot.UpdatedAt,
	}
}

// driftResourcesLocked nudges every agent's gauges randomly within
// bounds, standing in for real telemetry. Caller holds o.mu.
func (o *Orchestrator) driftResourcesLocked() {
	for _, a := range o.pool.List() {
		a.Resources.CPU = driftGauge(a.Resources.CPU, o.rng)
		a.Resources.Memory = driftGauge(a.Resources.Memory, o.rng)
		a.Resources.Network = driftGauge(a.Resources.Network, o.rng)
	}
}

// driftGauge moves a gauge by at most ±0.05 and keeps it inside
// [0.05, 0.95].
func driftGauge(v float64, rng *rand.Rand) float64 {
	v += (rng.Float64() - 0.5) * 0.1
	if v < 0.05 {
		return 0.05
	}
	if v > 0.95 {
		return 0.95
	}
	return v
}

// taskEvent builds an event carrying a snapshot of the task.
func (o *Orchestrator) taskEvent(t EventType, task *models.Task, msg string) Event {
	return Event{
		Type:      t,
		Task:      task.Clone(),
		Message:   msg,
		Timestamp: o.clock.Now(),
	}
}

// flushLocked releases o.mu and delivers the gathered events. Taking
// pubMu before releasing mu means batches reach subscribers in the same
// order the corresponding state changes were applied, even when another
// goroutine grabs mu immediately.
func (o *Orchestrator) flushLocked(events []Event) {
	o.pubMu.Lock()
	o.mu.Unlock()
	for _, e := range events {
		o.bus.Publish(e)
	}
	o.pubMu.Unlock()
}
