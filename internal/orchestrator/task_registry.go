package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lwestin/taskhive/pkg/models"
)

// TaskRegistry owns submitted tasks and the pending queue. Submission
// order is preserved; the scheduler consumes the queue front-to-back but
// the registry itself never reorders, except for critical retries which
// are explicitly requeued at the front.
//
// Like AgentPool, the registry is driven exclusively under the
// Orchestrator's lock.
type TaskRegistry struct {
	// tasks maps task IDs to task state.
	tasks map[string]*models.Task
	// queue holds the IDs of pending tasks in consumption order.
	queue []string
}

// NewTaskRegistry creates an empty TaskRegistry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]*models.Task),
	}
}

// Submit materializes a spec into a pending task and appends it to the
// queue. The registry assigns the ID and creation timestamp.
func (r *TaskRegistry) Submit(spec models.TaskSpec, now time.Time) (*models.Task, error) {
	if len(spec.RequiredCapabilities) == 0 {
		return nil, ErrNoCapabilities
	}

	priority := spec.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("submit task: invalid priority %q", spec.Priority)
	}

	complexity := spec.Complexity
	if complexity < 1 {
		complexity = 1
	}
	if complexity > 10 {
		complexity = 10
	}

	task := &models.Task{
		ID:                   uuid.New().String()[:8],
		Type:                 spec.Type,
		Priority:             priority,
		Complexity:           complexity,
		RequiredCapabilities: append([]models.CapabilityType(nil), spec.RequiredCapabilities...),
		Payload:              spec.Payload,
		Dependencies:         append([]string(nil), spec.Dependencies...),
		Status:               models.TaskStatusPending,
		CreatedAt:            now,
	}

	r.tasks[task.ID] = task
	r.queue = append(r.queue, task.ID)
	return task, nil
}

// Get returns the task with the given ID, or ErrTaskNotFound.
func (r *TaskRegistry) Get(id string) (*models.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return t, nil
}

// List returns all tasks ordered by creation time, then ID.
func (r *TaskRegistry) List() []*models.Task {
	tasks := make([]*models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Queue returns the pending tasks in consumption order.
func (r *TaskRegistry) Queue() []*models.Task {
	tasks := make([]*models.Task, 0, len(r.queue))
	for _, id := range r.queue {
		if t, ok := r.tasks[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// QueueLength returns the number of tasks awaiting assignment.
func (r *TaskRegistry) QueueLength() int {
	return len(r.queue)
}

// Dequeue removes a task ID from the pending queue, typically after the
// scheduler binds it. Unknown IDs are ignored.
func (r *TaskRegistry) Dequeue(id string) {
	for i, qid := range r.queue {
		if qid == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// RequeueFront places a task at the front of the pending queue. Used for
// critical retries, which jump ahead of previously pending work.
func (r *TaskRegistry) RequeueFront(id string) {
	r.Dequeue(id)
	r.queue = append([]string{id}, r.queue...)
}

// Counts returns total, completed, and failed task counts.
func (r *TaskRegistry) Counts() (total, completed, failed int) {
	total = len(r.tasks)
	for _, t := range r.tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			completed++
		case models.TaskStatusFailed:
			failed++
		}
	}
	return total, completed, failed
}

// AverageCompletedMillis returns the mean actual duration in milliseconds
// across completed tasks, or zero when none have completed.
func (r *TaskRegistry) AverageCompletedMillis() float64 {
	var sum float64
	n := 0
	for _, t := range r.tasks {
		if t.Status == models.TaskStatusCompleted {
			sum += float64(t.ActualDuration.Milliseconds())
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
