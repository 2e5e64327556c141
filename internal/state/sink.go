package state

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lwestin/taskhive/internal/orchestrator"
	"github.com/lwestin/taskhive/pkg/models"
)

// Sink records orchestrator events into the history database. It is a
// write-only collaborator: the orchestrator never reads it back, and a
// failing write must never affect scheduling.
type Sink struct {
	db *DB
}

// NewSink creates a sink over an opened, migrated database.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

// Attach subscribes the sink to the orchestrator's terminal and metrics
// events. The returned closure detaches all subscriptions.
func (s *Sink) Attach(o *orchestrator.Orchestrator) func() {
	unsubs := []func(){
		o.Subscribe(orchestrator.EventTaskCompleted, s.onTerminal),
		o.Subscribe(orchestrator.EventTaskFailed, s.onTerminal),
		o.Subscribe(orchestrator.EventAgentSpawned, s.onSpawn),
		o.Subscribe(orchestrator.EventMetricsUpdated, s.onMetrics),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// onTerminal records a completed or failed task. Write errors are logged
// and dropped.
func (s *Sink) onTerminal(e orchestrator.Event) {
	if e.Task == nil {
		return
	}
	if err := s.RecordExecution(e.Task, e.Timestamp); err != nil {
		log.Printf("[state] record execution %s: %v", e.Task.ID, err)
	}
}

// onSpawn records an auto-spawned agent.
func (s *Sink) onSpawn(e orchestrator.Event) {
	if e.Agent == nil {
		return
	}
	if err := s.RecordSpawn(e.Agent, e.Timestamp); err != nil {
		log.Printf("[state] record spawn %s: %v", e.Agent.ID, err)
	}
}

// onMetrics records a metrics snapshot.
func (s *Sink) onMetrics(e orchestrator.Event) {
	if e.Metrics == nil {
		return
	}
	if err := s.RecordMetrics(e.Metrics); err != nil {
		log.Printf("[state] record metrics: %v", err)
	}
}

// RecordExecution inserts one terminal task outcome. Each critical retry
// that fails produces its own row, so a task ID can appear repeatedly.
func (s *Sink) RecordExecution(task *models.Task, at time.Time) error {
	agentID := ""
	if len(task.AssignedAgents) > 0 {
		agentID = task.AssignedAgents[0]
	}

	_, err := s.db.Exec(`
		INSERT INTO executions (task_id, task_type, priority, status, agent_id, duration_ms, retry_count, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Type, string(task.Priority), string(task.Status), agentID,
		float64(task.ActualDuration.Milliseconds()), task.RetryCount, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecordSpawn inserts one auto-spawned agent. Re-recording the same
// agent is a no-op.
func (s *Sink) RecordSpawn(agent *models.Agent, at time.Time) error {
	capability := ""
	level := 0.0
	if len(agent.Capabilities) > 0 {
		capability = string(agent.Capabilities[0].Type)
		level = agent.Capabilities[0].Level
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO spawned_agents (agent_id, name, capability, level, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, agent.ID, agent.Name, capability, level, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert spawn: %w", err)
	}
	return nil
}

// RecordMetrics inserts one metrics snapshot.
func (s *Sink) RecordMetrics(m *models.OrchestrationMetrics) error {
	_, err := s.db.Exec(`
		INSERT INTO metrics_snapshots (total_tasks, completed_tasks, failed_tasks, average_task_time,
			system_load, agent_utilization, network_efficiency, queue_length, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.TotalTasks, m.CompletedTasks, m.FailedTasks, m.AverageTaskTime,
		m.SystemLoad, m.AgentUtilization, m.NetworkEfficiency, m.QueueLength,
		formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert metrics snapshot: %w", err)
	}
	return nil
}

// ExecutionRecord is one row from the executions table.
type ExecutionRecord struct {
	TaskID     string
	TaskType   string
	Priority   string
	Status     string
	AgentID    string
	DurationMS float64
	RetryCount int
	RecordedAt time.Time
}

// RecentExecutions returns up to limit execution records, newest first.
func (s *Sink) RecentExecutions(limit int) ([]ExecutionRecord, error) {
	rows, err := s.db.Query(`
		SELECT task_id, task_type, priority, status, agent_id, duration_ms, retry_count, recorded_at
		FROM executions ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var r ExecutionRecord
		var recordedAt string
		if err := rows.Scan(&r.TaskID, &r.TaskType, &r.Priority, &r.Status,
			&r.AgentID, &r.DurationMS, &r.RetryCount, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if t, err := parseTime(recordedAt); err == nil {
			r.RecordedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ExecutionCounts returns how many recorded outcomes completed and failed.
func (s *Sink) ExecutionCounts() (completed, failed int, err error) {
	row := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM executions
	`)
	if err := row.Scan(&completed, &failed); err != nil {
		return 0, 0, fmt.Errorf("count executions: %w", err)
	}
	return completed, failed, nil
}

// LatestMetrics returns the most recent metrics snapshot, or sql.ErrNoRows
// when nothing has been recorded yet.
func (s *Sink) LatestMetrics() (*models.OrchestrationMetrics, error) {
	row := s.db.QueryRow(`
		SELECT total_tasks, completed_tasks, failed_tasks, average_task_time,
			system_load, agent_utilization, network_efficiency, queue_length, recorded_at
		FROM metrics_snapshots ORDER BY seq DESC LIMIT 1
	`)

	var m models.OrchestrationMetrics
	var recordedAt string
	err := row.Scan(&m.TotalTasks, &m.CompletedTasks, &m.FailedTasks, &m.AverageTaskTime,
		&m.SystemLoad, &m.AgentUtilization, &m.NetworkEfficiency, &m.QueueLength, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("query latest metrics: %w", err)
	}
	if t, err := parseTime(recordedAt); err == nil {
		m.UpdatedAt = t
	}
	return &m, nil
}
