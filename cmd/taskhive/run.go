package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lwestin/taskhive/internal/config"
	"github.com/lwestin/taskhive/internal/orchestrator"
	"github.com/lwestin/taskhive/internal/state"
	"github.com/lwestin/taskhive/pkg/models"
)

var (
	runTaskCount int
	runRoster    string
	runSeed      int64
	runTimeout   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator in simulation mode",
	Long: `Run the orchestrator with simulated task execution.

Agents come from the YAML roster (or a built-in demo roster when none is
configured). Random tasks are submitted against the roster's capability
types and every lifecycle event is printed as it happens. Execution
outcomes and metrics land in the SQLite history database; inspect past
runs with 'taskhive history'.

Examples:
  taskhive run                          # demo roster, 12 tasks
  taskhive run --tasks 50 --seed 7      # reproducible run
  taskhive run --roster agents.yaml     # your own agents`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().IntVar(&runTaskCount, "tasks", 12, "Number of tasks to submit")
	runCmd.Flags().StringVar(&runRoster, "roster", "", "Agent roster YAML (overrides config)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed (0 seeds from the clock)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "Give up waiting for stragglers after this long")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runRoster != "" {
		cfg.Roster.Path = runRoster
	}

	seed := cfg.Orchestrator.Seed
	if runSeed != 0 {
		seed = runSeed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	opts := []orchestrator.Option{
		orchestrator.WithRand(rng),
		orchestrator.WithTickInterval(cfg.Orchestrator.TickInterval),
		orchestrator.WithMaxPoolSize(cfg.Orchestrator.MaxPoolSize),
		orchestrator.WithRetryLimit(cfg.Orchestrator.RetryLimit),
		orchestrator.WithScaleThreshold(cfg.Orchestrator.ScaleThreshold),
		orchestrator.WithHistoryLimit(cfg.Orchestrator.HistoryLimit),
	}
	if cfg.Log.DebugFile != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugFile)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	}

	o := orchestrator.New(opts...)

	if cfg.State.Enabled {
		dbPath := cfg.State.Path
		if dbPath == "" {
			dbPath = state.DefaultDBPath()
		}
		db, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating history database: %w", err)
		}
		detach := state.NewSink(db).Attach(o)
		defer detach()
	}

	// Terminal events drive the wait loop below. A failed critical task
	// below the retry ceiling is requeued, not terminal.
	terminal := make(chan struct{}, runTaskCount*2)
	o.Subscribe(orchestrator.EventTaskCompleted, func(e orchestrator.Event) {
		printEvent(color.FgGreen, "✓", "%s %s completed in %s", e.Task.ID, e.Task.Type, e.Task.ActualDuration.Round(time.Millisecond))
		terminal <- struct{}{}
	})
	o.Subscribe(orchestrator.EventTaskFailed, func(e orchestrator.Event) {
		if e.Task.Priority == models.PriorityCritical && e.Task.RetryCount < cfg.Orchestrator.RetryLimit {
			printEvent(color.FgYellow, "↻", "%s %s failed, retrying (%d/%d)", e.Task.ID, e.Task.Type, e.Task.RetryCount+1, cfg.Orchestrator.RetryLimit)
			return
		}
		printEvent(color.FgRed, "✗", "%s %s failed", e.Task.ID, e.Task.Type)
		terminal <- struct{}{}
	})
	o.Subscribe(orchestrator.EventTaskAssigned, func(e orchestrator.Event) {
		printEvent(color.FgBlue, "→", "%s assigned to %s", e.Task.ID, e.Agent.Name)
	})
	o.Subscribe(orchestrator.EventAgentSpawned, func(e orchestrator.Event) {
		printEvent(color.FgYellow, "+", "spawned %s (%s)", e.Agent.Name, e.Message)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := o.Start(ctx); err != nil {
		return err
	}
	defer o.Stop()

	agents, err := loadAgents(cfg, rng)
	if err != nil {
		return err
	}
	capTypes := make(map[models.CapabilityType]bool)
	for _, a := range agents {
		if err := o.RegisterAgent(a); err != nil {
			return fmt.Errorf("registering agent %s: %w", a.ID, err)
		}
		for _, c := range a.Capabilities {
			capTypes[c.Type] = true
		}
	}
	fmt.Printf("Registered %d agents (seed %d)\n\n", len(agents), seed)

	if cfg.Roster.Path != "" && cfg.Roster.Watch {
		watcher, err := config.WatchRoster(cfg.Roster.Path, func(a *models.Agent) error {
			err := o.RegisterAgent(a)
			if err == nil {
				printEvent(color.FgYellow, "+", "hot-registered %s from roster", a.Name)
			}
			return err
		})
		if err == nil {
			defer watcher.Close()
		}
	}

	types := make([]models.CapabilityType, 0, len(capTypes))
	for t := range capTypes {
		types = append(types, t)
	}

	for i := 0; i < runTaskCount; i++ {
		spec := randomTask(rng, types)
		if _, err := o.SubmitTask(spec); err != nil {
			return fmt.Errorf("submitting task: %w", err)
		}
	}

	finished := 0
	deadline := time.After(runTimeout)
wait:
	for finished < runTaskCount {
		select {
		case <-terminal:
			finished++
		case <-ctx.Done():
			fmt.Println("\nInterrupted.")
			break wait
		case <-deadline:
			fmt.Printf("\nTimed out with %d tasks unfinished.\n", runTaskCount-finished)
			break wait
		}
	}

	printSummary(o)
	return nil
}

// loadAgents returns the configured roster, or a small built-in demo
// roster when none is configured.
func loadAgents(cfg *config.Config, rng *rand.Rand) ([]*models.Agent, error) {
	if cfg.Roster.Path != "" {
		agents, err := config.LoadRoster(cfg.Roster.Path)
		if err != nil {
			return nil, fmt.Errorf("loading roster: %w", err)
		}
		return agents, nil
	}
	return demoRoster(rng), nil
}

// demoRoster builds a handful of varied agents for out-of-the-box runs.
func demoRoster(rng *rand.Rand) []*models.Agent {
	specs := []struct {
		id    string
		cap   models.CapabilityType
		level float64
		slots int
	}{
		{"hive-nlp-1", models.CapabilityNLP, 8, 3},
		{"hive-nlp-2", models.CapabilityNLP, 6, 2},
		{"hive-quantum-1", models.CapabilityQuantum, 9, 2},
		{"hive-vision-1", models.CapabilityVision, 7, 2},
		{"hive-codegen-1", models.CapabilityCodegen, 8, 3},
		{"hive-analysis-1", models.CapabilityAnalysis, 7, 2},
	}

	agents := make([]*models.Agent, 0, len(specs))
	for _, s := range specs {
		agents = append(agents, &models.Agent{
			ID:   s.id,
			Name: s.id,
			Capabilities: []models.Capability{{
				Type:               s.cap,
				Level:              s.level,
				Specializations:    models.DefaultSpecializations(s.cap),
				MaxConcurrentTasks: s.slots,
			}},
			Status:      models.AgentStatusIdle,
			Performance: models.Performance{SuccessRate: 1, Efficiency: 1},
			Resources: models.Resources{
				CPU:     0.1 + rng.Float64()*0.2,
				Memory:  0.1 + rng.Float64()*0.2,
				Network: 0.1 + rng.Float64()*0.2,
			},
			Location: models.Location{X: rng.Float64() * 100, Y: rng.Float64() * 100},
		})
	}
	return agents
}

// taskTypes maps capability types to plausible task type names.
var taskTypes = map[models.CapabilityType][]string{
	models.CapabilityNLP:      {"summarize", "translate", "classify"},
	models.CapabilityQuantum:  {"anneal", "optimize-circuit"},
	models.CapabilityVision:   {"detect-objects", "segment"},
	models.CapabilityCodegen:  {"generate-handler", "refactor"},
	models.CapabilityAnalysis: {"aggregate", "correlate"},
}

// randomTask draws a task spec against the registered capability types.
func randomTask(rng *rand.Rand, types []models.CapabilityType) models.TaskSpec {
	capType := types[rng.Intn(len(types))]

	names := taskTypes[capType]
	name := string(capType) + "-work"
	if len(names) > 0 {
		name = names[rng.Intn(len(names))]
	}

	priority := models.PriorityMedium
	switch r := rng.Float64(); {
	case r < 0.1:
		priority = models.PriorityCritical
	case r < 0.3:
		priority = models.PriorityHigh
	case r < 0.5:
		priority = models.PriorityLow
	}

	return models.TaskSpec{
		Type:                 name,
		Priority:             priority,
		Complexity:           1 + rng.Float64()*8,
		RequiredCapabilities: []models.CapabilityType{capType},
	}
}

// printEvent prints one colored lifecycle line.
func printEvent(attr color.Attribute, symbol, format string, args ...interface{}) {
	c := color.New(attr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), fmt.Sprintf(format, args...))
}

// printSummary prints final metrics and the learned agent levels.
func printSummary(o *orchestrator.Orchestrator) {
	m := o.Metrics()

	fmt.Println()
	color.New(color.Bold).Println("Run summary")
	fmt.Printf("  Tasks:       %d total, %s completed, %s failed, %d queued\n",
		m.TotalTasks,
		color.GreenString("%d", m.CompletedTasks),
		color.RedString("%d", m.FailedTasks),
		m.QueueLength)
	fmt.Printf("  Avg time:    %.0f ms\n", m.AverageTaskTime)
	fmt.Printf("  Load:        %.2f system, %.2f utilization, %.2f efficiency\n",
		m.SystemLoad, m.AgentUtilization, m.NetworkEfficiency)

	fmt.Println("\nAgents")
	for _, a := range o.Agents() {
		fmt.Printf("  %-18s %-11s", a.Name, a.Status)
		for _, c := range a.Capabilities {
			fmt.Printf("  %s=%.2f", c.Type, c.Level)
		}
		fmt.Printf("  (%d done, %.0f%% success)\n",
			a.Performance.TasksCompleted, a.Performance.SuccessRate*100)
	}
}
