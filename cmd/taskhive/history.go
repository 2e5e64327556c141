package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lwestin/taskhive/internal/config"
	"github.com/lwestin/taskhive/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded task executions",
	Long: `Show recent task executions and the latest metrics snapshot from
the history database. Records accumulate across runs; live orchestration
state is never persisted.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum executions to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

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

	sink := state.NewSink(db)

	records, err := sink.RecentExecutions(historyLimit)
	if err != nil {
		return fmt.Errorf("reading executions: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No executions recorded yet. Run 'taskhive run' first.")
		return nil
	}

	color.New(color.Bold).Printf("Recent executions (%s)\n", dbPath)
	for _, r := range records {
		status := color.GreenString("✓")
		if r.Status != "completed" {
			status = color.RedString("✗")
		}
		retries := ""
		if r.RetryCount > 0 {
			retries = fmt.Sprintf(" retries=%d", r.RetryCount)
		}
		fmt.Printf("%s %s  %-20s %-8s agent=%-18s %6.0fms%s  %s\n",
			status, r.TaskID, r.TaskType, r.Priority, r.AgentID,
			r.DurationMS, retries, r.RecordedAt.Local().Format(time.DateTime))
	}

	completed, failed, err := sink.ExecutionCounts()
	if err != nil {
		return fmt.Errorf("counting executions: %w", err)
	}
	fmt.Printf("\nTotals: %s completed, %s failed\n",
		color.GreenString("%d", completed), color.RedString("%d", failed))

	m, err := sink.LatestMetrics()
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading metrics: %w", err)
	}
	fmt.Printf("Last snapshot: load %.2f, utilization %.2f, efficiency %.2f (at %s)\n",
		m.SystemLoad, m.AgentUtilization, m.NetworkEfficiency,
		m.UpdatedAt.Local().Format(time.DateTime))

	return nil
}
