package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskhive",
	Short: "Agent task orchestrator",
	Long: `Taskhive matches tasks to capability-bearing agents, executes them,
and adapts: agents sharpen the capabilities they exercise, lose their
edge when they fail, and the pool grows under sustained load.

Core capabilities:
- Multi-factor scheduling (capability match, performance, load, headroom)
- Per-outcome capability learning with a sliding performance window
- Load-triggered pool scaling up to a configurable ceiling
- Bounded front-of-queue retries for failed critical tasks
- SQLite execution history for inspecting past runs`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
