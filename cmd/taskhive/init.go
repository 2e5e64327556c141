package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a taskhive project",
	Long: `Initialize a directory for use with taskhive.

Creates a .taskhive.yaml configuration template and an example agent
roster to edit and run against.

The directory argument is optional and defaults to the current directory.

Examples:
  taskhive init              # Initialize current directory
  taskhive init ./mysim      # Initialize specific directory
  taskhive init --force      # Overwrite existing files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration files")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing taskhive in %s...\n\n", absPath)

	configPath := filepath.Join(absPath, ".taskhive.yaml")
	if err := writeTemplate(configPath, configTemplate); err != nil {
		return err
	}

	rosterPath := filepath.Join(absPath, "agents.yaml")
	if err := writeTemplate(rosterPath, rosterTemplate); err != nil {
		return err
	}

	fmt.Printf("\n%s taskhive initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit agents.yaml to describe your agents")
	fmt.Println("  2. Run a simulation:")
	fmt.Println("     taskhive run")
	fmt.Println("  3. Inspect past runs:")
	fmt.Println("     taskhive history")

	return nil
}

// writeTemplate writes content unless the file exists and --force is unset.
func writeTemplate(path, content string) error {
	if _, err := os.Stat(path); err == nil && !initForce {
		printStatus("⚠", fmt.Sprintf("%s exists, skipping (use --force to overwrite)", filepath.Base(path)), color.FgYellow)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	printStatus("✓", "Created "+filepath.Base(path), color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

const configTemplate = `# taskhive project configuration
# Overrides defaults from ~/.config/taskhive/config.yaml

orchestrator:
  tick_interval: 1s
  max_pool_size: 20
  retry_limit: 3
  scale_threshold: 0.8
  # seed: 42          # fix for reproducible runs

roster:
  path: agents.yaml
  watch: true         # hot-register agents added while running

state:
  enabled: true
  # path: history.db  # default: XDG data dir

# log:
#   debug_file: taskhive-debug.log
`

const rosterTemplate = `# taskhive agent roster
# Levels are proficiency in [1, 10]; a task needs every required
# capability at level >= its complexity.

agents:
  - id: worker-nlp-1
    name: Linguist
    capabilities:
      - type: nlp
        level: 8
        specializations: [summarization, translation]
        max_concurrent_tasks: 3
    resources:
      cpu: 0.2
      memory: 0.2
      network: 0.1

  - id: worker-quantum-1
    name: Annealer
    capabilities:
      - type: quantum
        level: 9
        max_concurrent_tasks: 2
    resources:
      cpu: 0.3
      memory: 0.4
      network: 0.1

  - id: worker-generalist-1
    name: Generalist
    capabilities:
      - type: codegen
        level: 7
        max_concurrent_tasks: 2
      - type: analysis
        level: 6
        max_concurrent_tasks: 2
    resources:
      cpu: 0.2
      memory: 0.2
      network: 0.2
`
