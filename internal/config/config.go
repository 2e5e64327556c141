// Package config handles configuration loading for taskhive.
// It supports XDG config paths, project-level overrides, environment
// variables, and the YAML agent roster.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for taskhive.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Roster       RosterConfig       `mapstructure:"roster"`
	State        StateConfig        `mapstructure:"state"`
	Log          LogConfig          `mapstructure:"log"`
}

// OrchestratorConfig holds scheduling and scaling knobs.
type OrchestratorConfig struct {
	// TickInterval is the period of the maintenance tick.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// MaxPoolSize caps automatic agent spawning.
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// RetryLimit bounds requeues of failed critical tasks.
	RetryLimit int `mapstructure:"retry_limit"`
	// ScaleThreshold is the system load above which a scheduling miss
	// spawns a new agent.
	ScaleThreshold float64 `mapstructure:"scale_threshold"`
	// HistoryLimit bounds each agent's task history log.
	HistoryLimit int `mapstructure:"history_limit"`
	// Seed fixes the random source; 0 seeds from the wall clock.
	Seed int64 `mapstructure:"seed"`
}

// RosterConfig points at the YAML agent roster.
type RosterConfig struct {
	// Path is the roster file location.
	Path string `mapstructure:"path"`
	// Watch enables hot-registering agents added to the roster file
	// while the orchestrator is running.
	Watch bool `mapstructure:"watch"`
}

// StateConfig holds the execution history sink settings.
type StateConfig struct {
	// Enabled toggles the SQLite history sink.
	Enabled bool `mapstructure:"enabled"`
	// Path is the database file; empty means the XDG data default.
	Path string `mapstructure:"path"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	// DebugFile receives verbose orchestrator logs when set.
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (TASKHIVE_*)
// 2. Project config (.taskhive.yaml in current directory or parent)
// 3. User config (~/.config/taskhive/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TASKHIVE")
	v.AutomaticEnv()
	v.BindEnv("roster.path", "TASKHIVE_ROSTER")
	v.BindEnv("state.path", "TASKHIVE_STATE_DB")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Roster.Path = os.ExpandEnv(cfg.Roster.Path)
	cfg.State.Path = os.ExpandEnv(cfg.State.Path)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Roster.Path = os.ExpandEnv(cfg.Roster.Path)
	cfg.State.Path = os.ExpandEnv(cfg.State.Path)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.tick_interval", "1s")
	v.SetDefault("orchestrator.max_pool_size", 20)
	v.SetDefault("orchestrator.retry_limit", 3)
	v.SetDefault("orchestrator.scale_threshold", 0.8)
	v.SetDefault("orchestrator.history_limit", 50)
	v.SetDefault("orchestrator.seed", 0)

	v.SetDefault("roster.path", "")
	v.SetDefault("roster.watch", true)

	v.SetDefault("state.enabled", true)
	v.SetDefault("state.path", "")

	v.SetDefault("log.debug_file", "")
}

// getUserConfigDir returns the XDG config directory for taskhive.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskhive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskhive")
	}
	return filepath.Join(home, ".config", "taskhive")
}

// findProjectConfig searches for .taskhive.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskhive.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			TickInterval:   time.Second,
			MaxPoolSize:    20,
			RetryLimit:     3,
			ScaleThreshold: 0.8,
			HistoryLimit:   50,
		},
		Roster: RosterConfig{
			Watch: true,
		},
		State: StateConfig{
			Enabled: true,
		},
	}
}
