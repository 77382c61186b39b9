// Package config handles configuration loading and management for relay.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for relay.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RegistryConfig locates the agent registry file.
type RegistryConfig struct {
	// Path is the agent registry YAML file.
	Path string `mapstructure:"path"`
}

// RoutingConfig holds classification settings.
type RoutingConfig struct {
	// RulesPath is the classification rule table YAML file.
	RulesPath string `mapstructure:"rules_path"`
	// FallbackAgent receives requests no rule matched. Overrides the rule
	// file's fallback when set.
	FallbackAgent string `mapstructure:"fallback_agent"`
}

// EngineConfig holds workflow execution settings.
type EngineConfig struct {
	// RetryBudget is the number of retries per step beyond the first attempt.
	RetryBudget int `mapstructure:"retry_budget"`
	// StepTimeout bounds each agent invocation.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// AgentsConfig maps registered agents to invocation commands.
type AgentsConfig struct {
	// Commands maps agent ID to the argv serving that agent.
	Commands map[string][]string `mapstructure:"commands"`
	// DefaultCommand serves agents with no dedicated command.
	DefaultCommand []string `mapstructure:"default_command"`
}

// LoggingConfig holds debug logging settings.
type LoggingConfig struct {
	// Debug enables the file-based debug log.
	Debug bool `mapstructure:"debug"`
	// Dir overrides the default .relay/logs directory.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (RELAY_*)
// 2. Project config (.relay.yaml in current directory or parent)
// 3. User config (~/.config/relay/config.yaml)
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

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("RELAY")
	v.BindEnv("registry.path", "RELAY_REGISTRY")
	v.BindEnv("routing.rules_path", "RELAY_RULES")
	v.BindEnv("engine.retry_budget", "RELAY_RETRY_BUDGET")
	v.BindEnv("engine.step_timeout", "RELAY_STEP_TIMEOUT")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in paths
	cfg.Registry.Path = os.ExpandEnv(cfg.Registry.Path)
	cfg.Routing.RulesPath = os.ExpandEnv(cfg.Routing.RulesPath)

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

	cfg.Registry.Path = os.ExpandEnv(cfg.Registry.Path)
	cfg.Routing.RulesPath = os.ExpandEnv(cfg.Routing.RulesPath)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("registry.path", cfg.Registry.Path)
	v.Set("routing.rules_path", cfg.Routing.RulesPath)
	v.Set("routing.fallback_agent", cfg.Routing.FallbackAgent)
	v.Set("engine.retry_budget", cfg.Engine.RetryBudget)
	v.Set("engine.step_timeout", cfg.Engine.StepTimeout.String())
	v.Set("logging.debug", cfg.Logging.Debug)
	v.Set("logging.dir", cfg.Logging.Dir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", "agents.yaml")
	v.SetDefault("routing.rules_path", "rules.yaml")
	v.SetDefault("routing.fallback_agent", "")
	v.SetDefault("engine.retry_budget", 2)
	v.SetDefault("engine.step_timeout", "5m")
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.dir", "")
}

// getUserConfigDir returns the XDG config directory for relay.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "relay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relay")
	}
	return filepath.Join(home, ".config", "relay")
}

// findProjectConfig searches for .relay.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".relay.yaml")
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
		Registry: RegistryConfig{Path: "agents.yaml"},
		Routing:  RoutingConfig{RulesPath: "rules.yaml"},
		Engine: EngineConfig{
			RetryBudget: 2,
			StepTimeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{Debug: false},
	}
}
