package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaydev/relay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify relay configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/relay/config.yaml
Project-specific overrides can be placed in .relay.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("registry.path: %s\n", cfg.Registry.Path)
	fmt.Printf("routing.rules_path: %s\n", cfg.Routing.RulesPath)
	fmt.Printf("routing.fallback_agent: %s\n", orUnset(cfg.Routing.FallbackAgent))
	fmt.Printf("engine.retry_budget: %d\n", cfg.Engine.RetryBudget)
	fmt.Printf("engine.step_timeout: %s\n", cfg.Engine.StepTimeout)
	fmt.Printf("agents.commands: %d mapped\n", len(cfg.Agents.Commands))
	fmt.Printf("logging.debug: %t\n", cfg.Logging.Debug)
	fmt.Printf("logging.dir: %s\n", orUnset(cfg.Logging.Dir))
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "registry.path":
		return cfg.Registry.Path, nil
	case "routing.rules_path":
		return cfg.Routing.RulesPath, nil
	case "routing.fallback_agent":
		return orUnset(cfg.Routing.FallbackAgent), nil
	case "engine.retry_budget":
		return strconv.Itoa(cfg.Engine.RetryBudget), nil
	case "engine.step_timeout":
		return cfg.Engine.StepTimeout.String(), nil
	case "logging.debug":
		return strconv.FormatBool(cfg.Logging.Debug), nil
	case "logging.dir":
		return orUnset(cfg.Logging.Dir), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "registry.path":
		cfg.Registry.Path = value
	case "routing.rules_path":
		cfg.Routing.RulesPath = value
	case "routing.fallback_agent":
		cfg.Routing.FallbackAgent = value
	case "engine.retry_budget":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry_budget: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("retry_budget must be non-negative")
		}
		cfg.Engine.RetryBudget = n
	case "engine.step_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for step_timeout: %w", err)
		}
		cfg.Engine.StepTimeout = d
	case "logging.debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for logging.debug: %w", err)
		}
		cfg.Logging.Debug = b
	case "logging.dir":
		cfg.Logging.Dir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
