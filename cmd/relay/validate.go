package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/relaydev/relay/internal/classify"
	"github.com/relaydev/relay/internal/config"
	"github.com/relaydev/relay/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry and rule table",
	Long: `Load the agent registry and the classification rule table, running
the same validation the engine runs at startup.

Validation fails on duplicate agent IDs, handoff edges that do not
resolve to a registered agent, agents whose only handoff edge targets
themselves, invalid autonomy levels, rules targeting unregistered
agents, and a missing fallback agent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ok := true

		reg, err := registry.LoadFile(cfg.Registry.Path)
		if err != nil {
			printStatus("✗", fmt.Sprintf("registry %s: %v", cfg.Registry.Path, err), color.FgRed)
			ok = false
		} else {
			printStatus("✓", fmt.Sprintf("registry %s: %d agents", cfg.Registry.Path, reg.Count()), color.FgGreen)
		}

		table, err := classify.LoadRuleFile(cfg.Routing.RulesPath)
		if err != nil {
			printStatus("✗", fmt.Sprintf("rules %s: %v", cfg.Routing.RulesPath, err), color.FgRed)
			ok = false
		} else if reg != nil {
			fallback := table.Fallback()
			if cfg.Routing.FallbackAgent != "" {
				fallback = cfg.Routing.FallbackAgent
			}
			if !reg.Has(fallback) {
				printStatus("✗", fmt.Sprintf("fallback agent %s is not registered", fallback), color.FgRed)
				ok = false
			} else {
				printStatus("✓", fmt.Sprintf("rules %s: fallback %s", cfg.Routing.RulesPath, fallback), color.FgGreen)
			}
		}

		if !ok {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
