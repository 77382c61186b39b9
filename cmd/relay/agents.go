package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relaydev/relay/internal/config"
	"github.com/relaydev/relay/internal/registry"
)

var agentsRegistry string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	Long: `Display the validated agent registry: capabilities, autonomy levels,
context scopes, and handoff edges, in declaration order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path := cfg.Registry.Path
		if agentsRegistry != "" {
			path = agentsRegistry
		}

		reg, err := registry.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load registry: %w", err)
		}

		fmt.Printf("%d registered agents (%s)\n\n", reg.Count(), path)
		for _, d := range reg.All() {
			fmt.Printf("%s\n", d.ID)
			fmt.Printf("  capabilities: %s\n", strings.Join(d.Capabilities, ", "))
			fmt.Printf("  autonomy: %s\n", d.Autonomy)
			if len(d.Scope.Includes) > 0 {
				fmt.Printf("  scope: %s\n", strings.Join(d.Scope.Includes, ", "))
			}
			if len(d.Scope.Excludes) > 0 {
				fmt.Printf("  withheld: %s\n", strings.Join(d.Scope.Excludes, ", "))
			}
			for _, e := range d.Handoffs {
				fmt.Printf("  -> %s: %s\n", e.To, e.Label)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().StringVar(&agentsRegistry, "registry", "", "Agent registry file (overrides config)")
}
