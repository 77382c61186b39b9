package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Task routing & handoff workflow engine",
	Long: `Relay routes incoming QA requests to specialized external agents and
drives multi-agent workflows to completion.

A request is classified against an ordered rule table, assessed for
complexity, and turned into an execution plan: a single handoff for
simple work, or a sequential, parallel, or conditional multi-agent
workflow for composite work. Each step ships a scope-filtered context
package to its agent, every result passes fixed quality gates before
the workflow advances, and failures are retried, rerouted, or escalated
under an explicit error policy.`,
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
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
