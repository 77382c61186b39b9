package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaydev/relay/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workflow state",
	Long: `Display active and recent workflows from the project state database.

Shows each workflow's status, its per-step results, and whether it
completed with partial results.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No workflows recorded. Run 'relay run <request>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	active, err := db.ListActiveWorkflows()
	if err != nil {
		return fmt.Errorf("list active workflows: %w", err)
	}

	if len(active) > 0 {
		fmt.Println("Active Workflows:")
		for _, w := range active {
			fmt.Printf("  %s: %s (%s ago) %q\n", w.ID, w.Status, formatDuration(time.Since(w.CreatedAt)), truncate(w.RequestText, 60))
			if err := displaySteps(db, w.ID); err != nil {
				return err
			}
		}
		fmt.Println()
	} else {
		fmt.Println("No active workflows.")
		fmt.Println()
	}

	return displayRecentWorkflows(db)
}

func displaySteps(db *state.DB, workflowID string) error {
	results, err := db.ListStepResults(workflowID)
	if err != nil {
		return fmt.Errorf("list step results: %w", err)
	}
	for _, r := range results {
		fmt.Printf("    %s: %s by %s (%d attempts)\n", r.StepID, r.Status, r.AgentID, r.Attempts)
	}
	return nil
}

func displayRecentWorkflows(db *state.DB) error {
	workflows, err := db.ListWorkflows(nil)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}

	var recent []state.WorkflowRecord
	for _, w := range workflows {
		if w.Status.Terminal() {
			recent = append(recent, w)
			if len(recent) >= 5 {
				break
			}
		}
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Println("Recent Workflows:")
	for _, w := range recent {
		line := fmt.Sprintf("  %s: %s", w.ID, w.Status)
		if w.Partial {
			line += " (partial)"
		}
		if w.FailureReason != "" {
			line += fmt.Sprintf(" - %s", truncate(w.FailureReason, 60))
		}
		fmt.Printf("%s (%s ago)\n", line, formatDuration(time.Since(w.CreatedAt)))
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
