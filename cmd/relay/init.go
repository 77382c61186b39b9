package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initForce        bool
	initWithExamples bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a relay project",
	Long: `Initialize a directory for use with relay.

This command sets up everything needed to run workflows:
  - Creates the .relay directory structure (signals, logs)
  - Updates .gitignore with relay entries
  - Optionally creates example registry and rule files

The directory argument is optional and defaults to the current directory.

Examples:
  relay init                  # Initialize current directory
  relay init ./myproject      # Initialize specific directory
  relay init --force          # Reinitialize even if already set up
  relay init --with-examples  # Create example agents.yaml and rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithExamples, "with-examples", false, "Create example registry and rule files")
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

	fmt.Printf("Initializing relay in %s...\n\n", absPath)

	relayDir := filepath.Join(absPath, ".relay")
	if _, err := os.Stat(relayDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	for _, sub := range []string{"signals", "logs"} {
		if err := os.MkdirAll(filepath.Join(relayDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .relay/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .relay directory structure", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with relay entries", color.FgGreen)

	if initWithExamples {
		if err := createExampleRegistry(absPath); err != nil {
			return fmt.Errorf("creating example registry: %w", err)
		}
		printStatus("✓", "Created agents.yaml example registry", color.FgGreen)

		if err := createExampleRules(absPath); err != nil {
			return fmt.Errorf("creating example rules: %w", err)
		}
		printStatus("✓", "Created rules.yaml example rule table", color.FgGreen)
	}

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .relay.yaml template", color.FgGreen)

	fmt.Printf("\n%s relay initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if !initWithExamples {
		fmt.Println("  1. Declare your agents in agents.yaml and rules in rules.yaml")
		fmt.Println("     (or rerun with --with-examples for starting points)")
		fmt.Println()
	}
	fmt.Println("  2. Validate the configuration:")
	fmt.Println("     relay validate")
	fmt.Println()
	fmt.Println("  3. Route a request:")
	fmt.Println("     relay run \"generate tests for the parser\"")

	return nil
}

// updateGitignore adds relay entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	relayEntries := []string{
		".relay/state.db*",
		".relay/logs/",
		".relay/signals/",
	}

	needsUpdate := false
	for _, entry := range relayEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# relay\n")
	for _, entry := range relayEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createExampleRegistry writes a starting-point agents.yaml.
func createExampleRegistry(repoPath string) error {
	path := filepath.Join(repoPath, "agents.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil // don't overwrite
	}

	template := `# relay agent registry
# Each agent declares capabilities, a context scope, an autonomy level,
# and the handoff edges it may follow.
agents:
  - id: coverage-analyst
    capabilities: [analysis]
    autonomy: guided
    scope:
      includes: [task_description, constraints, prior_outputs]
    handoffs:
      - to: test-generator
        label: coverage gaps identified
        auto_send: true

  - id: test-generator
    capabilities: [generation]
    autonomy: high
    scope:
      includes: [task_description, constraints, prior_outputs, instructions]
      excludes: [credentials]
    handoffs:
      - to: test-executor
        label: tests written
        auto_send: true

  - id: test-executor
    capabilities: [execution]
    autonomy: guided
    scope:
      includes: [task_description, prior_outputs]
    handoffs:
      - to: test-healer
        label: failures observed
        condition: has_failures
      - to: reporter
        label: run summarized
        auto_send: true

  - id: test-healer
    capabilities: [healing]
    autonomy: guided
    scope:
      includes: [task_description, prior_outputs, instructions]

  - id: reporter
    capabilities: [reporting]
    autonomy: none
    scope:
      includes: [task_description, prior_outputs]
`

	return os.WriteFile(path, []byte(template), 0644)
}

// createExampleRules writes a starting-point rules.yaml.
func createExampleRules(repoPath string) error {
	path := filepath.Join(repoPath, "rules.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	template := `# relay classification rules
# Rules are matched in order against the request text; earlier rules win
# ties. The fallback agent handles requests no rule matches.
fallback_agent: coverage-analyst

rules:
  - patterns: [coverage, gap, untested]
    category: analysis
    agent: coverage-analyst
  - patterns: [generate, write tests, create tests]
    category: generation
    agent: test-generator
  - patterns: [execute, run tests, run the suite]
    category: execution
    agent: test-executor
  - patterns: [heal, fix failing, repair]
    category: healing
    agent: test-healer
  - patterns: [report, summarize, summary]
    category: reporting
    agent: reporter
`

	return os.WriteFile(path, []byte(template), 0644)
}

// createProjectConfig creates .relay.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".relay.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# relay project configuration
# This file overrides defaults from ~/.config/relay/config.yaml

# registry:
#   path: agents.yaml

# routing:
#   rules_path: rules.yaml
#   fallback_agent: coverage-analyst

# engine:
#   retry_budget: 2
#   step_timeout: 5m

# agents:
#   commands:
#     test-generator: ["./bin/test-generator"]
#   default_command: ["agent-runner", "--agent"]

# logging:
#   debug: false
`

	return os.WriteFile(configPath, []byte(template), 0644)
}
