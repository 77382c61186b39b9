package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/relaydev/relay/internal/assess"
	"github.com/relaydev/relay/internal/classify"
	"github.com/relaydev/relay/internal/config"
	"github.com/relaydev/relay/internal/engine"
	"github.com/relaydev/relay/internal/invoke"
	"github.com/relaydev/relay/internal/registry"
	"github.com/relaydev/relay/internal/signalfile"
	"github.com/relaydev/relay/internal/state"
	"github.com/relaydev/relay/pkg/models"
)

var (
	runPriority    string
	runConstraints []string
	runDryRun      bool
	runQuiet       bool
	runRegistry    string
	runRules       string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Route a request through the workflow engine",
	Long: `Classify a request, build an execution plan, and drive it to a
terminal status.

The request is matched against the ordered classification rule table.
A single matched category becomes a one-step handoff; sequencing
language ("then", "after") builds a sequential chain; several
independent categories run in parallel with a join barrier; an explicit
"if ... otherwise ..." clause builds conditional branches that are
pruned at runtime.

Use --dry-run to print the plan without dispatching anything.

A running workflow aborts on Ctrl-C or when a "stop" file appears in
.relay/signals/.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&runPriority, "priority", "normal", "Request priority: normal, high, or urgent")
	runCmd.Flags().StringArrayVar(&runConstraints, "constraint", nil, "Constraint on execution (repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the execution plan without dispatching")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress per-step progress output")
	runCmd.Flags().StringVar(&runRegistry, "registry", "", "Agent registry file (overrides config)")
	runCmd.Flags().StringVar(&runRules, "rules", "", "Classification rule file (overrides config)")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runRegistry != "" {
		cfg.Registry.Path = runRegistry
	}
	if runRules != "" {
		cfg.Routing.RulesPath = runRules
	}

	priority := models.Priority(runPriority)
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q", runPriority)
	}

	reg, err := registry.LoadFile(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	table, err := classify.LoadRuleFile(cfg.Routing.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if cfg.Routing.FallbackAgent != "" {
		table = table.WithFallback(cfg.Routing.FallbackAgent)
	}

	req := &models.Request{
		OriginalText: strings.Join(args, " "),
		Priority:     priority,
		Constraints:  runConstraints,
		ReceivedAt:   time.Now(),
	}

	matches, err := table.Evaluate(req, reg)
	if err != nil {
		return fmt.Errorf("classify request: %w", err)
	}
	plan, err := assess.New(reg).Assess(matches, req)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	if runDryRun {
		printPlan(plan, matches)
		return nil
	}

	res, err := executeWorkflow(cfg, reg, req, plan, runQuiet)
	if err != nil {
		return err
	}

	printResult(res)
	// Exit only after executeWorkflow has returned, so its deferred
	// store, watcher, and logger closes have all run.
	if res.Status != models.StatusCompleted {
		os.Exit(1)
	}
	return nil
}

// executeWorkflow drives a validated plan to a terminal status with
// persistence, cancellation sources, and progress printing wired in. All
// resources it opens are released before it returns.
func executeWorkflow(cfg *config.Config, reg *registry.Registry, req *models.Request, plan *models.ExecutionPlan, quiet bool) (*models.WorkflowResult, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	db, err := state.OpenProject(cwd)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate state database: %w", err)
	}

	// Ctrl-C and the .relay/signals/stop file both abort the workflow.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := signalfile.New(cwd)
	if err != nil {
		return nil, fmt.Errorf("create signal watcher: %w", err)
	}
	defer watcher.Close()
	watcher.Clear()
	ctx, cancel := watcher.Bind(ctx, 0)
	defer cancel()

	logger := engine.NopLogger()
	if cfg.Logging.Debug {
		logger = engine.NewDebugLoggerForProject(cwd)
		defer logger.Close()
	}

	emitter := engine.NewEventEmitter(128)
	var wg sync.WaitGroup
	if !quiet {
		wg.Add(1)
		go func() {
			defer wg.Done()
			printEvents(emitter.Events())
		}()
	}

	e := engine.New(reg, invoke.NewSubprocessInvoker(cfg.Agents.Commands, cfg.Agents.DefaultCommand), engine.Options{
		RetryBudget: cfg.Engine.RetryBudget,
		StepTimeout: cfg.Engine.StepTimeout,
		Store:       db,
		Logger:      logger,
		Emitter:     emitter,
	})

	res, err := e.Run(ctx, req, plan)
	emitter.Close()
	wg.Wait()
	return res, err
}

// printPlan renders a dry-run view of the execution plan.
func printPlan(plan *models.ExecutionPlan, matches []classify.Match) {
	fmt.Printf("Plan %s\n", plan.ID)
	fmt.Println("Classification:")
	for _, m := range matches {
		fmt.Printf("  %s -> %s (confidence %.2f)\n", m.Candidate.Category, m.Candidate.AgentID, m.Candidate.Confidence)
	}
	fmt.Println("Steps:")
	for _, s := range plan.Steps {
		line := fmt.Sprintf("  %s: %s [%s]", s.ID, s.AgentID, s.Mode)
		if len(s.DependsOn) > 0 {
			line += fmt.Sprintf(" after %s", strings.Join(s.DependsOn, ", "))
		}
		if s.Condition != nil {
			line += fmt.Sprintf(" when %s is %s", s.Condition.AgentID, s.Condition.WhenStatus)
		}
		if !s.Critical {
			line += " (non-critical)"
		}
		fmt.Println(line)
	}
}

// printEvents streams engine progress to stdout.
func printEvents(events <-chan engine.EngineEvent) {
	for ev := range events {
		switch ev.Type {
		case engine.EventStepDispatched:
			fmt.Printf("%s %s -> %s (attempt %d)\n", color.CyanString("→"), ev.StepID, ev.AgentID, ev.Attempt)
		case engine.EventStepCompleted:
			fmt.Printf("%s %s completed by %s\n", color.GreenString("✓"), ev.StepID, ev.AgentID)
		case engine.EventStepSkipped:
			fmt.Printf("%s %s skipped (%s)\n", color.YellowString("-"), ev.StepID, ev.Message)
		case engine.EventStepRetrying:
			msg := ev.Message
			if msg == "" {
				msg = "retrying"
			}
			fmt.Printf("%s %s %s\n", color.YellowString("↻"), ev.StepID, msg)
		case engine.EventGateViolation:
			fmt.Printf("%s %s violated gates: %s\n", color.YellowString("⚠"), ev.StepID, strings.Join(ev.ViolatedGates, ", "))
		case engine.EventStepFailed:
			fmt.Printf("%s %s failed: %v\n", color.RedString("✗"), ev.StepID, ev.Error)
		}
	}
}

// printResult renders the terminal workflow result.
func printResult(res *models.WorkflowResult) {
	fmt.Println()
	switch res.Status {
	case models.StatusCompleted:
		if res.Partial {
			fmt.Printf("%s Workflow %s completed with partial results\n", color.YellowString("⚠"), res.WorkflowID)
		} else {
			fmt.Printf("%s Workflow %s completed\n", color.GreenString("✓"), res.WorkflowID)
		}
	case models.StatusAborted:
		fmt.Printf("%s Workflow %s aborted: %s\n", color.RedString("✗"), res.WorkflowID, res.FailureReason)
	default:
		fmt.Printf("%s Workflow %s failed: %s\n", color.RedString("✗"), res.WorkflowID, res.FailureReason)
	}

	for agentID, r := range res.Results {
		keys := make([]string, 0, len(r.Deliverables))
		for k := range r.Deliverables {
			keys = append(keys, k)
		}
		fmt.Printf("  %s: %s", agentID, r.Status)
		if len(keys) > 0 {
			fmt.Printf(" (%s)", strings.Join(keys, ", "))
		}
		fmt.Println()
		if s, ok := r.Deliverables["summary"].(string); ok && s != "" {
			fmt.Printf("    %s\n", s)
		}
	}
}
