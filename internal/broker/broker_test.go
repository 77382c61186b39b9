package broker

import (
	"reflect"
	"testing"
	"time"

	"github.com/relaydev/relay/pkg/models"
)

func testRequest() *models.Request {
	return &models.Request{
		OriginalText: "analyze coverage, then generate tests for the gaps",
		Priority:     models.PriorityHigh,
		Constraints:  []string{"no e2e tests"},
		ReceivedAt:   time.Now(),
	}
}

func fullScope() models.Scope {
	return models.Scope{
		Includes: []string{
			models.FieldTargetFiles,
			models.FieldTechStack,
			models.FieldPreviousOutputs,
		},
	}
}

func TestBuildInitial(t *testing.T) {
	b := New()

	master := b.BuildInitial(testRequest(), "coverage-analysis")

	if master.Request.OriginalRequest != "analyze coverage, then generate tests for the gaps" {
		t.Errorf("unexpected original request %q", master.Request.OriginalRequest)
	}
	if master.Request.TaskType != "coverage-analysis" {
		t.Errorf("expected task_type coverage-analysis, got %s", master.Request.TaskType)
	}
	if master.Request.Priority != models.PriorityHigh {
		t.Errorf("expected priority high, got %s", master.Request.Priority)
	}
	if master.Execution.PreviousOutputs == nil {
		t.Error("expected previous_outputs map initialized")
	}
}

func TestFoldAppendsPreviousOutputs(t *testing.T) {
	b := New()
	master := b.BuildInitial(testRequest(), "coverage-analysis")

	result := &models.AgentResult{
		AgentID: "coverage-analyst",
		Status:  models.ResultSuccess,
		Deliverables: map[string]any{
			"coverage-analysis": "checkout flow at 41%",
			"summary":           "Coverage gaps identified.",
		},
	}

	next := b.Fold(master, result)

	got := next.Execution.PreviousOutputs["coverage-analyst"]
	if got["coverage-analysis"] != "checkout flow at 41%" {
		t.Errorf("expected deliverable folded in, got %v", got)
	}
	// The prior master is untouched.
	if len(master.Execution.PreviousOutputs) != 0 {
		t.Error("expected Fold to leave the prior package unmodified")
	}
}

func TestFoldNeverOverwrites(t *testing.T) {
	b := New()
	master := b.BuildInitial(testRequest(), "coverage-analysis")

	first := &models.AgentResult{
		AgentID:      "coverage-analyst",
		Status:       models.ResultSuccess,
		Deliverables: map[string]any{"coverage-analysis": "original"},
	}
	second := &models.AgentResult{
		AgentID: "coverage-analyst",
		Status:  models.ResultSuccess,
		Deliverables: map[string]any{
			"coverage-analysis": "rewritten",
			"extra":             "new key",
		},
	}

	next := b.Fold(b.Fold(master, first), second)

	entry := next.Execution.PreviousOutputs["coverage-analyst"]
	if entry["coverage-analysis"] != "original" {
		t.Errorf("expected existing key preserved, got %v", entry["coverage-analysis"])
	}
	if entry["extra"] != "new key" {
		t.Errorf("expected new key appended, got %v", entry["extra"])
	}
}

func TestPackageRebuildsAgentContext(t *testing.T) {
	b := New()
	master := b.BuildInitial(testRequest(), "coverage-analysis")
	master.Execution.TargetFiles = []string{"checkout.spec.ts"}

	step := &models.ExecutionStep{
		ID:                   "step-2",
		AgentID:              "test-generator",
		Category:             "generation",
		ExpectedDeliverables: []string{"generation"},
		HandoffLabel:         "generate tests for coverage gaps",
	}
	target := &models.AgentDescriptor{ID: "test-generator", Scope: fullScope()}

	pkg := b.Package(master, step, target, []string{"focus on the checkout flow"})

	if pkg.Agent.TargetAgent != "test-generator" {
		t.Errorf("expected target test-generator, got %s", pkg.Agent.TargetAgent)
	}
	if pkg.Agent.HandoffReason != "generate tests for coverage gaps" {
		t.Errorf("unexpected handoff reason %q", pkg.Agent.HandoffReason)
	}
	if len(pkg.Agent.HandoffInstructions) != 1 || pkg.Agent.HandoffInstructions[0] != "focus on the checkout flow" {
		t.Errorf("expected carried instructions, got %v", pkg.Agent.HandoffInstructions)
	}
	if !reflect.DeepEqual(pkg.Execution.TargetFiles, []string{"checkout.spec.ts"}) {
		t.Errorf("expected target files kept for full scope, got %v", pkg.Execution.TargetFiles)
	}
	// requestContext is copied unchanged.
	if !reflect.DeepEqual(pkg.Request, master.Request) && pkg.Request.OriginalRequest != master.Request.OriginalRequest {
		t.Error("expected request context copied unchanged")
	}
}

func TestPackageMinimizesToScope(t *testing.T) {
	b := New()
	master := b.BuildInitial(testRequest(), "generation")
	master.Execution.TargetFiles = []string{"checkout.spec.ts"}
	master.Execution.TechStack = []string{"playwright"}
	master = b.Fold(master, &models.AgentResult{
		AgentID:      "coverage-analyst",
		Status:       models.ResultSuccess,
		Deliverables: map[string]any{"coverage-analysis": "gaps"},
	})

	step := &models.ExecutionStep{ID: "step-2", AgentID: "test-generator", Category: "generation"}
	// Restrictive scope: only target_files.
	target := &models.AgentDescriptor{
		ID:    "test-generator",
		Scope: models.Scope{Includes: []string{models.FieldTargetFiles}},
	}

	pkg := b.Package(master, step, target, nil)

	if pkg.Execution.TargetFiles == nil {
		t.Error("expected target_files kept")
	}
	if pkg.Execution.TechStack != nil {
		t.Errorf("expected tech_stack dropped, got %v", pkg.Execution.TechStack)
	}
	if pkg.Execution.PreviousOutputs != nil {
		t.Errorf("expected previous_outputs dropped, got %v", pkg.Execution.PreviousOutputs)
	}
	// The master keeps everything for later steps.
	if master.Execution.TechStack == nil || master.Execution.PreviousOutputs == nil {
		t.Error("expected master context unchanged by minimization")
	}
}

func TestPropagateCarriesDeliverablesForward(t *testing.T) {
	b := New()
	master := b.BuildInitial(testRequest(), "coverage-analysis")

	result := &models.AgentResult{
		AgentID:      "coverage-analyst",
		Status:       models.ResultSuccess,
		Deliverables: map[string]any{"coverage-analysis": "checkout flow at 41%"},
		Diagnostics:  []string{"prioritize the payment step"},
	}
	step := &models.ExecutionStep{ID: "step-2", AgentID: "test-generator", Category: "generation"}
	target := &models.AgentDescriptor{ID: "test-generator", Scope: fullScope()}

	next, pkg := b.Propagate(master, result, step, target)

	if pkg.Execution.PreviousOutputs["coverage-analyst"]["coverage-analysis"] != "checkout flow at 41%" {
		t.Errorf("expected previous step deliverables in package, got %v", pkg.Execution.PreviousOutputs)
	}
	if len(pkg.Agent.HandoffInstructions) != 1 {
		t.Errorf("expected diagnostics carried as instructions, got %v", pkg.Agent.HandoffInstructions)
	}
	if next.Execution.PreviousOutputs["coverage-analyst"] == nil {
		t.Error("expected new master to carry folded outputs")
	}
}

func TestAugmentAppendsDiagnostics(t *testing.T) {
	b := New()
	pkg := &models.ContextPackage{
		Agent: models.AgentContext{
			TargetAgent:         "test-generator",
			HandoffInstructions: []string{"cover the checkout flow"},
		},
	}

	augmented := b.Augment(pkg, []string{"completeness: missing deliverable generation"})

	if len(augmented.Agent.HandoffInstructions) != 2 {
		t.Fatalf("expected 2 instructions, got %v", augmented.Agent.HandoffInstructions)
	}
	if augmented.Agent.HandoffInstructions[1] != "previous attempt: completeness: missing deliverable generation" {
		t.Errorf("unexpected augmented instruction %q", augmented.Agent.HandoffInstructions[1])
	}
	// Original package untouched: a retry is a new package, not a mutation.
	if len(pkg.Agent.HandoffInstructions) != 1 {
		t.Error("expected Augment to leave the original package unmodified")
	}
}
