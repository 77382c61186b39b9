package gates

import (
	"reflect"
	"testing"

	"github.com/relaydev/relay/pkg/models"
)

func goodResult() *models.AgentResult {
	return &models.AgentResult{
		AgentID: "test-generator",
		Status:  models.ResultSuccess,
		Deliverables: map[string]any{
			"generation": "func TestCheckout(t *testing.T) { ... }",
			"summary":    "Generated 4 tests covering the checkout flow.",
		},
	}
}

func TestEvaluatePass(t *testing.T) {
	e := New()

	verdict := e.Evaluate(goodResult(), []string{"generation"})
	if !verdict.Passed {
		t.Fatalf("expected pass, violated gates: %v", verdict.ViolatedGates)
	}
	if len(verdict.ViolatedGates) != 0 {
		t.Errorf("expected no violated gates, got %v", verdict.ViolatedGates)
	}
}

func TestEvaluateOutputFormat(t *testing.T) {
	e := New()

	tests := []struct {
		name   string
		mutate func(*models.AgentResult)
	}{
		{"missing agent id", func(r *models.AgentResult) { r.AgentID = "" }},
		{"invalid status", func(r *models.AgentResult) { r.Status = "crashed" }},
		{"success with no deliverables", func(r *models.AgentResult) { r.Deliverables = nil }},
		{"failure with no diagnostics", func(r *models.AgentResult) {
			r.Status = models.ResultFailure
			r.Diagnostics = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodResult()
			tt.mutate(r)
			verdict := e.Evaluate(r, nil)
			if verdict.Passed {
				t.Fatal("expected gate failure")
			}
			if verdict.ViolatedGates[0] != GateOutputFormat {
				t.Errorf("expected %s violated first, got %v", GateOutputFormat, verdict.ViolatedGates)
			}
		})
	}
}

func TestEvaluateCompleteness(t *testing.T) {
	e := New()

	r := goodResult()
	verdict := e.Evaluate(r, []string{"generation", "coverage-report"})
	if verdict.Passed {
		t.Fatal("expected completeness failure for missing deliverable")
	}

	found := false
	for _, g := range verdict.ViolatedGates {
		if g == GateCompleteness {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in violated gates, got %v", GateCompleteness, verdict.ViolatedGates)
	}
}

func TestEvaluateSanity(t *testing.T) {
	e := New()

	r := goodResult()
	r.Deliverables["generation"] = "describe('checkout', () => { {{TEST_BODY}} })"
	verdict := e.Evaluate(r, []string{"generation"})
	if verdict.Passed {
		t.Fatal("expected sanity failure for unresolved placeholder")
	}
	if !reflect.DeepEqual(verdict.ViolatedGates, []string{GateSanity}) {
		t.Errorf("expected only sanity violated, got %v", verdict.ViolatedGates)
	}
}

func TestEvaluateUserReadiness(t *testing.T) {
	e := New()

	r := goodResult()
	delete(r.Deliverables, SummaryKey)
	verdict := e.Evaluate(r, []string{"generation"})
	if verdict.Passed {
		t.Fatal("expected user-readiness failure without summary")
	}
	if !reflect.DeepEqual(verdict.ViolatedGates, []string{GateUserReadiness}) {
		t.Errorf("expected only user-readiness violated, got %v", verdict.ViolatedGates)
	}

	// A blank summary is as bad as a missing one.
	r.Deliverables[SummaryKey] = "   "
	verdict = e.Evaluate(r, []string{"generation"})
	if verdict.Passed {
		t.Error("expected user-readiness failure for blank summary")
	}
}

func TestEvaluateFailureResultWithoutDeliverables(t *testing.T) {
	e := New()

	// A plain failure report carries no artifacts and needs no summary.
	r := &models.AgentResult{
		AgentID:     "test-healer",
		Status:      models.ResultFailure,
		Diagnostics: []string{"selector .checkout-btn no longer exists"},
	}
	verdict := e.Evaluate(r, nil)
	if !verdict.Passed {
		t.Errorf("expected failure report to pass gates, violated: %v", verdict.ViolatedGates)
	}
}

func TestEvaluateContentlessFailure(t *testing.T) {
	e := New()

	// No deliverables, no diagnostics: nothing for the policy to act on
	// and nothing for a retry to carry. Even with no expected
	// deliverables this must not slip through as a completed step.
	r := &models.AgentResult{
		AgentID: "test-generator",
		Status:  models.ResultFailure,
	}
	verdict := e.Evaluate(r, nil)
	if verdict.Passed {
		t.Fatal("expected contentless failure to violate a gate")
	}
	if verdict.ViolatedGates[0] != GateOutputFormat {
		t.Errorf("expected %s violated first, got %v", GateOutputFormat, verdict.ViolatedGates)
	}
}

func TestEvaluateReportsAllViolations(t *testing.T) {
	e := New()

	r := &models.AgentResult{
		AgentID: "test-generator",
		Status:  models.ResultSuccess,
		Deliverables: map[string]any{
			"generation": "TODO: fill in {{CASES}}",
		},
	}
	verdict := e.Evaluate(r, []string{"generation", "fixtures"})

	want := []string{GateCompleteness, GateSanity, GateUserReadiness}
	if !reflect.DeepEqual(verdict.ViolatedGates, want) {
		t.Errorf("expected violated gates %v, got %v", want, verdict.ViolatedGates)
	}
}

func TestEvaluateIsReadOnly(t *testing.T) {
	e := New()

	r := goodResult()
	before := map[string]any{}
	for k, v := range r.Deliverables {
		before[k] = v
	}

	e.Evaluate(r, []string{"generation"})

	if !reflect.DeepEqual(before, r.Deliverables) {
		t.Error("expected evaluator to leave the result untouched")
	}
}
