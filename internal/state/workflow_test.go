package state

import (
	"testing"
	"time"

	"github.com/relaydev/relay/pkg/models"
)

func TestWorkflowCRUD(t *testing.T) {
	db := setupTestDB(t)

	w := &WorkflowRecord{
		ID:          "wf-1",
		RequestText: "analyze coverage for the checkout flow",
		Status:      models.StatusPlanned,
		CreatedAt:   time.Now(),
	}
	if err := db.CreateWorkflow(w); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	got, err := db.GetWorkflow("wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if got == nil {
		t.Fatal("workflow not found")
	}
	if got.RequestText != w.RequestText {
		t.Errorf("request text = %q, want %q", got.RequestText, w.RequestText)
	}
	if got.Status != models.StatusPlanned {
		t.Errorf("status = %s, want planned", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("expected nil completed_at for new workflow")
	}

	now := time.Now()
	got.Status = models.StatusCompleted
	got.Partial = true
	got.CompletedAt = &now
	if err := db.UpdateWorkflow(got); err != nil {
		t.Fatalf("UpdateWorkflow failed: %v", err)
	}

	updated, err := db.GetWorkflow("wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow after update failed: %v", err)
	}
	if updated.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if !updated.Partial {
		t.Error("expected partial flag persisted")
	}
	if updated.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
}

func TestGetWorkflow_NotFound(t *testing.T) {
	db := setupTestDB(t)

	w, err := db.GetWorkflow("missing")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if w != nil {
		t.Errorf("expected nil for missing workflow, got %+v", w)
	}
}

func TestListWorkflows_FilterByStatus(t *testing.T) {
	db := setupTestDB(t)

	records := []*WorkflowRecord{
		{ID: "wf-1", RequestText: "a", Status: models.StatusCompleted, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "wf-2", RequestText: "b", Status: models.StatusFailed, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "wf-3", RequestText: "c", Status: models.StatusCompleted, CreatedAt: time.Now()},
	}
	for _, w := range records {
		if err := db.CreateWorkflow(w); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}
	}

	status := models.StatusCompleted
	completed, err := db.ListWorkflows(&status)
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("got %d completed workflows, want 2", len(completed))
	}
	// Newest first.
	if completed[0].ID != "wf-3" {
		t.Errorf("expected newest workflow first, got %s", completed[0].ID)
	}

	all, err := db.ListWorkflows(nil)
	if err != nil {
		t.Fatalf("ListWorkflows(nil) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d workflows, want 3", len(all))
	}
}

func TestListActiveWorkflows(t *testing.T) {
	db := setupTestDB(t)

	records := []*WorkflowRecord{
		{ID: "wf-1", RequestText: "a", Status: models.StatusRunning, CreatedAt: time.Now()},
		{ID: "wf-2", RequestText: "b", Status: models.StatusAborted, CreatedAt: time.Now()},
		{ID: "wf-3", RequestText: "c", Status: models.StatusWaitingForAgent, CreatedAt: time.Now()},
	}
	for _, w := range records {
		if err := db.CreateWorkflow(w); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}
	}

	active, err := db.ListActiveWorkflows()
	if err != nil {
		t.Fatalf("ListActiveWorkflows failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("got %d active workflows, want 2", len(active))
	}
	for _, w := range active {
		if w.Status.Terminal() {
			t.Errorf("terminal workflow %s listed as active", w.ID)
		}
	}
}

func TestStepResultRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateWorkflow(&WorkflowRecord{
		ID: "wf-1", RequestText: "r", Status: models.StatusRunning, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	r := &StepResultRecord{
		WorkflowID: "wf-1",
		StepID:     "step-1",
		AgentID:    "coverage-analyst",
		Status:     models.ResultSuccess,
		Attempts:   2,
		Deliverables: map[string]any{
			"coverage-analysis": "checkout flow at 41%",
			"summary":           "Gaps identified.",
		},
		Diagnostics: []string{"prioritize the payment step"},
		RecordedAt:  time.Now(),
	}
	if err := db.RecordStepResult(r); err != nil {
		t.Fatalf("RecordStepResult failed: %v", err)
	}

	results, err := db.ListStepResults("wf-1")
	if err != nil {
		t.Fatalf("ListStepResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d step results, want 1", len(results))
	}
	got := results[0]
	if got.AgentID != "coverage-analyst" {
		t.Errorf("agent_id = %s, want coverage-analyst", got.AgentID)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.Deliverables["coverage-analysis"] != "checkout flow at 41%" {
		t.Errorf("deliverables not preserved: %v", got.Deliverables)
	}
	if len(got.Diagnostics) != 1 {
		t.Errorf("diagnostics not preserved: %v", got.Diagnostics)
	}
}

func TestRecordStepResult_Replaces(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateWorkflow(&WorkflowRecord{
		ID: "wf-1", RequestText: "r", Status: models.StatusRunning, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	first := &StepResultRecord{
		WorkflowID: "wf-1", StepID: "step-1", AgentID: "test-generator",
		Status: models.ResultFailure, Attempts: 1, RecordedAt: time.Now(),
	}
	second := &StepResultRecord{
		WorkflowID: "wf-1", StepID: "step-1", AgentID: "test-generator",
		Status: models.ResultSuccess, Attempts: 2, RecordedAt: time.Now(),
	}
	if err := db.RecordStepResult(first); err != nil {
		t.Fatalf("RecordStepResult failed: %v", err)
	}
	if err := db.RecordStepResult(second); err != nil {
		t.Fatalf("RecordStepResult (replace) failed: %v", err)
	}

	results, err := db.ListStepResults("wf-1")
	if err != nil {
		t.Fatalf("ListStepResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d step results after replace, want 1", len(results))
	}
	if results[0].Status != models.ResultSuccess || results[0].Attempts != 2 {
		t.Errorf("replace did not keep latest result: %+v", results[0])
	}
}
