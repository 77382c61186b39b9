package models

import "testing"

func TestWorkflowStatusValid(t *testing.T) {
	valid := []WorkflowStatus{
		StatusPlanned, StatusRunning, StatusWaitingForAgent,
		StatusValidating, StatusRetrying, StatusCompleted,
		StatusFailed, StatusAborted,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if WorkflowStatus("cancelled").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestWorkflowStatusTerminal(t *testing.T) {
	tests := []struct {
		status   WorkflowStatus
		terminal bool
	}{
		{StatusPlanned, false},
		{StatusRunning, false},
		{StatusWaitingForAgent, false},
		{StatusValidating, false},
		{StatusRetrying, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusAborted, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestWorkflowStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to WorkflowStatus
		allowed  bool
	}{
		{StatusPlanned, StatusRunning, true},
		{StatusPlanned, StatusValidating, false},
		{StatusRunning, StatusWaitingForAgent, true},
		{StatusRunning, StatusCompleted, true},
		{StatusWaitingForAgent, StatusValidating, true},
		{StatusWaitingForAgent, StatusRunning, false},
		{StatusValidating, StatusRunning, true},
		{StatusValidating, StatusCompleted, true},
		{StatusValidating, StatusRetrying, true},
		{StatusValidating, StatusFailed, true},
		{StatusRetrying, StatusWaitingForAgent, true},
		{StatusRetrying, StatusRunning, false},
		// Any non-terminal state can abort.
		{StatusPlanned, StatusAborted, true},
		{StatusRunning, StatusAborted, true},
		{StatusWaitingForAgent, StatusAborted, true},
		{StatusValidating, StatusAborted, true},
		{StatusRetrying, StatusAborted, true},
		// Terminal states cannot transition.
		{StatusCompleted, StatusAborted, false},
		{StatusFailed, StatusRunning, false},
		{StatusAborted, StatusAborted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestNewWorkflowState(t *testing.T) {
	plan := &ExecutionPlan{
		ID: "plan-1",
		Steps: []ExecutionStep{
			{ID: "step-1", AgentID: "test-generator", Mode: StepSequential},
			{ID: "step-2", AgentID: "test-healer", Mode: StepSequential, DependsOn: []string{"step-1"}},
		},
	}

	st := NewWorkflowState("wf-1", plan)

	if st.Status != StatusPlanned {
		t.Errorf("expected initial status planned, got %s", st.Status)
	}
	if len(st.Pending) != 2 {
		t.Errorf("expected 2 pending agents, got %d", len(st.Pending))
	}
	if st.StepStatuses["step-1"] != StepPending {
		t.Errorf("expected step-1 pending, got %s", st.StepStatuses["step-1"])
	}
}

func TestRecordResult(t *testing.T) {
	plan := &ExecutionPlan{
		ID: "plan-1",
		Steps: []ExecutionStep{
			{ID: "step-1", AgentID: "coverage-analyst", Mode: StepSequential},
		},
	}
	st := NewWorkflowState("wf-1", plan)

	st.RecordResult("coverage-analyst", AgentResult{
		AgentID: "coverage-analyst",
		Status:  ResultSuccess,
	})

	if len(st.Pending) != 0 {
		t.Errorf("expected no pending agents, got %d", len(st.Pending))
	}
	if len(st.Completed) != 1 || st.Completed[0] != "coverage-analyst" {
		t.Errorf("expected completed [coverage-analyst], got %v", st.Completed)
	}
	if _, ok := st.Results["coverage-analyst"]; !ok {
		t.Error("expected result recorded for coverage-analyst")
	}

	// Recording again must not duplicate the completed entry.
	st.RecordResult("coverage-analyst", AgentResult{
		AgentID: "coverage-analyst",
		Status:  ResultSuccess,
	})
	if len(st.Completed) != 1 {
		t.Errorf("expected 1 completed entry after re-record, got %d", len(st.Completed))
	}
}
