package models

import "time"

// WorkflowStatus represents the state of a workflow in the engine's state
// machine.
type WorkflowStatus string

const (
	// StatusPlanned indicates the plan is built but dispatch has not begun.
	StatusPlanned WorkflowStatus = "planned"
	// StatusRunning indicates the engine is advancing through the plan.
	StatusRunning WorkflowStatus = "running"
	// StatusWaitingForAgent indicates a step is suspended on an external agent.
	StatusWaitingForAgent WorkflowStatus = "waiting_for_agent"
	// StatusValidating indicates a result is being checked by the quality gates.
	StatusValidating WorkflowStatus = "validating"
	// StatusRetrying indicates a failed step is being re-dispatched.
	StatusRetrying WorkflowStatus = "retrying"
	// StatusCompleted indicates the workflow finished. Terminal.
	StatusCompleted WorkflowStatus = "completed"
	// StatusFailed indicates a critical step failed after retries. Terminal.
	StatusFailed WorkflowStatus = "failed"
	// StatusAborted indicates an external cancellation was observed. Terminal.
	StatusAborted WorkflowStatus = "aborted"
)

// Valid returns true if the status is a known value.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusRunning, StatusWaitingForAgent, StatusValidating,
		StatusRetrying, StatusCompleted, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are possible.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the status may transition to target.
// Any non-terminal status may transition to StatusAborted.
func (s WorkflowStatus) CanTransitionTo(target WorkflowStatus) bool {
	if target == StatusAborted {
		return !s.Terminal()
	}
	switch s {
	case StatusPlanned:
		return target == StatusRunning
	case StatusRunning:
		return target == StatusWaitingForAgent || target == StatusCompleted
	case StatusWaitingForAgent:
		return target == StatusValidating
	case StatusValidating:
		return target == StatusRunning || target == StatusCompleted ||
			target == StatusRetrying || target == StatusFailed
	case StatusRetrying:
		return target == StatusWaitingForAgent
	default:
		return false
	}
}

// WorkflowState is the single mutable record of one workflow execution.
// It is owned exclusively by the engine instance running that workflow;
// all mutations happen on a serialized path.
type WorkflowState struct {
	// WorkflowID is the unique identifier of this workflow.
	WorkflowID string `json:"workflow_id"`
	// Plan is the frozen execution plan.
	Plan *ExecutionPlan `json:"plan"`
	// CurrentStep is the index of the step currently being advanced.
	CurrentStep int `json:"current_step"`
	// Completed lists agent IDs whose steps have finished.
	Completed []string `json:"completed,omitempty"`
	// Pending lists agent IDs whose steps have not yet finished.
	Pending []string `json:"pending,omitempty"`
	// Results maps agent ID to that agent's result. Append-only.
	Results map[string]AgentResult `json:"results,omitempty"`
	// StepStatuses maps step ID to its runtime status.
	StepStatuses map[string]StepStatus `json:"step_statuses,omitempty"`
	// Status is the workflow's position in the state machine.
	Status WorkflowStatus `json:"status"`
	// RetryCounts maps step ID to the number of retries consumed.
	RetryCounts map[string]int `json:"retry_counts,omitempty"`
	// StartedAt is when dispatch began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the workflow reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewWorkflowState creates the initial state for a plan. The initial
// status is always StatusPlanned.
func NewWorkflowState(workflowID string, plan *ExecutionPlan) *WorkflowState {
	st := &WorkflowState{
		WorkflowID:   workflowID,
		Plan:         plan,
		Results:      make(map[string]AgentResult),
		StepStatuses: make(map[string]StepStatus, len(plan.Steps)),
		RetryCounts:  make(map[string]int),
		Status:       StatusPlanned,
	}
	for i := range plan.Steps {
		st.StepStatuses[plan.Steps[i].ID] = StepPending
		st.Pending = append(st.Pending, plan.Steps[i].AgentID)
	}
	return st
}

// RecordResult appends an agent's result and moves the agent from pending
// to completed. Existing results are never overwritten; retries replace
// the entry only for the same agent after a failed attempt was recorded
// as diagnostics, so the merge at a parallel join barrier stays
// commutative.
func (s *WorkflowState) RecordResult(agentID string, result AgentResult) {
	s.Results[agentID] = result
	for i, id := range s.Pending {
		if id == agentID {
			s.Pending = append(s.Pending[:i], s.Pending[i+1:]...)
			break
		}
	}
	for _, id := range s.Completed {
		if id == agentID {
			return
		}
	}
	s.Completed = append(s.Completed, agentID)
}

// WorkflowResult is the final response returned to the caller. It always
// includes a resolution summary: aggregated deliverables on success, or
// partial results plus a structured failure reason otherwise.
type WorkflowResult struct {
	// WorkflowID is the workflow this result belongs to.
	WorkflowID string `json:"workflow_id"`
	// Status is the terminal workflow status.
	Status WorkflowStatus `json:"status"`
	// Partial is true when non-critical steps failed but the workflow
	// still completed.
	Partial bool `json:"partial"`
	// Results maps agent ID to the result that passed (or last failed)
	// validation for that agent.
	Results map[string]AgentResult `json:"results,omitempty"`
	// FailureReason describes why the workflow failed or aborted.
	FailureReason string `json:"failure_reason,omitempty"`
}
