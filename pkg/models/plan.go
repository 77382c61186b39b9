package models

// StepMode describes how an execution step relates to its siblings.
type StepMode string

const (
	// StepSequential steps run strictly after their dependencies.
	StepSequential StepMode = "sequential"
	// StepParallel steps run concurrently with sibling parallel steps and
	// join at a synchronization barrier before the plan advances.
	StepParallel StepMode = "parallel"
	// StepConditional steps run only if their condition holds against the
	// results recorded so far; otherwise they are pruned (marked skipped).
	StepConditional StepMode = "conditional"
)

// Valid returns true if the step mode is a known value.
func (m StepMode) Valid() bool {
	switch m {
	case StepSequential, StepParallel, StepConditional:
		return true
	default:
		return false
	}
}

// StepStatus represents the runtime state of a single plan step.
type StepStatus string

const (
	// StepPending indicates the step has not been dispatched.
	StepPending StepStatus = "pending"
	// StepRunning indicates the step has been dispatched to its agent.
	StepRunning StepStatus = "running"
	// StepDone indicates the step completed and passed its quality gates.
	StepDone StepStatus = "done"
	// StepFailed indicates the step failed after its retry budget.
	StepFailed StepStatus = "failed"
	// StepSkipped indicates a conditional step whose branch was not chosen.
	StepSkipped StepStatus = "skipped"
)

// Valid returns true if the step status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepDone, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// StepCondition is a predicate over the workflow's results map. A
// conditional step runs only when the named agent's recorded result has
// the wanted status.
type StepCondition struct {
	// AgentID is the agent whose result the condition inspects.
	AgentID string `json:"agent_id"`
	// WhenStatus is the result status that makes the condition true.
	WhenStatus ResultStatus `json:"when_status"`
}

// Holds evaluates the condition against a results map.
func (c *StepCondition) Holds(results map[string]AgentResult) bool {
	r, ok := results[c.AgentID]
	if !ok {
		return false
	}
	return r.Status == c.WhenStatus
}

// ExecutionStep is one unit of an execution plan: a single dispatch to a
// single agent.
type ExecutionStep struct {
	// ID is the unique identifier of this step within the plan.
	ID string `json:"id"`
	// AgentID is the registered agent this step dispatches to.
	AgentID string `json:"agent_id"`
	// Category is the task category this step serves.
	Category string `json:"category"`
	// Mode describes how the step relates to its siblings.
	Mode StepMode `json:"mode"`
	// DependsOn lists step IDs that must complete before this step.
	DependsOn []string `json:"depends_on,omitempty"`
	// Condition gates conditional steps. Nil for other modes.
	Condition *StepCondition `json:"condition,omitempty"`
	// Critical marks steps whose failure fails the whole workflow.
	// Non-critical step failure degrades the workflow to partial success.
	Critical bool `json:"critical"`
	// ExpectedDeliverables names the deliverable keys the agent must
	// produce for the completeness gate.
	ExpectedDeliverables []string `json:"expected_deliverables,omitempty"`
	// HandoffLabel seeds the handoff_reason of the step's context package.
	HandoffLabel string `json:"handoff_label,omitempty"`
}

// ExecutionPlan is an ordered list of execution steps. The plan is frozen
// once the engine begins: conditional resolution may prune steps at
// runtime, but never adds new ones.
type ExecutionPlan struct {
	// ID is the unique identifier of this plan.
	ID string `json:"id"`
	// Steps is the ordered list of steps to execute.
	Steps []ExecutionStep `json:"steps"`
}

// Step returns the step with the given ID, or nil if not present.
func (p *ExecutionPlan) Step(id string) *ExecutionStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// AgentIDs returns the distinct agent IDs referenced by the plan, in
// step order.
func (p *ExecutionPlan) AgentIDs() []string {
	seen := make(map[string]bool, len(p.Steps))
	var ids []string
	for i := range p.Steps {
		id := p.Steps[i].AgentID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
