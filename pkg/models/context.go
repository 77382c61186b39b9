package models

// Execution context field names used by scope predicates and the broker's
// least-privilege filtering.
const (
	// FieldTargetFiles is the executionContext key for target files.
	FieldTargetFiles = "target_files"
	// FieldTechStack is the executionContext key for the tech stack.
	FieldTechStack = "tech_stack"
	// FieldPreviousOutputs is the executionContext key for prior step outputs.
	FieldPreviousOutputs = "previous_outputs"
)

// RequestContext carries the original request across every handoff. It is
// copied unchanged from step to step.
type RequestContext struct {
	// OriginalRequest is the raw request text.
	OriginalRequest string `json:"original_request"`
	// TaskType is the task category of the step being served.
	TaskType string `json:"task_type"`
	// Priority is the request priority.
	Priority Priority `json:"priority"`
	// Constraints lists caller-supplied constraints.
	Constraints []string `json:"constraints,omitempty"`
}

// ExecutionContext carries accumulated execution state. PreviousOutputs is
// append-only, keyed by agent ID; a completed step's deliverables are
// merged in for the next package, never mutated in place.
type ExecutionContext struct {
	// TargetFiles lists files the workflow concerns.
	TargetFiles []string `json:"target_files,omitempty"`
	// TechStack lists technologies relevant to the request.
	TechStack []string `json:"tech_stack,omitempty"`
	// PreviousOutputs maps agent ID to that agent's deliverables.
	PreviousOutputs map[string]map[string]any `json:"previous_outputs,omitempty"`
}

// AgentContext is rebuilt fresh for each step from the handoff edge and any
// instructions carried in the triggering step's diagnostics.
type AgentContext struct {
	// TargetAgent is the agent this package is addressed to.
	TargetAgent string `json:"target_agent"`
	// HandoffReason is why control is being transferred.
	HandoffReason string `json:"handoff_reason"`
	// ExpectedOutput names the deliverables the agent must produce.
	ExpectedOutput []string `json:"expected_output,omitempty"`
	// HandoffInstructions carries explicit instructions for the agent,
	// including appended diagnostics on retry.
	HandoffInstructions []string `json:"handoff_instructions,omitempty"`
}

// ContextPackage is the structured, scope-filtered bundle handed to an
// agent at invocation time. A package is owned exclusively by the step
// currently executing; once that step completes, its result is folded into
// the next package rather than mutated in place.
type ContextPackage struct {
	// Request is the request context, copied unchanged across steps.
	Request RequestContext `json:"request_context"`
	// Execution is the accumulated, scope-filtered execution context.
	Execution ExecutionContext `json:"execution_context"`
	// Agent is the per-step agent context.
	Agent AgentContext `json:"agent_context"`
}

// Clone returns a deep copy of the package. Packages are per-step copies,
// never shared mutable objects.
func (p *ContextPackage) Clone() *ContextPackage {
	out := &ContextPackage{
		Request: p.Request,
		Agent:   p.Agent,
	}
	out.Request.Constraints = append([]string(nil), p.Request.Constraints...)
	out.Agent.ExpectedOutput = append([]string(nil), p.Agent.ExpectedOutput...)
	out.Agent.HandoffInstructions = append([]string(nil), p.Agent.HandoffInstructions...)
	out.Execution.TargetFiles = append([]string(nil), p.Execution.TargetFiles...)
	out.Execution.TechStack = append([]string(nil), p.Execution.TechStack...)
	if p.Execution.PreviousOutputs != nil {
		out.Execution.PreviousOutputs = make(map[string]map[string]any, len(p.Execution.PreviousOutputs))
		for agentID, deliverables := range p.Execution.PreviousOutputs {
			inner := make(map[string]any, len(deliverables))
			for k, v := range deliverables {
				inner[k] = v
			}
			out.Execution.PreviousOutputs[agentID] = inner
		}
	}
	return out
}
