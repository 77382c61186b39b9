package models

// ResultStatus represents the outcome an agent reports for an invocation.
type ResultStatus string

const (
	// ResultSuccess indicates the agent completed the requested work.
	ResultSuccess ResultStatus = "success"
	// ResultPartial indicates the agent completed some of the work.
	ResultPartial ResultStatus = "partial"
	// ResultFailure indicates the agent could not complete the work.
	ResultFailure ResultStatus = "failure"
)

// Valid returns true if the result status is a known value.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultSuccess, ResultPartial, ResultFailure:
		return true
	default:
		return false
	}
}

// AgentResult is the serialized response from an agent invocation. The
// engine makes no assumption about how the agent produced it.
type AgentResult struct {
	// AgentID identifies the agent that produced this result.
	AgentID string `json:"agent_id"`
	// Status is the agent-reported outcome.
	Status ResultStatus `json:"status"`
	// Deliverables is the opaque payload keyed by deliverable name.
	Deliverables map[string]any `json:"deliverables,omitempty"`
	// Diagnostics carries human-readable notes about the invocation.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// QualityGateResult is the read-only verdict of the quality gate
// evaluator over a single agent result.
type QualityGateResult struct {
	// Passed is true when every gate passed.
	Passed bool `json:"passed"`
	// ViolatedGates names the gates that failed, in evaluation order.
	ViolatedGates []string `json:"violated_gates,omitempty"`
}
