// Package policy resolves step failures into a recovery action: retry the
// same agent, reroute to an alternate, escalate to the caller, or abort.
// The policy table is pure: it inspects the failure class, the attempts
// consumed, and the failing agent's autonomy level, and never touches
// workflow state itself.
package policy

import "errors"

// ErrRetryBudgetExhausted is reported when a step has consumed its entire
// retry budget. It is a reportable condition surfaced to the caller with
// the full diagnostic trail, never a silent fallthrough.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// DefaultRetryBudget is the number of retries a step gets beyond its
// first attempt, so a step is dispatched at most DefaultRetryBudget+1
// times.
const DefaultRetryBudget = 2

// FailureClass categorizes why a step failed.
type FailureClass int

const (
	// FailureTimeout indicates the agent invocation timed out.
	FailureTimeout FailureClass = iota
	// FailureInvocation indicates the invocation itself errored.
	FailureInvocation
	// FailureMalformedOutput indicates the agent returned output that
	// could not be decoded but the condition is recoverable.
	FailureMalformedOutput
	// FailureGateViolation indicates the result failed a quality gate.
	FailureGateViolation
	// FailureMissingInput indicates the agent reported a required input
	// was absent. Guessing is not an option; the caller must clarify.
	FailureMissingInput
	// FailureAmbiguous indicates classification could not pick a route.
	FailureAmbiguous
	// FailureCanceled indicates an explicit cancellation was observed.
	FailureCanceled
)

// String returns a human-readable name for the failure class.
func (c FailureClass) String() string {
	switch c {
	case FailureTimeout:
		return "timeout"
	case FailureInvocation:
		return "invocation_failed"
	case FailureMalformedOutput:
		return "malformed_output"
	case FailureGateViolation:
		return "gate_violation"
	case FailureMissingInput:
		return "missing_input"
	case FailureAmbiguous:
		return "ambiguous_classification"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// transient reports whether the class is worth retrying at all.
func (c FailureClass) transient() bool {
	switch c {
	case FailureTimeout, FailureInvocation, FailureMalformedOutput, FailureGateViolation:
		return true
	default:
		return false
	}
}

// Resolution is the recovery action the policy table chose.
type Resolution int

const (
	// RetrySameAgent re-dispatches the step to the same agent with an
	// augmented context package.
	RetrySameAgent Resolution = iota
	// RetryAlternateAgent re-dispatches the step to a registered
	// alternate serving the same category.
	RetryAlternateAgent
	// Escalate returns control to the caller with a request for
	// clarification rather than guessing.
	Escalate
	// Abort terminates the workflow.
	Abort
)

// String returns a human-readable name for the resolution.
func (r Resolution) String() string {
	switch r {
	case RetrySameAgent:
		return "retry_same_agent"
	case RetryAlternateAgent:
		return "retry_alternate_agent"
	case Escalate:
		return "escalate"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Options carries the context the policy table consults beyond the
// failure class itself.
type Options struct {
	// Budget is the retry budget for the step. Zero or negative falls
	// back to DefaultRetryBudget.
	Budget int
	// HasAlternate is true when the registry declares another agent with
	// the same capability as the failing one.
	HasAlternate bool
	// Autonomy is the failing agent's decision-autonomy level.
	Autonomy string
}

// Handler is the policy table.
type Handler struct{}

// New creates a policy handler.
func New() *Handler {
	return &Handler{}
}

// Resolve maps a failure to its recovery action. attempt is the number of
// dispatches already made (1-indexed). A step is dispatched at most
// budget+1 times in total; the alternate reroute consumes the final
// retry, so the bound holds whichever agent serves it.
//
// The table: cancellation always aborts; ambiguity and missing input
// always escalate; agents with no autonomy escalate on any failure;
// transient failures retry the same agent while the primary's budget
// remains; the final retry goes to a declared alternate when the agent's
// autonomy allows it; past the budget the exhaustion escalates.
func (h *Handler) Resolve(class FailureClass, attempt int, opts Options) Resolution {
	if class == FailureCanceled {
		return Abort
	}
	if class == FailureAmbiguous || class == FailureMissingInput {
		return Escalate
	}
	if opts.Autonomy == "none" {
		return Escalate
	}
	if !class.transient() {
		return Escalate
	}

	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}

	if attempt > budget {
		return Escalate
	}
	if attempt == budget && opts.HasAlternate && opts.Autonomy == "high" {
		return RetryAlternateAgent
	}
	return RetrySameAgent
}
