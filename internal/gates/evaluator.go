// Package gates validates agent results before the workflow advances.
// The evaluator is read-only: it never mutates the result or any workflow
// state, it only reports which of the fixed gate categories failed.
package gates

import (
	"fmt"
	"strings"

	"github.com/relaydev/relay/pkg/models"
)

// Fixed gate names, in evaluation order.
const (
	// GateOutputFormat checks the result conforms to the expected
	// deliverable shape.
	GateOutputFormat = "output-format"
	// GateCompleteness checks every requested deliverable is present.
	GateCompleteness = "completeness"
	// GateSanity checks for unresolved placeholders and internally
	// conflicting instructions in the output.
	GateSanity = "sanity"
	// GateUserReadiness checks a human-readable summary accompanies the
	// artifacts.
	GateUserReadiness = "user-readiness"
)

// placeholderTokens are fragments that indicate an unresolved template or
// placeholder in a deliverable.
var placeholderTokens = []string{"{{", "}}", "<placeholder>", "[tbd]", "fixme"}

// SummaryKey is the deliverable key that must carry the human-readable
// summary for the user-readiness gate.
const SummaryKey = "summary"

// Evaluator applies the four fixed gate categories to an agent result.
type Evaluator struct{}

// New creates a gate evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs all gates in order against a result and the deliverable
// keys the dispatching step expected. Every violated gate is reported;
// evaluation does not stop at the first failure, so the diagnostics handed
// to the error policy name everything that is wrong.
func (e *Evaluator) Evaluate(result *models.AgentResult, expectedDeliverables []string) models.QualityGateResult {
	var violated []string

	if !e.checkOutputFormat(result) {
		violated = append(violated, GateOutputFormat)
	}
	if !e.checkCompleteness(result, expectedDeliverables) {
		violated = append(violated, GateCompleteness)
	}
	if !e.checkSanity(result) {
		violated = append(violated, GateSanity)
	}
	if !e.checkUserReadiness(result) {
		violated = append(violated, GateUserReadiness)
	}

	return models.QualityGateResult{
		Passed:        len(violated) == 0,
		ViolatedGates: violated,
	}
}

// checkOutputFormat verifies the result has the basic required shape.
func (e *Evaluator) checkOutputFormat(result *models.AgentResult) bool {
	if result.AgentID == "" {
		return false
	}
	if !result.Status.Valid() {
		return false
	}
	// A reported success with no deliverables at all is malformed.
	if result.Status == models.ResultSuccess && len(result.Deliverables) == 0 {
		return false
	}
	// A failure report with no diagnostics gives the policy nothing to
	// act on and the next agent nothing to carry.
	if result.Status == models.ResultFailure && len(result.Diagnostics) == 0 {
		return false
	}
	return true
}

// checkCompleteness verifies every expected deliverable key is present.
func (e *Evaluator) checkCompleteness(result *models.AgentResult, expected []string) bool {
	for _, key := range expected {
		if _, ok := result.Deliverables[key]; !ok {
			return false
		}
	}
	return true
}

// checkSanity scans string deliverables for unresolved placeholders.
func (e *Evaluator) checkSanity(result *models.AgentResult) bool {
	for _, v := range result.Deliverables {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		lower := strings.ToLower(s)
		for _, tok := range placeholderTokens {
			if strings.Contains(lower, tok) {
				return false
			}
		}
	}
	return true
}

// checkUserReadiness verifies a non-empty human-readable summary
// accompanies the deliverables. Results with no deliverables (a plain
// failure report) do not need one.
func (e *Evaluator) checkUserReadiness(result *models.AgentResult) bool {
	if len(result.Deliverables) == 0 {
		return true
	}
	v, ok := result.Deliverables[SummaryKey]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
