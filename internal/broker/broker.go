// Package broker builds and propagates the context packages handed to
// agents. The broker enforces least-privilege context: executionContext
// fields outside the downstream agent's declared scope are dropped before
// the package crosses the invocation boundary.
package broker

import (
	"fmt"

	"github.com/relaydev/relay/pkg/models"
)

// Broker builds per-step context packages from the workflow's master
// context. The master carries everything; each dispatched package is a
// minimized copy owned exclusively by its step.
type Broker struct{}

// New creates a context broker.
func New() *Broker {
	return &Broker{}
}

// BuildInitial creates the master context package for a new workflow.
// requestContext is fixed here and copied unchanged across every
// subsequent handoff.
func (b *Broker) BuildInitial(req *models.Request, taskType string) *models.ContextPackage {
	return &models.ContextPackage{
		Request: models.RequestContext{
			OriginalRequest: req.OriginalText,
			TaskType:        taskType,
			Priority:        req.Priority,
			Constraints:     append([]string(nil), req.Constraints...),
		},
		Execution: models.ExecutionContext{
			PreviousOutputs: make(map[string]map[string]any),
		},
	}
}

// Fold merges a completed step's deliverables into a new master package.
// previous_outputs is append-only: an existing entry for the agent keeps
// its keys, and only new deliverable keys are added. The prior package is
// never mutated in place.
func (b *Broker) Fold(master *models.ContextPackage, result *models.AgentResult) *models.ContextPackage {
	next := master.Clone()
	if next.Execution.PreviousOutputs == nil {
		next.Execution.PreviousOutputs = make(map[string]map[string]any)
	}
	entry, ok := next.Execution.PreviousOutputs[result.AgentID]
	if !ok {
		entry = make(map[string]any, len(result.Deliverables))
		next.Execution.PreviousOutputs[result.AgentID] = entry
	}
	for k, v := range result.Deliverables {
		if _, exists := entry[k]; !exists {
			entry[k] = v
		}
	}
	return next
}

// Package builds the scope-filtered package dispatched for one step.
// agentContext is rebuilt fresh from the step's handoff label and any
// explicit instructions carried over from the triggering step's
// diagnostics.
func (b *Broker) Package(master *models.ContextPackage, step *models.ExecutionStep, target *models.AgentDescriptor, instructions []string) *models.ContextPackage {
	pkg := master.Clone()

	reason := step.HandoffLabel
	if reason == "" {
		reason = fmt.Sprintf("route %s work to %s", step.Category, target.ID)
	}
	pkg.Agent = models.AgentContext{
		TargetAgent:         target.ID,
		HandoffReason:       reason,
		ExpectedOutput:      append([]string(nil), step.ExpectedDeliverables...),
		HandoffInstructions: append([]string(nil), instructions...),
	}

	pkg.Execution = b.minimize(pkg.Execution, target.Scope)
	return pkg
}

// Propagate folds a completed step's result into the master and builds
// the next step's package in one call. It returns the new master alongside
// the dispatched package.
func (b *Broker) Propagate(master *models.ContextPackage, result *models.AgentResult, nextStep *models.ExecutionStep, target *models.AgentDescriptor) (*models.ContextPackage, *models.ContextPackage) {
	next := b.Fold(master, result)
	return next, b.Package(next, nextStep, target, result.Diagnostics)
}

// Augment returns a copy of a package with failure diagnostics appended
// to its handoff instructions. A retry is never a byte-identical resend.
func (b *Broker) Augment(pkg *models.ContextPackage, diagnostics []string) *models.ContextPackage {
	out := pkg.Clone()
	for _, d := range diagnostics {
		out.Agent.HandoffInstructions = append(out.Agent.HandoffInstructions,
			fmt.Sprintf("previous attempt: %s", d))
	}
	return out
}

// minimize drops executionContext fields the target's scope does not
// include. Excludes override includes.
func (b *Broker) minimize(exec models.ExecutionContext, scope models.Scope) models.ExecutionContext {
	out := models.ExecutionContext{}
	if scope.Allows(models.FieldTargetFiles) {
		out.TargetFiles = exec.TargetFiles
	}
	if scope.Allows(models.FieldTechStack) {
		out.TechStack = exec.TechStack
	}
	if scope.Allows(models.FieldPreviousOutputs) {
		out.PreviousOutputs = exec.PreviousOutputs
	}
	return out
}
