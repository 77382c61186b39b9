package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relaydev/relay/internal/invoke"
	"github.com/relaydev/relay/internal/policy"
	"github.com/relaydev/relay/pkg/models"
)

// missingInputPrefix marks a diagnostic reporting an absent required
// input. Such failures escalate immediately; the engine never guesses.
const missingInputPrefix = "missing input"

// stepOutcome is the terminal result of one step's attempt loop.
type stepOutcome struct {
	step *models.ExecutionStep
	// result is the last result validated, present even on failure when
	// the agent produced one.
	result   *models.AgentResult
	attempts int
	class    policy.FailureClass
	// err is nil iff the step completed with a gate-passing result.
	err error
}

// gatherReady collects the pending steps whose dependencies are all done,
// pruning along the way: conditional steps whose branch was not chosen
// and steps behind a failed or skipped dependency are marked skipped,
// never dispatched. Returns the ready steps in plan order and whether any
// step was pruned.
func (e *Engine) gatherReady(st *models.WorkflowState) ([]*models.ExecutionStep, bool) {
	var ready []*models.ExecutionStep
	changed := false

	for i := range st.Plan.Steps {
		step := &st.Plan.Steps[i]
		if st.StepStatuses[step.ID] != models.StepPending {
			continue
		}

		depsDone := true
		depsBroken := false
		for _, dep := range step.DependsOn {
			switch st.StepStatuses[dep] {
			case models.StepDone:
			case models.StepFailed, models.StepSkipped:
				depsBroken = true
			default:
				depsDone = false
			}
		}
		if depsBroken {
			e.skipStep(st, step, "dependency did not complete")
			changed = true
			continue
		}
		if !depsDone {
			continue
		}
		if step.Mode == models.StepConditional && step.Condition != nil && !step.Condition.Holds(st.Results) {
			e.skipStep(st, step, "branch not chosen")
			changed = true
			continue
		}
		ready = append(ready, step)
	}
	return ready, changed
}

// skipStep prunes a step: it is marked skipped, never dispatched, and
// consumes no retries.
func (e *Engine) skipStep(st *models.WorkflowState, step *models.ExecutionStep, reason string) {
	st.StepStatuses[step.ID] = models.StepSkipped
	dropPending(st, step.AgentID)
	e.emit(EngineEvent{
		Type: EventStepSkipped, WorkflowID: st.WorkflowID,
		StepID: step.ID, AgentID: step.AgentID,
		Message: reason, Timestamp: time.Now(),
	})
	e.opts.Logger.Log("step %s: skipped (%s)", step.ID, reason)
}

// dispatch runs the ready steps concurrently and waits for all of them at
// the join barrier. Outcomes are returned in plan order regardless of
// which step finished first.
func (e *Engine) dispatch(ctx context.Context, st *models.WorkflowState, ready []*models.ExecutionStep, master *models.ContextPackage) []stepOutcome {
	outcomes := make([]stepOutcome, len(ready))
	var wg sync.WaitGroup
	for i := range ready {
		step := ready[i]
		st.StepStatuses[step.ID] = models.StepRunning
		wg.Add(1)
		go func(i int, step *models.ExecutionStep) {
			defer wg.Done()
			outcomes[i] = e.runStep(ctx, st, step, master)
		}(i, step)
	}
	wg.Wait()
	return outcomes
}

// runStep drives one step's attempt loop: dispatch, validate, and apply
// the error policy until the result passes the gates or the policy stops
// retrying. The master package is read-only here; every dispatched
// package is a scope-filtered copy.
func (e *Engine) runStep(ctx context.Context, st *models.WorkflowState, step *models.ExecutionStep, master *models.ContextPackage) stepOutcome {
	out := stepOutcome{step: step}

	target, err := e.reg.Lookup(step.AgentID)
	if err != nil {
		out.class = policy.FailureInvocation
		out.err = err
		return out
	}

	instructions := e.carriedInstructions(st, step)
	pkg := e.broker.Package(master, step, target, instructions)

	attempt := 1
	for {
		e.transition(st, models.StatusWaitingForAgent)
		e.emit(EngineEvent{
			Type: EventStepDispatched, WorkflowID: st.WorkflowID,
			StepID: step.ID, AgentID: target.ID,
			Attempt: attempt, Timestamp: time.Now(),
		})
		e.opts.Logger.Log("step %s: dispatching to %s (attempt %d)", step.ID, target.ID, attempt)

		stepCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
		result, invokeErr := e.invoker.Invoke(stepCtx, pkg)
		cancel()

		e.transition(st, models.StatusValidating)

		var class policy.FailureClass
		var diagnostics []string
		switch {
		case invokeErr != nil:
			class = classifyInvokeError(ctx, invokeErr)
			diagnostics = []string{invokeErr.Error()}

		case reportsMissingInput(result):
			class = policy.FailureMissingInput
			diagnostics = result.Diagnostics
			out.result = result

		default:
			gr := e.gates.Evaluate(result, step.ExpectedDeliverables)
			if gr.Passed {
				out.result = result
				out.attempts = attempt
				return out
			}
			class = policy.FailureGateViolation
			diagnostics = gateDiagnostics(gr)
			out.result = result
			e.emit(EngineEvent{
				Type: EventGateViolation, WorkflowID: st.WorkflowID,
				StepID: step.ID, AgentID: target.ID,
				ViolatedGates: gr.ViolatedGates, Timestamp: time.Now(),
			})
		}

		resolution := e.policy.Resolve(class, attempt, policy.Options{
			Budget:       e.opts.RetryBudget,
			HasAlternate: e.reg.AlternateFor(target.ID, step.Category) != "",
			Autonomy:     string(target.Autonomy),
		})
		e.opts.Logger.Log("step %s: attempt %d failed (%s), resolution %s", step.ID, attempt, class, resolution)

		switch resolution {
		case policy.Abort:
			out.class = class
			out.attempts = attempt
			out.err = fmt.Errorf("step %s canceled", step.ID)
			return out

		case policy.Escalate:
			out.class = class
			out.attempts = attempt
			if attempt > e.opts.RetryBudget {
				out.err = fmt.Errorf("step %s: %w after %d attempts: %s",
					step.ID, policy.ErrRetryBudgetExhausted, attempt, strings.Join(diagnostics, "; "))
			} else {
				out.err = fmt.Errorf("step %s escalated (%s): %s",
					step.ID, class, strings.Join(diagnostics, "; "))
			}
			return out

		case policy.RetryAlternateAgent:
			altID := e.reg.AlternateFor(target.ID, step.Category)
			alt, lookupErr := e.reg.Lookup(altID)
			if lookupErr != nil {
				out.class = class
				out.attempts = attempt
				out.err = lookupErr
				return out
			}
			target = alt
			pkg = e.broker.Augment(e.broker.Package(master, step, target, instructions), diagnostics)
			e.emit(EngineEvent{
				Type: EventStepRetrying, WorkflowID: st.WorkflowID,
				StepID: step.ID, AgentID: target.ID, Attempt: attempt,
				Message: fmt.Sprintf("rerouted to %s", altID), Timestamp: time.Now(),
			})

		case policy.RetrySameAgent:
			// Each retry carries the failure diagnostics; a retry is never
			// a byte-identical resend.
			pkg = e.broker.Augment(pkg, diagnostics)
			e.emit(EngineEvent{
				Type: EventStepRetrying, WorkflowID: st.WorkflowID,
				StepID: step.ID, AgentID: target.ID, Attempt: attempt,
				Timestamp: time.Now(),
			})
		}

		e.transition(st, models.StatusRetrying)
		e.bumpRetry(st, step.ID)
		attempt++
	}
}

// carriedInstructions returns the diagnostics of a step's single
// dependency, so advice from the previous agent travels with the handoff.
func (e *Engine) carriedInstructions(st *models.WorkflowState, step *models.ExecutionStep) []string {
	if len(step.DependsOn) != 1 {
		return nil
	}
	dep := st.Plan.Step(step.DependsOn[0])
	if dep == nil {
		return nil
	}
	if r, ok := st.Results[dep.AgentID]; ok {
		return r.Diagnostics
	}
	return nil
}

// classifyInvokeError maps an invocation error to its failure class.
func classifyInvokeError(ctx context.Context, err error) policy.FailureClass {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
		return policy.FailureCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return policy.FailureTimeout
	case errors.Is(err, invoke.ErrMalformedResult):
		return policy.FailureMalformedOutput
	default:
		return policy.FailureInvocation
	}
}

// reportsMissingInput detects an agent-reported absent input. A result
// that passes the gates normally completes its step even with a failure
// status (a test run that found failing tests is still a completed step);
// missing input is the exception because only the caller can supply it.
func reportsMissingInput(result *models.AgentResult) bool {
	if result.Status != models.ResultFailure {
		return false
	}
	for _, d := range result.Diagnostics {
		if strings.HasPrefix(strings.ToLower(d), missingInputPrefix) {
			return true
		}
	}
	return false
}

// gateDiagnostics renders gate violations as retry instructions.
func gateDiagnostics(gr models.QualityGateResult) []string {
	out := make([]string, 0, len(gr.ViolatedGates))
	for _, g := range gr.ViolatedGates {
		out = append(out, fmt.Sprintf("quality gate violated: %s", g))
	}
	return out
}

func anyCanceled(outcomes []stepOutcome) bool {
	for i := range outcomes {
		if outcomes[i].err != nil && outcomes[i].class == policy.FailureCanceled {
			return true
		}
	}
	return false
}

func dropPending(st *models.WorkflowState, agentID string) {
	for i, id := range st.Pending {
		if id == agentID {
			st.Pending = append(st.Pending[:i], st.Pending[i+1:]...)
			return
		}
	}
}

func hasPendingSteps(st *models.WorkflowState) bool {
	for _, s := range st.StepStatuses {
		if s == models.StepPending {
			return true
		}
	}
	return false
}
