package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaydev/relay/internal/broker"
	"github.com/relaydev/relay/internal/gates"
	"github.com/relaydev/relay/internal/invoke"
	"github.com/relaydev/relay/internal/policy"
	"github.com/relaydev/relay/internal/registry"
	"github.com/relaydev/relay/internal/state"
	"github.com/relaydev/relay/pkg/models"
)

// Sentinel errors for engine operations.
var (
	ErrEmptyPlan       = errors.New("execution plan has no steps")
	ErrUnresolvedDep   = errors.New("step depends on an unknown step")
	ErrDependencyCycle = errors.New("execution plan contains a dependency cycle")
)

// DefaultStepTimeout bounds how long a single agent invocation may run.
const DefaultStepTimeout = 5 * time.Minute

// Options configures an Engine.
type Options struct {
	// RetryBudget is the number of retries each step gets beyond its first
	// attempt. Zero or negative falls back to policy.DefaultRetryBudget.
	RetryBudget int
	// StepTimeout bounds each agent invocation. Zero or negative falls
	// back to DefaultStepTimeout.
	StepTimeout time.Duration
	// Store persists workflow records and step results. Nil disables
	// persistence.
	Store state.WorkflowStore
	// Logger receives debug output. Nil disables it.
	Logger *DebugLogger
	// Emitter receives progress events. Nil disables them.
	Emitter *EventEmitter
}

// Engine advances workflows through the routing state machine. A single
// Engine may run many workflows; each Run owns its workflow state
// exclusively, and status transitions are serialized on the engine mutex.
type Engine struct {
	reg     *registry.Registry
	broker  *broker.Broker
	gates   *gates.Evaluator
	policy  *policy.Handler
	invoker invoke.Invoker
	opts    Options
	mu      sync.Mutex
}

// New creates an engine over a validated registry and an agent invoker.
func New(reg *registry.Registry, invoker invoke.Invoker, opts Options) *Engine {
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = policy.DefaultRetryBudget
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger()
	}
	return &Engine{
		reg:     reg,
		broker:  broker.New(),
		gates:   gates.New(),
		policy:  policy.New(),
		invoker: invoker,
		opts:    opts,
	}
}

// Run executes a plan to a terminal status and returns the workflow
// result. The result always carries a resolution: aggregated deliverables
// on success, or the partial results plus a structured failure reason on
// failure or abort. A non-nil error is reserved for invalid input, never
// for workflow-level failure.
func (e *Engine) Run(ctx context.Context, req *models.Request, plan *models.ExecutionPlan) (*models.WorkflowResult, error) {
	if err := e.validatePlan(plan); err != nil {
		return nil, err
	}

	st := models.NewWorkflowState(uuid.New().String(), plan)
	st.StartedAt = time.Now()
	e.persistCreate(st, req)
	e.emit(EngineEvent{Type: EventWorkflowStarted, WorkflowID: st.WorkflowID, Timestamp: time.Now()})
	e.opts.Logger.Log("workflow %s: %d steps planned", st.WorkflowID, len(plan.Steps))

	e.transition(st, models.StatusRunning)

	master := e.broker.BuildInitial(req, plan.Steps[0].Category)
	partial := false
	failure := ""
	// failedResults holds the last validated-against result of steps that
	// failed terminally. They appear in the final result but never feed
	// branch conditions.
	failedResults := make(map[string]models.AgentResult)

	for {
		if e.status(st).Terminal() {
			break
		}
		if ctx.Err() != nil {
			failure = e.abort(st)
			break
		}

		ready, changed := e.gatherReady(st)
		if len(ready) == 0 {
			if changed {
				continue
			}
			break
		}

		outcomes := e.dispatch(ctx, st, ready, master)

		// Abort wins over any in-flight results: nothing from this stage
		// is merged once cancellation was observed.
		if ctx.Err() != nil || anyCanceled(outcomes) {
			failure = e.abort(st)
			break
		}

		// Join barrier: outcomes merge in plan-step order, never in
		// completion order, so the merged context is the same whichever
		// branch finished first.
		criticalFailed := false
		for i := range outcomes {
			o := &outcomes[i]
			if o.err == nil {
				st.StepStatuses[o.step.ID] = models.StepDone
				st.RecordResult(o.step.AgentID, *o.result)
				master = e.broker.Fold(master, o.result)
				e.persistStep(st, o)
				e.emit(EngineEvent{
					Type: EventStepCompleted, WorkflowID: st.WorkflowID,
					StepID: o.step.ID, AgentID: o.result.AgentID,
					Attempt: o.attempts, Timestamp: time.Now(),
				})
				continue
			}

			st.StepStatuses[o.step.ID] = models.StepFailed
			dropPending(st, o.step.AgentID)
			if o.result != nil {
				failedResults[o.step.AgentID] = *o.result
			}
			e.persistStep(st, o)
			e.emit(EngineEvent{
				Type: EventStepFailed, WorkflowID: st.WorkflowID,
				StepID: o.step.ID, AgentID: o.step.AgentID,
				Attempt: o.attempts, Error: o.err, Timestamp: time.Now(),
			})
			e.opts.Logger.Log("step %s: failed terminally: %v", o.step.ID, o.err)

			if o.step.Critical {
				criticalFailed = true
				if failure == "" {
					failure = fmt.Sprintf("critical step %s (%s): %v", o.step.ID, o.class, o.err)
				}
			} else {
				partial = true
			}
		}

		if criticalFailed {
			e.transition(st, models.StatusFailed)
			break
		}
		if hasPendingSteps(st) {
			e.transition(st, models.StatusRunning)
			continue
		}
		e.transition(st, models.StatusCompleted)
	}

	if !e.status(st).Terminal() {
		e.transition(st, models.StatusCompleted)
	}

	now := time.Now()
	st.CompletedAt = &now

	results := make(map[string]models.AgentResult, len(st.Results)+len(failedResults))
	for k, v := range st.Results {
		results[k] = v
	}
	for k, v := range failedResults {
		if _, ok := results[k]; !ok {
			results[k] = v
		}
	}

	res := &models.WorkflowResult{
		WorkflowID:    st.WorkflowID,
		Status:        e.status(st),
		Partial:       partial,
		Results:       results,
		FailureReason: failure,
	}
	e.persistFinish(st, res)
	e.emitTerminal(res)
	e.opts.Logger.Log("workflow %s: %s (partial=%v)", st.WorkflowID, res.Status, res.Partial)
	return res, nil
}

// validatePlan rejects plans the engine cannot run: empty plans, unknown
// agents, unresolved dependencies, and dependency cycles. Validation
// failures surface before any dispatch.
func (e *Engine) validatePlan(plan *models.ExecutionPlan) error {
	if plan == nil || len(plan.Steps) == 0 {
		return ErrEmptyPlan
	}

	ids := make(map[string]bool, len(plan.Steps))
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if !e.reg.Has(step.AgentID) {
			return fmt.Errorf("%w: step %s references %s", registry.ErrAgentNotFound, step.ID, step.AgentID)
		}
		ids[step.ID] = true
	}

	indegree := make(map[string]int, len(plan.Steps))
	dependents := make(map[string][]string)
	for i := range plan.Steps {
		step := &plan.Steps[i]
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("%w: step %s depends on %s", ErrUnresolvedDep, step.ID, dep)
			}
			indegree[step.ID]++
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	// Kahn's algorithm: every step must be reachable from the roots.
	var queue []string
	for i := range plan.Steps {
		if indegree[plan.Steps[i].ID] == 0 {
			queue = append(queue, plan.Steps[i].ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(plan.Steps) {
		return ErrDependencyCycle
	}
	return nil
}

// transition moves the workflow to the target status when the state
// machine allows it. Equal statuses are a no-op so overlapping parallel
// branches can converge. Returns false when the move is not legal.
func (e *Engine) transition(st *models.WorkflowState, target models.WorkflowStatus) bool {
	e.mu.Lock()
	cur := st.Status
	if cur == target {
		e.mu.Unlock()
		return true
	}
	if !cur.CanTransitionTo(target) {
		e.mu.Unlock()
		return false
	}
	st.Status = target
	e.mu.Unlock()

	e.emit(EngineEvent{
		Type: EventStatusChanged, WorkflowID: st.WorkflowID,
		Message: fmt.Sprintf("%s -> %s", cur, target), Timestamp: time.Now(),
	})
	e.opts.Logger.Log("workflow %s: %s -> %s", st.WorkflowID, cur, target)
	return true
}

// status reads the workflow status under the engine mutex.
func (e *Engine) status(st *models.WorkflowState) models.WorkflowStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return st.Status
}

// abort moves the workflow to aborted and returns the failure reason.
func (e *Engine) abort(st *models.WorkflowState) string {
	e.transition(st, models.StatusAborted)
	e.emit(EngineEvent{Type: EventWorkflowAborted, WorkflowID: st.WorkflowID, Timestamp: time.Now()})
	return "external cancellation observed"
}

// bumpRetry increments a step's retry counter under the engine mutex.
func (e *Engine) bumpRetry(st *models.WorkflowState, stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st.RetryCounts[stepID]++
}

func (e *Engine) emit(ev EngineEvent) {
	if e.opts.Emitter != nil {
		e.opts.Emitter.Emit(ev)
	}
}

func (e *Engine) emitTerminal(res *models.WorkflowResult) {
	ev := EngineEvent{WorkflowID: res.WorkflowID, Timestamp: time.Now(), Message: res.FailureReason}
	switch res.Status {
	case models.StatusCompleted:
		ev.Type = EventWorkflowCompleted
	case models.StatusFailed:
		ev.Type = EventWorkflowFailed
	case models.StatusAborted:
		ev.Type = EventWorkflowAborted
	default:
		return
	}
	e.emit(ev)
}

// Persistence is best-effort: a storage failure is logged, never fatal to
// the workflow itself.

func (e *Engine) persistCreate(st *models.WorkflowState, req *models.Request) {
	if e.opts.Store == nil {
		return
	}
	err := e.opts.Store.CreateWorkflow(&state.WorkflowRecord{
		ID:          st.WorkflowID,
		RequestText: req.OriginalText,
		Status:      st.Status,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		e.opts.Logger.Log("persist workflow %s: %v", st.WorkflowID, err)
	}
}

func (e *Engine) persistStep(st *models.WorkflowState, o *stepOutcome) {
	if e.opts.Store == nil {
		return
	}
	rec := &state.StepResultRecord{
		WorkflowID: st.WorkflowID,
		StepID:     o.step.ID,
		AgentID:    o.step.AgentID,
		Status:     models.ResultFailure,
		Attempts:   o.attempts,
		RecordedAt: time.Now(),
	}
	if o.result != nil {
		rec.AgentID = o.result.AgentID
		rec.Status = o.result.Status
		rec.Deliverables = o.result.Deliverables
		rec.Diagnostics = o.result.Diagnostics
	} else if o.err != nil {
		rec.Diagnostics = []string{o.err.Error()}
	}
	if err := e.opts.Store.RecordStepResult(rec); err != nil {
		e.opts.Logger.Log("persist step %s: %v", o.step.ID, err)
	}
}

func (e *Engine) persistFinish(st *models.WorkflowState, res *models.WorkflowResult) {
	if e.opts.Store == nil {
		return
	}
	err := e.opts.Store.UpdateWorkflow(&state.WorkflowRecord{
		ID:            st.WorkflowID,
		Status:        res.Status,
		Partial:       res.Partial,
		FailureReason: res.FailureReason,
		CompletedAt:   st.CompletedAt,
	})
	if err != nil {
		e.opts.Logger.Log("persist workflow %s finish: %v", st.WorkflowID, err)
	}
}
