// Package assess decides whether a classified request needs a single agent
// or a multi-step, multi-agent execution plan, and builds that plan.
package assess

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/relaydev/relay/internal/classify"
	"github.com/relaydev/relay/internal/registry"
	"github.com/relaydev/relay/pkg/models"
)

// ErrNoCandidates indicates classification produced nothing to plan from.
var ErrNoCandidates = errors.New("no candidates to plan from")

// sequencingMarkers are the phrases that imply strict ordering between the
// referenced pieces of work.
var sequencingMarkers = []string{
	" then ", "then ", " after ", "after ", " once ", "once ", "followed by",
}

// branchMarkers signal an explicit branch on a prior result. Both an "if"
// and an alternative clause must be present before conditional steps are
// created.
var (
	branchIfMarker    = "if "
	branchElseMarkers = []string{"otherwise", " else "}
)

// failureWords are clues that a branch clause keys on a failed prior result.
var failureWords = []string{"fail", "fails", "failing", "broken", "error"}

// Assessor turns ranked classification matches into an execution plan.
type Assessor struct {
	reg *registry.Registry
}

// New creates an Assessor over a validated registry.
func New(reg *registry.Registry) *Assessor {
	return &Assessor{reg: reg}
}

// hasSequencing reports whether the request text contains explicit
// sequencing language.
func hasSequencing(lower string) bool {
	for _, m := range sequencingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// hasBranch reports whether the request text explicitly branches on a
// prior result, and returns the offset of the alternative clause.
func hasBranch(lower string) (bool, int) {
	ifIdx := strings.Index(lower, branchIfMarker)
	if ifIdx < 0 {
		return false, 0
	}
	for _, m := range branchElseMarkers {
		if idx := strings.Index(lower, m); idx > ifIdx {
			return true, idx
		}
	}
	return false, 0
}

// Assess builds an execution plan from classification matches.
//
// Decision rules:
//   - exactly one category and no sequencing language: single-step plan
//   - sequencing markers: sequential chain ordered by where each
//     category's evidence appears in the text
//   - several independent categories without markers: parallel steps with
//     a join barrier before plan completion
//   - an explicit "if ... otherwise ..." branch: the earliest step runs
//     first, the remaining steps become conditional on its result
func (a *Assessor) Assess(matches []classify.Match, req *models.Request) (*models.ExecutionPlan, error) {
	if len(matches) == 0 {
		return nil, ErrNoCandidates
	}

	for _, m := range matches {
		if !a.reg.Has(m.Candidate.AgentID) {
			return nil, fmt.Errorf("%w: %s", registry.ErrAgentNotFound, m.Candidate.AgentID)
		}
	}

	lower := strings.ToLower(req.OriginalText)
	plan := &models.ExecutionPlan{ID: uuid.New().String()}

	// Order steps by where their evidence appears in the request. The
	// classifier returns rule-declaration order; text order is what
	// sequencing language refers to.
	ordered := make([]classify.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	branched, elseIdx := hasBranch(lower)
	sequential := hasSequencing(lower)

	switch {
	case len(ordered) == 1 && !sequential:
		plan.Steps = []models.ExecutionStep{a.step(1, ordered[0], models.StepSequential, nil, "")}

	case branched && len(ordered) >= 2:
		plan.Steps = a.branchSteps(ordered, lower, elseIdx)

	case sequential:
		plan.Steps = a.sequentialSteps(ordered)

	default:
		plan.Steps = a.parallelSteps(ordered)
	}

	return plan, nil
}

// step builds one execution step. The handoff label comes from the
// registry edge between the previous agent and this one when the graph
// declares it.
func (a *Assessor) step(n int, m classify.Match, mode models.StepMode, dependsOn []string, prevAgent string) models.ExecutionStep {
	label := fmt.Sprintf("route %s work to %s", m.Candidate.Category, m.Candidate.AgentID)
	if prevAgent != "" {
		if edge := a.reg.Edge(prevAgent, m.Candidate.AgentID); edge != nil {
			label = edge.Label
		}
	}
	return models.ExecutionStep{
		ID:                   fmt.Sprintf("step-%d", n),
		AgentID:              m.Candidate.AgentID,
		Category:             m.Candidate.Category,
		Mode:                 mode,
		DependsOn:            dependsOn,
		Critical:             true,
		ExpectedDeliverables: []string{m.Candidate.Category},
		HandoffLabel:         label,
	}
}

// sequentialSteps chains steps in text order.
func (a *Assessor) sequentialSteps(ordered []classify.Match) []models.ExecutionStep {
	steps := make([]models.ExecutionStep, 0, len(ordered))
	prevAgent := ""
	for i, m := range ordered {
		var deps []string
		if i > 0 {
			deps = []string{fmt.Sprintf("step-%d", i)}
		}
		steps = append(steps, a.step(i+1, m, models.StepSequential, deps, prevAgent))
		prevAgent = m.Candidate.AgentID
	}
	return steps
}

// parallelSteps emits independent steps joined at a barrier by the engine.
func (a *Assessor) parallelSteps(ordered []classify.Match) []models.ExecutionStep {
	steps := make([]models.ExecutionStep, 0, len(ordered))
	for i, m := range ordered {
		steps = append(steps, a.step(i+1, m, models.StepParallel, nil, ""))
	}
	return steps
}

// branchSteps builds a base step plus conditional branches keyed on the
// base step's result. The branch whose evidence sits in the "if" clause
// fires on the status that clause names; the alternative clause fires on
// the opposite status. Unchosen branches are pruned at runtime, never
// executed or retried.
func (a *Assessor) branchSteps(ordered []classify.Match, lower string, elseIdx int) []models.ExecutionStep {
	base := a.step(1, ordered[0], models.StepSequential, nil, "")
	steps := []models.ExecutionStep{base}

	ifStatus := models.ResultFailure
	ifIdx := strings.Index(lower, branchIfMarker)
	ifClause := lower[ifIdx:elseIdx]
	if !containsAny(ifClause, failureWords) {
		ifStatus = models.ResultSuccess
	}
	elseStatus := models.ResultSuccess
	if ifStatus == models.ResultSuccess {
		elseStatus = models.ResultFailure
	}

	for i, m := range ordered[1:] {
		s := a.step(i+2, m, models.StepConditional, []string{base.ID}, base.AgentID)
		status := ifStatus
		if m.Position >= elseIdx {
			status = elseStatus
		}
		s.Condition = &models.StepCondition{AgentID: base.AgentID, WhenStatus: status}
		// Branch steps degrade the workflow to partial success on
		// failure instead of failing it outright.
		s.Critical = false
		steps = append(steps, s)
	}
	return steps
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
