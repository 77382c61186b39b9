// Package registry provides the static agent catalog and its load-time
// validation. The registry is read-only after load; referential problems
// in the agent graph fail initialization instead of surfacing mid-workflow.
package registry

import (
	"errors"
	"fmt"

	"github.com/relaydev/relay/pkg/models"
)

// Sentinel errors for registry operations.
var (
	ErrNoAgents                = errors.New("registry requires at least one agent")
	ErrDuplicateAgentID        = errors.New("duplicate agent id")
	ErrHandoffTargetUnresolved = errors.New("handoff target does not resolve to a registered agent")
	ErrSelfHandoffCycle        = errors.New("agent lists itself as its sole handoff target")
	ErrInvalidAutonomy         = errors.New("invalid autonomy level")
	ErrAgentNotFound           = errors.New("agent not found")
)

// Registry is the validated, immutable catalog of agent descriptors and
// their handoff edges.
type Registry struct {
	agents map[string]*models.AgentDescriptor
	// order preserves declaration order for deterministic listing.
	order []string
}

// Load validates a set of descriptors and builds a registry. It verifies
// that every ID is unique, every handoff edge resolves to a registered
// agent, and no agent's only handoff edge targets itself. Any violation
// is fatal: the registry is never partially loaded.
func Load(descriptors []models.AgentDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoAgents
	}

	r := &Registry{
		agents: make(map[string]*models.AgentDescriptor, len(descriptors)),
	}

	// First pass: register IDs so edge resolution can see every agent.
	for i := range descriptors {
		d := &descriptors[i]
		if d.ID == "" {
			return nil, fmt.Errorf("agent at index %d: missing id", i)
		}
		if _, exists := r.agents[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgentID, d.ID)
		}
		if d.Autonomy == "" {
			d.Autonomy = models.AutonomyGuided
		}
		if !d.Autonomy.Valid() {
			return nil, fmt.Errorf("%w: agent %s has autonomy %q", ErrInvalidAutonomy, d.ID, d.Autonomy)
		}
		r.agents[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	// Second pass: resolve edges and reject degenerate self-cycles.
	for _, id := range r.order {
		d := r.agents[id]
		selfOnly := len(d.Handoffs) > 0
		for j := range d.Handoffs {
			edge := &d.Handoffs[j]
			edge.From = d.ID
			if _, ok := r.agents[edge.To]; !ok {
				return nil, fmt.Errorf("%w: agent %s -> %s", ErrHandoffTargetUnresolved, d.ID, edge.To)
			}
			if edge.To != d.ID {
				selfOnly = false
			}
		}
		if selfOnly {
			return nil, fmt.Errorf("%w: %s", ErrSelfHandoffCycle, d.ID)
		}
	}

	return r, nil
}

// Lookup returns the descriptor for an agent ID.
func (r *Registry) Lookup(agentID string) (*models.AgentDescriptor, error) {
	d, ok := r.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return d, nil
}

// Has returns true if the agent ID is registered.
func (r *Registry) Has(agentID string) bool {
	_, ok := r.agents[agentID]
	return ok
}

// All returns the registered descriptors in declaration order.
func (r *Registry) All() []*models.AgentDescriptor {
	out := make([]*models.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	return len(r.agents)
}

// AlternateFor returns the first registered agent, in declaration order,
// that shares the given capability with the primary but is not the
// primary itself. Used by the error policy to reroute a failed step.
// Returns an empty string if no alternate exists.
func (r *Registry) AlternateFor(primaryID, capability string) string {
	for _, id := range r.order {
		if id == primaryID {
			continue
		}
		if r.agents[id].HasCapability(capability) {
			return id
		}
	}
	return ""
}

// Edge returns the handoff edge from one agent to another, or nil when the
// source agent declares no such edge.
func (r *Registry) Edge(fromID, toID string) *models.HandoffEdge {
	d, ok := r.agents[fromID]
	if !ok {
		return nil
	}
	return d.EdgeTo(toID)
}
