// Package models defines the shared data model for the relay workflow engine:
// agent descriptors, requests, execution plans, context packages, agent
// results, and workflow state.
package models

import "time"

// Priority represents the urgency of an incoming request.
type Priority string

const (
	// PriorityNormal is the default request priority.
	PriorityNormal Priority = "normal"
	// PriorityHigh indicates the request should be handled ahead of normal work.
	PriorityHigh Priority = "high"
	// PriorityUrgent indicates the request preempts other work.
	PriorityUrgent Priority = "urgent"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Request is an incoming unit of work to be routed to one or more agents.
// It lives from ingestion until the workflow reaches a terminal status.
type Request struct {
	// OriginalText is the raw request text as received.
	OriginalText string `json:"original_text"`
	// Priority is the urgency of the request.
	Priority Priority `json:"priority"`
	// Constraints lists caller-supplied constraints on execution.
	Constraints []string `json:"constraints,omitempty"`
	// ReceivedAt is when the request was ingested.
	ReceivedAt time.Time `json:"received_at"`
}

// CategoryAmbiguous is the task category assigned when no classification
// rule matches a request. Ambiguous requests route to the fallback agent.
const CategoryAmbiguous = "ambiguous"

// RankedCandidate is one classification outcome: a task category, the agent
// that should serve it, and the classifier's confidence in the match.
type RankedCandidate struct {
	// Category is the task category tag (e.g. generation, healing).
	Category string `json:"category"`
	// AgentID is the registered agent that serves this category.
	AgentID string `json:"agent_id"`
	// Confidence is the match strength in [0, 1]. Ties between rules are
	// broken by declaration order, never by confidence magnitude.
	Confidence float64 `json:"confidence"`
}
