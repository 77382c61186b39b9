package models

// AutonomyLevel represents how much decision-making freedom an agent has
// before failures must be escalated to a human.
type AutonomyLevel string

const (
	// AutonomyNone indicates every failure is escalated immediately.
	AutonomyNone AutonomyLevel = "none"
	// AutonomyGuided indicates failures are retried once before escalation.
	AutonomyGuided AutonomyLevel = "guided"
	// AutonomyHigh indicates failures are retried and rerouted automatically.
	AutonomyHigh AutonomyLevel = "high"
)

// Valid returns true if the autonomy level is a known value.
func (a AutonomyLevel) Valid() bool {
	switch a {
	case AutonomyNone, AutonomyGuided, AutonomyHigh:
		return true
	default:
		return false
	}
}

// Scope declares which context fields an agent may receive and which are
// explicitly withheld. Includes and Excludes are field-name predicates
// matched against executionContext keys.
type Scope struct {
	// Includes lists context field names the agent is allowed to see.
	Includes []string `json:"includes,omitempty" yaml:"includes"`
	// Excludes lists context field names that are always withheld.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes"`
}

// Allows reports whether a context field name is inside the agent's
// declared scope. Excludes take precedence over includes.
func (s Scope) Allows(field string) bool {
	for _, e := range s.Excludes {
		if e == field {
			return false
		}
	}
	for _, i := range s.Includes {
		if i == field {
			return true
		}
	}
	return false
}

// HandoffEdge is a directed edge in the agent graph representing a
// permitted transfer of control between two agents.
type HandoffEdge struct {
	// From is the ID of the agent handing off. Filled in at registry load.
	From string `json:"from,omitempty" yaml:"from"`
	// To is the ID of the agent receiving the handoff.
	To string `json:"to" yaml:"to"`
	// Label is a short description of why this handoff happens. It seeds
	// the handoff_reason of the next context package.
	Label string `json:"label" yaml:"label"`
	// Condition is an optional predicate name evaluated against workflow
	// state before the edge fires. Empty means unconditional.
	Condition string `json:"condition,omitempty" yaml:"condition"`
	// AutoSend indicates the edge fires without confirmation.
	AutoSend bool `json:"auto_send" yaml:"auto_send"`
}

// AgentDescriptor describes an external agent capability. Descriptors are
// immutable after registry load.
type AgentDescriptor struct {
	// ID is the unique, stable identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Capabilities is the set of capability tags this agent serves.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Scope declares the context fields this agent may receive.
	Scope Scope `json:"scope" yaml:"scope"`
	// Autonomy is the decision-autonomy level for this agent.
	Autonomy AutonomyLevel `json:"autonomy" yaml:"autonomy"`
	// Handoffs lists the permitted outgoing handoff edges, in order.
	Handoffs []HandoffEdge `json:"handoffs,omitempty" yaml:"handoffs"`
}

// HasCapability returns true if the agent declares the given capability tag.
func (d *AgentDescriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// EdgeTo returns the first handoff edge targeting the given agent ID,
// or nil if no such edge exists.
func (d *AgentDescriptor) EdgeTo(agentID string) *HandoffEdge {
	for i := range d.Handoffs {
		if d.Handoffs[i].To == agentID {
			return &d.Handoffs[i]
		}
	}
	return nil
}
