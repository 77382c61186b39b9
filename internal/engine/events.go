// Package engine drives workflows through the routing state machine:
// dispatching plan steps to agents, validating results at the quality
// gates, and applying the error policy until the workflow reaches a
// terminal status.
package engine

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventWorkflowStarted indicates dispatch has begun for a workflow.
	EventWorkflowStarted EventType = "workflow_started"
	// EventStatusChanged indicates the workflow moved to a new status.
	EventStatusChanged EventType = "status_changed"
	// EventStepDispatched indicates a step was handed to its agent.
	EventStepDispatched EventType = "step_dispatched"
	// EventStepCompleted indicates a step's result passed the quality gates.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed indicates a step failed after its recovery options.
	EventStepFailed EventType = "step_failed"
	// EventStepSkipped indicates a conditional step's branch was not chosen.
	EventStepSkipped EventType = "step_skipped"
	// EventStepRetrying indicates a failed attempt is being re-dispatched.
	EventStepRetrying EventType = "step_retrying"
	// EventGateViolation indicates a result failed one or more quality gates.
	EventGateViolation EventType = "gate_violation"
	// EventWorkflowCompleted indicates the workflow finished.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowFailed indicates a critical step failed the workflow.
	EventWorkflowFailed EventType = "workflow_failed"
	// EventWorkflowAborted indicates an external cancellation was observed.
	EventWorkflowAborted EventType = "workflow_aborted"
)

// EngineEvent represents an event emitted by the workflow engine.
// These events feed the CLI progress output and the debug log.
type EngineEvent struct {
	// Type is the kind of event.
	Type EventType
	// WorkflowID is the ID of the related workflow.
	WorkflowID string
	// StepID is the ID of the related step, if applicable.
	StepID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Attempt is the dispatch attempt number (for retry events).
	Attempt int
	// ViolatedGates names the gates that failed (for gate events).
	ViolatedGates []string
}
