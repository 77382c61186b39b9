// Package state provides SQLite-based workflow persistence for relay.
package state

import (
	"io"

	"github.com/relaydev/relay/pkg/models"
)

// WorkflowWriter handles workflow-record persistence operations.
type WorkflowWriter interface {
	CreateWorkflow(w *WorkflowRecord) error
	GetWorkflow(id string) (*WorkflowRecord, error)
	UpdateWorkflow(w *WorkflowRecord) error
	ListWorkflows(status *models.WorkflowStatus) ([]WorkflowRecord, error)
}

// StepResultWriter handles per-step result persistence operations.
type StepResultWriter interface {
	RecordStepResult(r *StepResultRecord) error
	ListStepResults(workflowID string) ([]StepResultRecord, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// WorkflowStore defines the interface for workflow persistence.
// This interface allows the engine to work with any state backend
// without depending on the concrete SQLite implementation.
type WorkflowStore interface {
	io.Closer
	Migrator
	WorkflowWriter
	StepResultWriter
}

// Compile-time verification that DB implements all interfaces.
var (
	_ WorkflowStore    = (*DB)(nil)
	_ Migrator         = (*DB)(nil)
	_ WorkflowWriter   = (*DB)(nil)
	_ StepResultWriter = (*DB)(nil)
)
