package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaydev/relay/pkg/models"
)

// WorkflowRecord is the persisted view of a workflow.
type WorkflowRecord struct {
	ID            string                `json:"id"`
	RequestText   string                `json:"request_text"`
	Status        models.WorkflowStatus `json:"status"`
	Partial       bool                  `json:"partial"`
	FailureReason string                `json:"failure_reason"`
	CreatedAt     time.Time             `json:"created_at"`
	CompletedAt   *time.Time            `json:"completed_at"`
}

// StepResultRecord is the persisted result of a single plan step.
// Deliverables and diagnostics are stored as JSON.
type StepResultRecord struct {
	WorkflowID   string              `json:"workflow_id"`
	StepID       string              `json:"step_id"`
	AgentID      string              `json:"agent_id"`
	Status       models.ResultStatus `json:"status"`
	Attempts     int                 `json:"attempts"`
	Deliverables map[string]any      `json:"deliverables"`
	Diagnostics  []string            `json:"diagnostics"`
	RecordedAt   time.Time           `json:"recorded_at"`
}

// Workflow CRUD operations

// CreateWorkflow creates a new workflow record.
func (db *DB) CreateWorkflow(w *WorkflowRecord) error {
	var failureReason *string
	if w.FailureReason != "" {
		failureReason = &w.FailureReason
	}

	_, err := db.Exec(`
		INSERT INTO workflows (id, request_text, status, partial, failure_reason, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.RequestText, string(w.Status), boolToInt(w.Partial), failureReason, formatTime(w.CreatedAt), nil)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID. Returns nil if not found.
func (db *DB) GetWorkflow(id string) (*WorkflowRecord, error) {
	row := db.QueryRow(`
		SELECT id, request_text, status, partial, failure_reason, created_at, completed_at
		FROM workflows WHERE id = ?
	`, id)

	w, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

// UpdateWorkflow updates a workflow's status fields.
func (db *DB) UpdateWorkflow(w *WorkflowRecord) error {
	var failureReason *string
	if w.FailureReason != "" {
		failureReason = &w.FailureReason
	}
	var completedAt *string
	if w.CompletedAt != nil {
		s := formatTime(*w.CompletedAt)
		completedAt = &s
	}

	_, err := db.Exec(`
		UPDATE workflows SET status = ?, partial = ?, failure_reason = ?, completed_at = ?
		WHERE id = ?
	`, string(w.Status), boolToInt(w.Partial), failureReason, completedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	return nil
}

// ListWorkflows lists all workflows, optionally filtered by status,
// newest first.
func (db *DB) ListWorkflows(status *models.WorkflowStatus) ([]WorkflowRecord, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, request_text, status, partial, failure_reason, created_at, completed_at
			FROM workflows WHERE status = ? ORDER BY created_at DESC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, request_text, status, partial, failure_reason, created_at, completed_at
			FROM workflows ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []WorkflowRecord
	for rows.Next() {
		w, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, *w)
	}
	return workflows, nil
}

// ListActiveWorkflows returns workflows that are not in a terminal status.
func (db *DB) ListActiveWorkflows() ([]WorkflowRecord, error) {
	rows, err := db.Query(`
		SELECT id, request_text, status, partial, failure_reason, created_at, completed_at
		FROM workflows WHERE status NOT IN ('completed', 'failed', 'aborted')
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active workflows: %w", err)
	}
	defer rows.Close()

	var workflows []WorkflowRecord
	for rows.Next() {
		w, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, *w)
	}
	return workflows, nil
}

// scanWorkflow scans one workflow row through the given scan function.
func scanWorkflow(scan func(...any) error) (*WorkflowRecord, error) {
	var w WorkflowRecord
	var partial int
	var failureReason sql.NullString
	var createdAt string
	var completedAt sql.NullString
	if err := scan(&w.ID, &w.RequestText, &w.Status, &partial, &failureReason, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	w.Partial = partial != 0
	if failureReason.Valid {
		w.FailureReason = failureReason.String
	}
	w.CreatedAt, _ = parseTime(createdAt)
	w.CompletedAt = parseNullableTime(completedAt)
	return &w, nil
}

// Step result operations

// RecordStepResult inserts or replaces the result for one step of a
// workflow. Re-recording a step (a retry that eventually succeeded)
// overwrites the earlier row.
func (db *DB) RecordStepResult(r *StepResultRecord) error {
	deliverables, err := json.Marshal(r.Deliverables)
	if err != nil {
		return fmt.Errorf("encode deliverables: %w", err)
	}
	diagnostics, err := json.Marshal(r.Diagnostics)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO step_results
			(workflow_id, step_id, agent_id, status, attempts, deliverables, diagnostics, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.WorkflowID, r.StepID, r.AgentID, string(r.Status), r.Attempts,
		string(deliverables), string(diagnostics), formatTime(r.RecordedAt))
	if err != nil {
		return fmt.Errorf("record step result: %w", err)
	}
	return nil
}

// ListStepResults lists all recorded step results for a workflow,
// ordered by step ID.
func (db *DB) ListStepResults(workflowID string) ([]StepResultRecord, error) {
	rows, err := db.Query(`
		SELECT workflow_id, step_id, agent_id, status, attempts, deliverables, diagnostics, recorded_at
		FROM step_results WHERE workflow_id = ? ORDER BY step_id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var results []StepResultRecord
	for rows.Next() {
		var r StepResultRecord
		var deliverables, diagnostics sql.NullString
		var recordedAt string
		if err := rows.Scan(&r.WorkflowID, &r.StepID, &r.AgentID, &r.Status, &r.Attempts, &deliverables, &diagnostics, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		if deliverables.Valid {
			json.Unmarshal([]byte(deliverables.String), &r.Deliverables)
		}
		if diagnostics.Valid {
			json.Unmarshal([]byte(diagnostics.String), &r.Diagnostics)
		}
		r.RecordedAt, _ = parseTime(recordedAt)
		results = append(results, r)
	}
	return results, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
