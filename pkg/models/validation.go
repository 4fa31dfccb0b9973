package models

import (
	"time"
)

// WorkflowStatus represents the overall state of a validation run.
// Terminal states are final; re-validation creates a new workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
)

// StepStatus represents the state of one step within a workflow.
type StepStatus string

const (
	StepStatusQueued    StepStatus = "queued"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Terminal reports whether the step has reached a final state.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// StepType is the fixed enumeration of validation phases.
type StepType string

const (
	StepTypeCodeQuality          StepType = "code_quality"
	StepTypeSecurity             StepType = "security"
	StepTypeAppRequirements      StepType = "app_requirements"
	StepTypePlatformRequirements StepType = "platform_requirements"
	StepTypeExternalIntegration  StepType = "external_integration"

	// Reserved step types with no executor yet; requesting them yields a
	// skipped step, never a failure.
	StepTypePerformance   StepType = "performance"
	StepTypeDocumentation StepType = "documentation"
)

// DefaultStepTypes is the order used when a request does not name steps.
var DefaultStepTypes = []StepType{
	StepTypeCodeQuality,
	StepTypeSecurity,
	StepTypeAppRequirements,
	StepTypePlatformRequirements,
	StepTypeExternalIntegration,
}

// Severity classifies a finding, ordered by ascending severity.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Workflow is one end-to-end validation run for one application.
type Workflow struct {
	ID                string                 `json:"id" db:"id"`
	ApplicationID     string                 `json:"application_id" db:"application_id"`
	Status            WorkflowStatus         `json:"status" db:"status"`
	CreatedAt         time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
	InitiatedBy       string                 `json:"initiated_by" db:"initiated_by"`
	RepositoryURL     *string                `json:"repository_url,omitempty" db:"repository_url"`
	CommitID          *string                `json:"commit_id,omitempty" db:"commit_id"`
	Request           map[string]interface{} `json:"request,omitempty" db:"request"` // JSONB audit copy of the triggering request
	OverallCompliance *bool                  `json:"overall_compliance,omitempty" db:"overall_compliance"`
	Summary           *string                `json:"summary,omitempty" db:"summary"`
}

// Step is one named phase within a workflow. Exactly one step exists per
// (workflow, step type) pair; a step is mutated only by its own executor.
type Step struct {
	ID                string                 `json:"id" db:"id"`
	WorkflowID        string                 `json:"workflow_id" db:"workflow_id"`
	StepType          StepType               `json:"step_type" db:"step_type"`
	Status            StepStatus             `json:"status" db:"status"`
	StartedAt         *time.Time             `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
	ResultSummary     *string                `json:"result_summary,omitempty" db:"result_summary"`
	Details           map[string]interface{} `json:"details,omitempty" db:"details"` // JSONB
	ErrorMessage      *string                `json:"error_message,omitempty" db:"error_message"`
	IntegrationSource *string                `json:"integration_source,omitempty" db:"integration_source"`
}

// Finding is one concern raised during a step. Findings are append-only and
// outlive their step for audit purposes.
type Finding struct {
	ID             string   `json:"id" db:"id"`
	StepID         string   `json:"step_id" db:"step_id"`
	Description    string   `json:"description" db:"description"`
	Severity       Severity `json:"severity" db:"severity"`
	CodeLocation   *string  `json:"code_location,omitempty" db:"code_location"`
	Recommendation *string  `json:"recommendation,omitempty" db:"recommendation"`
}

// IntegrationConfig describes one external integration to health-check
// during the external_integration step.
type IntegrationConfig struct {
	BaseURL string            `json:"base_url"`
	APIKey  string            `json:"api_key,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// ValidationRequest is the caller-supplied payload that starts a workflow.
type ValidationRequest struct {
	RepositoryURL string                       `json:"repository_url,omitempty"`
	CommitID      string                       `json:"commit_id,omitempty"`
	Steps         []StepType                   `json:"steps,omitempty"`
	Integrations  map[string]IntegrationConfig `json:"integrations,omitempty"`
	// HeuristicOnly forces the analyzer to skip the LLM tier for this run.
	HeuristicOnly bool `json:"heuristic_only,omitempty"`
}

// WorkflowSnapshot is the read-only polling view of a workflow and its steps.
type WorkflowSnapshot struct {
	Workflow
	Steps []Step `json:"steps"`
}
