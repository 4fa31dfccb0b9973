package repository

import (
	"context"
	"errors"

	"compliance-hub/backend/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowStore persists validation workflows, their steps and findings.
type WorkflowStore interface {
	// CreateWorkflow inserts the workflow and all of its steps atomically.
	CreateWorkflow(ctx context.Context, workflow *models.Workflow, steps []models.Step) error
	// GetWorkflow retrieves a workflow by its ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// LatestWorkflowForApplication returns the most recently created workflow
	// for an application.
	LatestWorkflowForApplication(ctx context.Context, appID string) (*models.Workflow, error)
	// UpdateWorkflow persists workflow status, compliance and summary changes.
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// ListSteps returns the workflow's steps in creation order.
	ListSteps(ctx context.Context, workflowID string) ([]models.Step, error)
	// GetStep retrieves a step by its ID.
	GetStep(ctx context.Context, id string) (*models.Step, error)
	// UpdateStep persists step status, timestamps, summary, details and error.
	UpdateStep(ctx context.Context, step *models.Step) error
	// CreateFinding appends a finding to a step.
	CreateFinding(ctx context.Context, finding *models.Finding) error
	// ListFindingsForStep returns all findings recorded for a step.
	ListFindingsForStep(ctx context.Context, stepID string) ([]models.Finding, error)
}

// ChecklistStore reads applications and mutates their checklist item tree.
type ChecklistStore interface {
	// GetApplication retrieves an application by its ID.
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	// ListCategories returns the application's categories of the given type,
	// each with its checklist items loaded.
	ListCategories(ctx context.Context, appID string, categoryType models.CategoryType) ([]models.Category, error)
	// UpdateChecklistItem persists status, evidence and comment changes.
	UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error
}

// Store is the full persistence surface the workflow engine depends on.
type Store interface {
	WorkflowStore
	ChecklistStore
	// WithApplicationLock runs fn while holding a per-application advisory
	// lock, serializing reconciliation for the same application.
	WithApplicationLock(ctx context.Context, appID string, fn func(ctx context.Context) error) error
}
