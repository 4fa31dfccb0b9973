package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance-hub/backend/internal/logging"
	"compliance-hub/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// CreateWorkflow inserts the workflow and all of its steps atomically.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow, steps []models.Step) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO validation_workflows
			(id, application_id, status, initiated_by, repository_url, commit_id, request, overall_compliance, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		workflow.ID, workflow.ApplicationID, workflow.Status, workflow.InitiatedBy,
		workflow.RepositoryURL, workflow.CommitID, workflow.Request,
		workflow.OverallCompliance, workflow.Summary)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}

	for i, step := range steps {
		_, err = tx.Exec(ctx,
			`INSERT INTO validation_steps (id, workflow_id, step_type, status, seq)
			VALUES ($1, $2, $3, $4, $5)`,
			step.ID, step.WorkflowID, step.StepType, step.Status, i)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", step.StepType, err)
		}
	}

	return tx.Commit(ctx)
}

// GetWorkflow retrieves a workflow by its ID.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, application_id, status, created_at, updated_at, completed_at,
			initiated_by, repository_url, commit_id, request, overall_compliance, summary
		FROM validation_workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// LatestWorkflowForApplication returns the most recent workflow for an application.
func (s *PostgresStore) LatestWorkflowForApplication(ctx context.Context, appID string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, application_id, status, created_at, updated_at, completed_at,
			initiated_by, repository_url, commit_id, request, overall_compliance, summary
		FROM validation_workflows
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, appID)
	return scanWorkflow(row)
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var w models.Workflow
	err := row.Scan(&w.ID, &w.ApplicationID, &w.Status, &w.CreatedAt, &w.UpdatedAt,
		&w.CompletedAt, &w.InitiatedBy, &w.RepositoryURL, &w.CommitID,
		&w.Request, &w.OverallCompliance, &w.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWorkflow persists workflow status, compliance and summary changes.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	_, err := s.db.Exec(ctx,
		`UPDATE validation_workflows
		SET status = $1, updated_at = now(), completed_at = $2, overall_compliance = $3, summary = $4
		WHERE id = $5`,
		workflow.Status, workflow.CompletedAt, workflow.OverallCompliance, workflow.Summary, workflow.ID)
	return err
}

// ListSteps returns the workflow's steps in creation order.
func (s *PostgresStore) ListSteps(ctx context.Context, workflowID string) ([]models.Step, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, step_type, status, started_at, completed_at,
			result_summary, details, error_message, integration_source
		FROM validation_steps WHERE workflow_id = $1 ORDER BY seq`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var st models.Step
		err := rows.Scan(&st.ID, &st.WorkflowID, &st.StepType, &st.Status,
			&st.StartedAt, &st.CompletedAt, &st.ResultSummary, &st.Details,
			&st.ErrorMessage, &st.IntegrationSource)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// GetStep retrieves a step by its ID.
func (s *PostgresStore) GetStep(ctx context.Context, id string) (*models.Step, error) {
	var st models.Step
	err := s.db.QueryRow(ctx,
		`SELECT id, workflow_id, step_type, status, started_at, completed_at,
			result_summary, details, error_message, integration_source
		FROM validation_steps WHERE id = $1`, id).
		Scan(&st.ID, &st.WorkflowID, &st.StepType, &st.Status, &st.StartedAt,
			&st.CompletedAt, &st.ResultSummary, &st.Details, &st.ErrorMessage,
			&st.IntegrationSource)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateStep persists step status, timestamps, summary, details and error.
func (s *PostgresStore) UpdateStep(ctx context.Context, step *models.Step) error {
	_, err := s.db.Exec(ctx,
		`UPDATE validation_steps
		SET status = $1, started_at = $2, completed_at = $3, result_summary = $4,
			details = $5, error_message = $6, integration_source = $7
		WHERE id = $8`,
		step.Status, step.StartedAt, step.CompletedAt, step.ResultSummary,
		step.Details, step.ErrorMessage, step.IntegrationSource, step.ID)
	return err
}

// CreateFinding appends a finding to a step.
func (s *PostgresStore) CreateFinding(ctx context.Context, finding *models.Finding) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO validation_step_findings (id, step_id, description, severity, code_location, recommendation)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		finding.ID, finding.StepID, finding.Description, finding.Severity,
		finding.CodeLocation, finding.Recommendation)
	return err
}

// ListFindingsForStep returns all findings recorded for a step.
func (s *PostgresStore) ListFindingsForStep(ctx context.Context, stepID string) ([]models.Finding, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, step_id, description, severity, code_location, recommendation
		FROM validation_step_findings WHERE step_id = $1`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []models.Finding
	for rows.Next() {
		var f models.Finding
		err := rows.Scan(&f.ID, &f.StepID, &f.Description, &f.Severity, &f.CodeLocation, &f.Recommendation)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// GetApplication retrieves an application by its ID.
func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	err := s.db.QueryRow(ctx,
		`SELECT id, name, status, description, owner, platform_id, repository_url,
			commit_id, app_type, technology_stack, created_at, updated_at
		FROM applications WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Status, &a.Description, &a.Owner, &a.PlatformID,
			&a.RepositoryURL, &a.CommitID, &a.AppType, &a.TechnologyStack,
			&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListCategories returns the application's categories of the given type with
// their checklist items loaded.
func (s *PostgresStore) ListCategories(ctx context.Context, appID string, categoryType models.CategoryType) ([]models.Category, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.name, c.category_type
		FROM categories c
		JOIN application_category_association a ON a.category_id = c.id
		WHERE a.application_id = $1 AND a.category_type = $2
		ORDER BY c.name`, appID, categoryType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CategoryType); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range categories {
		items, err := s.listItems(ctx, categories[i].ID)
		if err != nil {
			return nil, err
		}
		categories[i].Items = items
	}
	return categories, nil
}

func (s *PostgresStore) listItems(ctx context.Context, categoryID string) ([]models.ChecklistItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, category_id, application_id, platform_id, description, status,
			evidence, comments, last_updated
		FROM checklist_items WHERE category_id = $1 ORDER BY description`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ChecklistItem
	for rows.Next() {
		var it models.ChecklistItem
		err := rows.Scan(&it.ID, &it.CategoryID, &it.ApplicationID, &it.PlatformID,
			&it.Description, &it.Status, &it.Evidence, &it.Comments, &it.LastUpdated)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateChecklistItem persists status, evidence and comment changes.
func (s *PostgresStore) UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	_, err := s.db.Exec(ctx,
		`UPDATE checklist_items
		SET status = $1, evidence = $2, comments = $3, last_updated = now()
		WHERE id = $4`,
		item.Status, item.Evidence, item.Comments, item.ID)
	return err
}

// WithApplicationLock serializes fn against other holders of the same
// application's advisory lock. The lock is transaction-scoped and released
// automatically on commit or rollback.
func (s *PostgresStore) WithApplicationLock(ctx context.Context, appID string, fn func(ctx context.Context) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appID); err != nil {
		return fmt.Errorf("acquire application lock: %w", err)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
