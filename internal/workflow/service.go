package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"compliance-hub/backend/internal/analysis"
	"compliance-hub/backend/internal/integrations"
	"compliance-hub/backend/internal/logging"
	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/pkg/models"
)

// Service drives validation workflows: it creates them, executes their steps
// sequentially and reconciles findings onto the application checklist.
type Service struct {
	store    repository.Store
	analyzer *analysis.Analyzer
	checker  integrations.Checker
	tools    ToolRunner
	platform RequirementChecker
	logger   *logging.Logger

	// stepTimeout bounds each step's execution; zero means no bound.
	stepTimeout time.Duration
}

func NewService(store repository.Store, analyzer *analysis.Analyzer, checker integrations.Checker, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		checker:  checker,
		tools:    NewSimulatedToolRunner(),
		platform: SimulatedRequirementChecker{},
		logger:   logger,
	}
}

// SetStepTimeout bounds each step's execution time. Zero disables the bound.
func (s *Service) SetStepTimeout(d time.Duration) { s.stepTimeout = d }

// SetToolRunner replaces the simulated scanner integrations.
func (s *Service) SetToolRunner(t ToolRunner) { s.tools = t }

// SetRequirementChecker replaces the simulated platform requirement checker.
func (s *Service) SetRequirementChecker(c RequirementChecker) { s.platform = c }

// Initialize creates a pending workflow and its queued steps for the
// application. The triggering request is stored verbatim for audit. The
// workflow does not run until handed to Run, typically via the Runner queue.
func (s *Service) Initialize(ctx context.Context, appID, initiatedBy string, req models.ValidationRequest) (*models.Workflow, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("load application %s: %w", appID, err)
	}

	stepTypes := req.Steps
	if len(stepTypes) == 0 {
		stepTypes = models.DefaultStepTypes
	}
	stepTypes = dedupeStepTypes(stepTypes)

	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Status:        models.WorkflowStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		InitiatedBy:   initiatedBy,
		Request:       requestAudit(req),
	}
	if req.RepositoryURL != "" {
		wf.RepositoryURL = &req.RepositoryURL
	} else if app.RepositoryURL != nil {
		wf.RepositoryURL = app.RepositoryURL
	}
	if req.CommitID != "" {
		wf.CommitID = &req.CommitID
	} else if app.CommitID != nil {
		wf.CommitID = app.CommitID
	}

	steps := make([]models.Step, 0, len(stepTypes))
	for _, st := range stepTypes {
		steps = append(steps, models.Step{
			ID:         uuid.NewString(),
			WorkflowID: wf.ID,
			StepType:   st,
			Status:     models.StepStatusQueued,
		})
	}

	if err := s.store.CreateWorkflow(ctx, wf, steps); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	s.logger.Info("validation workflow %s created for application %s with %d steps", wf.ID, app.ID, len(steps))
	return wf, nil
}

// Run executes a pending workflow to a terminal state. Steps run one at a
// time in creation order; a step failure is recorded and the loop continues
// so every requested step still produces a result. The workflow completes
// only when every step ended completed or skipped.
func (s *Service) Run(ctx context.Context, workflowID string) error {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", workflowID, err)
	}
	if wf.Status != models.WorkflowStatusPending {
		s.logger.Warn("workflow %s is %s, not pending; skipping run", wf.ID, wf.Status)
		return nil
	}

	wf.Status = models.WorkflowStatusInProgress
	wf.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("mark workflow in progress: %w", err)
	}

	app, err := s.store.GetApplication(ctx, wf.ApplicationID)
	if err != nil {
		s.failWorkflow(ctx, wf, fmt.Sprintf("Validation failed: could not load application %s", wf.ApplicationID))
		return fmt.Errorf("load application %s: %w", wf.ApplicationID, err)
	}

	req := decodeRequest(wf.Request)

	steps, err := s.store.ListSteps(ctx, wf.ID)
	if err != nil {
		s.failWorkflow(ctx, wf, "Validation failed: could not load workflow steps")
		return fmt.Errorf("list steps for workflow %s: %w", wf.ID, err)
	}

	allSuccessful := true
	for i := range steps {
		if !s.runStep(ctx, wf, app, &req, &steps[i]) {
			allSuccessful = false
		}
	}

	now := time.Now().UTC()
	wf.UpdatedAt = now
	wf.CompletedAt = &now
	wf.OverallCompliance = &allSuccessful
	if allSuccessful {
		wf.Status = models.WorkflowStatusCompleted
		summary := fmt.Sprintf("Validation passed for %s", app.Name)
		wf.Summary = &summary
	} else {
		wf.Status = models.WorkflowStatusFailed
		summary := fmt.Sprintf("Validation failed for %s", app.Name)
		wf.Summary = &summary
	}
	if err := s.store.UpdateWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("finalize workflow %s: %w", wf.ID, err)
	}
	s.logger.Info("validation workflow %s finished with status %s (compliant=%t)", wf.ID, wf.Status, allSuccessful)

	if wf.Status == models.WorkflowStatusCompleted {
		if err := s.Reconcile(ctx, wf); err != nil {
			s.logger.Error("checklist reconciliation failed for workflow %s: %v", wf.ID, err)
			return err
		}
	}
	return nil
}

// GetStatus returns the workflow and its steps for polling clients.
func (s *Service) GetStatus(ctx context.Context, workflowID string) (*models.WorkflowSnapshot, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, wf)
}

// LatestForApplication returns the most recent workflow for an application,
// with its steps.
func (s *Service) LatestForApplication(ctx context.Context, appID string) (*models.WorkflowSnapshot, error) {
	wf, err := s.store.LatestWorkflowForApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, wf)
}

func (s *Service) snapshot(ctx context.Context, wf *models.Workflow) (*models.WorkflowSnapshot, error) {
	steps, err := s.store.ListSteps(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	return &models.WorkflowSnapshot{Workflow: *wf, Steps: steps}, nil
}

// runStep carries one step from queued to a terminal state and reports
// whether it counts toward overall compliance (completed and skipped do,
// failed does not). Every failure mode, including a panicking executor, is
// absorbed here so the workflow loop always proceeds to the next step.
func (s *Service) runStep(ctx context.Context, wf *models.Workflow, app *models.Application, req *models.ValidationRequest, step *models.Step) (ok bool) {
	// State writes must survive a per-step deadline: a timed-out step still
	// has to be readable as failed, so persistence uses a context detached
	// from the step bound.
	persistCtx := context.WithoutCancel(ctx)
	if s.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.stepTimeout)
		defer cancel()
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusRunning
	step.StartedAt = &now
	if err := s.store.UpdateStep(persistCtx, step); err != nil {
		s.logger.Error("failed to mark step %s running: %v", step.ID, err)
	}

	defer func() {
		if r := recover(); r != nil {
			s.finishStep(persistCtx, step, stepResult{}, fmt.Errorf("step executor panic: %v", r))
			ok = false
		}
	}()

	res, err := s.executeStep(ctx, wf, app, req, step)
	s.finishStep(persistCtx, step, res, err)
	return step.Status != models.StepStatusFailed
}

// finishStep persists the step's terminal state. On error the step fails and
// the error text is recorded verbatim; result details gathered before the
// error are kept.
func (s *Service) finishStep(ctx context.Context, step *models.Step, res stepResult, err error) {
	now := time.Now().UTC()
	step.CompletedAt = &now
	if res.details != nil {
		step.Details = res.details
	}
	if res.summary != "" {
		step.ResultSummary = &res.summary
	}
	if err != nil {
		step.Status = models.StepStatusFailed
		msg := err.Error()
		step.ErrorMessage = &msg
		s.logger.Error("validation step %s (%s) failed: %s", step.ID, step.StepType, msg)
	} else {
		step.Status = res.status
		if step.Status == "" || step.Status == models.StepStatusRunning {
			step.Status = models.StepStatusCompleted
		}
		s.logger.Info("validation step %s (%s) finished with status %s", step.ID, step.StepType, step.Status)
	}
	if uerr := s.store.UpdateStep(ctx, step); uerr != nil {
		s.logger.Error("failed to persist result for step %s: %v", step.ID, uerr)
	}
}

func (s *Service) failWorkflow(ctx context.Context, wf *models.Workflow, summary string) {
	now := time.Now().UTC()
	compliant := false
	wf.Status = models.WorkflowStatusFailed
	wf.UpdatedAt = now
	wf.CompletedAt = &now
	wf.OverallCompliance = &compliant
	wf.Summary = &summary
	if err := s.store.UpdateWorkflow(ctx, wf); err != nil {
		s.logger.Error("failed to mark workflow %s failed: %v", wf.ID, err)
	}
}

// persistFindings assigns identity to tool or rule findings and appends them
// to the step. Persistence errors are logged, not fatal: a lost finding must
// not abort the step that produced it.
func (s *Service) persistFindings(ctx context.Context, stepID string, findings []models.Finding) {
	for i := range findings {
		f := findings[i]
		f.ID = uuid.NewString()
		f.StepID = stepID
		if err := s.store.CreateFinding(ctx, &f); err != nil {
			s.logger.Error("failed to persist finding for step %s: %v", stepID, err)
		}
	}
}

func dedupeStepTypes(in []models.StepType) []models.StepType {
	seen := make(map[models.StepType]bool, len(in))
	out := make([]models.StepType, 0, len(in))
	for _, st := range in {
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out
}

// requestAudit converts the triggering request into the JSONB audit payload
// stored on the workflow row.
func requestAudit(req models.ValidationRequest) map[string]interface{} {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// decodeRequest is the inverse of requestAudit; a corrupt payload yields the
// zero request rather than blocking the run.
func decodeRequest(audit map[string]interface{}) models.ValidationRequest {
	var req models.ValidationRequest
	if audit == nil {
		return req
	}
	raw, err := json.Marshal(audit)
	if err != nil {
		return req
	}
	_ = json.Unmarshal(raw, &req)
	return req
}
