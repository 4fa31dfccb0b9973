package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"compliance-hub/backend/pkg/models"
)

// Reconcile folds a completed workflow's results back onto the application
// checklist. Items named by a finding move to In Progress; the rest move to
// Completed with the validated repository as evidence. Verified items are
// never touched, and a no-op write is skipped, so reconciling the same
// workflow twice converges on the same checklist.
//
// The whole pass runs under the application's advisory lock to serialize
// concurrent reconciliations against the same checklist.
func (s *Service) Reconcile(ctx context.Context, wf *models.Workflow) error {
	if wf.Status != models.WorkflowStatusCompleted {
		return nil
	}
	return s.store.WithApplicationLock(ctx, wf.ApplicationID, func(ctx context.Context) error {
		return s.reconcileLocked(ctx, wf)
	})
}

func (s *Service) reconcileLocked(ctx context.Context, wf *models.Workflow) error {
	findings, err := s.completedStepFindings(ctx, wf.ID)
	if err != nil {
		return err
	}

	evidence := ""
	if wf.RepositoryURL != nil {
		evidence = *wf.RepositoryURL
		if wf.CommitID != nil && *wf.CommitID != "" {
			evidence += "/tree/" + *wf.CommitID
		}
	}
	completedAt := time.Now().UTC()
	if wf.CompletedAt != nil {
		completedAt = *wf.CompletedAt
	}
	verifiedComment := fmt.Sprintf("Verified by validation workflow %s at %s", wf.ID, completedAt.Format(time.RFC3339))

	updated := 0
	for _, categoryType := range []models.CategoryType{models.CategoryTypeApplication, models.CategoryTypePlatform} {
		categories, err := s.store.ListCategories(ctx, wf.ApplicationID, categoryType)
		if err != nil {
			return fmt.Errorf("list %s categories: %w", categoryType, err)
		}
		for _, cat := range categories {
			for i := range cat.Items {
				item := cat.Items[i]
				if item.Status == models.ItemStatusVerified {
					continue
				}

				var status models.ItemStatus
				var comment string
				var itemEvidence *string
				if findingMentions(findings, item.Description) {
					status = models.ItemStatusInProgress
					comment = "Validation found issues that need to be addressed"
				} else {
					status = models.ItemStatusCompleted
					comment = verifiedComment
					if evidence != "" {
						itemEvidence = &evidence
					}
				}

				if item.Status == status && item.Comments != nil && *item.Comments == comment {
					continue
				}
				item.Status = status
				item.Comments = &comment
				if itemEvidence != nil {
					item.Evidence = itemEvidence
				}
				item.LastUpdated = time.Now().UTC()
				if err := s.store.UpdateChecklistItem(ctx, &item); err != nil {
					s.logger.Error("failed to reconcile checklist item %s: %v", item.ID, err)
					continue
				}
				updated++
			}
		}
	}
	s.logger.Info("checklist reconciled for workflow %s: %d items updated from %d findings", wf.ID, updated, len(findings))
	return nil
}

// completedStepFindings gathers findings raised by the workflow's completed
// steps. Failed and skipped steps contribute nothing: a failed step's output
// is not trustworthy evidence about the checklist.
func (s *Service) completedStepFindings(ctx context.Context, workflowID string) ([]models.Finding, error) {
	steps, err := s.store.ListSteps(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	var findings []models.Finding
	for _, step := range steps {
		if step.Status != models.StepStatusCompleted {
			continue
		}
		fs, err := s.store.ListFindingsForStep(ctx, step.ID)
		if err != nil {
			return nil, fmt.Errorf("list findings for step %s: %w", step.ID, err)
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func findingMentions(findings []models.Finding, description string) bool {
	for _, f := range findings {
		if strings.Contains(f.Description, description) {
			return true
		}
	}
	return false
}
