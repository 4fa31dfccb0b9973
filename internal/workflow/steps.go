package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"compliance-hub/backend/internal/analysis"
	"compliance-hub/backend/pkg/models"
)

// stepResult is what an executor hands back to the step lifecycle wrapper.
// An empty status means completed.
type stepResult struct {
	status  models.StepStatus
	summary string
	details map[string]interface{}
}

func skippedResult(reason string) stepResult {
	return stepResult{status: models.StepStatusSkipped, summary: "Skipped - " + reason}
}

func (s *Service) executeStep(ctx context.Context, wf *models.Workflow, app *models.Application, req *models.ValidationRequest, step *models.Step) (stepResult, error) {
	switch step.StepType {
	case models.StepTypeCodeQuality:
		return s.runTool(ctx, app, step, s.tools.RunCodeQuality)
	case models.StepTypeSecurity:
		return s.runTool(ctx, app, step, s.tools.RunSecurityScan)
	case models.StepTypeAppRequirements:
		return s.runAppRequirements(ctx, wf, app, req, step)
	case models.StepTypePlatformRequirements:
		return s.runPlatformRequirements(ctx, app, step)
	case models.StepTypeExternalIntegration:
		return s.runIntegrations(ctx, req, step)
	default:
		return skippedResult(fmt.Sprintf("no executor for step type %q", step.StepType)), nil
	}
}

func (s *Service) runTool(ctx context.Context, app *models.Application, step *models.Step, run func(context.Context, *models.Application) (*ToolReport, error)) (stepResult, error) {
	report, err := run(ctx, app)
	if err != nil {
		return stepResult{}, err
	}
	s.persistFindings(ctx, step.ID, report.Findings)
	return stepResult{summary: report.Summary, details: report.Details}, nil
}

// runAppRequirements analyzes the application's repository and evaluates
// every application-level checklist item against the resulting capability
// map. Items whose rule passes are marked Verified with the repository as
// evidence; failures produce a warning finding and an explanatory comment.
// The step itself completes even when items fail; failed items surface
// through findings and the compliance percentage.
func (s *Service) runAppRequirements(ctx context.Context, wf *models.Workflow, app *models.Application, req *models.ValidationRequest, step *models.Step) (stepResult, error) {
	categories, err := s.store.ListCategories(ctx, app.ID, models.CategoryTypeApplication)
	if err != nil {
		return stepResult{}, fmt.Errorf("list application categories: %w", err)
	}
	var items []models.ChecklistItem
	for _, cat := range categories {
		items = append(items, cat.Items...)
	}

	dups := DuplicateRuleKeys(items)
	if len(dups) > 0 {
		s.logger.Warn("application %s has duplicate checklist descriptions, matching is ambiguous: %v", app.ID, dups)
	}

	repoURL := ""
	if wf.RepositoryURL != nil {
		repoURL = *wf.RepositoryURL
	}

	var caps analysis.CapabilityMap
	if repoURL == "" {
		s.logger.Warn("application %s has no repository URL, evaluating rules against an empty capability map", app.ID)
		caps = analysis.NewCapabilityMap()
	} else {
		caps, err = s.analyzer.AnalyzeRepository(ctx, repoURL, analysis.Options{HeuristicOnly: req.HeuristicOnly})
		if err != nil {
			return stepResult{}, err
		}
	}

	total := len(items)
	passed, failed, unvalidated := 0, 0, 0
	for i := range items {
		item := &items[i]
		rule, found := LookupRule(item.Description)
		if !found {
			unvalidated++
			continue
		}
		res := rule(caps, app)
		if res.Validated {
			passed++
			item.Status = models.ItemStatusVerified
			if repoURL != "" {
				item.Evidence = &repoURL
			}
			comment := "Automatically verified: " + res.Details
			item.Comments = &comment
			item.LastUpdated = time.Now().UTC()
			if err := s.store.UpdateChecklistItem(ctx, item); err != nil {
				s.logger.Error("failed to update checklist item %s: %v", item.ID, err)
			}
			continue
		}
		failed++
		finding := models.Finding{
			Description: fmt.Sprintf("Failed to validate requirement: %s", item.Description),
			Severity:    models.SeverityWarning,
		}
		if res.Recommendation != "" {
			rec := res.Recommendation
			finding.Recommendation = &rec
		}
		s.persistFindings(ctx, step.ID, []models.Finding{finding})
		comment := "Validation failed: " + res.Reason
		item.Comments = &comment
		item.LastUpdated = time.Now().UTC()
		if err := s.store.UpdateChecklistItem(ctx, item); err != nil {
			s.logger.Error("failed to update checklist item %s: %v", item.ID, err)
		}
	}

	compliance := 0.0
	if total > 0 {
		compliance = float64(passed) / float64(total) * 100
	}
	details := map[string]interface{}{
		"total_items":           total,
		"passed_items":          passed,
		"failed_items":          failed,
		"unvalidated_items":     unvalidated,
		"compliance_percentage": compliance,
		"repository_analysis":   caps.ToDetails(),
	}
	if len(dups) > 0 {
		details["duplicate_rule_keys"] = dups
	}
	summary := fmt.Sprintf("Application requirements validation completed: %d/%d passed (%.1f%%)", passed, total, compliance)
	return stepResult{summary: summary, details: details}, nil
}

// runPlatformRequirements verifies platform-level checklist items against
// the deployment platform. Applications without platform categories skip
// this step entirely.
func (s *Service) runPlatformRequirements(ctx context.Context, app *models.Application, step *models.Step) (stepResult, error) {
	categories, err := s.store.ListCategories(ctx, app.ID, models.CategoryTypePlatform)
	if err != nil {
		return stepResult{}, fmt.Errorf("list platform categories: %w", err)
	}
	if len(categories) == 0 {
		return skippedResult("no platform categories associated with this application"), nil
	}

	total, passed, failed := 0, 0, 0
	for _, cat := range categories {
		for i := range cat.Items {
			item := cat.Items[i]
			total++
			okItem, evidence, cerr := s.platform.CheckPlatformRequirement(ctx, app, item)
			if cerr != nil {
				s.logger.Warn("platform requirement check for item %s errored: %v", item.ID, cerr)
				okItem = false
			}
			if okItem {
				passed++
				item.Status = models.ItemStatusVerified
				if evidence != "" {
					item.Evidence = &evidence
				}
				comment := "Automatically verified against platform requirements"
				item.Comments = &comment
				item.LastUpdated = time.Now().UTC()
				if err := s.store.UpdateChecklistItem(ctx, &item); err != nil {
					s.logger.Error("failed to update checklist item %s: %v", item.ID, err)
				}
				continue
			}
			failed++
			rec := "Review platform configuration and update as needed"
			s.persistFindings(ctx, step.ID, []models.Finding{{
				Description:    fmt.Sprintf("Failed to validate requirement: %s", item.Description),
				Severity:       models.SeverityWarning,
				Recommendation: &rec,
			}})
		}
	}

	compliance := 0.0
	if total > 0 {
		compliance = float64(passed) / float64(total) * 100
	}
	details := map[string]interface{}{
		"total_items":           total,
		"passed_items":          passed,
		"failed_items":          failed,
		"compliance_percentage": compliance,
	}
	summary := fmt.Sprintf("Platform requirements validation completed: %d/%d passed (%.1f%%)", passed, total, compliance)
	return stepResult{summary: summary, details: details}, nil
}

// runIntegrations health-checks every configured external integration. Any
// failing integration produces an error finding and fails the step; the
// per-integration results are recorded in the step details either way.
func (s *Service) runIntegrations(ctx context.Context, req *models.ValidationRequest, step *models.Step) (stepResult, error) {
	if len(req.Integrations) == 0 {
		return skippedResult("no external integrations configured"), nil
	}

	names := make([]string, 0, len(req.Integrations))
	for name := range req.Integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	source := strings.Join(names, ",")
	step.IntegrationSource = &source

	details := make(map[string]interface{}, len(names))
	failed := 0
	for _, name := range names {
		result := s.checker.Check(ctx, name, req.Integrations[name])
		entry := map[string]interface{}{
			"status":  result.Status,
			"message": result.Message,
		}
		for k, v := range result.Details {
			entry[k] = v
		}
		details[name] = entry
		if result.OK() {
			continue
		}
		failed++
		rec := fmt.Sprintf("Check %s configuration and credentials", name)
		s.persistFindings(ctx, step.ID, []models.Finding{{
			Description:    fmt.Sprintf("Failed to integrate with %s", name),
			Severity:       models.SeverityError,
			Recommendation: &rec,
		}})
	}

	summary := fmt.Sprintf("External integrations check completed: %d successful, %d failed", len(names)-failed, failed)
	res := stepResult{summary: summary, details: details}
	if failed > 0 {
		return res, fmt.Errorf("%d of %d integration checks failed", failed, len(names))
	}
	return res, nil
}
