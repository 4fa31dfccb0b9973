package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/pkg/models"
)

// fakeStore is an in-memory repository.Store for exercising the workflow
// engine without a database.
type fakeStore struct {
	mu sync.Mutex

	apps      map[string]*models.Application
	cats      []fakeCategory
	items     map[string]models.ChecklistItem
	workflows map[string]*models.Workflow
	steps     map[string][]models.Step
	findings  map[string][]models.Finding

	itemUpdates int
	lockCalls   int
}

type fakeCategory struct {
	id           string
	name         string
	appID        string
	categoryType models.CategoryType
	itemIDs      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:      make(map[string]*models.Application),
		items:     make(map[string]models.ChecklistItem),
		workflows: make(map[string]*models.Workflow),
		steps:     make(map[string][]models.Step),
		findings:  make(map[string][]models.Finding),
	}
}

func (f *fakeStore) addApplication(name string) *models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	app := &models.Application{
		ID:     uuid.NewString(),
		Name:   name,
		Status: "In Review",
	}
	f.apps[app.ID] = app
	return app
}

func (f *fakeStore) addCategory(appID, name string, categoryType models.CategoryType, descriptions ...string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cat := fakeCategory{
		id:           uuid.NewString(),
		name:         name,
		appID:        appID,
		categoryType: categoryType,
	}
	ids := make([]string, 0, len(descriptions))
	for _, desc := range descriptions {
		item := models.ChecklistItem{
			ID:          uuid.NewString(),
			CategoryID:  cat.id,
			Description: desc,
			Status:      models.ItemStatusNotStarted,
			LastUpdated: time.Now(),
		}
		f.items[item.ID] = item
		cat.itemIDs = append(cat.itemIDs, item.ID)
		ids = append(ids, item.ID)
	}
	f.cats = append(f.cats, cat)
	return ids
}

func (f *fakeStore) item(id string) models.ChecklistItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

func (f *fakeStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow, steps []models.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wf := *workflow
	f.workflows[wf.ID] = &wf
	f.steps[wf.ID] = append([]models.Step(nil), steps...)
	return nil
}

func (f *fakeStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wf, ok := f.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, repository.ErrNotFound)
	}
	copied := *wf
	return &copied, nil
}

func (f *fakeStore) LatestWorkflowForApplication(ctx context.Context, appID string) (*models.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Workflow
	for _, wf := range f.workflows {
		if wf.ApplicationID != appID {
			continue
		}
		if latest == nil || wf.CreatedAt.After(latest.CreatedAt) {
			latest = wf
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeStore) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *workflow
	f.workflows[workflow.ID] = &copied
	return nil
}

func (f *fakeStore) ListSteps(ctx context.Context, workflowID string) ([]models.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Step(nil), f.steps[workflowID]...), nil
}

func (f *fakeStore) GetStep(ctx context.Context, id string) (*models.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, steps := range f.steps {
		for _, step := range steps {
			if step.ID == id {
				copied := step
				return &copied, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) UpdateStep(ctx context.Context, step *models.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.steps[step.WorkflowID]
	for i := range steps {
		if steps[i].ID == step.ID {
			steps[i] = *step
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) CreateFinding(ctx context.Context, finding *models.Finding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findings[finding.StepID] = append(f.findings[finding.StepID], *finding)
	return nil
}

func (f *fakeStore) ListFindingsForStep(ctx context.Context, stepID string) ([]models.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Finding(nil), f.findings[stepID]...), nil
}

func (f *fakeStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, repository.ErrNotFound)
	}
	copied := *app
	return &copied, nil
}

func (f *fakeStore) ListCategories(ctx context.Context, appID string, categoryType models.CategoryType) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Category
	for _, cat := range f.cats {
		if cat.appID != appID || cat.categoryType != categoryType {
			continue
		}
		c := models.Category{ID: cat.id, Name: cat.name, CategoryType: cat.categoryType}
		for _, itemID := range cat.itemIDs {
			c.Items = append(c.Items, f.items[itemID])
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	f.items[item.ID] = *item
	f.itemUpdates++
	return nil
}

func (f *fakeStore) WithApplicationLock(ctx context.Context, appID string, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.lockCalls++
	f.mu.Unlock()
	return fn(ctx)
}
