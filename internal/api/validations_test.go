package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance-hub/backend/internal/integrations"
	"compliance-hub/backend/internal/logging"
	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/internal/workflow"
	"compliance-hub/backend/pkg/models"
)

// stubStore is a minimal in-memory repository.Store for handler tests.
type stubStore struct {
	mu        sync.Mutex
	apps      map[string]*models.Application
	workflows map[string]*models.Workflow
	steps     map[string][]models.Step
}

func newStubStore() *stubStore {
	return &stubStore{
		apps:      make(map[string]*models.Application),
		workflows: make(map[string]*models.Workflow),
		steps:     make(map[string][]models.Step),
	}
}

func (s *stubStore) CreateWorkflow(ctx context.Context, wf *models.Workflow, steps []models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *wf
	s.workflows[wf.ID] = &copied
	s.steps[wf.ID] = steps
	return nil
}

func (s *stubStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *wf
	return &copied, nil
}

func (s *stubStore) LatestWorkflowForApplication(ctx context.Context, appID string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Workflow
	for _, wf := range s.workflows {
		if wf.ApplicationID == appID && (latest == nil || wf.CreatedAt.After(latest.CreatedAt)) {
			latest = wf
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *stubStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *wf
	s.workflows[wf.ID] = &copied
	return nil
}

func (s *stubStore) ListSteps(ctx context.Context, workflowID string) ([]models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Step(nil), s.steps[workflowID]...), nil
}

func (s *stubStore) GetStep(ctx context.Context, id string) (*models.Step, error) {
	return nil, repository.ErrNotFound
}

func (s *stubStore) UpdateStep(ctx context.Context, step *models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.steps[step.WorkflowID]
	for i := range steps {
		if steps[i].ID == step.ID {
			steps[i] = *step
		}
	}
	return nil
}

func (s *stubStore) CreateFinding(ctx context.Context, f *models.Finding) error { return nil }

func (s *stubStore) ListFindingsForStep(ctx context.Context, stepID string) ([]models.Finding, error) {
	return nil, nil
}

func (s *stubStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (s *stubStore) ListCategories(ctx context.Context, appID string, categoryType models.CategoryType) ([]models.Category, error) {
	return nil, nil
}

func (s *stubStore) UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	return nil
}

func (s *stubStore) WithApplicationLock(ctx context.Context, appID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type passingChecker struct{}

func (passingChecker) Check(ctx context.Context, name string, cfg models.IntegrationConfig) integrations.Result {
	return integrations.Result{Status: "success"}
}

func newTestServer(store repository.Store) (*Server, *workflow.Runner) {
	logger := logging.NewLogger()
	svc := workflow.NewService(store, nil, passingChecker{}, logger)
	svc.SetToolRunner(&workflow.SimulatedToolRunner{Latency: 0})
	runner := workflow.NewRunner(svc, 1, 4, logger)
	return NewServer(svc, runner), runner
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func setupEcho(server *Server) *echo.Echo {
	e := echo.New()
	server.Register(e.Group("/api/v1"))
	return e
}

func TestStartValidationAccepted(t *testing.T) {
	store := newStubStore()
	app := &models.Application{ID: uuid.NewString(), Name: "Demo", Status: "In Review"}
	store.apps[app.ID] = app
	server, runner := newTestServer(store)
	e := setupEcho(server)

	rec := doRequest(e, http.MethodPost, "/api/v1/validations/app/"+app.ID, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ValidationID)
	assert.Equal(t, string(models.WorkflowStatusPending), resp.Status)
	assert.Contains(t, resp.Message, app.ID)
	assert.NotEmpty(t, resp.EstimatedCompletionTime)

	// the background runner drives the workflow to a terminal state
	require.Eventually(t, func() bool {
		wf, err := store.GetWorkflow(context.Background(), resp.ValidationID)
		return err == nil && (wf.Status == models.WorkflowStatusCompleted || wf.Status == models.WorkflowStatusFailed)
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))
}

func TestStartValidationUnknownApplication(t *testing.T) {
	server, _ := newTestServer(newStubStore())
	e := setupEcho(server)

	rec := doRequest(e, http.MethodPost, "/api/v1/validations/app/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartValidationWithRequestBody(t *testing.T) {
	store := newStubStore()
	app := &models.Application{ID: uuid.NewString(), Name: "Demo", Status: "In Review"}
	store.apps[app.ID] = app
	server, _ := newTestServer(store)
	e := setupEcho(server)

	body := `{"steps": ["security"], "heuristic_only": true}`
	rec := doRequest(e, http.MethodPost, "/api/v1/validations/app/"+app.ID, body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	steps, err := store.ListSteps(context.Background(), resp.ValidationID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepTypeSecurity, steps[0].StepType)
}

func TestGetValidationReturnsSnapshot(t *testing.T) {
	store := newStubStore()
	app := &models.Application{ID: uuid.NewString(), Name: "Demo", Status: "In Review"}
	store.apps[app.ID] = app
	wf := &models.Workflow{ID: uuid.NewString(), ApplicationID: app.ID, Status: models.WorkflowStatusPending}
	store.workflows[wf.ID] = wf
	store.steps[wf.ID] = []models.Step{
		{ID: uuid.NewString(), WorkflowID: wf.ID, StepType: models.StepTypeCodeQuality, Status: models.StepStatusQueued},
	}
	server, _ := newTestServer(store)
	e := setupEcho(server)

	rec := doRequest(e, http.MethodGet, "/api/v1/validations/workflow/"+wf.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.WorkflowSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, wf.ID, snapshot.ID)
	require.Len(t, snapshot.Steps, 1)
	assert.Equal(t, models.StepTypeCodeQuality, snapshot.Steps[0].StepType)
}

func TestGetValidationNotFound(t *testing.T) {
	server, _ := newTestServer(newStubStore())
	e := setupEcho(server)

	rec := doRequest(e, http.MethodGet, "/api/v1/validations/workflow/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestValidation(t *testing.T) {
	store := newStubStore()
	app := &models.Application{ID: uuid.NewString(), Name: "Demo", Status: "In Review"}
	store.apps[app.ID] = app
	server, _ := newTestServer(store)
	e := setupEcho(server)

	rec := doRequest(e, http.MethodGet, "/api/v1/validations/app/"+app.ID+"/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	wf := &models.Workflow{ID: uuid.NewString(), ApplicationID: app.ID, Status: models.WorkflowStatusCompleted, CreatedAt: time.Now()}
	store.workflows[wf.ID] = wf

	rec = doRequest(e, http.MethodGet, "/api/v1/validations/app/"+app.ID+"/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.WorkflowSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, wf.ID, snapshot.ID)
}

func TestHandleHealth(t *testing.T) {
	e := echo.New()
	e.GET("/health", HandleHealth)

	rec := doRequest(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
}
