// Package api contains the HTTP handlers for the compliance hub backend.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/internal/workflow"
	"compliance-hub/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Service *workflow.Service
	Runner  *workflow.Runner
}

// NewServer creates a new Server.
func NewServer(service *workflow.Service, runner *workflow.Runner) *Server {
	return &Server{Service: service, Runner: runner}
}

// Register mounts the validation routes on the echo group.
func (s *Server) Register(g *echo.Group) {
	g.POST("/validations/app/:id", s.StartValidation)
	g.GET("/validations/workflow/:id", s.GetValidation)
	g.GET("/validations/app/:id/latest", s.LatestValidation)
}

// ValidationResponse acknowledges an accepted validation run.
type ValidationResponse struct {
	ValidationID            string `json:"validation_id"`
	Status                  string `json:"status"`
	Message                 string `json:"message"`
	EstimatedCompletionTime string `json:"estimated_completion_time"`
}

// StartValidation creates a validation workflow for an application and queues
// it for background execution.
// (POST /api/v1/validations/app/:id)
func (s *Server) StartValidation(c echo.Context) error {
	ctx := c.Request().Context()
	appID := c.Param("id")

	var req models.ValidationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	initiatedBy := c.Request().Header.Get("X-User")
	if initiatedBy == "" {
		initiatedBy = "system"
	}

	wf, err := s.Service.Initialize(ctx, appID, initiatedBy, req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Application not found: "+appID)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start validation: "+err.Error())
	}

	if !s.Runner.Enqueue(wf.ID) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Validation queue is full, try again later")
	}

	return c.JSON(http.StatusAccepted, ValidationResponse{
		ValidationID:            wf.ID,
		Status:                  string(wf.Status),
		Message:                 "Validation workflow started for application " + appID,
		EstimatedCompletionTime: time.Now().Add(2 * time.Minute).UTC().Format(time.RFC3339),
	})
}

// GetValidation returns a workflow and its steps for polling.
// (GET /api/v1/validations/workflow/:id)
func (s *Server) GetValidation(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := s.Service.GetStatus(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Validation workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, snapshot)
}

// LatestValidation returns the most recent workflow for an application.
// (GET /api/v1/validations/app/:id/latest)
func (s *Server) LatestValidation(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := s.Service.LatestForApplication(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No validation workflows for this application")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, snapshot)
}
