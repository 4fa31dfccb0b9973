package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"compliance-hub/backend/internal/analysis"
	"compliance-hub/backend/internal/api"
	"compliance-hub/backend/internal/config"
	"compliance-hub/backend/internal/integrations"
	"compliance-hub/backend/internal/logging"
	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/internal/tls"
	"compliance-hub/backend/internal/workflow"
)

func main() {
	ctx := context.Background()

	// Initialize logging
	logger := logging.NewLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		log.Fatalf("Configuration loading failed: %v", err)
	}
	logger.Info("Configuration loaded from %q (db_host=%s llm_enabled=%t workers=%d)",
		viper.ConfigFileUsed(), cfg.DB.Host, cfg.LLM.URL != "", cfg.Validation.Workers)

	logger.Info("Starting Compliance Hub Backend")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database: %v", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	if err := repository.EnsureSchema(ctx, dbPool); err != nil {
		logger.Error("Failed to ensure schema: %v", err)
		log.Fatalf("Schema initialization failed: %v", err)
	}

	logger.Info("Database connected")

	// Initialize repository layer
	store := repository.NewPostgresStore(dbPool, logger)

	// Initialize analysis and workflow layers
	fetcher := analysis.NewFetcher(cfg.Git.Token, cfg.Git.CloneTimeout, logger)
	var reviewClient analysis.ReviewClient
	if cfg.LLM.URL != "" {
		reviewClient = analysis.NewHTTPReviewClient(cfg.LLM.URL, cfg.LLM.APIKey)
	}
	analyzer := analysis.NewAnalyzer(fetcher, reviewClient, logger)
	checker := integrations.NewHTTPChecker()

	service := workflow.NewService(store, analyzer, checker, logger)
	service.SetStepTimeout(cfg.Validation.StepTimeout)
	runner := workflow.NewRunner(service, cfg.Validation.Workers, 64, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", api.HandleHealth)

	// Mount REST API handlers
	apiGroup := e.Group("/api/v1")
	server := api.NewServer(service, runner)
	server.Register(apiGroup)

	logger.Info("REST API handlers mounted")

	// Create HTTP server
	addr := ":8080"
	if cfg.TLS.Enable {
		// use TLS port 8443
		addr = ":8443"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting on %s (tls=%t)", addr, cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- httpServer.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert: %v", err)
					}
				}
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error: %v", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received: %v", sig)

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("Server close error: %v", err)
			}
		}

		// Drain in-flight validation runs before exiting
		if err := runner.Shutdown(ctx); err != nil {
			logger.Error("Validation runner shutdown error: %v", err)
		}

		logger.Info("Server stopped gracefully")
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
