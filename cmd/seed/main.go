package main

import (
	"context"
	"fmt"
	"log"

	"compliance-hub/backend/internal/config"
	"compliance-hub/backend/internal/logging"
	"compliance-hub/backend/internal/repository"
	"compliance-hub/backend/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appCategories maps application-level category names to the canonical
// checklist descriptions the validation rule table knows how to evaluate.
var appCategories = map[string][]string{
	"Logging": {
		"Logs are searchable and available",
		"Avoid logging confidential data",
		"Create audit trail logs",
		"Implement tracking ID for log messages",
		"Log REST API calls",
		"Log application messages",
		"Client UI errors are logged",
	},
	"Availability": {
		"Retry Logic",
		"Set timeouts on IO operation",
		"Auto scale",
		"Throttling, drop request",
		"Set circuit breakers on outgoing requests",
	},
	"Error Handling": {
		"Log system errors",
		"Use HTTP standard error codes",
		"Include Client error tracking",
	},
	"Testing": {
		"Automated Regression Testing",
	},
}

var platformCategories = map[string][]string{
	"Platform Operations": {
		"Cluster resource quotas configured",
		"Liveness and readiness probes defined",
		"Horizontal pod autoscaling enabled",
	},
}

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// 1. Ensure the default platform exists
	platformID, err := ensureRow(ctx, pool,
		`SELECT id FROM platforms WHERE name = $1`,
		`INSERT INTO platforms (id, name, description, owner) VALUES ($1, $2, $3, $4)`,
		"Kubernetes", "Shared Kubernetes hosting platform", "platform-team")
	if err != nil {
		log.Fatalf("Failed to seed platform: %v", err)
	}
	logger.Info("Platform ready: %s", platformID)

	// 2. Ensure the demo application exists
	appID, err := seedApplication(ctx, pool, logger, platformID)
	if err != nil {
		log.Fatalf("Failed to seed application: %v", err)
	}

	// 3. Categories, associations and checklist items
	for name, items := range appCategories {
		if err := seedCategory(ctx, pool, logger, name, models.CategoryTypeApplication, appID, platformID, items); err != nil {
			log.Fatalf("Failed to seed category %s: %v", name, err)
		}
	}
	for name, items := range platformCategories {
		if err := seedCategory(ctx, pool, logger, name, models.CategoryTypePlatform, appID, platformID, items); err != nil {
			log.Fatalf("Failed to seed category %s: %v", name, err)
		}
	}

	logger.Info("Seeding complete!")
}

// ensureRow returns the id of the row selected by selectSQL, inserting it
// with a fresh id when absent. insertSQL must take the id as $1 followed by
// the select/insert args.
func ensureRow(ctx context.Context, pool *pgxpool.Pool, selectSQL, insertSQL string, args ...interface{}) (string, error) {
	var id string
	err := pool.QueryRow(ctx, selectSQL, args[0]).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	id = uuid.NewString()
	insertArgs := append([]interface{}{id}, args...)
	if _, err := pool.Exec(ctx, insertSQL, insertArgs...); err != nil {
		return "", err
	}
	return id, nil
}

func seedApplication(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger, platformID string) (string, error) {
	name := "demo-service"
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM applications WHERE name = $1`, name).Scan(&id)
	if err == nil {
		logger.Info("Found existing application %s", id)
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	id = uuid.NewString()
	_, err = pool.Exec(ctx,
		`INSERT INTO applications (id, name, status, description, owner, platform_id, repository_url, app_type, technology_stack)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, name, "In Review", "Demo application for validation runs", "seed-script",
		platformID, "https://github.com/labstack/echo", "API", "Go")
	if err != nil {
		return "", err
	}
	logger.Info("Seeded application %s", id)
	return id, nil
}

func seedCategory(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger, name string, categoryType models.CategoryType, appID, platformID string, descriptions []string) error {
	var categoryID string
	err := pool.QueryRow(ctx, `SELECT id FROM categories WHERE name = $1 AND category_type = $2`, name, string(categoryType)).Scan(&categoryID)
	if err == pgx.ErrNoRows {
		categoryID = uuid.NewString()
		if _, err := pool.Exec(ctx,
			`INSERT INTO categories (id, name, category_type) VALUES ($1, $2, $3)`,
			categoryID, name, string(categoryType)); err != nil {
			return err
		}
		logger.Info("Seeded %s category %q", categoryType, name)
	} else if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO application_category_association (application_id, category_id, category_type)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		appID, categoryID, string(categoryType)); err != nil {
		return err
	}

	for _, desc := range descriptions {
		itemAppID := &appID
		var itemPlatformID *string
		if categoryType == models.CategoryTypePlatform {
			itemPlatformID = &platformID
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO checklist_items (id, category_id, application_id, platform_id, description, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT ON CONSTRAINT uix_checklist_item_description_category DO NOTHING`,
			uuid.NewString(), categoryID, itemAppID, itemPlatformID, desc, string(models.ItemStatusNotStarted)); err != nil {
			return err
		}
	}
	return nil
}
