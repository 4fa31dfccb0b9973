package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for every table the engine touches. Statements are
// idempotent so EnsureSchema can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS platforms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	owner TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	description TEXT,
	owner TEXT,
	platform_id TEXT REFERENCES platforms(id),
	repository_url TEXT,
	commit_id TEXT,
	app_type TEXT,
	technology_stack TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS application_category_association (
	application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	category_type TEXT,
	PRIMARY KEY (application_id, category_id)
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	application_id TEXT REFERENCES applications(id) ON DELETE CASCADE,
	platform_id TEXT REFERENCES platforms(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	evidence TEXT,
	comments TEXT,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uix_checklist_item_description_category UNIQUE (description, category_id)
);

CREATE TABLE IF NOT EXISTS validation_workflows (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	initiated_by TEXT NOT NULL,
	repository_url TEXT,
	commit_id TEXT,
	request JSONB,
	overall_compliance BOOLEAN,
	summary TEXT
);

CREATE TABLE IF NOT EXISTS validation_steps (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL REFERENCES validation_workflows(id) ON DELETE CASCADE,
	step_type TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	result_summary TEXT,
	details JSONB,
	error_message TEXT,
	integration_source TEXT,
	seq INT NOT NULL DEFAULT 0,
	CONSTRAINT uix_step_workflow_type UNIQUE (workflow_id, step_type)
);

CREATE TABLE IF NOT EXISTS validation_step_findings (
	id TEXT PRIMARY KEY,
	step_id TEXT NOT NULL REFERENCES validation_steps(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	severity TEXT NOT NULL,
	code_location TEXT,
	recommendation TEXT
);

CREATE INDEX IF NOT EXISTS idx_workflows_application_created
	ON validation_workflows (application_id, created_at DESC);
`

// EnsureSchema applies the DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
