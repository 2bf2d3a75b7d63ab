package migration

import (
	"context"
	"time"

	"attrition/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations. Statements use the
// subset of SQL shared by PostgreSQL and SQLite.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	tables := []struct {
		name   string
		create func(context.Context, *sqlx.DB) error
	}{
		{"scoring_batches", r.createBatchesTable},
		{"scored_employees", r.createScoredEmployeesTable},
		{"insights", r.createInsightsTable},
	}
	for _, t := range tables {
		if err := t.create(ctx, db); err != nil {
			return errors.Wrapf(err, "failed to create %s table", t.name)
		}
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}

	return nil
}

func (r *MigrationRunner) createBatchesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scoring_batches (
			id VARCHAR(64) PRIMARY KEY,
			source_name TEXT NOT NULL DEFAULT '',
			model_version VARCHAR(100) NOT NULL DEFAULT '',
			record_count INTEGER NOT NULL,
			high_risk_count INTEGER NOT NULL,
			column_names TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createScoredEmployeesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scored_employees (
			batch_id VARCHAR(64) NOT NULL REFERENCES scoring_batches(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			employee_id TEXT NOT NULL,
			attributes TEXT NOT NULL,
			attrition_probability DOUBLE PRECISION NOT NULL,
			risk_label VARCHAR(20) NOT NULL,
			risk_flag BOOLEAN NOT NULL,
			PRIMARY KEY (batch_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createInsightsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS insights (
			id VARCHAR(64) PRIMARY KEY,
			batch_id VARCHAR(64) NOT NULL REFERENCES scoring_batches(id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			diagnostic TEXT NOT NULL DEFAULT '',
			prescriptive TEXT NOT NULL DEFAULT '',
			preventive TEXT NOT NULL DEFAULT '',
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_scored_employees_employee ON scored_employees(batch_id, employee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scoring_batches_created ON scoring_batches(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_employee ON insights(batch_id, employee_id, created_at)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(32) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return err
	}

	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), r.version); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`), r.version, time.Now().UTC())
	return err
}

// AppliedVersions lists recorded schema versions
func AppliedVersions(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var versions []string
	err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations ORDER BY applied_at`)
	return versions, err
}
