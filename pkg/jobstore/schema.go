package jobstore

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the job table schema in-place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			project TEXT NOT NULL,
			job_type TEXT NOT NULL,
			status TEXT NOT NULL,
			run_mode TEXT NOT NULL,
			queue_id TEXT,
			parent_id INTEGER,
			master_id INTEGER,
			working_dir TEXT,
			time_start TEXT,
			time_stop TEXT,
			total_cpu_secs INTEGER,
			created_at TEXT NOT NULL,
			UNIQUE (project, name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_parent ON jobs (parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);`,

		fmt.Sprintf(`UPDATE schema_meta SET schema_version = %d WHERE id = 1;`, SchemaVersion),
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
